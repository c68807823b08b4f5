package controllers

import (
	"errors"
	"net/http"

	"drive-eval/backend/app/dto"
	jwtutil "drive-eval/backend/app/jwt"
	"drive-eval/backend/app/metrics"
	"drive-eval/backend/app/services"
)

type AuthController struct {
	Accounts *services.AccountService
	Signer   *jwtutil.Signer
}

func NewAuthController(accounts *services.AccountService, signer *jwtutil.Signer) *AuthController {
	return &AuthController{Accounts: accounts, Signer: signer}
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decode(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing credentials")
		return
	}
	a, err := c.Accounts.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrAuthentication) {
			metrics.Logins.WithLabelValues("rejected").Inc()
		} else {
			metrics.Logins.WithLabelValues("error").Inc()
		}
		writeError(w, r, err)
		return
	}
	token, err := c.Signer.Sign(a.Username, string(a.Role))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "token error")
		return
	}
	metrics.Logins.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(c.Signer.TTL().Seconds()),
		Role:        string(a.Role),
	})
}

func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := c.Accounts.Register(services.Registration{
		Username:      req.Username,
		Password:      req.Password,
		Name:          req.Name,
		VehicleNumber: req.VehicleNumber,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.MessageResponse{Message: "registered; an administrator must activate the account"})
}

func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, actor(r).Redacted())
}
