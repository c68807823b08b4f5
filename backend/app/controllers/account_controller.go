package controllers

import (
	"net/http"

	"drive-eval/backend/app/dto"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/services"

	"github.com/gorilla/mux"
)

type AccountController struct{ Accounts *services.AccountService }

func NewAccountController(accounts *services.AccountService) *AccountController {
	return &AccountController{Accounts: accounts}
}

func (c *AccountController) List(w http.ResponseWriter, r *http.Request) {
	list, err := c.Accounts.List(actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range list {
		list[i] = list[i].Redacted()
	}
	writeJSON(w, http.StatusOK, list)
}

func (c *AccountController) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.AccountUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := c.Accounts.UpdateRoleAndActive(actor(r), mux.Vars(r)["username"], services.AccountChange{
		Role:            models.Role(req.Role),
		Active:          *req.Active,
		EvaluatorAccess: req.EvaluatorAccess,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
