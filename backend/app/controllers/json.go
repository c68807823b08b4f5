package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"drive-eval/backend/app/middleware"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/report"
	"drive-eval/backend/app/repo"
	"drive-eval/backend/app/services"
	"drive-eval/backend/global"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into dst and validates its tags.
func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid payload", services.ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	return nil
}

// writeError maps service and store errors to a status and a message safe
// to show to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, services.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrAuthentication):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, services.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, repo.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, repo.ErrDuplicateUsername):
		status, msg = http.StatusConflict, "username already exists"
	case errors.Is(err, services.ErrInvalidState):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrLastAdmin):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, repo.ErrStoreUnavailable):
		status, msg = http.StatusServiceUnavailable, "storage unavailable"
	case errors.Is(err, report.ErrNoFont):
		status, msg = http.StatusServiceUnavailable, "pdf export is not configured"
	}
	if status >= http.StatusInternalServerError {
		global.Logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSONError(w, status, msg)
}

// actor returns the authenticated account. Routes are wrapped in RequireAuth,
// so a missing account is a wiring error.
func actor(r *http.Request) models.Account {
	if a := middleware.GetAccount(r.Context()); a != nil {
		return *a
	}
	return models.Account{}
}
