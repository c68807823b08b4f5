package services

import (
	"errors"

	"drive-eval/backend/app/evaluation"
)

var (
	ErrValidation     = evaluation.ErrInvalidInput
	ErrInvalidState   = evaluation.ErrInvalidState
	ErrAuthentication = errors.New("invalid credentials")
	ErrForbidden      = errors.New("forbidden")
	ErrLastAdmin      = errors.New("at least one active admin must remain")
)
