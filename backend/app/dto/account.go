package dto

type AccountUpdateRequest struct {
	Role            string `json:"role" validate:"required,oneof=admin evaluator viewer"`
	Active          *bool  `json:"active" validate:"required"`
	EvaluatorAccess *bool  `json:"evaluator_access,omitempty"`
}
