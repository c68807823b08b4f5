package dto

import "drive-eval/backend/app/models"

type StartEvaluationRequest struct {
	ReportName    string `json:"report_name" validate:"required,max=200"`
	VehicleNumber string `json:"vehicle_number" validate:"max=32"`
}

type ToggleErrorRequest struct {
	Code string `json:"code" validate:"required"`
}

type NotesRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

type CatalogResponse struct {
	Errors []models.ErrorCode `json:"errors"`
}
