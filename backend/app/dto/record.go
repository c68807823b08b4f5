package dto

import "drive-eval/backend/app/models"

type RecordListResponse struct {
	Records []models.Record `json:"records"`
	Count   int             `json:"count"`
}
