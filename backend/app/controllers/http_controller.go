package controllers

import (
	"net/http"

	"drive-eval/backend/app/dto"
	"drive-eval/backend/app/models"
)

type HTTPController struct{}

func NewHTTPController() *HTTPController {
	return &HTTPController{}
}

func (c *HTTPController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *HTTPController) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.CatalogResponse{Errors: models.Catalog()})
}
