package controllers

import (
	"net/http"

	"drive-eval/backend/app/dto"
	"drive-eval/backend/app/services"
)

type EvaluationController struct{ Evaluations *services.EvaluationService }

func NewEvaluationController(evaluations *services.EvaluationService) *EvaluationController {
	return &EvaluationController{Evaluations: evaluations}
}

func (c *EvaluationController) Get(w http.ResponseWriter, r *http.Request) {
	s, err := c.Evaluations.Current(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (c *EvaluationController) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartEvaluationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := c.Evaluations.Start(r.Context(), actor(r), req.ReportName, req.VehicleNumber)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (c *EvaluationController) Toggle(w http.ResponseWriter, r *http.Request) {
	var req dto.ToggleErrorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := c.Evaluations.Toggle(r.Context(), actor(r), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (c *EvaluationController) Undo(w http.ResponseWriter, r *http.Request) {
	s, err := c.Evaluations.UndoLast(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (c *EvaluationController) Notes(w http.ResponseWriter, r *http.Request) {
	var req dto.NotesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := c.Evaluations.SetNotes(r.Context(), actor(r), req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (c *EvaluationController) Complete(w http.ResponseWriter, r *http.Request) {
	rec, err := c.Evaluations.Complete(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (c *EvaluationController) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := c.Evaluations.Cancel(r.Context(), actor(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
