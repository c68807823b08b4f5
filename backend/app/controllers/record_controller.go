package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"drive-eval/backend/app/dto"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/services"

	"github.com/gorilla/mux"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type RecordController struct {
	Records *services.RecordService
	Exports *services.ExportService
}

func NewRecordController(records *services.RecordService, exports *services.ExportService) *RecordController {
	return &RecordController{Records: records, Exports: exports}
}

func (c *RecordController) List(w http.ResponseWriter, r *http.Request) {
	list, fp, err := c.Records.List(actor(r), models.RecordFilter{Owner: r.URL.Query().Get("owner")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	etag := `"` + fp + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, dto.RecordListResponse{Records: list, Count: len(list)})
}

func (c *RecordController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := c.Records.Get(actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (c *RecordController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.Records.Delete(actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *RecordController) PDF(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	name, err := c.Exports.PDF(&buf, actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (c *RecordController) XLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := c.Exports.XLSX(&buf, actor(r), models.RecordFilter{Owner: r.URL.Query().Get("owner")}); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="records.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func recordID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid record id", services.ErrValidation)
	}
	return id, nil
}
