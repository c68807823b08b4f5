package services

import (
	"fmt"
	"io"
	"time"

	"drive-eval/backend/app/metrics"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/policy"
	"drive-eval/backend/app/report"
)

// ExportService renders records the actor may export.
type ExportService struct {
	records *RecordService
	policy  *policy.Policy
	pdf     report.Renderer
	xlsx    *report.XLSXExporter
	loc     *time.Location
}

// NewExportService builds the service. pdf may be nil when no font is
// configured; PDF export then fails with report.ErrNoFont.
func NewExportService(records *RecordService, p *policy.Policy, pdf report.Renderer, loc *time.Location) *ExportService {
	return &ExportService{records: records, policy: p, pdf: pdf, xlsx: report.NewXLSXExporter(loc), loc: loc}
}

// PDF writes the report of record id and returns its file name.
func (s *ExportService) PDF(w io.Writer, actor models.Account, id int64) (string, error) {
	if s.pdf == nil {
		return "", report.ErrNoFont
	}
	rec, err := s.records.Get(actor, id)
	if err != nil {
		return "", err
	}
	if !s.policy.Allowed(policy.SubjectOf(actor), policy.ExportRecord, rec.Owner) {
		return "", ErrForbidden
	}
	if err := s.pdf.Render(w, report.BuildDocument(*rec, s.loc)); err != nil {
		return "", fmt.Errorf("export record %d: %w", id, err)
	}
	metrics.Exports.WithLabelValues("pdf").Inc()
	return report.Filename(rec.ID), nil
}

// XLSX writes every record actor may both see and export, narrowed by filter.
func (s *ExportService) XLSX(w io.Writer, actor models.Account, filter models.RecordFilter) error {
	list, _, err := s.records.List(actor, filter)
	if err != nil {
		return err
	}
	subj := policy.SubjectOf(actor)
	visible := list[:0]
	for _, r := range list {
		if s.policy.Allowed(subj, policy.ExportRecord, r.Owner) {
			visible = append(visible, r)
		}
	}
	if err := s.xlsx.Export(w, visible); err != nil {
		return err
	}
	metrics.Exports.WithLabelValues("xlsx").Inc()
	return nil
}
