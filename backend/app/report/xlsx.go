package report

import (
	"fmt"
	"io"
	"time"

	"drive-eval/backend/app/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Records"

var xlsxHeader = []string{"id", "report_name", "start_time", "end_time", "errors", "notes", "username", "vehicle_number"}

// XLSXExporter writes records to a single-sheet workbook.
type XLSXExporter struct {
	loc *time.Location
}

func NewXLSXExporter(loc *time.Location) *XLSXExporter {
	return &XLSXExporter{loc: loc}
}

func (x *XLSXExporter) Export(w io.Writer, records []models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := x.writeRow(f, 1, toAny(xlsxHeader)); err != nil {
		return err
	}
	for i, r := range records {
		row := []any{
			r.ID,
			r.ReportName,
			r.StartTime.In(x.loc).Format(models.TimeLayout),
			r.EndTime.In(x.loc).Format(models.TimeLayout),
			models.JoinErrors(r.Errors),
			r.Notes,
			r.Owner,
			r.VehicleNumber,
		}
		if err := x.writeRow(f, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("xlsx panes: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func (x *XLSXExporter) writeRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("xlsx cell: %w", err)
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("xlsx row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
