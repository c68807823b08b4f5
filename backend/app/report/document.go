// Package report turns evaluation records into printable documents.
package report

import (
	"fmt"
	"io"
	"time"

	"drive-eval/backend/app/models"
)

const (
	labelTitle    = "تقرير تقييم القيادة"
	labelReport   = "اسم التقرير"
	labelOwner    = "اسم المستخدم"
	labelVehicle  = "رقم المركبة"
	labelStart    = "وقت البداية"
	labelEnd      = "وقت النهاية"
	labelErrors   = "الأخطاء"
	labelNotes    = "ملاحظات"
	labelNoErrors = "لا توجد أخطاء"
)

// Field is one labelled line of the document header.
type Field struct {
	Label string
	Value string
}

// Document is the renderer-independent content of one record report.
type Document struct {
	ID     int64
	Title  string
	Fields []Field
	Errors []string
	Notes  string
}

// Renderer writes a Document in some output format.
type Renderer interface {
	Render(w io.Writer, doc Document) error
}

// BuildDocument lays out rec with timestamps shown in loc. Errors keep the
// order in which they were selected.
func BuildDocument(rec models.Record, loc *time.Location) Document {
	fields := []Field{
		{Label: labelReport, Value: rec.ReportName},
		{Label: labelOwner, Value: rec.Owner},
	}
	if rec.VehicleNumber != "" {
		fields = append(fields, Field{Label: labelVehicle, Value: rec.VehicleNumber})
	}
	fields = append(fields,
		Field{Label: labelStart, Value: rec.StartTime.In(loc).Format(models.TimeLayout)},
		Field{Label: labelEnd, Value: rec.EndTime.In(loc).Format(models.TimeLayout)},
	)
	errs := make([]string, len(rec.Errors))
	for i, e := range rec.Errors {
		errs[i] = string(e)
	}
	return Document{
		ID:     rec.ID,
		Title:  labelTitle,
		Fields: fields,
		Errors: errs,
		Notes:  rec.Notes,
	}
}

// Filename is the download name of a record's PDF.
func Filename(id int64) string {
	return fmt.Sprintf("report-%d.pdf", id)
}
