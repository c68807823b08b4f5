package repo

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"drive-eval/backend/app/models"
)

const (
	colID         = "id"
	colReportName = "report_name"
	colStartTime  = "start_time"
	colEndTime    = "end_time"
	colErrors     = "errors"
	colNotes      = "notes"
	colOwner      = "username"
)

var recordColumns = []string{
	colID, colReportName, colStartTime, colEndTime, colErrors, colNotes, colOwner, colVehicleNumber,
}

// RecordCSVRepository keeps evaluation records in a CSV file. Every mutation
// loads the whole table, applies the change and rewrites the whole table, so
// two processes sharing the file race and the last writer wins.
type RecordCSVRepository struct {
	mu    sync.Mutex
	table *csvTable
	loc   *time.Location
}

func NewRecordCSVRepository(path string, loc *time.Location) *RecordCSVRepository {
	return &RecordCSVRepository{
		loc: loc,
		table: &csvTable{
			path:     path,
			columns:  recordColumns,
			required: []string{colReportName, colStartTime, colEndTime},
			aliases: map[string]string{
				"اسم التقرير":  colReportName,
				"وقت البداية":  colStartTime,
				"وقت النهاية":  colEndTime,
				"الأخطاء":      colErrors,
				"ملاحظات":      colNotes,
				"اسم المستخدم": colOwner,
				"رقم المركبة":  colVehicleNumber,
			},
		},
	}
}

func (r *RecordCSVRepository) Ensure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.ensure()
}

func (r *RecordCSVRepository) Append(rec *models.Record) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return 0, err
	}
	rec.ID = nextID(records)
	if err := r.save(append(records, *rec)); err != nil {
		return 0, err
	}
	return rec.ID, nil
}

func (r *RecordCSVRepository) List(filter models.RecordFilter) ([]models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *RecordCSVRepository) Get(id int64) (*models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (r *RecordCSVRepository) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return err
	}
	for i, rec := range records {
		if rec.ID == id {
			return r.save(append(records[:i], records[i+1:]...))
		}
	}
	return ErrNotFound
}

// load decodes the table. Rows without an id get max+1, max+2, ... in file order.
func (r *RecordCSVRepository) load() ([]models.Record, error) {
	rows, err := r.table.read()
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(rows))
	var missing []int
	for i, row := range rows {
		rec, err := decodeRecord(row, r.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", ErrStoreUnavailable, r.table.path, i+2, err)
		}
		if rec.ID == 0 {
			missing = append(missing, i)
		}
		out = append(out, rec)
	}
	for _, i := range missing {
		out[i].ID = nextID(out)
	}
	return out, nil
}

func (r *RecordCSVRepository) save(records []models.Record) error {
	rows := make([]csvRow, len(records))
	for i, rec := range records {
		rows[i] = encodeRecord(rec, r.loc)
	}
	return r.table.write(rows)
}

func nextID(records []models.Record) int64 {
	var max int64
	for _, rec := range records {
		if rec.ID > max {
			max = rec.ID
		}
	}
	return max + 1
}

func decodeRecord(row csvRow, loc *time.Location) (models.Record, error) {
	rec := models.Record{
		ReportName:    row[colReportName],
		Errors:        models.SplitErrors(row[colErrors]),
		Notes:         row[colNotes],
		Owner:         strings.TrimSpace(row[colOwner]),
		VehicleNumber: row[colVehicleNumber],
	}
	if s := strings.TrimSpace(row[colID]); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return rec, fmt.Errorf("invalid id %q", s)
		}
		rec.ID = id
	}
	var err error
	if rec.StartTime, err = time.ParseInLocation(models.TimeLayout, strings.TrimSpace(row[colStartTime]), loc); err != nil {
		return rec, fmt.Errorf("start_time: %w", err)
	}
	if rec.EndTime, err = time.ParseInLocation(models.TimeLayout, strings.TrimSpace(row[colEndTime]), loc); err != nil {
		return rec, fmt.Errorf("end_time: %w", err)
	}
	return rec, nil
}

func encodeRecord(rec models.Record, loc *time.Location) csvRow {
	return csvRow{
		colID:            strconv.FormatInt(rec.ID, 10),
		colReportName:    rec.ReportName,
		colStartTime:     rec.StartTime.In(loc).Format(models.TimeLayout),
		colEndTime:       rec.EndTime.In(loc).Format(models.TimeLayout),
		colErrors:        models.JoinErrors(rec.Errors),
		colNotes:         rec.Notes,
		colOwner:         rec.Owner,
		colVehicleNumber: rec.VehicleNumber,
	}
}
