package repo

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"drive-eval/backend/app/models"

	"gorm.io/gorm"
)

type recordRow struct {
	ID            int64  `gorm:"primaryKey;autoIncrement:false"`
	ReportName    string `gorm:"size:255;not null"`
	StartTime     string `gorm:"size:16;not null"`
	EndTime       string `gorm:"size:16;not null"`
	Errors        string `gorm:"type:text"`
	Notes         string `gorm:"type:text"`
	Owner         string `gorm:"size:191;index"`
	OwnerKey      string `gorm:"size:191;index"`
	VehicleNumber string `gorm:"size:64"`
}

func (recordRow) TableName() string { return "records" }

// RecordGormRepository stores records in a SQL database. Timestamps keep the
// same minute-precision text form as the CSV table.
type RecordGormRepository struct {
	db  *gorm.DB
	loc *time.Location
}

func NewRecordGormRepository(db *gorm.DB, loc *time.Location) *RecordGormRepository {
	return &RecordGormRepository{db: db, loc: loc}
}

func (r *RecordGormRepository) Ensure() error {
	return wrapDB(r.db.AutoMigrate(&recordRow{}))
}

func (r *RecordGormRepository) Append(rec *models.Record) (int64, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var max int64
		if err := tx.Model(&recordRow{}).Select("COALESCE(MAX(id), 0)").Scan(&max).Error; err != nil {
			return err
		}
		row := r.fromModel(*rec)
		row.ID = max + 1
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		rec.ID = row.ID
		return nil
	})
	if err != nil {
		return 0, wrapDB(err)
	}
	return rec.ID, nil
}

func (r *RecordGormRepository) List(filter models.RecordFilter) ([]models.Record, error) {
	q := r.db.Order("id ASC")
	if filter.Owner != "" {
		q = q.Where("owner_key = ?", models.UsernameKey(filter.Owner))
	}
	var rows []recordRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrapDB(err)
	}
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := r.toModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RecordGormRepository) Get(id int64) (*models.Record, error) {
	var row recordRow
	err := r.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapDB(err)
	}
	rec, err := r.toModel(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecordGormRepository) Delete(id int64) error {
	res := r.db.Where("id = ?", id).Delete(&recordRow{})
	if res.Error != nil {
		return wrapDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RecordGormRepository) fromModel(rec models.Record) recordRow {
	row := encodeRecord(rec, r.loc)
	return recordRow{
		ID:            rec.ID,
		ReportName:    row[colReportName],
		StartTime:     row[colStartTime],
		EndTime:       row[colEndTime],
		Errors:        row[colErrors],
		Notes:         row[colNotes],
		Owner:         rec.Owner,
		OwnerKey:      models.UsernameKey(rec.Owner),
		VehicleNumber: rec.VehicleNumber,
	}
}

func (r *RecordGormRepository) toModel(row recordRow) (models.Record, error) {
	rec, err := decodeRecord(csvRow{
		colID:            strconv.FormatInt(row.ID, 10),
		colReportName:    row.ReportName,
		colStartTime:     row.StartTime,
		colEndTime:       row.EndTime,
		colErrors:        row.Errors,
		colNotes:         row.Notes,
		colOwner:         row.Owner,
		colVehicleNumber: row.VehicleNumber,
	}, r.loc)
	if err != nil {
		return rec, fmt.Errorf("%w: record %d: %v", ErrStoreUnavailable, row.ID, err)
	}
	return rec, nil
}
