package repo

import (
	"errors"
	"fmt"
	"time"

	"drive-eval/backend/app/models"

	"gorm.io/gorm"
)

type accountRow struct {
	ID              uint   `gorm:"primaryKey"`
	Username        string `gorm:"size:191;not null"`
	UsernameKey     string `gorm:"uniqueIndex;size:191;not null"`
	PasswordHash    string `gorm:"size:255;not null"`
	Role            string `gorm:"size:32;not null;default:evaluator"`
	Active          bool
	EvaluatorAccess bool
	Name            string `gorm:"size:191"`
	VehicleNumber   string `gorm:"size:64"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (accountRow) TableName() string { return "accounts" }

// AccountGormRepository stores accounts in a SQL database through gorm.
type AccountGormRepository struct{ db *gorm.DB }

func NewAccountGormRepository(db *gorm.DB) *AccountGormRepository {
	return &AccountGormRepository{db: db}
}

func (r *AccountGormRepository) Ensure() error {
	return wrapDB(r.db.AutoMigrate(&accountRow{}))
}

func (r *AccountGormRepository) Count() (int, error) {
	var n int64
	err := r.db.Model(&accountRow{}).Count(&n).Error
	return int(n), wrapDB(err)
}

func (r *AccountGormRepository) FindByUsername(username string) (*models.Account, error) {
	var row accountRow
	err := r.db.Where("username_key = ?", models.UsernameKey(username)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapDB(err)
	}
	a := row.toModel()
	return &a, nil
}

func (r *AccountGormRepository) Create(a *models.Account) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&accountRow{}).Where("username_key = ?", models.UsernameKey(a.Username)).Count(&n).Error; err != nil {
			return wrapDB(err)
		}
		if n > 0 {
			return ErrDuplicateUsername
		}
		row := accountFromModel(*a)
		return wrapDB(tx.Create(&row).Error)
	})
}

// Update checks existence first: MySQL reports zero affected rows when the
// new values equal the stored ones.
func (r *AccountGormRepository) Update(a *models.Account) error {
	key := models.UsernameKey(a.Username)
	return r.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&accountRow{}).Where("username_key = ?", key).Count(&n).Error; err != nil {
			return wrapDB(err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return wrapDB(tx.Model(&accountRow{}).
			Where("username_key = ?", key).
			Updates(map[string]any{
				"password_hash":    a.PasswordHash,
				"role":             string(a.Role),
				"active":           a.Active,
				"evaluator_access": a.EvaluatorAccess,
				"name":             a.Name,
				"vehicle_number":   a.VehicleNumber,
			}).Error)
	})
}

func (r *AccountGormRepository) List() ([]models.Account, error) {
	var rows []accountRow
	if err := r.db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, wrapDB(err)
	}
	out := make([]models.Account, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

func accountFromModel(a models.Account) accountRow {
	return accountRow{
		Username:        a.Username,
		UsernameKey:     models.UsernameKey(a.Username),
		PasswordHash:    a.PasswordHash,
		Role:            string(a.Role),
		Active:          a.Active,
		EvaluatorAccess: a.EvaluatorAccess,
		Name:            a.Name,
		VehicleNumber:   a.VehicleNumber,
	}
}

func (row accountRow) toModel() models.Account {
	return models.Account{
		Username:        row.Username,
		PasswordHash:    row.PasswordHash,
		Role:            models.Role(row.Role),
		Active:          row.Active,
		EvaluatorAccess: row.EvaluatorAccess,
		Name:            row.Name,
		VehicleNumber:   row.VehicleNumber,
		CreatedAt:       row.CreatedAt,
	}
}

func wrapDB(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
