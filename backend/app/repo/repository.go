package repo

import (
	"errors"

	"drive-eval/backend/app/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// AccountRepository persists user accounts. Usernames are matched by models.UsernameKey.
type AccountRepository interface {
	// Ensure creates the backing table when it does not exist yet.
	Ensure() error
	Count() (int, error)
	FindByUsername(username string) (*models.Account, error)
	Create(a *models.Account) error
	Update(a *models.Account) error
	List() ([]models.Account, error)
}

// RecordRepository persists evaluation records. Records are never updated.
type RecordRepository interface {
	Ensure() error
	// Append assigns the next id (max id + 1, or 1) and stores the record.
	Append(r *models.Record) (int64, error)
	List(filter models.RecordFilter) ([]models.Record, error)
	Get(id int64) (*models.Record, error)
	Delete(id int64) error
}
