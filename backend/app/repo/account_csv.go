package repo

import (
	"fmt"
	"strings"
	"sync"

	"drive-eval/backend/app/models"
)

const (
	colUsername        = "username"
	colPasswordHash    = "password_hash"
	colRole            = "role"
	colActive          = "active"
	colEvaluatorAccess = "evaluator_access"
	colName            = "name"
	colVehicleNumber   = "vehicle_number"
)

var accountColumns = []string{
	colUsername, colPasswordHash, colRole, colActive, colEvaluatorAccess, colName, colVehicleNumber,
}

// AccountCSVRepository keeps accounts in a CSV file that is rewritten on every mutation.
type AccountCSVRepository struct {
	mu    sync.Mutex
	table *csvTable
}

func NewAccountCSVRepository(path string) *AccountCSVRepository {
	return &AccountCSVRepository{table: &csvTable{
		path:     path,
		columns:  accountColumns,
		required: []string{colUsername, colPasswordHash, colRole},
		aliases: map[string]string{
			"password":     colPasswordHash,
			"اسم المستخدم": colUsername,
			"كلمة المرور":  colPasswordHash,
		},
	}}
}

func (r *AccountCSVRepository) Ensure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.ensure()
}

func (r *AccountCSVRepository) Count() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, err := r.load()
	return len(accounts), err
}

func (r *AccountCSVRepository) FindByUsername(username string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, err := r.load()
	if err != nil {
		return nil, err
	}
	if i := indexAccount(accounts, username); i >= 0 {
		a := accounts[i]
		return &a, nil
	}
	return nil, ErrNotFound
}

func (r *AccountCSVRepository) Create(a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, err := r.load()
	if err != nil {
		return err
	}
	if indexAccount(accounts, a.Username) >= 0 {
		return ErrDuplicateUsername
	}
	return r.save(append(accounts, *a))
}

func (r *AccountCSVRepository) Update(a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts, err := r.load()
	if err != nil {
		return err
	}
	i := indexAccount(accounts, a.Username)
	if i < 0 {
		return ErrNotFound
	}
	accounts[i] = *a
	return r.save(accounts)
}

func (r *AccountCSVRepository) List() ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *AccountCSVRepository) load() ([]models.Account, error) {
	rows, err := r.table.read()
	if err != nil {
		return nil, err
	}
	out := make([]models.Account, 0, len(rows))
	for i, row := range rows {
		a, err := decodeAccount(row)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", ErrStoreUnavailable, r.table.path, i+2, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *AccountCSVRepository) save(accounts []models.Account) error {
	rows := make([]csvRow, len(accounts))
	for i, a := range accounts {
		rows[i] = encodeAccount(a)
	}
	return r.table.write(rows)
}

func indexAccount(accounts []models.Account, username string) int {
	key := models.UsernameKey(username)
	for i, a := range accounts {
		if models.UsernameKey(a.Username) == key {
			return i
		}
	}
	return -1
}

func decodeAccount(row csvRow) (models.Account, error) {
	a := models.Account{
		Username:      strings.TrimSpace(row[colUsername]),
		PasswordHash:  strings.TrimSpace(row[colPasswordHash]),
		Role:          models.Role(strings.ToLower(strings.TrimSpace(row[colRole]))),
		Name:          row[colName],
		VehicleNumber: row[colVehicleNumber],
	}
	if a.Username == "" {
		return a, fmt.Errorf("empty username")
	}
	if !a.Role.Valid() {
		return a, fmt.Errorf("unknown role %q", row[colRole])
	}
	var err error
	// Rows written before the active column existed could always log in.
	if a.Active, err = parseBool(row[colActive], true); err != nil {
		return a, fmt.Errorf("active: %w", err)
	}
	if a.EvaluatorAccess, err = parseBool(row[colEvaluatorAccess], a.Role == models.RoleAdmin); err != nil {
		return a, fmt.Errorf("evaluator_access: %w", err)
	}
	return a, nil
}

func encodeAccount(a models.Account) csvRow {
	return csvRow{
		colUsername:        a.Username,
		colPasswordHash:    a.PasswordHash,
		colRole:            string(a.Role),
		colActive:          formatBool(a.Active),
		colEvaluatorAccess: formatBool(a.EvaluatorAccess),
		colName:            a.Name,
		colVehicleNumber:   a.VehicleNumber,
	}
}

func parseBool(s string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
