package repo

import (
	"path/filepath"
	"testing"

	"drive-eval/backend/app/db"
	"drive-eval/backend/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect(db.Config{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "eval.db")})
	require.NoError(t, err)
	return gdb
}

func TestAccountGorm(t *testing.T) {
	r := NewAccountGormRepository(openSQLite(t))
	require.NoError(t, r.Ensure())

	require.NoError(t, r.Create(&models.Account{Username: "Hus585", PasswordHash: "h", Role: models.RoleAdmin, Active: true}))
	assert.ErrorIs(t, r.Create(&models.Account{Username: "hus585", PasswordHash: "h", Role: models.RoleViewer}), ErrDuplicateUsername)

	n, err := r.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a, err := r.FindByUsername("HUS585")
	require.NoError(t, err)
	assert.Equal(t, "Hus585", a.Username)

	a.Active = false
	a.Role = models.RoleViewer
	require.NoError(t, r.Update(a))
	a, err = r.FindByUsername("hus585")
	require.NoError(t, err)
	assert.False(t, a.Active)
	assert.Equal(t, models.RoleViewer, a.Role)

	assert.ErrorIs(t, r.Update(&models.Account{Username: "ghost"}), ErrNotFound)
	_, err = r.FindByUsername("ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := r.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAccountGormUpdateUnchanged(t *testing.T) {
	gdb := openSQLite(t)
	// MySQL counts changed rows, not matched ones
	require.NoError(t, gdb.Callback().Update().After("gorm:update").Register("test:changed_rows", func(tx *gorm.DB) {
		tx.RowsAffected = 0
	}))
	r := NewAccountGormRepository(gdb)
	require.NoError(t, r.Ensure())
	require.NoError(t, r.Create(&models.Account{Username: "sara", PasswordHash: "h", Role: models.RoleEvaluator, Active: true}))

	a, err := r.FindByUsername("sara")
	require.NoError(t, err)
	assert.NoError(t, r.Update(a), "identical values are not a miss")
	assert.ErrorIs(t, r.Update(&models.Account{Username: "ghost"}), ErrNotFound)

	got, err := r.FindByUsername("sara")
	require.NoError(t, err)
	assert.Equal(t, a.Role, got.Role)
	assert.True(t, got.Active)
}

func TestRecordGorm(t *testing.T) {
	r := NewRecordGormRepository(openSQLite(t), riyadh)
	require.NoError(t, r.Ensure())

	a := sampleRecord("Car-12", "hus585", 0)
	id, err := r.Append(&a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	b := sampleRecord("Car-13", "qwe", 5)
	b.Errors = []models.ErrorCode{}
	_, err = r.Append(&b)
	require.NoError(t, err)

	got, err := r.Get(1)
	require.NoError(t, err)
	assertSameRecord(t, a, *got)

	mine, err := r.List(models.RecordFilter{Owner: "QWE"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assertSameRecord(t, b, mine[0])

	require.NoError(t, r.Delete(1))
	assert.ErrorIs(t, r.Delete(1), ErrNotFound)
	_, err = r.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)

	c := sampleRecord("Car-14", "qwe", 9)
	id, err = r.Append(&c)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}
