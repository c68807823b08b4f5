package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"drive-eval/backend/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var riyadh = time.FixedZone("AST", 3*60*60)

func newRecordRepo(t *testing.T) (*RecordCSVRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reports.csv")
	r := NewRecordCSVRepository(path, riyadh)
	require.NoError(t, r.Ensure())
	return r, path
}

func sampleRecord(name, owner string, minute int) models.Record {
	start := time.Date(2024, 5, 1, 9, minute, 0, 0, riyadh)
	return models.Record{
		ReportName: name,
		StartTime:  start,
		EndTime:    start.Add(7 * time.Minute),
		Errors:     []models.ErrorCode{"حزام", "سرعة"},
		Notes:      "line one, with comma\nline \"two\"",
		Owner:      owner,
	}
}

func assertSameRecord(t *testing.T, want, got models.Record) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.ReportName, got.ReportName)
	assert.True(t, want.StartTime.Equal(got.StartTime), "start %v != %v", want.StartTime, got.StartTime)
	assert.True(t, want.EndTime.Equal(got.EndTime), "end %v != %v", want.EndTime, got.EndTime)
	assert.Equal(t, want.Errors, got.Errors)
	assert.Equal(t, want.Notes, got.Notes)
	assert.Equal(t, want.Owner, got.Owner)
	assert.Equal(t, want.VehicleNumber, got.VehicleNumber)
}

func TestRecordCSV_AppendGetDelete(t *testing.T) {
	r, _ := newRecordRepo(t)

	rec := sampleRecord("Car-12", "hus585", 0)
	id, err := r.Append(&rec)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, id, rec.ID)

	got, err := r.Get(id)
	require.NoError(t, err)
	assertSameRecord(t, rec, *got)

	second := sampleRecord("Car-13", "qwe", 10)
	id2, err := r.Append(&second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id2)

	require.NoError(t, r.Delete(id))
	_, err = r.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Delete(id), ErrNotFound)

	third := sampleRecord("Car-14", "qwe", 20)
	id3, err := r.Append(&third)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id3, "ids follow max+1, not count+1")
}

func TestRecordCSV_IDsRestartAfterDeletingMax(t *testing.T) {
	r, _ := newRecordRepo(t)
	rec := sampleRecord("a", "u", 0)
	id, err := r.Append(&rec)
	require.NoError(t, err)
	require.NoError(t, r.Delete(id))

	again := sampleRecord("b", "u", 1)
	id, err = r.Append(&again)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestRecordCSV_ListFilterAndOrder(t *testing.T) {
	r, _ := newRecordRepo(t)
	owners := []string{"hus585", "qwe", "hus585", "other"}
	for i, o := range owners {
		rec := sampleRecord(fmt.Sprintf("r%d", i), o, i)
		_, err := r.Append(&rec)
		require.NoError(t, err)
	}

	all, err := r.List(models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, rec := range all {
		assert.Equal(t, fmt.Sprintf("r%d", i), rec.ReportName)
	}

	mine, err := r.List(models.RecordFilter{Owner: "HUS585"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "r0", mine[0].ReportName)
	assert.Equal(t, "r2", mine[1].ReportName)
}

func TestRecordCSV_RoundTripThroughFile(t *testing.T) {
	r, path := newRecordRepo(t)
	var want []models.Record
	for i := 0; i < 25; i++ {
		rec := sampleRecord(fmt.Sprintf("report-%02d", i), "hus585", i)
		rec.Errors = models.Catalog()[:i%5]
		if i%3 == 0 {
			rec.VehicleNumber = fmt.Sprintf("V-%d", i)
		}
		_, err := r.Append(&rec)
		require.NoError(t, err)
		want = append(want, rec)
	}

	reloaded := NewRecordCSVRepository(path, riyadh)
	got, err := reloaded.List(models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assertSameRecord(t, want[i], got[i])
	}
}

func TestRecordCSV_LegacyArabicHeaderWithoutIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.csv")
	legacy := "اسم التقرير,وقت البداية,وقت النهاية,الأخطاء,ملاحظات,اسم المستخدم\n" +
		"Car-1,2024-05-01 09:00,2024-05-01 09:20,حزام; سرعة,ok,hus585\n" +
		"Car-2,2024-05-01 10:00,2024-05-01 10:05,,,qwe\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))
	r := NewRecordCSVRepository(path, riyadh)

	all, err := r.List(models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(2), all[1].ID)
	assert.Equal(t, []models.ErrorCode{"حزام", "سرعة"}, all[0].Errors)
	assert.Empty(t, all[1].Errors)
	assert.Equal(t, "qwe", all[1].Owner)

	rec := sampleRecord("Car-3", "hus585", 0)
	id, err := r.Append(&rec)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "id,report_name,start_time,end_time,errors,notes,username,vehicle_number\n1,Car-1,")
}

func TestRecordCSV_MalformedRowsReportUnavailable(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"bad time": "report_name,start_time,end_time\nx,yesterday,2024-05-01 09:00\n",
		"bad id":   "id,report_name,start_time,end_time\nabc,x,2024-05-01 09:00,2024-05-01 09:00\n",
		"no start": "report_name,end_time\nx,2024-05-01 09:00\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".csv")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			r := NewRecordCSVRepository(path, riyadh)

			_, err := r.List(models.RecordFilter{})
			assert.ErrorIs(t, err, ErrStoreUnavailable)

			rec := sampleRecord("y", "u", 0)
			_, err = r.Append(&rec)
			assert.ErrorIs(t, err, ErrStoreUnavailable)

			b, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, content, string(b), "a failed load must not rewrite the table")
		})
	}
}

func TestRecordCSV_MissingFile(t *testing.T) {
	r := NewRecordCSVRepository(filepath.Join(t.TempDir(), "nope.csv"), riyadh)
	_, err := r.Get(1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

// Two writers sharing one table file each load, modify and save without
// coordination. The second save is based on a stale snapshot and silently
// discards the first writer's row: last writer wins.
func TestRecordCSV_ConcurrentWritersLoseAnAppend(t *testing.T) {
	_, path := newRecordRepo(t)
	procA := NewRecordCSVRepository(path, riyadh)
	procB := NewRecordCSVRepository(path, riyadh)

	snapA, err := procA.load()
	require.NoError(t, err)
	snapB, err := procB.load()
	require.NoError(t, err)

	recA := sampleRecord("from-A", "a", 0)
	recA.ID = nextID(snapA)
	recB := sampleRecord("from-B", "b", 1)
	recB.ID = nextID(snapB)

	require.NoError(t, procA.save(append(snapA, recA)))
	require.NoError(t, procB.save(append(snapB, recB)))

	all, err := NewRecordCSVRepository(path, riyadh).List(models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1, "one of the two appends is lost")
	assert.Equal(t, "from-B", all[0].ReportName)
	assert.Equal(t, recA.ID, recB.ID, "both writers assigned the same id")
}

// Within one process the repository mutex serialises mutations, so
// concurrent appends through a shared repository all survive.
func TestRecordCSV_SameProcessAppendsAreSerialised(t *testing.T) {
	r, _ := newRecordRepo(t)
	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			rec := sampleRecord(fmt.Sprintf("r%d", i), "u", i%60)
			_, err := r.Append(&rec)
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	all, err := r.List(models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, n)
	seen := map[int64]bool{}
	for _, rec := range all {
		assert.False(t, seen[rec.ID])
		seen[rec.ID] = true
	}
}
