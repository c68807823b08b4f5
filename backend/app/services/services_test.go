package services

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"drive-eval/backend/app/evaluation"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/policy"
	"drive-eval/backend/app/report"
	"drive-eval/backend/app/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var riyadh = time.FixedZone("AST", 3*60*60)

type fixture struct {
	dir      string
	accounts *repo.AccountCSVRepository
	records  *repo.RecordCSVRepository
	policy   *policy.Policy
	acc      *AccountService
	rec      *RecordService
	eval     *EvaluationService
	export   *ExportService
	now      time.Time
}

func newFixture(t *testing.T, opts policy.Options) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		accounts: repo.NewAccountCSVRepository(filepath.Join(dir, "users.csv")),
		records:  repo.NewRecordCSVRepository(filepath.Join(dir, "reports.csv"), riyadh),
		policy:   policy.New(opts),
		now:      time.Date(2024, 5, 1, 9, 30, 12, 0, riyadh),
	}
	require.NoError(t, f.records.Ensure())
	f.acc = NewAccountService(f.accounts, f.policy)
	f.acc.cost = bcrypt.MinCost
	f.rec = NewRecordService(f.records, f.policy)
	f.eval = NewEvaluationService(evaluation.NewMemoryStore(), f.records, f.accounts, f.policy, riyadh).
		WithClock(func() time.Time { return f.now })
	f.export = NewExportService(f.rec, f.policy, nil, riyadh)
	require.NoError(t, f.acc.EnsureAdmin("hus585", "268450"))
	return f
}

// account registers username and applies role and flags as the admin.
func (f *fixture) account(t *testing.T, username string, role models.Role, active, access bool) models.Account {
	t.Helper()
	require.NoError(t, f.acc.Register(Registration{Username: username, Password: "pw-" + username}))
	a, err := f.acc.UpdateRoleAndActive(f.admin(t), username, AccountChange{Role: role, Active: active, EvaluatorAccess: &access})
	require.NoError(t, err)
	return *a
}

func (f *fixture) admin(t *testing.T) models.Account {
	t.Helper()
	a, err := f.accounts.FindByUsername("hus585")
	require.NoError(t, err)
	return *a
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	a := f.admin(t)
	assert.Equal(t, models.RoleAdmin, a.Role)
	assert.True(t, a.Active)
	assert.True(t, a.EvaluatorAccess)
	assert.NotEqual(t, "268450", a.PasswordHash)

	// a second run leaves the table alone
	require.NoError(t, f.acc.EnsureAdmin("other", ""))
	n, err := f.accounts.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnsureAdmin_GeneratesPassword(t *testing.T) {
	accounts := repo.NewAccountCSVRepository(filepath.Join(t.TempDir(), "users.csv"))
	svc := NewAccountService(accounts, policy.New(policy.DefaultOptions()))
	svc.cost = bcrypt.MinCost
	require.NoError(t, svc.EnsureAdmin("", ""))

	a, err := accounts.FindByUsername("admin")
	require.NoError(t, err)
	assert.NotEmpty(t, a.PasswordHash)
	got, err := svc.FindByCredentials("admin", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCredentials(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	f.account(t, "Sara", models.RoleEvaluator, true, true)

	for _, name := range []string{"Sara", "sara", "  SARA "} {
		a, err := f.acc.FindByCredentials(name, "pw-Sara")
		require.NoError(t, err)
		require.NotNil(t, a, name)
		assert.Equal(t, "Sara", a.Username)
	}
	for _, pw := range []string{"", "pw-sara", "pw-Sara ", "nope"} {
		a, err := f.acc.FindByCredentials("Sara", pw)
		require.NoError(t, err)
		assert.Nil(t, a, pw)
	}
	a, err := f.acc.FindByCredentials("ghost", "pw-Sara")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestRegisteredAccountCannotLoginUntilActivated(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	require.NoError(t, f.acc.Register(Registration{Username: "newbie", Password: "pw", Name: " New ", VehicleNumber: "7"}))

	stored, err := f.accounts.FindByUsername("newbie")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEvaluator, stored.Role)
	assert.False(t, stored.Active)
	assert.False(t, stored.EvaluatorAccess)
	assert.Equal(t, "New", stored.Name)

	found, err := f.acc.FindByCredentials("newbie", "pw")
	require.NoError(t, err)
	require.NotNil(t, found, "credentials match even while inactive")

	_, err = f.acc.Login("newbie", "pw")
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = f.acc.UpdateRoleAndActive(f.admin(t), "newbie", AccountChange{Role: models.RoleEvaluator, Active: true})
	require.NoError(t, err)
	a, err := f.acc.Login("newbie", "pw")
	require.NoError(t, err)
	assert.Equal(t, "newbie", a.Username)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	f.account(t, "inactive", models.RoleEvaluator, false, true)

	_, unknown := f.acc.Login("ghost", "x")
	_, wrong := f.acc.Login("hus585", "x")
	_, inactive := f.acc.Login("inactive", "pw-inactive")
	for _, err := range []error{unknown, wrong, inactive} {
		assert.ErrorIs(t, err, ErrAuthentication)
		assert.Equal(t, "invalid credentials", err.Error())
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	assert.ErrorIs(t, f.acc.Register(Registration{Username: "  ", Password: "x"}), ErrValidation)
	assert.ErrorIs(t, f.acc.Register(Registration{Username: "a", Password: ""}), ErrValidation)
	assert.ErrorIs(t, f.acc.Register(Registration{Username: "a", Password: strings.Repeat("x", 73)}), ErrValidation)
	assert.ErrorIs(t, f.acc.Register(Registration{Username: "HUS585", Password: "x"}), repo.ErrDuplicateUsername)
}

func TestRegisterRejectsLongMultibytePassword(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	// 40 runes, 80 bytes
	pw := strings.Repeat("ب", 40)
	err := f.acc.Register(Registration{Username: "nora", Password: pw})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.accounts.FindByUsername("nora")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, f.acc.Register(Registration{Username: "nora", Password: strings.Repeat("ب", 36)}))
}

func TestEnsureAdmin_RejectsOverlongPassword(t *testing.T) {
	accounts := repo.NewAccountCSVRepository(filepath.Join(t.TempDir(), "users.csv"))
	svc := NewAccountService(accounts, policy.New(policy.DefaultOptions()))
	svc.cost = bcrypt.MinCost
	assert.ErrorIs(t, svc.EnsureAdmin("admin", strings.Repeat("ب", 40)), ErrValidation)
}

func TestLegacyPlaintextIsRehashed(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	require.NoError(t, f.accounts.Create(&models.Account{Username: "qwe", PasswordHash: "123123", Role: models.RoleViewer, Active: true}))

	a, err := f.acc.Login("qwe", "123123")
	require.NoError(t, err)
	assert.Equal(t, "qwe", a.Username)

	stored, err := f.accounts.FindByUsername("qwe")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("123123")))

	_, err = f.acc.Login("qwe", "123123")
	assert.NoError(t, err)
	_, err = f.acc.Login("qwe", "nope")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestListRedaction(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	viewer := f.account(t, "qwe", models.RoleViewer, true, false)

	all, err := f.acc.List(f.admin(t))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotEmpty(t, all[0].PasswordHash)

	all, err = f.acc.List(viewer)
	require.NoError(t, err)
	for _, a := range all {
		assert.Empty(t, a.PasswordHash)
	}
}

func TestUpdateRoleAndActive(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	ev := f.account(t, "ev", models.RoleEvaluator, true, true)
	admin := f.admin(t)

	_, err := f.acc.UpdateRoleAndActive(ev, "ev", AccountChange{Role: models.RoleAdmin, Active: true})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.acc.UpdateRoleAndActive(admin, "ghost", AccountChange{Role: models.RoleViewer, Active: true})
	assert.ErrorIs(t, err, repo.ErrNotFound)

	_, err = f.acc.UpdateRoleAndActive(admin, "ev", AccountChange{Role: "root", Active: true})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.acc.UpdateRoleAndActive(admin, "hus585", AccountChange{Role: models.RoleAdmin, Active: false})
	assert.ErrorIs(t, err, ErrLastAdmin)
	_, err = f.acc.UpdateRoleAndActive(admin, "hus585", AccountChange{Role: models.RoleViewer, Active: true})
	assert.ErrorIs(t, err, ErrLastAdmin)

	// with a second admin the first may step down
	_, err = f.acc.UpdateRoleAndActive(admin, "ev", AccountChange{Role: models.RoleAdmin, Active: true})
	require.NoError(t, err)
	got, err := f.acc.UpdateRoleAndActive(admin, "hus585", AccountChange{Role: models.RoleViewer, Active: true})
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, got.Role)
	assert.True(t, got.EvaluatorAccess, "nil evaluator access leaves the flag untouched")
	assert.Empty(t, got.PasswordHash)
}

func TestEvaluationScenario(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	ctx := context.Background()
	admin := f.admin(t)

	sess, err := f.eval.Start(ctx, admin, "Car-12", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 30, 0, 0, riyadh), sess.StartTime)

	_, err = f.eval.Toggle(ctx, admin, "حزام")
	require.NoError(t, err)
	_, err = f.eval.Toggle(ctx, admin, "سرعة")
	require.NoError(t, err)
	_, err = f.eval.SetNotes(ctx, admin, "good")
	require.NoError(t, err)

	f.now = f.now.Add(22 * time.Minute)
	rec, err := f.eval.Complete(ctx, admin)
	require.NoError(t, err)

	list, etag, err := f.rec.List(admin, models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEmpty(t, etag)
	got := list[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "Car-12", got.ReportName)
	assert.Equal(t, "hus585", got.Owner)
	assert.Equal(t, []models.ErrorCode{"حزام", "سرعة"}, got.Errors)
	assert.Equal(t, "good", got.Notes)
	assert.True(t, got.StartTime.Equal(time.Date(2024, 5, 1, 9, 30, 0, 0, riyadh)))
	assert.True(t, got.EndTime.Equal(time.Date(2024, 5, 1, 9, 52, 0, 0, riyadh)))

	cur, err := f.eval.Current(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, evaluation.Idle, cur.State)
}

func TestEvaluationInvalidTransitions(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	ctx := context.Background()
	admin := f.admin(t)

	_, err := f.eval.Toggle(ctx, admin, "حزام")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.eval.Complete(ctx, admin)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, f.eval.Cancel(ctx, admin), ErrInvalidState)

	_, err = f.eval.Start(ctx, admin, "", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.eval.Start(ctx, admin, "r", "")
	require.NoError(t, err)
	_, err = f.eval.Start(ctx, admin, "r2", "")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.eval.Toggle(ctx, admin, "unknown")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.eval.Cancel(ctx, admin))
	list, _, err := f.rec.List(admin, models.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEvaluationStartGate(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	ctx := context.Background()
	withAccess := f.account(t, "a", models.RoleEvaluator, true, true)
	noAccess := f.account(t, "b", models.RoleEvaluator, true, false)
	inactive := f.account(t, "c", models.RoleEvaluator, false, true)
	viewer := f.account(t, "v", models.RoleViewer, true, true)

	_, err := f.eval.Start(ctx, withAccess, "r", "")
	assert.NoError(t, err)
	for _, a := range []models.Account{noAccess, inactive, viewer} {
		_, err := f.eval.Start(ctx, a, "r", "")
		assert.ErrorIs(t, err, ErrForbidden, a.Username)
	}

	// the stored account wins over a stale copy
	stale := noAccess
	stale.EvaluatorAccess = true
	_, err = f.eval.Start(ctx, stale, "r", "")
	assert.ErrorIs(t, err, ErrForbidden)

	ghost := models.Account{Username: "ghost", Role: models.RoleAdmin, Active: true}
	_, err = f.eval.Start(ctx, ghost, "r", "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEvaluationStartWithoutAccessFlag(t *testing.T) {
	opts := policy.DefaultOptions()
	opts.EvaluatorRequiresAccessFlag = false
	f := newFixture(t, opts)
	noAccess := f.account(t, "b", models.RoleEvaluator, true, false)
	_, err := f.eval.Start(context.Background(), noAccess, "r", "")
	assert.NoError(t, err)
}

func TestCompleteFailureKeepsSession(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	ctx := context.Background()
	admin := f.admin(t)
	_, err := f.eval.Start(ctx, admin, "r", "")
	require.NoError(t, err)
	_, err = f.eval.Toggle(ctx, admin, "حزام")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "reports.csv"), []byte("id,report_name\n\"broken"), 0o644))
	_, err = f.eval.Complete(ctx, admin)
	assert.ErrorIs(t, err, repo.ErrStoreUnavailable)

	cur, err := f.eval.Current(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, evaluation.InProgress, cur.State)
	assert.Equal(t, []models.ErrorCode{"حزام"}, cur.Selected)
}

func seedRecords(t *testing.T, f *fixture, owners ...string) []int64 {
	t.Helper()
	ids := make([]int64, len(owners))
	for i, o := range owners {
		id, err := f.records.Append(&models.Record{
			ReportName: "r-" + o,
			StartTime:  f.now,
			EndTime:    f.now,
			Errors:     []models.ErrorCode{},
			Owner:      o,
		})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func TestRecordVisibility(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	ev := f.account(t, "ev", models.RoleEvaluator, true, true)
	viewer := f.account(t, "qwe", models.RoleViewer, true, false)
	ids := seedRecords(t, f, "hus585", "ev", "ev")

	own, _, err := f.rec.List(ev, models.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, own, 2)
	_, _, err = f.rec.List(ev, models.RecordFilter{Owner: "hus585"})
	assert.ErrorIs(t, err, ErrForbidden)

	all, _, err := f.rec.List(viewer, models.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	some, _, err := f.rec.List(viewer, models.RecordFilter{Owner: "EV"})
	require.NoError(t, err)
	assert.Len(t, some, 2)

	_, err = f.rec.Get(ev, ids[0])
	assert.ErrorIs(t, err, ErrForbidden)
	got, err := f.rec.Get(ev, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "ev", got.Owner)
	_, err = f.rec.Get(ev, 999)
	assert.ErrorIs(t, err, ErrForbidden, "missing ids look like other users' records")
	_, err = f.rec.Get(viewer, 999)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = f.rec.Get(ev, 0)
	assert.ErrorIs(t, err, ErrValidation)

	inactive := viewer
	inactive.Active = false
	_, _, err = f.rec.List(inactive, models.RecordFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRecordDelete(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	ev := f.account(t, "ev", models.RoleEvaluator, true, true)
	viewer := f.account(t, "qwe", models.RoleViewer, true, false)
	ids := seedRecords(t, f, "hus585", "ev")

	assert.ErrorIs(t, f.rec.Delete(ev, ids[0]), ErrForbidden, "evaluator cannot delete another user's record")
	assert.ErrorIs(t, f.rec.Delete(viewer, ids[1]), ErrForbidden)
	assert.NoError(t, f.rec.Delete(ev, ids[1]))
	assert.NoError(t, f.rec.Delete(f.admin(t), ids[0]))
	assert.ErrorIs(t, f.rec.Delete(f.admin(t), ids[0]), repo.ErrNotFound)
}

func TestMissingRecordIsForbiddenWithoutBroadRights(t *testing.T) {
	f := newFixture(t, policy.Options{EvaluatorRequiresAccessFlag: true, EvaluatorCanDeleteOwn: true})
	ev := f.account(t, "ev", models.RoleEvaluator, true, true)
	viewer := f.account(t, "qwe", models.RoleViewer, true, false)
	ids := seedRecords(t, f, "ev")
	missing := ids[0] + 100

	_, err := f.rec.Get(ev, missing)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.rec.Delete(ev, missing), ErrForbidden)
	_, err = f.rec.Get(viewer, missing)
	assert.ErrorIs(t, err, ErrForbidden, "viewer limited to own records")
	assert.ErrorIs(t, f.rec.Delete(viewer, missing), ErrForbidden)

	_, err = f.rec.Get(f.admin(t), missing)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, f.rec.Delete(f.admin(t), missing), repo.ErrNotFound)

	got, err := f.rec.Get(ev, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "ev", got.Owner)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	f := newFixture(t, policy.DefaultOptions())
	admin := f.admin(t)
	_, before, err := f.rec.List(admin, models.RecordFilter{})
	require.NoError(t, err)
	_, again, err := f.rec.List(admin, models.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, before, again)

	seedRecords(t, f, "hus585")
	_, after, err := f.rec.List(admin, models.RecordFilter{})
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

type stubRenderer struct{ docs []report.Document }

func (s *stubRenderer) Render(w io.Writer, doc report.Document) error {
	s.docs = append(s.docs, doc)
	_, err := io.WriteString(w, "%PDF-stub")
	return err
}

func TestExport(t *testing.T) {
	opts := policy.DefaultOptions()
	opts.ViewerSeesAll = false
	f := newFixture(t, opts)
	ev := f.account(t, "ev", models.RoleEvaluator, true, true)
	ids := seedRecords(t, f, "hus585", "ev")

	var buf bytes.Buffer
	_, err := f.export.PDF(&buf, ev, ids[1])
	assert.ErrorIs(t, err, report.ErrNoFont)

	stub := &stubRenderer{}
	f.export = NewExportService(f.rec, f.policy, stub, riyadh)
	name, err := f.export.PDF(&buf, ev, ids[1])
	require.NoError(t, err)
	assert.Equal(t, report.Filename(ids[1]), name)
	require.Len(t, stub.docs, 1)
	assert.Equal(t, ids[1], stub.docs[0].ID)

	_, err = f.export.PDF(&buf, ev, ids[0])
	assert.ErrorIs(t, err, ErrForbidden)

	buf.Reset()
	require.NoError(t, f.export.XLSX(&buf, f.admin(t), models.RecordFilter{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")), "xlsx is a zip container")
}
