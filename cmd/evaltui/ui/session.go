package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"drive-eval/backend/app/evaluation"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/policy"
	"drive-eval/backend/app/services"
	"drive-eval/backend/global"
	"drive-eval/backend/initialize"
)

var errNotSignedIn = errors.New("not signed in")

// Session carries the signed-in account and the services every page talks to.
type Session struct {
	app     *initialize.App
	Account *models.Account
	now     func() time.Time
}

func NewSession(app *initialize.App) *Session {
	return &Session{app: app, now: time.Now}
}

// Now is the current wall clock in the configured zone.
func (s *Session) Now() time.Time { return s.now().In(s.app.Loc) }

func (s *Session) Login(username, password string) error {
	a, err := s.app.AccountSvc.Login(username, password)
	if err != nil {
		return err
	}
	acct := a.Redacted()
	s.Account = &acct
	global.Logger.Info().Str("username", acct.Username).Msg("tui login")
	return nil
}

func (s *Session) Logout() { s.Account = nil }

func (s *Session) Register(in services.Registration) error {
	return s.app.AccountSvc.Register(in)
}

// Can reports whether the signed-in account may perform action on a record
// owned by owner. An empty owner means the account's own rows.
func (s *Session) Can(action policy.Action, owner string) bool {
	if s.Account == nil {
		return false
	}
	if owner == "" {
		owner = s.Account.Username
	}
	return s.app.Policy.Allowed(policy.SubjectOf(*s.Account), action, owner)
}

// refresh re-reads the account so role or activation changes made elsewhere
// apply to the running UI.
func (s *Session) refresh() error {
	if s.Account == nil {
		return errNotSignedIn
	}
	a, err := s.app.AccountSvc.Get(s.Account.Username)
	if err != nil {
		return err
	}
	if !a.Active {
		s.Account = nil
		return services.ErrAuthentication
	}
	s.Account = a
	return nil
}

func (s *Session) actor() (models.Account, error) {
	if s.Account == nil {
		return models.Account{}, errNotSignedIn
	}
	return *s.Account, nil
}

func (s *Session) Current(ctx context.Context) (*evaluation.Session, error) {
	a, err := s.actor()
	if err != nil {
		return nil, err
	}
	return s.app.Evaluations.Current(ctx, a)
}

func (s *Session) Start(ctx context.Context, reportName, vehicle string) (*evaluation.Session, error) {
	a, err := s.actor()
	if err != nil {
		return nil, err
	}
	return s.app.Evaluations.Start(ctx, a, reportName, vehicle)
}

func (s *Session) Toggle(ctx context.Context, code models.ErrorCode) (*evaluation.Session, error) {
	a, err := s.actor()
	if err != nil {
		return nil, err
	}
	return s.app.Evaluations.Toggle(ctx, a, string(code))
}

func (s *Session) Undo(ctx context.Context) (*evaluation.Session, error) {
	a, err := s.actor()
	if err != nil {
		return nil, err
	}
	return s.app.Evaluations.UndoLast(ctx, a)
}

// Finish stores the notes and completes the evaluation.
func (s *Session) Finish(ctx context.Context, notes string) (models.Record, error) {
	a, err := s.actor()
	if err != nil {
		return models.Record{}, err
	}
	if _, err := s.app.Evaluations.SetNotes(ctx, a, notes); err != nil {
		return models.Record{}, err
	}
	return s.app.Evaluations.Complete(ctx, a)
}

func (s *Session) Cancel(ctx context.Context) error {
	a, err := s.actor()
	if err != nil {
		return err
	}
	return s.app.Evaluations.Cancel(ctx, a)
}

func (s *Session) Records() ([]models.Record, error) {
	a, err := s.actor()
	if err != nil {
		return nil, err
	}
	list, _, err := s.app.RecordSvc.List(a, models.RecordFilter{})
	return list, err
}

func (s *Session) DeleteRecord(id int64) error {
	a, err := s.actor()
	if err != nil {
		return err
	}
	return s.app.RecordSvc.Delete(a, id)
}

// ExportPDF writes the record's PDF into dir and returns the file path.
func (s *Session) ExportPDF(id int64, dir string) (string, error) {
	a, err := s.actor()
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, ".report-*.pdf")
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	defer os.Remove(tmp.Name())
	name, err := s.app.Exports.PDF(tmp, a, id)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return path, nil
}
