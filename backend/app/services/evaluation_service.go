package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"drive-eval/backend/app/evaluation"
	"drive-eval/backend/app/metrics"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/policy"
	"drive-eval/backend/app/repo"
	"drive-eval/backend/global"
)

// EvaluationService runs one evaluation session per account on top of a
// session store and the record repository.
type EvaluationService struct {
	mu       sync.Mutex
	sessions evaluation.Store
	records  repo.RecordRepository
	accounts repo.AccountRepository
	policy   *policy.Policy
	loc      *time.Location
	now      func() time.Time
}

func NewEvaluationService(sessions evaluation.Store, records repo.RecordRepository, accounts repo.AccountRepository, p *policy.Policy, loc *time.Location) *EvaluationService {
	return &EvaluationService{
		sessions: sessions,
		records:  records,
		accounts: accounts,
		policy:   p,
		loc:      loc,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *EvaluationService) WithClock(now func() time.Time) *EvaluationService {
	s.now = now
	return s
}

func (s *EvaluationService) clock() time.Time { return s.now().In(s.loc) }

// Current returns the actor's session, idle when none is running.
func (s *EvaluationService) Current(ctx context.Context, actor models.Account) (*evaluation.Session, error) {
	return s.sessions.Load(ctx, actor.Username)
}

// Start opens a session for actor. The stored account is consulted so a
// revoked flag takes effect immediately.
func (s *EvaluationService) Start(ctx context.Context, actor models.Account, reportName, vehicleNumber string) (*evaluation.Session, error) {
	acc, err := s.owner(actor)
	if err != nil {
		return nil, err
	}
	if !s.policy.Allowed(policy.SubjectOf(*acc), policy.StartEvaluation, "") {
		return nil, ErrForbidden
	}
	if vehicleNumber == "" {
		vehicleNumber = acc.VehicleNumber
	}
	sess, err := s.update(ctx, acc.Username, func(sess *evaluation.Session) error {
		return sess.Start(reportName, acc.Username, vehicleNumber, s.clock())
	})
	if err != nil {
		return nil, err
	}
	metrics.Evaluations.WithLabelValues("started").Inc()
	global.Logger.Info().Str("username", acc.Username).Str("report", sess.ReportName).Msg("evaluation started")
	return sess, nil
}

func (s *EvaluationService) Toggle(ctx context.Context, actor models.Account, code string) (*evaluation.Session, error) {
	return s.update(ctx, actor.Username, func(sess *evaluation.Session) error { return sess.Toggle(code) })
}

func (s *EvaluationService) UndoLast(ctx context.Context, actor models.Account) (*evaluation.Session, error) {
	return s.update(ctx, actor.Username, (*evaluation.Session).UndoLast)
}

func (s *EvaluationService) SetNotes(ctx context.Context, actor models.Account, notes string) (*evaluation.Session, error) {
	return s.update(ctx, actor.Username, func(sess *evaluation.Session) error { return sess.SetNotes(notes) })
}

// Complete persists the running session as a record. On a store failure the
// session is kept so the evaluator can retry.
func (s *EvaluationService) Complete(ctx context.Context, actor models.Account) (models.Record, error) {
	if _, err := s.owner(actor); err != nil {
		return models.Record{}, err
	}
	var rec models.Record
	_, err := s.update(ctx, actor.Username, func(sess *evaluation.Session) error {
		var err error
		rec, err = sess.Complete(s.clock(), s.records)
		return err
	})
	if err != nil {
		return models.Record{}, err
	}
	metrics.Evaluations.WithLabelValues("completed").Inc()
	global.Logger.Info().Str("username", rec.Owner).Int64("id", rec.ID).Int("errors", len(rec.Errors)).Msg("evaluation completed")
	return rec, nil
}

func (s *EvaluationService) Cancel(ctx context.Context, actor models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessions.Load(ctx, actor.Username)
	if err != nil {
		return err
	}
	if err := sess.Cancel(); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, actor.Username); err != nil {
		return err
	}
	metrics.Evaluations.WithLabelValues("cancelled").Inc()
	return nil
}

// update loads the actor's session, applies fn and saves the result. Nothing
// is saved when fn fails.
func (s *EvaluationService) update(ctx context.Context, owner string, fn func(*evaluation.Session) error) (*evaluation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessions.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, owner, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *EvaluationService) owner(actor models.Account) (*models.Account, error) {
	acc, err := s.accounts.FindByUsername(actor.Username)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	if !acc.Active {
		return nil, ErrForbidden
	}
	return acc, nil
}
