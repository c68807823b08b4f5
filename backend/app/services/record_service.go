package services

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"drive-eval/backend/app/metrics"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/policy"
	"drive-eval/backend/app/repo"
	"drive-eval/backend/global"

	"github.com/zeebo/xxh3"
)

type RecordService struct {
	records repo.RecordRepository
	policy  *policy.Policy
}

func NewRecordService(records repo.RecordRepository, p *policy.Policy) *RecordService {
	return &RecordService{records: records, policy: p}
}

// List returns the records actor may see, narrowed by filter, together with a
// fingerprint of the result. Actors without view_all_records only ever see
// their own rows.
func (s *RecordService) List(actor models.Account, filter models.RecordFilter) ([]models.Record, string, error) {
	subj := policy.SubjectOf(actor)
	if !s.policy.Allowed(subj, policy.ViewRecords, "") {
		return nil, "", ErrForbidden
	}
	if !s.policy.Allowed(subj, policy.ViewAllRecords, "") {
		if filter.Owner != "" && models.UsernameKey(filter.Owner) != models.UsernameKey(actor.Username) {
			return nil, "", ErrForbidden
		}
		filter.Owner = actor.Username
	}
	list, err := s.records.List(filter)
	if err != nil {
		return nil, "", err
	}
	return list, Fingerprint(list), nil
}

// Get returns one record when actor may see it.
func (s *RecordService) Get(actor models.Account, id int64) (*models.Record, error) {
	return s.authorized(actor, id, policy.ViewAllRecords)
}

// Delete removes the record with id when actor may delete it.
func (s *RecordService) Delete(actor models.Account, id int64) error {
	rec, err := s.authorized(actor, id, policy.DeleteRecord)
	if err != nil {
		return err
	}
	if err := s.records.Delete(rec.ID); err != nil {
		return err
	}
	metrics.RecordsDeleted.Inc()
	global.Logger.Info().Str("actor", actor.Username).Int64("id", rec.ID).Str("owner", rec.Owner).Msg("record deleted")
	return nil
}

// authorized loads id and checks action against its owner. For reads the
// own-record view right also grants access. An actor limited to their own
// records gets ErrForbidden for a missing id too, so ids owned by others
// cannot be told apart from ids that do not exist.
func (s *RecordService) authorized(actor models.Account, id int64, action policy.Action) (*models.Record, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: record id must be positive", ErrValidation)
	}
	subj := policy.SubjectOf(actor)
	rec, err := s.records.Get(id)
	if errors.Is(err, repo.ErrNotFound) && !s.policy.Allowed(subj, action, "") {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	ok := s.policy.Allowed(subj, action, rec.Owner)
	if !ok && action == policy.ViewAllRecords {
		ok = s.policy.Allowed(subj, policy.ViewRecords, "") &&
			models.UsernameKey(rec.Owner) == models.UsernameKey(actor.Username)
	}
	if !ok {
		return nil, ErrForbidden
	}
	return rec, nil
}

// Fingerprint hashes the listed records so clients can detect changes.
func Fingerprint(list []models.Record) string {
	h := xxh3.New()
	var id [8]byte
	for _, r := range list {
		binary.BigEndian.PutUint64(id[:], uint64(r.ID))
		_, _ = h.Write(id[:])
		_, _ = h.Write([]byte(strings.Join([]string{
			r.ReportName,
			r.StartTime.UTC().Format(models.TimeLayout),
			r.EndTime.UTC().Format(models.TimeLayout),
			models.JoinErrors(r.Errors),
			r.Notes,
			r.Owner,
			r.VehicleNumber,
		}, "\x1f")))
		_, _ = h.Write([]byte{'\x1e'})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
