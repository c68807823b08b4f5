// Package evaluation holds the in-progress evaluation state machine.
//
//	idle --Start--> in_progress --Complete--> (record persisted) --> idle
//	                in_progress --Cancel----> idle
//
// Toggle, UndoLast, SetNotes, Complete and Cancel are valid only while in
// progress. Nothing is persisted before Complete.
package evaluation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"drive-eval/backend/app/models"
)

var (
	ErrInvalidState = errors.New("invalid session state")
	ErrInvalidInput = errors.New("invalid input")
)

type State string

const (
	Idle       State = "idle"
	InProgress State = "in_progress"
)

// Sink receives the record produced by Complete.
type Sink interface {
	Append(r *models.Record) (int64, error)
}

type Session struct {
	State         State              `json:"state"`
	ReportName    string             `json:"report_name,omitempty"`
	Owner         string             `json:"owner,omitempty"`
	VehicleNumber string             `json:"vehicle_number,omitempty"`
	StartTime     time.Time          `json:"start_time,omitempty"`
	Selected      []models.ErrorCode `json:"selected"`
	Notes         string             `json:"notes"`
}

func New() *Session {
	return &Session{State: Idle, Selected: []models.ErrorCode{}}
}

func (s *Session) InProgress() bool { return s.State == InProgress }

// Start begins a new evaluation. at should already be in the display zone.
func (s *Session) Start(reportName, owner, vehicleNumber string, at time.Time) error {
	if s.State == InProgress {
		return fmt.Errorf("%w: an evaluation is already in progress", ErrInvalidState)
	}
	reportName = strings.TrimSpace(reportName)
	if reportName == "" {
		return fmt.Errorf("%w: report name is required", ErrInvalidInput)
	}
	*s = Session{
		State:         InProgress,
		ReportName:    reportName,
		Owner:         owner,
		VehicleNumber: strings.TrimSpace(vehicleNumber),
		StartTime:     at.Truncate(time.Minute),
		Selected:      []models.ErrorCode{},
	}
	return nil
}

// Toggle adds code when absent and removes it when present.
func (s *Session) Toggle(code string) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	c, ok := models.LookupError(code)
	if !ok {
		return fmt.Errorf("%w: unknown error code %q", ErrInvalidInput, code)
	}
	for i, sel := range s.Selected {
		if sel == c {
			s.Selected = append(s.Selected[:i], s.Selected[i+1:]...)
			return nil
		}
	}
	s.Selected = append(s.Selected, c)
	return nil
}

func (s *Session) IsSelected(code models.ErrorCode) bool {
	for _, sel := range s.Selected {
		if sel == code {
			return true
		}
	}
	return false
}

// UndoLast removes the most recently selected code, if any.
func (s *Session) UndoLast() error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	if n := len(s.Selected); n > 0 {
		s.Selected = s.Selected[:n-1]
	}
	return nil
}

func (s *Session) SetNotes(text string) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	s.Notes = text
	return nil
}

// Complete stamps the end time, hands one record to sink and returns to idle.
// When sink fails the session is left in progress so nothing is lost.
func (s *Session) Complete(at time.Time, sink Sink) (models.Record, error) {
	if err := s.requireInProgress(); err != nil {
		return models.Record{}, err
	}
	end := at.Truncate(time.Minute)
	if end.Before(s.StartTime) {
		end = s.StartTime
	}
	rec := models.Record{
		ReportName:    s.ReportName,
		StartTime:     s.StartTime,
		EndTime:       end,
		Errors:        append([]models.ErrorCode{}, s.Selected...),
		Notes:         s.Notes,
		Owner:         s.Owner,
		VehicleNumber: s.VehicleNumber,
	}
	if _, err := sink.Append(&rec); err != nil {
		return models.Record{}, err
	}
	*s = *New()
	return rec, nil
}

func (s *Session) Cancel() error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	*s = *New()
	return nil
}

func (s *Session) requireInProgress() error {
	if s.State != InProgress {
		return fmt.Errorf("%w: no evaluation in progress", ErrInvalidState)
	}
	return nil
}

func (s *Session) clone() *Session {
	c := *s
	c.Selected = append([]models.ErrorCode{}, s.Selected...)
	return &c
}
