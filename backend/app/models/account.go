package models

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleEvaluator Role = "evaluator"
	RoleViewer    Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEvaluator, RoleViewer:
		return true
	}
	return false
}

type Account struct {
	Username        string    `json:"username"`
	PasswordHash    string    `json:"password_hash,omitempty"`
	Role            Role      `json:"role"`
	Active          bool      `json:"active"`
	EvaluatorAccess bool      `json:"evaluator_access"`
	Name            string    `json:"name,omitempty"`
	VehicleNumber   string    `json:"vehicle_number,omitempty"`
	CreatedAt       time.Time `json:"-"`
}

// Redacted returns a copy without the credential.
func (a Account) Redacted() Account {
	a.PasswordHash = ""
	return a
}

var folder = cases.Fold()

// UsernameKey is the comparison key for usernames: trimmed and Unicode case-folded.
func UsernameKey(username string) string {
	return folder.String(strings.TrimSpace(username))
}
