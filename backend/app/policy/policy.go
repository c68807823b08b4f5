// Package policy decides which actions a signed-in account may perform.
//
// Decisions come from a single role × action rule table. A rule either
// allows, denies, restricts the action to the subject's own records, or
// requires the account's evaluator-access flag.
package policy

import "drive-eval/backend/app/models"

type Action string

const (
	StartEvaluation Action = "start_evaluation"
	ViewRecords     Action = "view_records"
	ViewAllRecords  Action = "view_all_records"
	DeleteRecord    Action = "delete_record"
	ManageAccounts  Action = "manage_accounts"
	ExportRecord    Action = "export_record"
)

// Actions lists every action in display order.
var Actions = []Action{StartEvaluation, ViewRecords, ViewAllRecords, DeleteRecord, ManageAccounts, ExportRecord}

type Rule int

const (
	Deny Rule = iota
	Allow
	OwnOnly
	NeedsEvaluatorAccess
)

func (r Rule) String() string {
	switch r {
	case Allow:
		return "allow"
	case OwnOnly:
		return "own-only"
	case NeedsEvaluatorAccess:
		return "needs-evaluator-access"
	}
	return "deny"
}

type Decision bool

const (
	Denied  Decision = false
	Allowed Decision = true
)

// Options holds the switches for behaviour that differed between deployments.
type Options struct {
	EvaluatorRequiresAccessFlag bool
	ViewerSeesAll               bool
	EvaluatorCanDeleteOwn       bool
}

func DefaultOptions() Options {
	return Options{EvaluatorRequiresAccessFlag: true, ViewerSeesAll: true, EvaluatorCanDeleteOwn: true}
}

type Subject struct {
	Username        string
	Role            models.Role
	Active          bool
	EvaluatorAccess bool
}

func SubjectOf(a models.Account) Subject {
	return Subject{Username: a.Username, Role: a.Role, Active: a.Active, EvaluatorAccess: a.EvaluatorAccess}
}

type Table map[models.Role]map[Action]Rule

// Policy is immutable once built and safe for concurrent use.
type Policy struct {
	rules Table
}

func New(opts Options) *Policy {
	evaluatorStart := NeedsEvaluatorAccess
	if !opts.EvaluatorRequiresAccessFlag {
		evaluatorStart = Allow
	}
	evaluatorDelete := Deny
	if opts.EvaluatorCanDeleteOwn {
		evaluatorDelete = OwnOnly
	}
	viewerAll, viewerExport := Deny, OwnOnly
	if opts.ViewerSeesAll {
		viewerAll, viewerExport = Allow, Allow
	}
	return &Policy{rules: Table{
		models.RoleAdmin: {
			StartEvaluation: Allow,
			ViewRecords:     Allow,
			ViewAllRecords:  Allow,
			DeleteRecord:    Allow,
			ManageAccounts:  Allow,
			ExportRecord:    Allow,
		},
		models.RoleEvaluator: {
			StartEvaluation: evaluatorStart,
			ViewRecords:     Allow,
			ViewAllRecords:  Deny,
			DeleteRecord:    evaluatorDelete,
			ManageAccounts:  Deny,
			ExportRecord:    OwnOnly,
		},
		models.RoleViewer: {
			StartEvaluation: Deny,
			ViewRecords:     Allow,
			ViewAllRecords:  viewerAll,
			DeleteRecord:    Deny,
			ManageAccounts:  Deny,
			ExportRecord:    viewerExport,
		},
	}}
}

// Rule returns the table entry for role and action. Unknown pairs are Deny.
func (p *Policy) Rule(role models.Role, action Action) Rule {
	return p.rules[role][action]
}

// Decide is total over its inputs. owner is the owning username of the
// resource, or empty when the action does not target a record.
func (p *Policy) Decide(s Subject, action Action, owner string) Decision {
	if !s.Active {
		return Denied
	}
	switch p.Rule(s.Role, action) {
	case Allow:
		return Allowed
	case OwnOnly:
		return Decision(owner != "" && models.UsernameKey(owner) == models.UsernameKey(s.Username))
	case NeedsEvaluatorAccess:
		return Decision(s.EvaluatorAccess)
	}
	return Denied
}

func (p *Policy) Allowed(s Subject, action Action, owner string) bool {
	return bool(p.Decide(s, action, owner))
}
