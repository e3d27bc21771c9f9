package domain

import (
	"errors"
	"time"
)

// Action is the operation a synchronisation pass performs on one record.
type Action string

// Actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionNone   Action = "none"
)

// Status is the result of one record's step.
type Status string

// Statuses.
const (
	// StatusApplied means the live call succeeded.
	StatusApplied Status = "applied"

	// StatusPlanned means the action was computed but not executed (dry run).
	StatusPlanned Status = "planned"

	// StatusFailed means the record's own step failed.
	StatusFailed Status = "failed"

	// StatusBlocked means a record it depends on (or that depends on it,
	// when deleting) could not be processed.
	StatusBlocked Status = "blocked"

	// StatusSkipped means the record was never dispatched, either because the
	// pass stopped early or because the live entity was already absent.
	StatusSkipped Status = "skipped"
)

// Outcome is the result of one record's step.
type Outcome struct {
	Key    NodeKey
	Action Action
	Status Status
	ID     RecordID
	Err    error
}

// Report aggregates the outcomes of one pass.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// ReportSummary counts outcomes by action and status.
type ReportSummary struct {
	Created int
	Updated int
	Deleted int
	Planned int
	Failed  int
	Blocked int
	Skipped int
}

// Add appends an outcome.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Outcome returns the last outcome recorded for a key.
func (r *Report) Outcome(key NodeKey) (Outcome, bool) {
	for i := len(r.Outcomes) - 1; i >= 0; i-- {
		if r.Outcomes[i].Key == key {
			return r.Outcomes[i], true
		}
	}
	return Outcome{}, false
}

// WithStatus returns the outcomes having the given status.
func (r *Report) WithStatus(status Status) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// Summary counts outcomes.
func (r *Report) Summary() ReportSummary {
	var s ReportSummary
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusApplied:
			switch o.Action {
			case ActionCreate:
				s.Created++
			case ActionUpdate:
				s.Updated++
			case ActionDelete:
				s.Deleted++
			}
		case StatusPlanned:
			s.Planned++
		case StatusFailed:
			s.Failed++
		case StatusBlocked:
			s.Blocked++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// Err joins the errors of failed and blocked outcomes.
// Returns nil when every record succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil && (o.Status == StatusFailed || o.Status == StatusBlocked) {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
