package harness

import (
	"github.com/roach88/remindsync/internal/testutil"
)

// StepTrace records what one step did.
type StepTrace struct {
	Index int             `json:"index"` // 1-based
	Label string          `json:"label"`
	Calls []testutil.Call `json:"calls"`

	// Summary is the engine result line for engine steps, empty otherwise.
	Summary string `json:"summary,omitempty"`
}

// RecordSnapshot is the final persisted state of one reminder.
type RecordSnapshot struct {
	Ref            string `json:"ref"`
	NotificationID string `json:"notification_id"`
	Title          string `json:"title"`
	Note           string `json:"note,omitempty"`
	FireAt         string `json:"fire_at"` // RFC 3339, UTC
	Completed      bool   `json:"completed"`
	CalendarLinkID string `json:"calendar_link_id,omitempty"`
	State          string `json:"state"`
}

// fields exposes the snapshot under the keys final_state assertions use.
func (r RecordSnapshot) fields() map[string]interface{} {
	return map[string]interface{}{
		"notification_id":  r.NotificationID,
		"title":            r.Title,
		"note":             r.Note,
		"fire_at":          r.FireAt,
		"completed":        r.Completed,
		"calendar_linked":  r.CalendarLinkID != "",
		"calendar_link_id": r.CalendarLinkID,
		"state":            r.State,
	}
}

// Snapshot is the world at the end of a scenario.
type Snapshot struct {
	PendingAlerts   int              `json:"pending_alerts"`
	DeliveredAlerts int              `json:"delivered_alerts"`
	CalendarEvents  int              `json:"calendar_events"`
	Records         []RecordSnapshot `json:"records"` // sorted by ref
}

// Record returns the snapshot bound to ref.
func (s Snapshot) Record(ref string) (RecordSnapshot, bool) {
	for _, r := range s.Records {
		if r.Ref == ref {
			return r, true
		}
	}
	return RecordSnapshot{}, false
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success: every expect clause and
	// assertion held.
	Pass bool `json:"pass"`

	// Steps traces each step in order.
	Steps []StepTrace `json:"steps"`

	// Final is the state after the last step.
	Final Snapshot `json:"final"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns every recorded call across all steps, in order.
func (r *Result) Calls() []testutil.Call {
	var calls []testutil.Call
	for _, s := range r.Steps {
		calls = append(calls, s.Calls...)
	}
	return calls
}
