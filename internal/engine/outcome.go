package engine

import (
	"github.com/roach88/remindsync/internal/reminder"
)

// Effect is one externally visible change the engine applied.
type Effect string

const (
	EffectAlertScheduled Effect = "alert_scheduled"
	EffectAlertCancelled Effect = "alert_cancelled"
	EffectEventCreated   Effect = "event_created"
	EffectEventUpdated   Effect = "event_updated"
	EffectEventRemoved   Effect = "event_removed"
	// EffectLinkCleared: the linked event had vanished and the link was dropped.
	EffectLinkCleared Effect = "link_cleared"
)

// Persist tells the caller what to do with the durable record.
type Persist string

const (
	PersistNone   Persist = "none"
	PersistInsert Persist = "insert"
	PersistUpdate Persist = "update"
	PersistDelete Persist = "delete"
)

// Outcome describes the result of an engine operation.
//
// An operation returns a nil Outcome only when it attempted no side effect.
// A non-nil Outcome must be persisted as Persist says, even when it comes
// with a (partial) error.
type Outcome struct {
	Reminder *reminder.Reminder `json:"reminder"`
	State    reminder.SyncState `json:"state"`
	Effects  []Effect           `json:"effects"`
	Persist  Persist            `json:"persist"`

	// Warnings are best-effort failures that did not fail the operation.
	Warnings []string `json:"warnings,omitempty"`
}

// Has reports whether effect was applied.
func (o *Outcome) Has(effect Effect) bool {
	for _, e := range o.Effects {
		if e == effect {
			return true
		}
	}
	return false
}

func (o *Outcome) add(effect Effect) {
	o.Effects = append(o.Effects, effect)
}

func (o *Outcome) finish(alertScheduled bool) {
	o.State = reminder.StateOf(o.Reminder, alertScheduled)
}

func (o *Outcome) applied() []Effect {
	out := make([]Effect, len(o.Effects))
	copy(out, o.Effects)
	return out
}
