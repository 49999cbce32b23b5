// Package engine implements the reminder sync engine.
//
// Given the state a caller wants a reminder to be in, the engine drives the
// permission gate, the notification scheduler and the calendar adapter into
// agreement with it, then reports what changed so the caller can persist.
//
// FAILURE POLICY:
//
// Notification scheduling is the primary guarantee. Calendar linkage is best
// effort: a calendar failure after the alert was applied degrades the result
// but never rolls the alert back. Such results carry both the outcome and a
// SyncError whose Applied list names the effects that did happen.
//
// Validation failures short-circuit before any side effect. A stale calendar
// link found during Edit is cleared and a fresh event is created; on success
// the recovery is invisible to the caller. Nothing is retried; every adapter
// operation is idempotent in the reminder's identifiers, so re-invoking the
// same operation is safe.
//
// CONCURRENCY:
//
// Operations on one reminder must not overlap; the caller serializes them.
// Operations on different reminders are independent. Once an operation has
// started issuing side effects it runs to completion even if the caller's
// context is cancelled, so the external services are never left in an
// unknown state.
package engine
