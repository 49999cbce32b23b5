package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/remindsync/internal/calendar"
	"github.com/roach88/remindsync/internal/notify"
	"github.com/roach88/remindsync/internal/permission"
	"github.com/roach88/remindsync/internal/reminder"
)

// DefaultHeading is the alert title when none is configured.
const DefaultHeading = "Reminder"

// Engine reconciles reminders with the alerting and calendar services.
//
// The engine holds no per-reminder state. It never mutates the reminder it is
// given; each Outcome carries an updated copy.
type Engine struct {
	gate    *permission.Gate
	alerts  *notify.Scheduler
	events  *calendar.Sync
	clock   reminder.Clock
	ids     reminder.IDGenerator
	heading string
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the wall clock used for validation and timestamps.
func WithClock(c reminder.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the notification ID generator.
func WithIDGenerator(g reminder.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithHeading sets the alert title.
func WithHeading(heading string) Option {
	return func(e *Engine) {
		if heading != "" {
			e.heading = heading
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine over an injected gate and adapters.
func New(gate *permission.Gate, alerts *notify.Scheduler, events *calendar.Sync, opts ...Option) *Engine {
	e := &Engine{
		gate:    gate,
		alerts:  alerts,
		events:  events,
		clock:   reminder.SystemClock{},
		ids:     reminder.UUIDv7Generator{},
		heading: DefaultHeading,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DesiredFrom returns the desired state that reproduces r as it is.
func DesiredFrom(r *reminder.Reminder) reminder.Desired {
	return reminder.Desired{
		Title:         r.Title,
		FireAt:        r.FireAt,
		Note:          r.Note,
		AddToCalendar: r.HasCalendarLink(),
	}
}

// Save creates a new reminder from d.
//
// The alert is scheduled first. If d.AddToCalendar is set and the calendar
// side fails, the alert stays scheduled and Save returns both the outcome
// (to be inserted) and a partial SyncError naming the calendar.
func (e *Engine) Save(ctx context.Context, d reminder.Desired) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	d = reminder.Normalize(d)
	now := e.clock.Now()
	if errs := reminder.Validate(d, now); errs != nil {
		return nil, validationError(OpSave, errs)
	}

	if !e.gate.EnsureAlertingGranted(ctx) {
		return nil, &SyncError{
			Kind:       KindPermissionDenied,
			Op:         OpSave,
			Capability: permission.Alerting,
			Message:    "reminder not saved: alerting permission denied",
			Err:        notify.ErrPermissionDenied,
		}
	}

	r := reminder.New(d, e.ids, now)
	out := &Outcome{Reminder: r, Persist: PersistInsert}

	if err := e.schedule(ctx, r); err != nil {
		return nil, e.alertFailure(OpSave, nil, err)
	}
	out.add(EffectAlertScheduled)

	if d.AddToCalendar {
		if err := e.createEvent(ctx, out); err != nil {
			out.finish(true)
			return out, e.calendarFailure(OpSave, out, err)
		}
	}

	out.finish(true)
	e.logger.Info("reminder saved",
		"notification_id", r.NotificationID,
		"calendar_link_id", r.CalendarLinkID,
		"state", out.State)
	return out, nil
}

// Edit applies d to existing and reconciles both services.
//
// The alert is always cancelled and, unless the reminder is completed,
// recreated under the same notification ID. The calendar side is then brought
// in line with d.AddToCalendar. Calendar failures after the reschedule are
// reported as partial errors alongside the outcome.
func (e *Engine) Edit(ctx context.Context, existing *reminder.Reminder, d reminder.Desired) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	d = reminder.Normalize(d)
	now := e.clock.Now()
	if errs := reminder.Validate(d, now); errs != nil {
		return nil, validationError(OpEdit, errs)
	}

	if !existing.Completed && !e.gate.EnsureAlertingGranted(ctx) {
		return nil, &SyncError{
			Kind:       KindPermissionDenied,
			Op:         OpEdit,
			Capability: permission.Alerting,
			Message:    "reminder not updated: alerting permission denied",
			Err:        notify.ErrPermissionDenied,
		}
	}

	r := existing.Clone()
	r.Apply(d, now)
	out := &Outcome{Reminder: r, Persist: PersistUpdate}

	e.alerts.Cancel(ctx, r.NotificationID)
	out.add(EffectAlertCancelled)

	alert := false
	if !r.Completed {
		if err := e.schedule(ctx, r); err != nil {
			out.finish(false)
			return out, e.alertFailure(OpEdit, out, err)
		}
		out.add(EffectAlertScheduled)
		alert = true
	}

	if err := e.reconcileCalendar(ctx, out, d.AddToCalendar); err != nil {
		out.finish(alert)
		return out, e.calendarFailure(OpEdit, out, err)
	}

	out.finish(alert)
	e.logger.Info("reminder updated",
		"notification_id", r.NotificationID,
		"calendar_link_id", r.CalendarLinkID,
		"state", out.State)
	return out, nil
}

// ToggleCompleted flips existing's completion.
//
// Completing cancels the alert and leaves any calendar event in place.
// Reopening schedules the alert at the stored fire time without re-validating
// it. If reopening fails, nothing changes and the reminder stays completed.
func (e *Engine) ToggleCompleted(ctx context.Context, existing *reminder.Reminder) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	r := existing.Clone()
	now := e.clock.Now()
	out := &Outcome{Reminder: r, Persist: PersistUpdate}

	if !r.Completed {
		e.alerts.Cancel(ctx, r.NotificationID)
		out.add(EffectAlertCancelled)
		r.Completed = true
		r.UpdatedAt = now
		out.finish(false)
		e.logger.Info("reminder completed", "notification_id", r.NotificationID)
		return out, nil
	}

	if !e.gate.EnsureAlertingGranted(ctx) {
		return nil, &SyncError{
			Kind:       KindPermissionDenied,
			Op:         OpToggle,
			Capability: permission.Alerting,
			Message:    "reminder not reopened: alerting permission denied",
			Err:        notify.ErrPermissionDenied,
		}
	}
	if err := e.schedule(ctx, r); err != nil {
		return nil, e.alertFailure(OpToggle, nil, err)
	}
	out.add(EffectAlertScheduled)
	r.Completed = false
	r.UpdatedAt = now
	out.finish(true)
	e.logger.Info("reminder reopened", "notification_id", r.NotificationID)
	return out, nil
}

// Delete retires both side effects of existing. The calendar removal is best
// effort: its failure is reported as a warning and the outcome still tells the
// caller to erase the record.
func (e *Engine) Delete(ctx context.Context, existing *reminder.Reminder) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	r := existing.Clone()
	out := &Outcome{Reminder: r, Persist: PersistDelete}

	e.alerts.Cancel(ctx, r.NotificationID)
	out.add(EffectAlertCancelled)

	if r.HasCalendarLink() {
		id := r.CalendarLinkID
		var err error
		if !e.gate.EnsureCalendarGranted(ctx) {
			err = fmt.Errorf("remove event %s: %w", id, calendar.ErrPermissionDenied)
		} else {
			err = e.events.Remove(ctx, id)
		}
		if err != nil {
			e.logger.Warn("calendar event not removed",
				"notification_id", r.NotificationID,
				"calendar_link_id", id,
				"error", err)
			out.Warnings = append(out.Warnings, fmt.Sprintf("calendar event %s was not removed: %v", id, err))
		} else {
			r.CalendarLinkID = ""
			out.add(EffectEventRemoved)
		}
	}

	out.State = reminder.StateUnsynced
	e.logger.Info("reminder retired", "notification_id", r.NotificationID)
	return out, nil
}

func (e *Engine) schedule(ctx context.Context, r *reminder.Reminder) error {
	return e.alerts.Schedule(ctx, r.NotificationID, e.heading, notify.Body(r.Title, r.Note), r.FireAt)
}

// reconcileCalendar brings the calendar side of out.Reminder in line with want.
// On error the link is left as it was, except that a link found stale stays
// cleared.
func (e *Engine) reconcileCalendar(ctx context.Context, out *Outcome, want bool) error {
	r := out.Reminder

	switch {
	case want && r.HasCalendarLink():
		if !e.gate.EnsureCalendarGranted(ctx) {
			return fmt.Errorf("update event %s: %w", r.CalendarLinkID, calendar.ErrPermissionDenied)
		}
		err := e.events.Update(ctx, r.CalendarLinkID, r)
		if err == nil {
			out.add(EffectEventUpdated)
			return nil
		}
		if !errors.Is(err, calendar.ErrNotFound) {
			return err
		}
		e.logger.Info("calendar link stale, recreating event",
			"notification_id", r.NotificationID,
			"calendar_link_id", r.CalendarLinkID)
		r.CalendarLinkID = ""
		out.add(EffectLinkCleared)
		return e.createEvent(ctx, out)

	case want:
		return e.createEvent(ctx, out)

	case r.HasCalendarLink():
		id := r.CalendarLinkID
		if !e.gate.EnsureCalendarGranted(ctx) {
			return fmt.Errorf("remove event %s: %w", id, calendar.ErrPermissionDenied)
		}
		if err := e.events.Remove(ctx, id); err != nil {
			return err
		}
		r.CalendarLinkID = ""
		out.add(EffectEventRemoved)
	}
	return nil
}

func (e *Engine) createEvent(ctx context.Context, out *Outcome) error {
	if !e.gate.EnsureCalendarGranted(ctx) {
		return fmt.Errorf("create event: %w", calendar.ErrPermissionDenied)
	}
	id, err := e.events.Create(ctx, out.Reminder)
	if err != nil {
		return err
	}
	out.Reminder.CalendarLinkID = id
	out.add(EffectEventCreated)
	return nil
}

func validationError(op string, errs reminder.ValidationErrors) *SyncError {
	return &SyncError{
		Kind:    KindValidation,
		Op:      op,
		Message: "invalid reminder",
		Err:     errs,
	}
}

// alertFailure classifies a scheduler error. out may be nil when nothing was
// applied.
func (e *Engine) alertFailure(op string, out *Outcome, err error) *SyncError {
	se := &SyncError{
		Kind:       KindUnexpected,
		Op:         op,
		Capability: permission.Alerting,
		Message:    "alert could not be scheduled",
		Err:        err,
	}
	if errors.Is(err, notify.ErrPermissionDenied) {
		se.Kind = KindPermissionDenied
		se.Message = "alert could not be scheduled: alerting permission denied"
	}
	if out != nil {
		se.Applied = out.applied()
	}
	e.logger.Warn("alert reconciliation failed", "op", op, "kind", se.Kind, "error", err)
	return se
}

func (e *Engine) calendarFailure(op string, out *Outcome, err error) *SyncError {
	se := &SyncError{
		Kind:       KindUnexpected,
		Op:         op,
		Capability: permission.CalendarWrite,
		Message:    "reminder saved, but calendar sync failed",
		Applied:    out.applied(),
		Err:        err,
	}
	if errors.Is(err, calendar.ErrPermissionDenied) {
		se.Kind = KindPermissionDenied
		se.Message = "reminder saved, but could not update calendar: check calendar permission"
	}
	e.logger.Warn("calendar reconciliation failed",
		"op", op,
		"kind", se.Kind,
		"notification_id", out.Reminder.NotificationID,
		"error", err)
	return se
}
