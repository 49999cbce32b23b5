// Package calendar adapts the external calendar store into create, update and
// remove operations on the single event linked to a reminder.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/remindsync/internal/permission"
	"github.com/roach88/remindsync/internal/reminder"
)

// Event policy. Not user-configurable.
const (
	DefaultDuration = time.Hour
	AlarmLeadTime   = 15 * time.Minute
)

var (
	// ErrPermissionDenied is returned when calendar write access is not granted.
	ErrPermissionDenied = errors.New("calendar permission not granted")

	// ErrNotFound is returned by Update when the linked event no longer exists.
	// The link is stale; it is recoverable, not fatal.
	ErrNotFound = errors.New("calendar event not found")
)

// Errors a Service returns at its boundary.
var (
	ErrNotAuthorized = errors.New("calendar service: not authorized")
	ErrEventNotFound = errors.New("calendar service: no such event")
)

// Event is a calendar entry as the external store sees it.
type Event struct {
	Title string
	Notes string
	Start time.Time
	End   time.Time
	// AlarmOffset is relative to Start; negative means before.
	AlarmOffset time.Duration
}

// Service is the external calendar store.
type Service interface {
	permission.Authorizer

	CreateEvent(ctx context.Context, ev Event) (string, error)
	// FetchEvent returns nil, nil when no event has the id.
	FetchEvent(ctx context.Context, id string) (*Event, error)
	UpdateEvent(ctx context.Context, id string, ev Event) error
	DeleteEvent(ctx context.Context, id string) error
}

// EventFor builds the event for r using the fixed duration and alarm policy.
func EventFor(r *reminder.Reminder) Event {
	return Event{
		Title:       r.Title,
		Notes:       r.Note,
		Start:       r.FireAt,
		End:         r.FireAt.Add(DefaultDuration),
		AlarmOffset: -AlarmLeadTime,
	}
}

// Sync manages the calendar event linked to a reminder.
// It provides no locking of its own; callers serialize per reminder.
type Sync struct {
	svc    Service
	gate   *permission.Gate
	logger *slog.Logger
}

// NewSync creates a calendar adapter over svc gated by gate.
func NewSync(svc Service, gate *permission.Gate, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{svc: svc, gate: gate, logger: logger}
}

// Create adds an event for r and returns the store-assigned event ID.
func (s *Sync) Create(ctx context.Context, r *reminder.Reminder) (string, error) {
	if err := s.checkGranted("create event"); err != nil {
		return "", err
	}

	id, err := s.svc.CreateEvent(ctx, EventFor(r))
	if err != nil {
		return "", s.classify("create event", err)
	}

	s.logger.Debug("calendar event created", "event_id", id, "notification_id", r.NotificationID)
	return id, nil
}

// Update rewrites event id from r. Returns ErrNotFound if the event vanished.
func (s *Sync) Update(ctx context.Context, id string, r *reminder.Reminder) error {
	op := "update event " + id
	if err := s.checkGranted(op); err != nil {
		return err
	}

	existing, err := s.svc.FetchEvent(ctx, id)
	if err != nil {
		return s.classify(op, err)
	}
	if existing == nil {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	if err := s.svc.UpdateEvent(ctx, id, EventFor(r)); err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return s.classify(op, err)
	}

	s.logger.Debug("calendar event updated", "event_id", id)
	return nil
}

// Remove deletes event id. An absent event counts as removed.
func (s *Sync) Remove(ctx context.Context, id string) error {
	op := "remove event " + id
	if err := s.checkGranted(op); err != nil {
		return err
	}

	existing, err := s.svc.FetchEvent(ctx, id)
	if err != nil {
		return s.classify(op, err)
	}
	if existing == nil {
		s.logger.Debug("calendar event already absent", "event_id", id)
		return nil
	}

	if err := s.svc.DeleteEvent(ctx, id); err != nil && !errors.Is(err, ErrEventNotFound) {
		return s.classify(op, err)
	}

	s.logger.Debug("calendar event removed", "event_id", id)
	return nil
}

func (s *Sync) checkGranted(op string) error {
	if !s.gate.Granted(permission.CalendarWrite) {
		return fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}
	return nil
}

// classify maps a service refusal onto ErrPermissionDenied and records the
// revocation on the gate. Other errors are wrapped unchanged.
func (s *Sync) classify(op string, err error) error {
	if errors.Is(err, ErrNotAuthorized) {
		s.gate.Revoked(permission.CalendarWrite)
		return fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}
	return fmt.Errorf("%s: %w", op, err)
}
