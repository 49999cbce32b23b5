// Package notify adapts the external alerting service into a scheduler of
// fire-once alerts keyed by a reminder's notification ID.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/remindsync/internal/permission"
)

// ErrPermissionDenied is returned when alerting is not granted.
// Callers must call EnsureAlertingGranted on the gate first.
var ErrPermissionDenied = errors.New("alerting permission not granted")

// ErrNotAuthorized is returned by a Service that refuses a request because
// its authorization was revoked.
var ErrNotAuthorized = errors.New("notification service: not authorized")

// Request is one fire-once alert.
type Request struct {
	ID     string
	Title  string
	Body   string
	FireAt time.Time
}

// Service is the external alerting service.
type Service interface {
	permission.Authorizer

	// Schedule registers r, replacing any pending alert with the same ID.
	Schedule(ctx context.Context, r Request) error
	// CancelPending removes a pending alert. Unknown IDs are not an error.
	CancelPending(ctx context.Context, id string) error
	// CancelDelivered removes an already-delivered, still-visible alert.
	CancelDelivered(ctx context.Context, id string) error
}

// Scheduler schedules, cancels and replaces alerts.
// It provides no locking of its own; callers serialize per notification ID.
type Scheduler struct {
	svc    Service
	gate   *permission.Gate
	logger *slog.Logger
}

// NewScheduler creates a scheduler over svc gated by gate.
func NewScheduler(svc Service, gate *permission.Gate, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{svc: svc, gate: gate, logger: logger}
}

// Schedule registers a fire-once alert for fireAt, truncated to the minute.
// Scheduling an id that already has a pending alert replaces it.
func (s *Scheduler) Schedule(ctx context.Context, id, title, body string, fireAt time.Time) error {
	if !s.gate.Granted(permission.Alerting) {
		return fmt.Errorf("schedule alert %s: %w", id, ErrPermissionDenied)
	}

	err := s.svc.Schedule(ctx, Request{
		ID:     id,
		Title:  title,
		Body:   body,
		FireAt: fireAt.Truncate(time.Minute),
	})
	if errors.Is(err, ErrNotAuthorized) {
		s.gate.Revoked(permission.Alerting)
		return fmt.Errorf("schedule alert %s: %w", id, ErrPermissionDenied)
	}
	if err != nil {
		return fmt.Errorf("schedule alert %s: %w", id, err)
	}

	s.logger.Debug("alert scheduled", "notification_id", id, "fire_at", fireAt)
	return nil
}

// Cancel removes any pending and any delivered alert for id.
// Never fails; service errors are logged.
func (s *Scheduler) Cancel(ctx context.Context, id string) {
	if err := s.svc.CancelPending(ctx, id); err != nil {
		s.logger.Warn("cancel pending alert failed", "notification_id", id, "error", err)
	}
	if err := s.svc.CancelDelivered(ctx, id); err != nil {
		s.logger.Warn("cancel delivered alert failed", "notification_id", id, "error", err)
	}
	s.logger.Debug("alert cancelled", "notification_id", id)
}

// Reschedule is Cancel followed by Schedule under the same id.
func (s *Scheduler) Reschedule(ctx context.Context, id, title, body string, fireAt time.Time) error {
	s.Cancel(ctx, id)
	return s.Schedule(ctx, id, title, body, fireAt)
}

// Body composes the alert body: the reminder title, then the note on its own
// line when present.
func Body(title, note string) string {
	if note == "" {
		return title
	}
	return title + "\n" + note
}
