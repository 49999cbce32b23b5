package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/remindsync/internal/notify"
	"github.com/roach88/remindsync/internal/permission"
)

// NotificationCenter is an in-memory notify.Service that records every call.
//
// Authorization starts not-determined; the first RequestAuthorization settles
// it to Answer. Schedule is refused with notify.ErrNotAuthorized whenever the
// status is not authorized, which is how a revocation outside the application
// looks to the adapter.
type NotificationCenter struct {
	mu        sync.Mutex
	rec       *Recorder
	status    permission.Status
	answer    bool
	failNext  error
	pending   map[string]notify.Request
	delivered map[string]notify.Request
}

// NewNotificationCenter creates a center that grants authorization when asked.
func NewNotificationCenter(rec *Recorder) *NotificationCenter {
	return &NotificationCenter{
		rec:       rec,
		answer:    true,
		pending:   make(map[string]notify.Request),
		delivered: make(map[string]notify.Request),
	}
}

// SetAnswer sets the response to the first authorization request.
func (c *NotificationCenter) SetAnswer(granted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answer = granted
}

// SetStatus forces the authorization status, e.g. to simulate a revocation.
func (c *NotificationCenter) SetStatus(s permission.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

// FailNextSchedule makes the next Schedule call return err.
func (c *NotificationCenter) FailNextSchedule(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = err
}

func (c *NotificationCenter) AuthorizationStatus(context.Context) (permission.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, nil
}

func (c *NotificationCenter) RequestAuthorization(context.Context) (bool, error) {
	c.mu.Lock()
	if c.status == permission.StatusNotDetermined {
		if c.answer {
			c.status = permission.StatusAuthorized
		} else {
			c.status = permission.StatusDenied
		}
	}
	granted := c.status == permission.StatusAuthorized
	c.mu.Unlock()

	c.rec.recordResult("notify.request_authorization", "", "", grantResult(granted))
	return granted, nil
}

func (c *NotificationCenter) Schedule(_ context.Context, r notify.Request) error {
	c.mu.Lock()
	var err error
	switch {
	case c.status != permission.StatusAuthorized:
		err = notify.ErrNotAuthorized
	case c.failNext != nil:
		err = c.failNext
		c.failNext = nil
	default:
		c.pending[r.ID] = r
	}
	c.mu.Unlock()

	c.rec.record("notify.schedule", r.ID, "fire_at="+r.FireAt.UTC().Format(time.RFC3339), err)
	return err
}

func (c *NotificationCenter) CancelPending(_ context.Context, id string) error {
	c.mu.Lock()
	_, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	c.rec.recordResult("notify.cancel_pending", id, "", presence(ok))
	return nil
}

func (c *NotificationCenter) CancelDelivered(_ context.Context, id string) error {
	c.mu.Lock()
	_, ok := c.delivered[id]
	delete(c.delivered, id)
	c.mu.Unlock()

	c.rec.recordResult("notify.cancel_delivered", id, "", presence(ok))
	return nil
}

// Deliver moves a pending alert to delivered, as if it fired.
func (c *NotificationCenter) Deliver(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		c.delivered[id] = r
	}
	return ok
}

// Pending returns the pending alert for id.
func (c *NotificationCenter) Pending(id string) (notify.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.pending[id]
	return r, ok
}

// PendingCount returns the number of pending alerts.
func (c *NotificationCenter) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// DeliveredCount returns the number of delivered, still-visible alerts.
func (c *NotificationCenter) DeliveredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.delivered)
}

func grantResult(granted bool) string {
	if granted {
		return "granted"
	}
	return "denied"
}

func presence(ok bool) string {
	if ok {
		return "ok"
	}
	return "absent"
}
