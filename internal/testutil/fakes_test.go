package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remindsync/internal/calendar"
	"github.com/roach88/remindsync/internal/notify"
	"github.com/roach88/remindsync/internal/permission"
)

var fireAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestNotificationCenter_RefusesUntilAuthorized(t *testing.T) {
	rec := NewRecorder()
	c := NewNotificationCenter(rec)
	ctx := context.Background()

	err := c.Schedule(ctx, notify.Request{ID: "n", FireAt: fireAt})
	assert.ErrorIs(t, err, notify.ErrNotAuthorized)

	granted, err := c.RequestAuthorization(ctx)
	require.NoError(t, err)
	assert.True(t, granted)

	require.NoError(t, c.Schedule(ctx, notify.Request{ID: "n", FireAt: fireAt}))
	_, ok := c.Pending("n")
	assert.True(t, ok)
}

func TestNotificationCenter_AnswerIsSticky(t *testing.T) {
	c := NewNotificationCenter(NewRecorder())
	c.SetAnswer(false)
	ctx := context.Background()

	granted, _ := c.RequestAuthorization(ctx)
	assert.False(t, granted)

	c.SetAnswer(true)
	granted, _ = c.RequestAuthorization(ctx)
	assert.False(t, granted, "a determined status is not re-prompted")
}

func TestNotificationCenter_DeliverAndCancel(t *testing.T) {
	c := NewNotificationCenter(NewRecorder())
	c.SetStatus(permission.StatusAuthorized)
	ctx := context.Background()

	require.NoError(t, c.Schedule(ctx, notify.Request{ID: "n", FireAt: fireAt}))
	assert.True(t, c.Deliver("n"))
	assert.Equal(t, 0, c.PendingCount())
	assert.Equal(t, 1, c.DeliveredCount())

	require.NoError(t, c.CancelDelivered(ctx, "n"))
	assert.Equal(t, 0, c.DeliveredCount())
}

func TestNotificationCenter_FailNextSchedule(t *testing.T) {
	c := NewNotificationCenter(NewRecorder())
	c.SetStatus(permission.StatusAuthorized)
	boom := errors.New("boom")
	c.FailNextSchedule(boom)
	ctx := context.Background()

	assert.ErrorIs(t, c.Schedule(ctx, notify.Request{ID: "n"}), boom)
	assert.NoError(t, c.Schedule(ctx, notify.Request{ID: "n"}))
}

func TestEventStore_Lifecycle(t *testing.T) {
	s := NewEventStore(NewRecorder())
	s.SetStatus(permission.StatusAuthorized)
	ctx := context.Background()

	id, err := s.CreateEvent(ctx, calendar.Event{Title: "a", Start: fireAt})
	require.NoError(t, err)
	assert.Equal(t, "ev-1", id)

	ev, err := s.FetchEvent(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "a", ev.Title)

	require.NoError(t, s.UpdateEvent(ctx, id, calendar.Event{Title: "b"}))
	stored, _ := s.Event(id)
	assert.Equal(t, "b", stored.Title)

	require.NoError(t, s.DeleteEvent(ctx, id))
	assert.ErrorIs(t, s.DeleteEvent(ctx, id), calendar.ErrEventNotFound)

	ev, err = s.FetchEvent(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestEventStore_Vanish(t *testing.T) {
	s := NewEventStore(NewRecorder())
	s.SetStatus(permission.StatusAuthorized)
	ctx := context.Background()

	id, err := s.CreateEvent(ctx, calendar.Event{})
	require.NoError(t, err)
	s.Vanish(id)

	assert.ErrorIs(t, s.UpdateEvent(ctx, id, calendar.Event{}), calendar.ErrEventNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestEventStore_RefusedWhenNotAuthorized(t *testing.T) {
	s := NewEventStore(NewRecorder())
	ctx := context.Background()

	_, err := s.CreateEvent(ctx, calendar.Event{})
	assert.ErrorIs(t, err, calendar.ErrNotAuthorized)
	_, err = s.FetchEvent(ctx, "ev-1")
	assert.ErrorIs(t, err, calendar.ErrNotAuthorized)
}

func TestRecorder_Trace(t *testing.T) {
	rec := NewRecorder()
	c := NewNotificationCenter(rec)
	ctx := context.Background()

	_, _ = c.RequestAuthorization(ctx)
	_ = c.Schedule(ctx, notify.Request{ID: "notif-1", FireAt: fireAt})
	_ = c.CancelPending(ctx, "notif-2")

	want := "001 notify.request_authorization() -> granted\n" +
		"002 notify.schedule(notif-1) fire_at=2026-03-01T10:00:00Z -> ok\n" +
		"003 notify.cancel_pending(notif-2) -> absent\n"
	assert.Equal(t, want, rec.Trace())
	assert.Equal(t, 1, rec.Count("notify.schedule"))

	rec.Reset()
	assert.Equal(t, 0, rec.Len())
}
