package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remindsync/internal/calendar"
	"github.com/roach88/remindsync/internal/notify"
	"github.com/roach88/remindsync/internal/permission"
	"github.com/roach88/remindsync/internal/reminder"
	"github.com/roach88/remindsync/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	engine *Engine
	gate   *permission.Gate
	alerts *testutil.NotificationCenter
	events *testutil.EventStore
	rec    *testutil.Recorder
	clock  *testutil.WallClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := testutil.NewRecorder()
	alerts := testutil.NewNotificationCenter(rec)
	events := testutil.NewEventStore(rec)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := permission.New(alerts, events, logger)
	clock := testutil.NewWallClock(testNow)

	eng := New(gate,
		notify.NewScheduler(alerts, gate, logger),
		calendar.NewSync(events, gate, logger),
		WithClock(clock),
		WithIDGenerator(testutil.NewSequentialIDs("notif")),
		WithLogger(logger),
	)
	return &fixture{engine: eng, gate: gate, alerts: alerts, events: events, rec: rec, clock: clock}
}

func payRent(addToCalendar bool) reminder.Desired {
	return reminder.Desired{Title: "Pay rent", FireAt: testNow.Add(time.Hour), AddToCalendar: addToCalendar}
}

func (f *fixture) save(t *testing.T, d reminder.Desired) *reminder.Reminder {
	t.Helper()
	out, err := f.engine.Save(context.Background(), d)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out.Reminder
}

// =============================================================================
// Save
// =============================================================================

func TestSave_BothGranted(t *testing.T) {
	f := newFixture(t)

	out, err := f.engine.Save(context.Background(), payRent(true))
	require.NoError(t, err)

	r := out.Reminder
	assert.NotEmpty(t, r.NotificationID)
	assert.NotEmpty(t, r.CalendarLinkID)
	assert.False(t, r.Completed)
	assert.Equal(t, reminder.StateAlertAndEvent, out.State)
	assert.Equal(t, PersistInsert, out.Persist)
	assert.Equal(t, []Effect{EffectAlertScheduled, EffectEventCreated}, out.Effects)

	alert, ok := f.alerts.Pending(r.NotificationID)
	require.True(t, ok)
	assert.Equal(t, DefaultHeading, alert.Title)
	assert.Equal(t, "Pay rent", alert.Body)

	ev, ok := f.events.Event(r.CalendarLinkID)
	require.True(t, ok)
	assert.Equal(t, r.FireAt, ev.Start)
}

func TestSave_WithoutCalendar(t *testing.T) {
	f := newFixture(t)

	out, err := f.engine.Save(context.Background(), payRent(false))
	require.NoError(t, err)

	assert.Equal(t, reminder.StateAlertOnly, out.State)
	assert.False(t, out.Reminder.HasCalendarLink())
	assert.Equal(t, 0, f.rec.Count("calendar.request_authorization"))
	assert.Equal(t, 0, f.events.Len())
}

func TestSave_CalendarDeniedKeepsAlert(t *testing.T) {
	f := newFixture(t)
	f.events.SetAnswer(false)

	out, err := f.engine.Save(context.Background(), payRent(true))
	require.Error(t, err)
	require.NotNil(t, out, "partial success must be returned for persistence")

	assert.True(t, IsPermissionDenied(err, permission.CalendarWrite))
	assert.False(t, IsPermissionDenied(err, permission.Alerting))
	assert.True(t, IsPartial(err))

	var se *SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []Effect{EffectAlertScheduled}, se.Applied)
	assert.Contains(t, se.Message, "check calendar permission")

	assert.Equal(t, PersistInsert, out.Persist)
	assert.False(t, out.Reminder.HasCalendarLink())
	assert.Equal(t, reminder.StateAlertOnly, out.State)
	_, ok := f.alerts.Pending(out.Reminder.NotificationID)
	assert.True(t, ok, "alert is not rolled back by a calendar failure")
}

func TestSave_EmptyTitleMakesNoCalls(t *testing.T) {
	f := newFixture(t)

	out, err := f.engine.Save(context.Background(), reminder.Desired{Title: "   ", FireAt: testNow.Add(time.Hour)})
	assert.Nil(t, out)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 0, f.rec.Len(), "no scheduler or calendar calls")
}

func TestSave_PastFireTimeIsValidationError(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Save(context.Background(), reminder.Desired{Title: "x", FireAt: testNow.Add(-time.Second)})
	assert.True(t, IsValidationError(err))

	var verrs reminder.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "fire_at", verrs[0].Field)
	assert.Equal(t, 0, f.rec.Len())
}

func TestSave_AlertingDeniedSchedulesNothing(t *testing.T) {
	f := newFixture(t)
	f.alerts.SetAnswer(false)

	out, err := f.engine.Save(context.Background(), payRent(true))
	assert.Nil(t, out)
	assert.True(t, IsPermissionDenied(err, permission.Alerting))
	assert.False(t, IsPartial(err))
	assert.Equal(t, 0, f.rec.Count("notify.schedule"))
	assert.Equal(t, 0, f.rec.Count("calendar.create"))
}

func TestSave_TrimsTitleAndComposesBody(t *testing.T) {
	f := newFixture(t)

	r := f.save(t, reminder.Desired{Title: "  Pay rent  ", Note: "landlord", FireAt: testNow.Add(time.Hour)})
	assert.Equal(t, "Pay rent", r.Title)

	alert, _ := f.alerts.Pending(r.NotificationID)
	assert.Equal(t, "Pay rent\nlandlord", alert.Body)
}

func TestSave_CalendarCreateFailureIsUnexpected(t *testing.T) {
	f := newFixture(t)
	f.events.FailNextCreate(errors.New("calendar store offline"))

	out, err := f.engine.Save(context.Background(), payRent(true))
	require.NotNil(t, out)

	var se *SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindUnexpected, se.Kind)
	assert.Equal(t, permission.CalendarWrite, se.Capability)
	assert.Contains(t, err.Error(), "calendar store offline")
	assert.False(t, out.Reminder.HasCalendarLink())
}

func TestSave_AlwaysOneAlertNeverLinkWithoutAlert(t *testing.T) {
	cases := []struct {
		name          string
		calendarGrant bool
		addToCalendar bool
	}{
		{"alert only", true, false},
		{"alert and event", true, true},
		{"calendar denied", false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.events.SetAnswer(tc.calendarGrant)

			out, err := f.engine.Save(context.Background(), payRent(tc.addToCalendar))
			require.NotNil(t, out)
			assert.Equal(t, 1, f.alerts.PendingCount())

			switch {
			case err == nil && out.Reminder.HasCalendarLink():
				assert.True(t, tc.addToCalendar)
			case err == nil:
				assert.False(t, tc.addToCalendar)
			default:
				assert.True(t, IsPermissionDenied(err, permission.CalendarWrite))
				assert.False(t, out.Reminder.HasCalendarLink())
			}
		})
	}
}

func TestSave_CancelledContextBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.engine.Save(ctx, payRent(true))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.rec.Len())
}

func TestSave_AlertRefusedAfterRevocation(t *testing.T) {
	f := newFixture(t)
	f.save(t, payRent(false))

	f.alerts.SetStatus(permission.StatusDenied)
	out, err := f.engine.Save(context.Background(), payRent(false))
	assert.Nil(t, out)
	assert.True(t, IsPermissionDenied(err, permission.Alerting))
	assert.False(t, f.gate.Granted(permission.Alerting))
}

// =============================================================================
// Edit
// =============================================================================

func TestEdit_ReschedulesUnderSameID(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(false))

	d := payRent(false)
	d.Title = "Pay rent (late)"
	d.FireAt = testNow.Add(3 * time.Hour)
	out, err := f.engine.Edit(context.Background(), r, d)
	require.NoError(t, err)

	assert.Equal(t, r.NotificationID, out.Reminder.NotificationID)
	assert.Equal(t, []Effect{EffectAlertCancelled, EffectAlertScheduled}, out.Effects)
	assert.Equal(t, PersistUpdate, out.Persist)
	assert.Equal(t, 1, f.alerts.PendingCount())

	alert, _ := f.alerts.Pending(r.NotificationID)
	assert.Equal(t, d.FireAt, alert.FireAt)
	assert.Equal(t, "Pay rent (late)", alert.Body)
	assert.Equal(t, "Pay rent", r.Title, "input reminder is not mutated")
}

func TestEdit_UpdatesExistingEvent(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))
	link := r.CalendarLinkID

	d := payRent(true)
	d.FireAt = testNow.Add(5 * time.Hour)
	out, err := f.engine.Edit(context.Background(), r, d)
	require.NoError(t, err)

	assert.Equal(t, link, out.Reminder.CalendarLinkID)
	assert.True(t, out.Has(EffectEventUpdated))
	ev, _ := f.events.Event(link)
	assert.Equal(t, d.FireAt, ev.Start)
	assert.Equal(t, reminder.StateAlertAndEvent, out.State)
}

func TestEdit_CreatesEventWhenRequested(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(false))

	out, err := f.engine.Edit(context.Background(), r, payRent(true))
	require.NoError(t, err)
	assert.True(t, out.Reminder.HasCalendarLink())
	assert.True(t, out.Has(EffectEventCreated))
}

func TestEdit_RemovesEventWhenNotRequested(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))
	link := r.CalendarLinkID

	out, err := f.engine.Edit(context.Background(), r, payRent(false))
	require.NoError(t, err)

	assert.False(t, out.Reminder.HasCalendarLink())
	assert.True(t, out.Has(EffectEventRemoved))
	_, exists := f.events.Event(link)
	assert.False(t, exists, "prior event removed")
	assert.Equal(t, reminder.StateAlertOnly, out.State)
}

func TestEdit_RecoversFromVanishedEvent(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))
	stale := r.CalendarLinkID
	f.events.Vanish(stale)

	out, err := f.engine.Edit(context.Background(), r, payRent(true))
	require.NoError(t, err, "stale-link recovery is invisible on success")

	assert.True(t, out.Reminder.HasCalendarLink())
	assert.NotEqual(t, stale, out.Reminder.CalendarLinkID)
	assert.True(t, out.Has(EffectLinkCleared))
	assert.True(t, out.Has(EffectEventCreated))
	_, ok := f.events.Event(out.Reminder.CalendarLinkID)
	assert.True(t, ok)
}

func TestEdit_StaleLinkThenCreateFailureLeavesLinkCleared(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))
	f.events.Vanish(r.CalendarLinkID)
	f.events.FailNextCreate(errors.New("quota"))

	out, err := f.engine.Edit(context.Background(), r, payRent(true))
	require.Error(t, err)
	require.NotNil(t, out)
	assert.True(t, IsPartial(err))
	assert.False(t, out.Reminder.HasCalendarLink(), "never points at a deleted event")
}

func TestEdit_UpdateFailureKeepsOldLink(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))
	link := r.CalendarLinkID
	f.events.FailNextUpdate(errors.New("conflict"))

	out, err := f.engine.Edit(context.Background(), r, payRent(true))
	require.Error(t, err)
	require.NotNil(t, out)

	var se *SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindUnexpected, se.Kind)
	assert.Equal(t, permission.CalendarWrite, se.Capability)
	assert.Equal(t, []Effect{EffectAlertCancelled, EffectAlertScheduled}, se.Applied)
	assert.Equal(t, link, out.Reminder.CalendarLinkID)
	assert.Equal(t, 1, f.alerts.PendingCount(), "reschedule is not reverted")
}

func TestEdit_CalendarRevokedIsPartialDenied(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))
	f.events.SetStatus(permission.StatusDenied)

	out, err := f.engine.Edit(context.Background(), r, payRent(true))
	require.NotNil(t, out)
	assert.True(t, IsPermissionDenied(err, permission.CalendarWrite))
	assert.True(t, IsPartial(err))
	assert.Equal(t, r.CalendarLinkID, out.Reminder.CalendarLinkID)
}

func TestEdit_ValidationErrorMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))
	f.rec.Reset()

	out, err := f.engine.Edit(context.Background(), r, reminder.Desired{Title: "", FireAt: testNow.Add(time.Hour)})
	assert.Nil(t, out)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 0, f.rec.Len())
}

func TestEdit_AlertingRevokedChangesNothing(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(false))
	f.alerts.SetStatus(permission.StatusDenied)
	f.gate.Revoked(permission.Alerting)
	f.rec.Reset()

	out, err := f.engine.Edit(context.Background(), r, payRent(false))
	assert.Nil(t, out)
	assert.True(t, IsPermissionDenied(err, permission.Alerting))
	assert.Equal(t, 0, f.rec.Count("notify.cancel_pending"), "no cancel before a schedule that cannot happen")
}

func TestEdit_ScheduleFailureAfterCancelIsReported(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(false))
	f.alerts.FailNextSchedule(errors.New("service busy"))

	out, err := f.engine.Edit(context.Background(), r, payRent(false))
	require.NotNil(t, out)

	var se *SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindUnexpected, se.Kind)
	assert.Equal(t, permission.Alerting, se.Capability)
	assert.Equal(t, []Effect{EffectAlertCancelled}, se.Applied)
	assert.Equal(t, reminder.StateUnsynced, out.State)
}

func TestEdit_CompletedReminderIsNotRescheduled(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(false))
	toggled, err := f.engine.ToggleCompleted(context.Background(), r)
	require.NoError(t, err)

	out, err := f.engine.Edit(context.Background(), toggled.Reminder, payRent(false))
	require.NoError(t, err)
	assert.Equal(t, 0, f.alerts.PendingCount())
	assert.Equal(t, reminder.StateCompleted, out.State)
}

// =============================================================================
// ToggleCompleted
// =============================================================================

func TestToggle_CompleteCancelsAlertKeepsEvent(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))

	out, err := f.engine.ToggleCompleted(context.Background(), r)
	require.NoError(t, err)

	assert.True(t, out.Reminder.Completed)
	assert.Equal(t, 0, f.alerts.PendingCount())
	assert.Equal(t, r.CalendarLinkID, out.Reminder.CalendarLinkID)
	_, ok := f.events.Event(r.CalendarLinkID)
	assert.True(t, ok, "completed reminder keeps its calendar entry")
	assert.Equal(t, reminder.StateCompleted, out.State)
}

func TestToggle_TwiceRestoresSideEffects(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))
	before, _ := f.alerts.Pending(r.NotificationID)

	once, err := f.engine.ToggleCompleted(context.Background(), r)
	require.NoError(t, err)
	twice, err := f.engine.ToggleCompleted(context.Background(), once.Reminder)
	require.NoError(t, err)

	after, ok := f.alerts.Pending(r.NotificationID)
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, r.CalendarLinkID, twice.Reminder.CalendarLinkID)
	assert.False(t, twice.Reminder.Completed)
	assert.Equal(t, reminder.StateAlertAndEvent, twice.State)
}

func TestToggle_ReopenDoesNotRevalidateFireTime(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(false))
	done, err := f.engine.ToggleCompleted(context.Background(), r)
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	out, err := f.engine.ToggleCompleted(context.Background(), done.Reminder)
	require.NoError(t, err)
	assert.False(t, out.Reminder.Completed)
	assert.Equal(t, 1, f.alerts.PendingCount())
}

func TestToggle_ReopenDeniedStaysCompleted(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(false))
	done, err := f.engine.ToggleCompleted(context.Background(), r)
	require.NoError(t, err)

	f.alerts.SetStatus(permission.StatusDenied)
	f.gate.Revoked(permission.Alerting)
	out, err := f.engine.ToggleCompleted(context.Background(), done.Reminder)
	assert.Nil(t, out)
	assert.True(t, IsPermissionDenied(err, permission.Alerting))
	assert.True(t, done.Reminder.Completed)
}

// =============================================================================
// Delete
// =============================================================================

func TestDelete_RetiresBothSides(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))

	out, err := f.engine.Delete(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, PersistDelete, out.Persist)
	assert.Equal(t, []Effect{EffectAlertCancelled, EffectEventRemoved}, out.Effects)
	assert.Equal(t, 0, f.alerts.PendingCount())
	assert.Equal(t, 0, f.events.Len())
	assert.Empty(t, out.Warnings)
}

func TestDelete_CalendarFailureStillErases(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))
	f.events.FailNextDelete(errors.New("locked"))

	out, err := f.engine.Delete(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, PersistDelete, out.Persist)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "locked")
	assert.Equal(t, 0, f.alerts.PendingCount())
}

func TestDelete_ThenOperationsAreNoOps(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(true))
	_, err := f.engine.Delete(context.Background(), r)
	require.NoError(t, err)

	_, err = f.engine.Delete(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, 0, f.alerts.PendingCount())
	assert.Equal(t, 0, f.events.Len())
	assert.Equal(t, 2, f.rec.Count("calendar.fetch"))
	assert.Equal(t, 1, f.rec.Count("calendar.delete"), "second remove sees the event absent")
}

func TestDelete_ClearsDeliveredAlert(t *testing.T) {
	f := newFixture(t)
	r := f.save(t, payRent(false))
	require.True(t, f.alerts.Deliver(r.NotificationID))

	_, err := f.engine.Delete(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 0, f.alerts.DeliveredCount())
}

// =============================================================================
// Errors and helpers
// =============================================================================

func TestSyncError_Error(t *testing.T) {
	err := &SyncError{
		Kind:       KindPermissionDenied,
		Op:         OpSave,
		Capability: permission.CalendarWrite,
		Message:    "reminder saved, but could not update calendar",
		Err:        calendar.ErrPermissionDenied,
	}
	assert.Equal(t,
		"PERMISSION_DENIED: reminder saved, but could not update calendar: calendar permission not granted (op=save, capability=calendar)",
		err.Error())
	assert.ErrorIs(t, err, calendar.ErrPermissionDenied)
}

func TestErrorPredicates_WrappedAndForeign(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &SyncError{Kind: KindValidation, Op: OpSave})
	assert.True(t, IsValidationError(wrapped))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.False(t, IsPermissionDenied(errors.New("plain"), ""))
	assert.False(t, IsPartial(nil))
}

func TestDesiredFrom(t *testing.T) {
	r := &reminder.Reminder{Title: "a", Note: "b", FireAt: testNow, CalendarLinkID: "ev-1"}
	assert.Equal(t, reminder.Desired{Title: "a", Note: "b", FireAt: testNow, AddToCalendar: true}, DesiredFrom(r))
}

func TestWithHeading(t *testing.T) {
	f := newFixture(t)
	WithHeading("Bills")(f.engine)
	r := f.save(t, payRent(false))

	alert, _ := f.alerts.Pending(r.NotificationID)
	assert.Equal(t, "Bills", alert.Title)
}
