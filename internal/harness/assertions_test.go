package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remindsync/internal/testutil"
)

func sampleTrace() []testutil.Call {
	return []testutil.Call{
		{Seq: 1, Op: "notify.request_authorization", Result: "granted"},
		{Seq: 2, Op: "notify.schedule", Key: "notif-1", Result: "ok"},
		{Seq: 3, Op: "calendar.create", Key: "ev-1", Result: "ok"},
		{Seq: 4, Op: "notify.schedule", Key: "notif-2", Result: "ok"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "calendar.create"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "notify.schedule", Key: "notif-2"}))

	err := assertTraceContains(trace, Assertion{Action: "notify.schedule", Key: "notif-3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call notify.schedule(notif-3)")
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{
		Actions: []string{"notify.request_authorization", "notify.schedule", "calendar.create"},
	}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{"calendar.create", "notify.schedule"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Actions: []string{"calendar.delete"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing action: calendar.delete")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "notify.schedule", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "calendar.delete", Count: 0}))

	err := assertTraceCount(trace, Assertion{Action: "notify.schedule", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertFinalState(t *testing.T) {
	final := Snapshot{Records: []RecordSnapshot{{
		Ref:            "rent",
		NotificationID: "notif-1",
		Title:          "Pay rent",
		FireAt:         "2026-03-01T10:00:00Z",
		CalendarLinkID: "ev-1",
		State:          "alert_and_event",
	}}}

	assert.NoError(t, assertFinalState(final, Assertion{Ref: "rent", Expect: map[string]interface{}{
		"state":           "alert_and_event",
		"calendar_linked": true,
		"completed":       false,
		"title":           "Pay rent",
	}}))

	err := assertFinalState(final, Assertion{Ref: "rent", Expect: map[string]interface{}{"completed": true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rent.completed = true")

	err = assertFinalState(final, Assertion{Ref: "rent", Expect: map[string]interface{}{"colour": "red"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "colour"`)

	err = assertFinalState(final, Assertion{Ref: "water", Expect: map[string]interface{}{"state": "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such record")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(true, true))
	assert.False(t, valuesEqual(true, "true"), "types must match for booleans")
	assert.True(t, valuesEqual("ev-1", "ev-1"))
	assert.False(t, valuesEqual("1", 1))
	assert.True(t, valuesEqual(3, 3))
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Steps = []StepTrace{{Index: 1, Label: "save rent", Calls: sampleTrace()}}
	result.Final = Snapshot{PendingAlerts: 2, CalendarEvents: 1}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Action: "notify.schedule", Count: 2},
		{Type: AssertPendingAlerts, Count: 2},
		{Type: AssertCalendarEvents, Count: 0},
		{Type: AssertRecordAbsent, Ref: "rent"},
		{Type: "bogus"},
	})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "calendar_events")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}
