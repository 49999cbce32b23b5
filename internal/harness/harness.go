package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/remindsync/internal/calendar"
	"github.com/roach88/remindsync/internal/engine"
	"github.com/roach88/remindsync/internal/notify"
	"github.com/roach88/remindsync/internal/permission"
	"github.com/roach88/remindsync/internal/reminder"
	"github.com/roach88/remindsync/internal/testutil"
)

// Harness is the test execution engine.
// It runs the real sync engine against recording fakes with a controllable
// wall clock and sequential notification IDs. It plays the role of the
// record owner: outcomes are applied to an in-memory record table exactly as
// their Persist field says.
type Harness struct {
	engine *engine.Engine
	rec    *testutil.Recorder
	alerts *testutil.NotificationCenter
	events *testutil.EventStore
	clock  *testutil.WallClock
	logger *slog.Logger

	records map[string]*reminder.Reminder
	nextID  int64
}

// newHarness wires a fresh engine for one scenario.
func newHarness(answers Answers, now time.Time) *Harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	rec := testutil.NewRecorder()
	alerts := testutil.NewNotificationCenter(rec)
	events := testutil.NewEventStore(rec)
	if answers.Alerting != nil {
		alerts.SetAnswer(*answers.Alerting)
	}
	if answers.Calendar != nil {
		events.SetAnswer(*answers.Calendar)
	}
	clock := testutil.NewWallClock(now)
	gate := permission.New(alerts, events, logger)

	eng := engine.New(gate,
		notify.NewScheduler(alerts, gate, logger),
		calendar.NewSync(events, gate, logger),
		engine.WithClock(clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs("notif")),
		engine.WithLogger(logger),
	)

	return &Harness{
		engine:  eng,
		rec:     rec,
		alerts:  alerts,
		events:  events,
		clock:   clock,
		logger:  logger,
		records: make(map[string]*reminder.Reminder),
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against fresh fakes for isolation.
// Execution flow:
// 1. Wire the engine with fakes configured from the scenario's answers
// 2. Execute steps, checking expect clauses of engine steps
// 3. Snapshot the final state
// 4. Evaluate assertions
//
// An error is returned only when the scenario cannot be executed, e.g. a
// step refers to a reminder that was never saved.
func Run(scenario *Scenario) (*Result, error) {
	now, err := scenario.StartTime()
	if err != nil {
		return nil, err
	}
	h := newHarness(scenario.Answers, now)
	ctx := context.Background()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Label(), err)
		}
	}

	result.Final = h.snapshot()
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// execute runs one step and appends its trace.
func (h *Harness) execute(ctx context.Context, index int, step Step, result *Result) error {
	before := h.rec.Len()

	var (
		out   *engine.Outcome
		opErr error
	)
	switch step.Op {
	case OpSave:
		if _, ok := h.records[step.Ref]; ok {
			return fmt.Errorf("ref %q is already bound", step.Ref)
		}
		d, err := h.desired(step, nil)
		if err != nil {
			return err
		}
		out, opErr = h.engine.Save(ctx, d)

	case OpEdit:
		r, err := h.lookup(step.Ref)
		if err != nil {
			return err
		}
		d, err := h.desired(step, r)
		if err != nil {
			return err
		}
		out, opErr = h.engine.Edit(ctx, r, d)

	case OpToggle:
		r, err := h.lookup(step.Ref)
		if err != nil {
			return err
		}
		out, opErr = h.engine.ToggleCompleted(ctx, r)

	case OpDelete:
		r, err := h.lookup(step.Ref)
		if err != nil {
			return err
		}
		out, opErr = h.engine.Delete(ctx, r)

	case OpVanish:
		r, err := h.lookup(step.Ref)
		if err != nil {
			return err
		}
		if !r.HasCalendarLink() {
			return fmt.Errorf("ref %q has no calendar event", step.Ref)
		}
		h.events.Vanish(r.CalendarLinkID)

	case OpRevoke:
		h.setStatus(step.Capability, permission.StatusDenied)

	case OpGrant:
		h.setStatus(step.Capability, permission.StatusAuthorized)

	case OpFail:
		err := errors.New(step.Error)
		switch step.Target {
		case FailSchedule:
			h.alerts.FailNextSchedule(err)
		case FailCreate:
			h.events.FailNextCreate(err)
		case FailUpdate:
			h.events.FailNextUpdate(err)
		case FailDelete:
			h.events.FailNextDelete(err)
		}

	case OpAdvance:
		d, err := time.ParseDuration(step.By)
		if err != nil {
			return err
		}
		h.clock.Advance(d)

	case OpDeliver:
		r, err := h.lookup(step.Ref)
		if err != nil {
			return err
		}
		if !h.alerts.Deliver(r.NotificationID) {
			return fmt.Errorf("ref %q has no pending alert", step.Ref)
		}

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	trace := StepTrace{
		Index: index,
		Label: step.Label(),
		Calls: h.rec.Calls()[before:],
	}
	if step.runsEngine() {
		h.persist(step.Ref, out)
		trace.Summary = summarize(out, opErr)
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, out, opErr) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", index, step.Label(), msg))
			}
		}
		h.logger.Info("step completed", "step", index, "op", step.Op, "ref", step.Ref, "error", opErr)
	}
	result.Steps = append(result.Steps, trace)
	return nil
}

// desired builds the desired state for save (existing == nil) or edit.
func (h *Harness) desired(step Step, existing *reminder.Reminder) (reminder.Desired, error) {
	d := reminder.Desired{FireAt: h.clock.Now().Add(time.Hour)}
	if existing != nil {
		d = engine.DesiredFrom(existing)
	}
	if step.Title != nil {
		d.Title = *step.Title
	}
	if step.Note != nil {
		d.Note = *step.Note
	}
	if step.FireIn != "" {
		in, err := time.ParseDuration(step.FireIn)
		if err != nil {
			return reminder.Desired{}, fmt.Errorf("fire_in: %w", err)
		}
		d.FireAt = h.clock.Now().Add(in)
	}
	if step.Calendar != nil {
		d.AddToCalendar = *step.Calendar
	}
	return d, nil
}

// persist applies out to the record table.
func (h *Harness) persist(ref string, out *engine.Outcome) {
	if out == nil {
		return
	}
	switch out.Persist {
	case engine.PersistInsert:
		h.nextID++
		out.Reminder.ID = h.nextID
		h.records[ref] = out.Reminder
	case engine.PersistUpdate:
		h.records[ref] = out.Reminder
	case engine.PersistDelete:
		delete(h.records, ref)
	}
}

func (h *Harness) lookup(ref string) (*reminder.Reminder, error) {
	r, ok := h.records[ref]
	if !ok {
		return nil, fmt.Errorf("unknown ref %q", ref)
	}
	return r, nil
}

func (h *Harness) setStatus(capability string, s permission.Status) {
	if permission.Capability(capability) == permission.Alerting {
		h.alerts.SetStatus(s)
		return
	}
	h.events.SetStatus(s)
}

func (h *Harness) snapshot() Snapshot {
	snap := Snapshot{
		PendingAlerts:   h.alerts.PendingCount(),
		DeliveredAlerts: h.alerts.DeliveredCount(),
		CalendarEvents:  h.events.Len(),
		Records:         []RecordSnapshot{},
	}
	for ref, r := range h.records {
		_, pending := h.alerts.Pending(r.NotificationID)
		snap.Records = append(snap.Records, RecordSnapshot{
			Ref:            ref,
			NotificationID: r.NotificationID,
			Title:          r.Title,
			Note:           r.Note,
			FireAt:         r.FireAt.UTC().Format(time.RFC3339),
			Completed:      r.Completed,
			CalendarLinkID: r.CalendarLinkID,
			State:          string(reminder.StateOf(r, pending)),
		})
	}
	sort.Slice(snap.Records, func(i, j int) bool {
		return snap.Records[i].Ref < snap.Records[j].Ref
	})
	return snap
}

// summarize renders the engine result line of a step:
//
//	=> PERMISSION_DENIED capability=calendar partial state=alert_only effects=[alert_scheduled]
func summarize(out *engine.Outcome, err error) string {
	var b strings.Builder
	b.WriteString("=> ")

	var se *engine.SyncError
	switch {
	case err == nil:
		b.WriteString("ok")
	case errors.As(err, &se):
		b.WriteString(string(se.Kind))
		if se.Capability != "" {
			fmt.Fprintf(&b, " capability=%s", se.Capability)
		}
		if se.Partial() {
			b.WriteString(" partial")
		}
	default:
		fmt.Fprintf(&b, "error %v", err)
	}

	if out != nil {
		fmt.Fprintf(&b, " state=%s effects=[%s]", out.State, joinEffects(out.Effects))
		if len(out.Warnings) > 0 {
			fmt.Fprintf(&b, " warnings=%d", len(out.Warnings))
		}
	}
	return b.String()
}

func joinEffects(effects []engine.Effect) string {
	names := make([]string, len(effects))
	for i, e := range effects {
		names[i] = string(e)
	}
	return strings.Join(names, " ")
}

// checkExpect compares an engine result with an expect clause.
func checkExpect(exp *Expect, out *engine.Outcome, err error) []string {
	var msgs []string

	var se *engine.SyncError
	isSync := errors.As(err, &se)

	if exp.Error != "" {
		want := strings.ToUpper(exp.Error)
		got := "OK"
		if isSync {
			got = string(se.Kind)
		} else if err != nil {
			got = "error " + err.Error()
		}
		if got != want {
			msgs = append(msgs, fmt.Sprintf("expected result %s, got %s", want, got))
		}
	}

	if exp.Capability != "" {
		got := ""
		if isSync {
			got = string(se.Capability)
		}
		if got != exp.Capability {
			msgs = append(msgs, fmt.Sprintf("expected capability %q, got %q", exp.Capability, got))
		}
	}

	if exp.Partial != nil && engine.IsPartial(err) != *exp.Partial {
		msgs = append(msgs, fmt.Sprintf("expected partial=%t, got %t", *exp.Partial, engine.IsPartial(err)))
	}

	needsOutcome := exp.State != "" || exp.Effects != nil || exp.Warnings != nil
	if needsOutcome && out == nil {
		return append(msgs, "expected an outcome, got none")
	}

	if exp.State != "" && string(out.State) != exp.State {
		msgs = append(msgs, fmt.Sprintf("expected state %s, got %s", exp.State, out.State))
	}

	if exp.Effects != nil {
		got := joinEffects(out.Effects)
		if want := strings.Join(exp.Effects, " "); got != want {
			msgs = append(msgs, fmt.Sprintf("expected effects [%s], got [%s]", want, got))
		}
	}

	if exp.Warnings != nil && len(out.Warnings) != *exp.Warnings {
		msgs = append(msgs, fmt.Sprintf("expected %d warnings, got %d", *exp.Warnings, len(out.Warnings)))
	}

	return msgs
}
