package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/remindsync/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Trace    []testutil.Call // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, call := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", call)
		}
	}

	return buf.String()
}

// assertTraceContains checks that a call to the action was recorded,
// optionally for a specific key.
func assertTraceContains(trace []testutil.Call, assertion Assertion) error {
	for _, call := range trace {
		if call.Op == assertion.Action && (assertion.Key == "" || call.Key == assertion.Key) {
			return nil
		}
	}

	expected := "call " + assertion.Action
	if assertion.Key != "" {
		expected += "(" + assertion.Key + ")"
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening calls are allowed).
func assertTraceOrder(trace []testutil.Call, assertion Assertion) error {
	// Step 1: Find first position of each expected action
	positions := make(map[string]int)

	for i, call := range trace {
		for _, expectedAction := range assertion.Actions {
			if call.Op == expectedAction && positions[expectedAction] == 0 {
				positions[expectedAction] = i + 1 // 1-indexed for readability
			}
		}
	}

	// Step 2: Verify all actions found
	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []testutil.Call, assertion Assertion) error {
	count := 0
	for _, call := range trace {
		if call.Op == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks the record bound to assertion.Ref using subset
// semantics: only the fields named in Expect are compared.
func assertFinalState(final Snapshot, assertion Assertion) error {
	record, ok := final.Record(assertion.Ref)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("record %q exists", assertion.Ref),
			Actual:   "no such record",
		}
	}

	fields := record.fields()

	// Sort keys for deterministic error messages
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := assertion.Expect[key]
		actual, ok := fields[key]
		if !ok {
			return fmt.Errorf("final_state: unknown field %q", key)
		}
		if !valuesEqual(actual, expected) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", assertion.Ref, key, expected),
				Actual:   fmt.Sprintf("%s.%s = %v", assertion.Ref, key, actual),
			}
		}
	}

	return nil
}

// valuesEqual compares a record field with a YAML-parsed value. Strings and
// booleans compare directly; anything else compares by its printed form.
func valuesEqual(actual, expected interface{}) bool {
	switch a := actual.(type) {
	case bool:
		e, ok := expected.(bool)
		return ok && a == e
	case string:
		e, ok := expected.(string)
		return ok && a == e
	}
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

func assertCount(kind string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	trace := result.Calls()

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.Final, assertion)
		case AssertRecordAbsent:
			if _, ok := result.Final.Record(assertion.Ref); ok {
				err = &AssertionError{
					Type:     AssertRecordAbsent,
					Expected: fmt.Sprintf("no record %q", assertion.Ref),
					Actual:   "record exists",
				}
			}
		case AssertPendingAlerts:
			err = assertCount(AssertPendingAlerts, assertion.Count, result.Final.PendingAlerts)
		case AssertCalendarEvents:
			err = assertCount(AssertCalendarEvents, assertion.Count, result.Final.CalendarEvents)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
