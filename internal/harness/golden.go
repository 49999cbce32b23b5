package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden trace files live, relative to the test's package.
const GoldenDir = "testdata/golden"

// FormatTrace renders a result as the deterministic text golden files hold:
//
//	scenario: save_alert_and_event
//	step 1: save rent
//	  001 notify.request_authorization() -> granted
//	  002 notify.schedule(notif-1) fire_at=2026-03-01T10:00:00Z -> ok
//	  => ok state=alert_only effects=[alert_scheduled]
//	final: pending_alerts=1 delivered_alerts=0 calendar_events=0
//	  rent: state=alert_only completed=false fire_at=2026-03-01T10:00:00Z link=-
func FormatTrace(scenarioName string, result *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", scenarioName)

	for _, step := range result.Steps {
		fmt.Fprintf(&b, "step %d: %s\n", step.Index, step.Label)
		for _, call := range step.Calls {
			fmt.Fprintf(&b, "  %s\n", call)
		}
		if step.Summary != "" {
			fmt.Fprintf(&b, "  %s\n", step.Summary)
		}
	}

	final := result.Final
	fmt.Fprintf(&b, "final: pending_alerts=%d delivered_alerts=%d calendar_events=%d\n",
		final.PendingAlerts, final.DeliveredAlerts, final.CalendarEvents)
	for _, r := range final.Records {
		link := r.CalendarLinkID
		if link == "" {
			link = "-"
		}
		fmt.Fprintf(&b, "  %s: state=%s completed=%t fire_at=%s link=%s\n",
			r.Ref, r.State, r.Completed, r.FireAt, link)
	}

	return b.String()
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, []byte(FormatTrace(scenarioName, result)))
}
