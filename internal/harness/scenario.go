package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultNow is the wall clock at the start of a scenario that sets no "now".
var DefaultNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Scenario defines a conformance test scenario.
// A scenario drives the sync engine through a sequence of user operations
// and outside events, then asserts on the recorded service calls and the
// final reminder records.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now is the starting wall clock in RFC 3339. Defaults to DefaultNow.
	Now string `yaml:"now,omitempty"`

	// Answers are the user's responses to the first authorization prompt of
	// each capability. Both default to granted.
	Answers Answers `yaml:"answers,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the recorded calls and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Answers configures the simulated permission prompts.
type Answers struct {
	Alerting *bool `yaml:"alerting,omitempty"`
	Calendar *bool `yaml:"calendar,omitempty"`
}

// Step operations. The first four run the engine; the rest change the world
// around it.
const (
	OpSave    = "save"
	OpEdit    = "edit"
	OpToggle  = "toggle"
	OpDelete  = "delete"
	OpVanish  = "vanish"  // user deletes the linked event in their calendar app
	OpRevoke  = "revoke"  // user turns a capability off in system settings
	OpGrant   = "grant"   // user turns a capability on in system settings
	OpFail    = "fail"    // next call to a service operation fails
	OpAdvance = "advance" // wall clock moves forward
	OpDeliver = "deliver" // pending alert fires
)

// Fail targets.
const (
	FailSchedule = "schedule"
	FailCreate   = "create"
	FailUpdate   = "update"
	FailDelete   = "delete"
)

// Step is one operation in a scenario.
type Step struct {
	Op string `yaml:"op"`

	// Ref names the reminder the step acts on. save binds it.
	Ref string `yaml:"ref,omitempty"`

	// Desired-state fields for save and edit. On edit, omitted fields keep
	// the reminder's current values.
	Title    *string `yaml:"title,omitempty"`
	Note     *string `yaml:"note,omitempty"`
	FireIn   string  `yaml:"fire_in,omitempty"` // Go duration from the current clock; save defaults to 1h
	Calendar *bool   `yaml:"calendar,omitempty"`

	// Capability for revoke and grant: alerting or calendar.
	Capability string `yaml:"capability,omitempty"`

	// Target and Error for fail.
	Target string `yaml:"target,omitempty"`
	Error  string `yaml:"error,omitempty"`

	// By is the Go duration for advance.
	By string `yaml:"by,omitempty"`

	// Expect validates the engine result of save, edit, toggle and delete.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Label is the short form used in traces, e.g. "save rent" or "revoke calendar".
func (s Step) Label() string {
	arg := s.Ref
	switch s.Op {
	case OpRevoke, OpGrant:
		arg = s.Capability
	case OpFail:
		arg = s.Target
	case OpAdvance:
		arg = s.By
	}
	if arg == "" {
		return s.Op
	}
	return s.Op + " " + arg
}

func (s Step) runsEngine() bool {
	switch s.Op {
	case OpSave, OpEdit, OpToggle, OpDelete:
		return true
	}
	return false
}

// Expect specifies the expected engine result. Omitted fields are not checked.
type Expect struct {
	// Error is "ok" or an error kind: VALIDATION, PERMISSION_DENIED, UNEXPECTED.
	Error      string   `yaml:"error,omitempty"`
	Capability string   `yaml:"capability,omitempty"`
	Partial    *bool    `yaml:"partial,omitempty"`
	State      string   `yaml:"state,omitempty"`
	Effects    []string `yaml:"effects,omitempty"` // exact, in order
	Warnings   *int     `yaml:"warnings,omitempty"`
}

// Assertion validates the recorded calls or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a call to Action (optionally with Key) was recorded
	// - "trace_order": first calls of Actions appear in this order
	// - "trace_count": Action was called exactly Count times
	// - "final_state": the record bound to Ref has the Expect fields
	// - "record_absent": no record is bound to Ref
	// - "pending_alerts": exactly Count alerts are pending
	// - "calendar_events": exactly Count events exist
	Type string `yaml:"type"`

	// Action is a service call name such as "notify.schedule".
	Action string `yaml:"action,omitempty"`

	// Key narrows trace_contains to one notification or event ID.
	Key string `yaml:"key,omitempty"`

	// Actions is the expected call order (used by trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Count is the expected number (trace_count, pending_alerts, calendar_events).
	Count int `yaml:"count,omitempty"`

	// Ref names a reminder (final_state, record_absent).
	Ref string `yaml:"ref,omitempty"`

	// Expect contains expected record fields (used by final_state).
	// Subset match: state, completed, calendar_linked, calendar_link_id,
	// title, note, notification_id, fire_at.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains  = "trace_contains"
	AssertTraceOrder     = "trace_order"
	AssertTraceCount     = "trace_count"
	AssertFinalState     = "final_state"
	AssertRecordAbsent   = "record_absent"
	AssertPendingAlerts  = "pending_alerts"
	AssertCalendarEvents = "calendar_events"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// StartTime returns the parsed Now, or DefaultNow.
func (s *Scenario) StartTime() (time.Time, error) {
	if s.Now == "" {
		return DefaultNow, nil
	}
	t, err := time.Parse(time.RFC3339, s.Now)
	if err != nil {
		return time.Time{}, fmt.Errorf("now: %w", err)
	}
	return t.UTC(), nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, err := s.StartTime(); err != nil {
		return err
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpSave, OpEdit, OpToggle, OpDelete, OpVanish, OpDeliver:
		if s.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for %s", index, s.Op)
		}
	case OpRevoke, OpGrant:
		if s.Capability != "alerting" && s.Capability != "calendar" {
			return fmt.Errorf("steps[%d]: capability must be alerting or calendar, got %q", index, s.Capability)
		}
	case OpFail:
		switch s.Target {
		case FailSchedule, FailCreate, FailUpdate, FailDelete:
		default:
			return fmt.Errorf("steps[%d]: unknown fail target %q", index, s.Target)
		}
		if s.Error == "" {
			return fmt.Errorf("steps[%d]: error is required for fail", index)
		}
	case OpAdvance:
		if _, err := time.ParseDuration(s.By); err != nil {
			return fmt.Errorf("steps[%d]: by: %w", index, err)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}

	if s.FireIn != "" {
		if _, err := time.ParseDuration(s.FireIn); err != nil {
			return fmt.Errorf("steps[%d]: fire_in: %w", index, err)
		}
	}

	if s.Expect != nil {
		if !s.runsEngine() {
			return fmt.Errorf("steps[%d]: expect is only valid for save, edit, toggle and delete", index)
		}
		switch strings.ToUpper(s.Expect.Error) {
		case "", "OK", "VALIDATION", "PERMISSION_DENIED", "UNEXPECTED":
		default:
			return fmt.Errorf("steps[%d].expect: unknown error kind %q", index, s.Expect.Error)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRecordAbsent:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for record_absent", index)
		}
	case AssertPendingAlerts, AssertCalendarEvents:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
