// Package harness provides a conformance testing framework for the reminder
// sync engine.
//
// A scenario is a YAML file describing user operations (save, edit, toggle,
// delete) interleaved with outside events: the user deleting the linked
// calendar event, revoking or granting a capability in system settings, a
// service call failing, the clock advancing, an alert firing. The harness
// runs the real engine against recording fakes from internal/testutil and
// applies every outcome to an in-memory record table the way a record owner
// would.
//
// # Scenario Format
//
//	name: stale_link_recovery
//	description: editing a reminder whose event was deleted recreates it
//	steps:
//	  - op: save
//	    ref: rent
//	    title: Pay rent
//	    calendar: true
//	  - op: vanish
//	    ref: rent
//	  - op: edit
//	    ref: rent
//	    fire_in: 3h
//	    expect:
//	      error: ok
//	      effects: [alert_cancelled, alert_scheduled, link_cleared, event_created]
//	assertions:
//	  - type: calendar_events
//	    count: 1
//
// Scenario files are decoded strictly: unknown fields are errors.
//
// # Golden Traces
//
// FormatTrace renders each step's service calls and engine result as text.
// Tests compare it against testdata/golden/{name}.golden with goldie; run
// with -update to regenerate.
package harness
