package testutil

import (
	"fmt"
	"strings"
	"sync"
)

// Call is one recorded request to a fake external service.
type Call struct {
	Seq    int64
	Op     string // e.g. "notify.schedule", "calendar.update"
	Key    string // notification or event ID; empty for authorization calls
	Detail string
	Result string // "ok", "absent", or the error text
}

// String renders the call as one trace line:
//
//	003 notify.schedule(notif-1) fire_at=2026-03-01T10:00:00Z -> ok
func (c Call) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%03d %s(%s)", c.Seq, c.Op, c.Key)
	if c.Detail != "" {
		b.WriteString(" ")
		b.WriteString(c.Detail)
	}
	b.WriteString(" -> ")
	b.WriteString(c.Result)
	return b.String()
}

// Recorder collects calls from the fakes in the order they happened.
// A single recorder is usually shared by a NotificationCenter and an EventStore.
type Recorder struct {
	mu    sync.Mutex
	clock *DeterministicClock
	calls []Call
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{clock: NewDeterministicClock()}
}

func (r *Recorder) record(op, key, detail string, err error) {
	result := "ok"
	if err != nil {
		result = err.Error()
	}
	r.recordResult(op, key, detail, result)
}

func (r *Recorder) recordResult(op, key, detail, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{
		Seq:    r.clock.Next(),
		Op:     op,
		Key:    key,
		Detail: detail,
		Result: result,
	})
}

// Calls returns a copy of all recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns how many calls of op were recorded.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Len returns the number of recorded calls.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Reset drops all calls and restarts sequence numbering.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.clock.Reset()
}

// Trace renders all calls, one per line, with a trailing newline.
func (r *Recorder) Trace() string {
	var b strings.Builder
	for _, c := range r.Calls() {
		b.WriteString(c.String())
		b.WriteString("\n")
	}
	return b.String()
}
