package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/remindsync/internal/calendar"
	"github.com/roach88/remindsync/internal/permission"
)

// EventStore is an in-memory calendar.Service that records every call.
//
// Event IDs are "ev-1", "ev-2", ... in creation order. Every operation is
// refused with calendar.ErrNotAuthorized while the status is not authorized.
type EventStore struct {
	mu     sync.Mutex
	rec    *Recorder
	status permission.Status
	answer bool
	nextID int
	events map[string]calendar.Event

	failCreate error
	failUpdate error
	failDelete error
}

// NewEventStore creates a store that grants authorization when asked.
func NewEventStore(rec *Recorder) *EventStore {
	return &EventStore{
		rec:    rec,
		answer: true,
		events: make(map[string]calendar.Event),
	}
}

// SetAnswer sets the response to the first authorization request.
func (s *EventStore) SetAnswer(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = granted
}

// SetStatus forces the authorization status.
func (s *EventStore) SetStatus(st permission.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// FailNextCreate makes the next CreateEvent return err.
func (s *EventStore) FailNextCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = err
}

// FailNextUpdate makes the next UpdateEvent return err.
func (s *EventStore) FailNextUpdate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdate = err
}

// FailNextDelete makes the next DeleteEvent return err.
func (s *EventStore) FailNextDelete(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete = err
}

// Vanish deletes an event behind the adapter's back, as a user deleting it
// in the calendar application would.
func (s *EventStore) Vanish(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
}

// Event returns the stored event for id.
func (s *EventStore) Event(id string) (calendar.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	return ev, ok
}

// Len returns the number of stored events.
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *EventStore) AuthorizationStatus(context.Context) (permission.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

func (s *EventStore) RequestAuthorization(context.Context) (bool, error) {
	s.mu.Lock()
	if s.status == permission.StatusNotDetermined {
		if s.answer {
			s.status = permission.StatusAuthorized
		} else {
			s.status = permission.StatusDenied
		}
	}
	granted := s.status == permission.StatusAuthorized
	s.mu.Unlock()

	s.rec.recordResult("calendar.request_authorization", "", "", grantResult(granted))
	return granted, nil
}

func (s *EventStore) CreateEvent(_ context.Context, ev calendar.Event) (string, error) {
	s.mu.Lock()
	var (
		id  string
		err error
	)
	switch {
	case s.status != permission.StatusAuthorized:
		err = calendar.ErrNotAuthorized
	case s.failCreate != nil:
		err = s.failCreate
		s.failCreate = nil
	default:
		s.nextID++
		id = fmt.Sprintf("ev-%d", s.nextID)
		s.events[id] = ev
	}
	s.mu.Unlock()

	s.rec.record("calendar.create", id, "start="+ev.Start.UTC().Format(time.RFC3339), err)
	return id, err
}

func (s *EventStore) FetchEvent(_ context.Context, id string) (*calendar.Event, error) {
	s.mu.Lock()
	if s.status != permission.StatusAuthorized {
		s.mu.Unlock()
		s.rec.record("calendar.fetch", id, "", calendar.ErrNotAuthorized)
		return nil, calendar.ErrNotAuthorized
	}
	ev, ok := s.events[id]
	s.mu.Unlock()

	s.rec.recordResult("calendar.fetch", id, "", presence(ok))
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (s *EventStore) UpdateEvent(_ context.Context, id string, ev calendar.Event) error {
	s.mu.Lock()
	var err error
	_, ok := s.events[id]
	switch {
	case s.status != permission.StatusAuthorized:
		err = calendar.ErrNotAuthorized
	case s.failUpdate != nil:
		err = s.failUpdate
		s.failUpdate = nil
	case !ok:
		err = calendar.ErrEventNotFound
	default:
		s.events[id] = ev
	}
	s.mu.Unlock()

	s.rec.record("calendar.update", id, "start="+ev.Start.UTC().Format(time.RFC3339), err)
	return err
}

func (s *EventStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	var err error
	_, ok := s.events[id]
	switch {
	case s.status != permission.StatusAuthorized:
		err = calendar.ErrNotAuthorized
	case s.failDelete != nil:
		err = s.failDelete
		s.failDelete = nil
	case !ok:
		err = calendar.ErrEventNotFound
	default:
		delete(s.events, id)
	}
	s.mu.Unlock()

	s.rec.record("calendar.delete", id, "", err)
	return err
}
