// Package service binds the sync engine to durable reminder storage.
//
// Every operation loads the current record, runs the engine and persists
// exactly what the Outcome says, including after a partial failure.
// Operations on the same reminder are serialized.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/remindsync/internal/engine"
	"github.com/roach88/remindsync/internal/reminder"
	"github.com/roach88/remindsync/internal/store"
)

// Store is the record storage the service persists outcomes to.
type Store interface {
	Insert(ctx context.Context, r *reminder.Reminder) (*reminder.Reminder, error)
	Update(ctx context.Context, r *reminder.Reminder) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*reminder.Reminder, error)
	List(ctx context.Context, status store.Status) ([]*reminder.Reminder, error)
}

// Reminders is the application-level reminder API.
type Reminders struct {
	engine *engine.Engine
	store  Store
	locks  *keyedMutex
	logger *slog.Logger
}

// New creates a Reminders service.
func New(e *engine.Engine, s Store, logger *slog.Logger) *Reminders {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reminders{engine: e, store: s, locks: newKeyedMutex(), logger: logger}
}

// Create saves a new reminder. The returned outcome carries the stored record.
func (s *Reminders) Create(ctx context.Context, d reminder.Desired) (*engine.Outcome, error) {
	out, err := s.engine.Save(ctx, d)
	return s.persist(ctx, out, err)
}

// Edit applies d to reminder id.
func (s *Reminders) Edit(ctx context.Context, id int64, d reminder.Desired) (*engine.Outcome, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.Edit(ctx, existing, d)
	return s.persist(ctx, out, err)
}

// Toggle flips the completion flag of reminder id.
func (s *Reminders) Toggle(ctx context.Context, id int64) (*engine.Outcome, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.ToggleCompleted(ctx, existing)
	return s.persist(ctx, out, err)
}

// Delete retires reminder id and erases its record.
func (s *Reminders) Delete(ctx context.Context, id int64) (*engine.Outcome, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.Delete(ctx, existing)
	return s.persist(ctx, out, err)
}

// Get returns reminder id.
func (s *Reminders) Get(ctx context.Context, id int64) (*reminder.Reminder, error) {
	return s.store.Get(ctx, id)
}

// List returns reminders with the given status ordered by fire time.
func (s *Reminders) List(ctx context.Context, status store.Status) ([]*reminder.Reminder, error) {
	return s.store.List(ctx, status)
}

// persist writes out as instructed and returns it with syncErr. A storage
// failure is joined onto syncErr.
func (s *Reminders) persist(ctx context.Context, out *engine.Outcome, syncErr error) (*engine.Outcome, error) {
	if out == nil {
		return nil, syncErr
	}
	ctx = context.WithoutCancel(ctx)

	var err error
	switch out.Persist {
	case engine.PersistInsert:
		var stored *reminder.Reminder
		stored, err = s.store.Insert(ctx, out.Reminder)
		if err == nil {
			out.Reminder = stored
		}
	case engine.PersistUpdate:
		err = s.store.Update(ctx, out.Reminder)
	case engine.PersistDelete:
		err = s.store.Delete(ctx, out.Reminder.ID)
	case engine.PersistNone:
	default:
		err = fmt.Errorf("unknown persist action %q", out.Persist)
	}

	if err != nil {
		s.logger.Error("outcome not persisted",
			"notification_id", out.Reminder.NotificationID,
			"persist", out.Persist,
			"error", err)
		return out, errors.Join(syncErr, fmt.Errorf("persist %s: %w", out.Persist, err))
	}
	return out, syncErr
}

// keyedMutex serializes work per reminder ID.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*keyedLock)}
}

func (k *keyedMutex) lock(id int64) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyedLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
