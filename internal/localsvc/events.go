package localsvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/remindsync/internal/calendar"
)

// StoredEvent is a calendar event with its identifier.
type StoredEvent struct {
	ID string `json:"id"`
	calendar.Event
}

// Calendar is a calendar.Service backed by the events table.
type Calendar struct {
	authorizer
	db *sql.DB
}

var _ calendar.Service = (*Calendar)(nil)

// CreateEvent stores ev under a fresh UUIDv7 identifier.
func (c *Calendar) CreateEvent(ctx context.Context, ev calendar.Event) (string, error) {
	if err := c.requireAuthorized(ctx); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate event id: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO events (id, title, notes, start_at, end_at, alarm_offset) VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), ev.Title, ev.Notes, toMillis(ev.Start), toMillis(ev.End), ev.AlarmOffset.Milliseconds())
	if err != nil {
		return "", fmt.Errorf("store event: %w", err)
	}
	return id.String(), nil
}

// FetchEvent returns nil, nil when no event has the id.
func (c *Calendar) FetchEvent(ctx context.Context, id string) (*calendar.Event, error) {
	if err := c.requireAuthorized(ctx); err != nil {
		return nil, err
	}
	ev, err := c.get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", id, err)
	}
	return &ev.Event, nil
}

// UpdateEvent overwrites event id. Returns calendar.ErrEventNotFound when it
// does not exist.
func (c *Calendar) UpdateEvent(ctx context.Context, id string, ev calendar.Event) error {
	if err := c.requireAuthorized(ctx); err != nil {
		return err
	}
	result, err := c.db.ExecContext(ctx, `
		UPDATE events SET title = ?, notes = ?, start_at = ?, end_at = ?, alarm_offset = ? WHERE id = ?
	`, ev.Title, ev.Notes, toMillis(ev.Start), toMillis(ev.End), ev.AlarmOffset.Milliseconds(), id)
	if err != nil {
		return fmt.Errorf("update event %s: %w", id, err)
	}
	return requireRow(result, id)
}

// DeleteEvent removes event id. Returns calendar.ErrEventNotFound when it
// does not exist.
func (c *Calendar) DeleteEvent(ctx context.Context, id string) error {
	if err := c.requireAuthorized(ctx); err != nil {
		return err
	}
	result, err := c.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return requireRow(result, id)
}

// List returns every event ordered by start time. It ignores authorization,
// like the user browsing their own calendar.
func (c *Calendar) List(ctx context.Context) ([]StoredEvent, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, notes, start_at, end_at, alarm_offset FROM events ORDER BY start_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []StoredEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Remove deletes event id outside the application, the way a user deletes
// it in their calendar app. Missing events are ignored.
func (c *Calendar) Remove(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove event %s: %w", id, err)
	}
	return nil
}

func (c *Calendar) requireAuthorized(ctx context.Context) error {
	ok, err := c.authorized(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return calendar.ErrNotAuthorized
	}
	return nil
}

func (c *Calendar) get(ctx context.Context, id string) (StoredEvent, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, title, notes, start_at, end_at, alarm_offset FROM events WHERE id = ?
	`, id)
	return scanEvent(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (StoredEvent, error) {
	var (
		ev         StoredEvent
		start, end int64
		offset     int64
	)
	if err := row.Scan(&ev.ID, &ev.Title, &ev.Notes, &start, &end, &offset); err != nil {
		return StoredEvent{}, err
	}
	ev.Start = fromMillis(start)
	ev.End = fromMillis(end)
	ev.AlarmOffset = time.Duration(offset) * time.Millisecond
	return ev, nil
}

func requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("event %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("event %s: %w", id, calendar.ErrEventNotFound)
	}
	return nil
}
