package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/remindsync/internal/reminder"
)

// Status filters List results.
type Status string

const (
	StatusAll       Status = "all"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

const selectColumns = `
	SELECT id, notification_id, title, note, fire_at, completed, calendar_link_id, created_at, updated_at
	FROM reminders`

// Get returns reminder id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*reminder.Reminder, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reminder %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder %d: %w", id, err)
	}
	return r, nil
}

// GetByNotificationID returns the reminder owning notificationID, or ErrNotFound.
func (s *Store) GetByNotificationID(ctx context.Context, notificationID string) (*reminder.Reminder, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE notification_id = ?`, notificationID)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reminder %s: %w", notificationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder %s: %w", notificationID, err)
	}
	return r, nil
}

// List returns reminders with the given status ordered by fire time.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) List(ctx context.Context, status Status) ([]*reminder.Reminder, error) {
	query := selectColumns
	var args []any
	switch status {
	case StatusPending:
		query += ` WHERE completed = ?`
		args = append(args, false)
	case StatusCompleted:
		query += ` WHERE completed = ?`
		args = append(args, true)
	case StatusAll, "":
	default:
		return nil, fmt.Errorf("list reminders: unknown status %q", status)
	}
	query += ` ORDER BY fire_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	reminders := []*reminder.Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("list reminders: %w", err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}

	return reminders, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(row scanner) (*reminder.Reminder, error) {
	var (
		r                           reminder.Reminder
		fireAt, createdAt, updateAt int64
		link                        sql.NullString
	)
	if err := row.Scan(
		&r.ID,
		&r.NotificationID,
		&r.Title,
		&r.Note,
		&fireAt,
		&r.Completed,
		&link,
		&createdAt,
		&updateAt,
	); err != nil {
		return nil, err
	}
	r.FireAt = fromMillis(fireAt)
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updateAt)
	r.CalendarLinkID = link.String
	return &r, nil
}
