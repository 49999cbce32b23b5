package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/remindsync/internal/reminder"
)

// Insert stores a new reminder and returns it with its assigned ID.
// The given reminder is not modified.
func (s *Store) Insert(ctx context.Context, r *reminder.Reminder) (*reminder.Reminder, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders
		(notification_id, title, note, fire_at, completed, calendar_link_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.NotificationID,
		r.Title,
		r.Note,
		toMillis(r.FireAt),
		r.Completed,
		nullString(r.CalendarLinkID),
		toMillis(r.CreatedAt),
		toMillis(r.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert reminder: last insert id: %w", err)
	}

	stored := r.Clone()
	stored.ID = id
	return stored, nil
}

// Update overwrites the mutable fields of reminder r.ID.
// notification_id and created_at are never changed.
// Returns ErrNotFound if no such reminder exists.
func (s *Store) Update(ctx context.Context, r *reminder.Reminder) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reminders
		SET title = ?, note = ?, fire_at = ?, completed = ?, calendar_link_id = ?, updated_at = ?
		WHERE id = ?
	`,
		r.Title,
		r.Note,
		toMillis(r.FireAt),
		r.Completed,
		nullString(r.CalendarLinkID),
		toMillis(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update reminder %d: %w", r.ID, err)
	}
	return requireOneRow(result, r.ID)
}

// Delete erases reminder id. Returns ErrNotFound if no such reminder exists.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	return requireOneRow(result, id)
}

func requireOneRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reminder %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("reminder %d: %w", id, ErrNotFound)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
