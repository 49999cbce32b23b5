package localsvc

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/remindsync/internal/notify"
)

// Alert is a scheduled or delivered alert.
type Alert struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	FireAt      time.Time  `json:"fire_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Delivered reports whether the alert has been shown.
func (a Alert) Delivered() bool {
	return a.DeliveredAt != nil
}

// AlertCenter is a notify.Service backed by the alerts table.
type AlertCenter struct {
	authorizer
	db *sql.DB
}

var _ notify.Service = (*AlertCenter)(nil)

// Schedule stores r as pending, replacing any alert with the same ID.
func (c *AlertCenter) Schedule(ctx context.Context, r notify.Request) error {
	ok, err := c.authorized(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return notify.ErrNotAuthorized
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO alerts (id, title, body, fire_at, delivered_at) VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			fire_at = excluded.fire_at,
			delivered_at = NULL
	`, r.ID, r.Title, r.Body, toMillis(r.FireAt))
	if err != nil {
		return fmt.Errorf("store alert %s: %w", r.ID, err)
	}
	return nil
}

// CancelPending removes a pending alert. Unknown IDs are not an error.
func (c *AlertCenter) CancelPending(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ? AND delivered_at IS NULL`, id); err != nil {
		return fmt.Errorf("cancel pending alert %s: %w", id, err)
	}
	return nil
}

// CancelDelivered removes a delivered alert. Unknown IDs are not an error.
func (c *AlertCenter) CancelDelivered(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ? AND delivered_at IS NOT NULL`, id); err != nil {
		return fmt.Errorf("cancel delivered alert %s: %w", id, err)
	}
	return nil
}

// List returns every alert ordered by fire time.
func (c *AlertCenter) List(ctx context.Context) ([]Alert, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, body, fire_at, delivered_at FROM alerts ORDER BY fire_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var (
			a         Alert
			fireAt    int64
			delivered *int64
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &fireAt, &delivered); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.FireAt = fromMillis(fireAt)
		if delivered != nil {
			at := fromMillis(*delivered)
			a.DeliveredAt = &at
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

// DeliverDue marks every pending alert whose fire time is at or before now
// as delivered and returns them.
func (c *AlertCenter) DeliverDue(ctx context.Context, now time.Time) ([]Alert, error) {
	alerts, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	due := []Alert{}
	for _, a := range alerts {
		if a.Delivered() || a.FireAt.After(now) {
			continue
		}
		if _, err := c.db.ExecContext(ctx,
			`UPDATE alerts SET delivered_at = ? WHERE id = ? AND delivered_at IS NULL`,
			toMillis(now), a.ID,
		); err != nil {
			return nil, fmt.Errorf("deliver alert %s: %w", a.ID, err)
		}
		at := now.UTC()
		a.DeliveredAt = &at
		due = append(due, a)
	}
	return due, nil
}
