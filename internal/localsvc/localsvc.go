package localsvc

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/remindsync/internal/permission"
)

//go:embed schema.sql
var schemaSQL string

// Policy answers authorization requests for a not-yet-determined capability.
type Policy string

const (
	PolicyGrant Policy = "grant"
	PolicyDeny  Policy = "deny"
)

// ParsePolicy accepts "grant" or "deny".
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyGrant, PolicyDeny:
		return p, nil
	}
	return "", fmt.Errorf("unknown grant policy %q (want grant or deny)", s)
}

// Services bundles the local alert center and calendar over one database.
type Services struct {
	Alerts   *AlertCenter
	Calendar *Calendar
	Grants   *Grants
}

// Open applies the local service schema to db and returns the services.
func Open(db *sql.DB, alerting, calendar Policy, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("apply local service schema: %w", err)
	}

	grants := &Grants{db: db}
	return &Services{
		Alerts: &AlertCenter{
			authorizer: authorizer{grants: grants, capability: permission.Alerting, policy: alerting, logger: logger},
			db:         db,
		},
		Calendar: &Calendar{
			authorizer: authorizer{grants: grants, capability: permission.CalendarWrite, policy: calendar, logger: logger},
			db:         db,
		},
		Grants: grants,
	}, nil
}

// Grants is the persisted authorization table.
type Grants struct {
	db *sql.DB
}

// Status returns the stored status for c. A capability never asked about is
// not determined.
func (g *Grants) Status(ctx context.Context, c permission.Capability) (permission.Status, error) {
	var raw string
	err := g.db.QueryRowContext(ctx, `SELECT status FROM grants WHERE capability = ?`, string(c)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return permission.StatusNotDetermined, nil
	}
	if err != nil {
		return permission.StatusNotDetermined, fmt.Errorf("read %s grant: %w", c, err)
	}
	return permission.ParseStatus(raw)
}

// Set stores status s for c, the way a user flips a switch in system settings.
func (g *Grants) Set(ctx context.Context, c permission.Capability, s permission.Status) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO grants (capability, status) VALUES (?, ?)
		ON CONFLICT(capability) DO UPDATE SET status = excluded.status
	`, string(c), s.String())
	if err != nil {
		return fmt.Errorf("write %s grant: %w", c, err)
	}
	return nil
}

// authorizer implements permission.Authorizer for one capability.
type authorizer struct {
	grants     *Grants
	capability permission.Capability
	policy     Policy
	logger     *slog.Logger
}

func (a authorizer) AuthorizationStatus(ctx context.Context) (permission.Status, error) {
	return a.grants.Status(ctx, a.capability)
}

func (a authorizer) RequestAuthorization(ctx context.Context) (bool, error) {
	status, err := a.grants.Status(ctx, a.capability)
	if err != nil {
		return false, err
	}
	if status == permission.StatusNotDetermined {
		status = permission.StatusDenied
		if a.policy == PolicyGrant {
			status = permission.StatusAuthorized
		}
		if err := a.grants.Set(ctx, a.capability, status); err != nil {
			return false, err
		}
		a.logger.Debug("authorization settled",
			"capability", a.capability,
			"status", status.String(),
			"policy", a.policy)
	}
	return status == permission.StatusAuthorized, nil
}

func (a authorizer) authorized(ctx context.Context) (bool, error) {
	status, err := a.grants.Status(ctx, a.capability)
	if err != nil {
		return false, err
	}
	return status == permission.StatusAuthorized, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
