// Package permission tracks and requests authorization for the two
// capabilities the sync engine depends on.
//
// Grant state is cached after each check or request and refreshed lazily. The
// cache is not invalidated when the user revokes access outside the
// application; adapters report such refusals through Revoked, after which the
// next Ensure call re-requests. The gate never retries: a denial is returned
// once and surfaced.
package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Capability names an independently authorized OS capability.
type Capability string

const (
	Alerting      Capability = "alerting"
	CalendarWrite Capability = "calendar"
)

// Status is the authorization status reported by an external service.
type Status int

const (
	StatusNotDetermined Status = iota
	StatusDenied
	StatusAuthorized
)

func (s Status) String() string {
	switch s {
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	default:
		return "not_determined"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "not_determined":
		return StatusNotDetermined, nil
	case "denied":
		return StatusDenied, nil
	case "authorized":
		return StatusAuthorized, nil
	}
	return StatusNotDetermined, fmt.Errorf("unknown authorization status %q", s)
}

// ParseCapability accepts "alerting" or "calendar".
func ParseCapability(s string) (Capability, error) {
	switch c := Capability(s); c {
	case Alerting, CalendarWrite:
		return c, nil
	}
	return "", fmt.Errorf("unknown capability %q (want alerting or calendar)", s)
}

// Authorizer is the permission surface of an external service.
type Authorizer interface {
	// AuthorizationStatus reports the current status without prompting.
	AuthorizationStatus(ctx context.Context) (Status, error)

	// RequestAuthorization issues the OS-level request and reports the result.
	// An already-determined status is returned without prompting again.
	RequestAuthorization(ctx context.Context) (bool, error)
}

// Gate caches grant state for Alerting and CalendarWrite.
//
// Thread-safety: all methods are safe for concurrent use. The lock is never
// held across a call into an Authorizer.
type Gate struct {
	mu          sync.Mutex
	granted     map[Capability]bool
	authorizers map[Capability]Authorizer
	logger      *slog.Logger
}

// New creates a gate over the alerting and calendar authorizers.
// Nothing is granted until Refresh or Ensure observes a grant.
func New(alerting, calendar Authorizer, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		granted: make(map[Capability]bool, 2),
		authorizers: map[Capability]Authorizer{
			Alerting:      alerting,
			CalendarWrite: calendar,
		},
		logger: logger,
	}
}

// Granted reports the cached grant state. Never blocks on an external service.
func (g *Gate) Granted(c Capability) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted[c]
}

// Grants is a snapshot of both capabilities.
type Grants struct {
	Alerting bool `json:"alerting"`
	Calendar bool `json:"calendar"`
}

// Snapshot returns the cached grant state of both capabilities.
func (g *Gate) Snapshot() Grants {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Grants{Alerting: g.granted[Alerting], Calendar: g.granted[CalendarWrite]}
}

// Refresh re-reads the current status of both capabilities without prompting.
func (g *Gate) Refresh(ctx context.Context) {
	for _, c := range []Capability{Alerting, CalendarWrite} {
		status, err := g.authorizers[c].AuthorizationStatus(ctx)
		if err != nil {
			g.logger.Warn("authorization status check failed", "capability", c, "error", err)
			continue
		}
		g.set(c, status == StatusAuthorized)
	}
}

// Ensure returns true if c is granted, issuing a request if it is not.
// Request errors count as a denial.
func (g *Gate) Ensure(ctx context.Context, c Capability) bool {
	if g.Granted(c) {
		return true
	}

	auth := g.authorizers[c]
	if status, err := auth.AuthorizationStatus(ctx); err == nil && status == StatusAuthorized {
		g.set(c, true)
		return true
	}

	granted, err := auth.RequestAuthorization(ctx)
	if err != nil {
		g.logger.Warn("authorization request failed", "capability", c, "error", err)
		granted = false
	}
	g.set(c, granted)
	if !granted {
		g.logger.Info("authorization denied", "capability", c)
	}
	return granted
}

// EnsureAlertingGranted is Ensure(ctx, Alerting).
func (g *Gate) EnsureAlertingGranted(ctx context.Context) bool {
	return g.Ensure(ctx, Alerting)
}

// EnsureCalendarGranted is Ensure(ctx, CalendarWrite).
func (g *Gate) EnsureCalendarGranted(ctx context.Context) bool {
	return g.Ensure(ctx, CalendarWrite)
}

// Revoked records that a service refused c despite a cached grant.
func (g *Gate) Revoked(c Capability) {
	g.logger.Info("capability revoked by service", "capability", c)
	g.set(c, false)
}

func (g *Gate) set(c Capability, granted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.granted[c] = granted
}
