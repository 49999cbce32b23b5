package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/remindsync/internal/permission"
)

// ErrorKind categorizes sync errors.
type ErrorKind string

const (
	// KindValidation: caller-correctable input defect. No side effects.
	KindValidation ErrorKind = "VALIDATION"

	// KindPermissionDenied: a capability was refused. Effects applied before
	// the refusal are listed in Applied and are not rolled back.
	KindPermissionDenied ErrorKind = "PERMISSION_DENIED"

	// KindUnexpected: an adapter failed for a reason not otherwise classified.
	KindUnexpected ErrorKind = "UNEXPECTED"
)

// Operation names used in errors and logs.
const (
	OpSave   = "save"
	OpEdit   = "edit"
	OpToggle = "toggle"
	OpDelete = "delete"
)

// SyncError is returned by every engine operation that did not fully succeed.
type SyncError struct {
	Kind ErrorKind

	// Op is the engine operation that failed.
	Op string

	// Capability names the failing side (empty for validation errors).
	Capability permission.Capability

	// Message is suitable for display to the user.
	Message string

	// Applied lists the effects that were applied before the failure.
	// Non-empty means the failure is partial.
	Applied []Effect

	Err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Capability != "" {
		fmt.Fprintf(&b, " (op=%s, capability=%s)", e.Op, e.Capability)
	} else {
		fmt.Fprintf(&b, " (op=%s)", e.Op)
	}
	return b.String()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Partial reports whether some effects were applied before the failure.
func (e *SyncError) Partial() bool {
	return len(e.Applied) > 0
}

// IsValidationError reports whether err is a validation SyncError.
func IsValidationError(err error) bool {
	return kindOf(err) == KindValidation
}

// IsPermissionDenied reports whether err is a permission SyncError for c.
// An empty c matches either capability.
func IsPermissionDenied(err error, c permission.Capability) bool {
	var se *SyncError
	if !errors.As(err, &se) || se.Kind != KindPermissionDenied {
		return false
	}
	return c == "" || se.Capability == c
}

// IsPartial reports whether err is a SyncError after which some effects stayed
// applied.
func IsPartial(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Partial()
}

func kindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
