package reminder

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError describes one caller-correctable defect in a desired state.
type ValidationError struct {
	Field   string // "title" | "fire_at"
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is the set of defects found in one desired state.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a normalized desired state against now.
// Returns nil when the state may be scheduled.
func Validate(d Desired, now time.Time) ValidationErrors {
	var errs ValidationErrors
	if d.Title == "" {
		errs = append(errs, ValidationError{Field: "title", Message: "title is required"})
	}
	if d.FireAt.IsZero() {
		errs = append(errs, ValidationError{Field: "fire_at", Message: "fire time is required"})
	} else if !d.FireAt.After(now) {
		errs = append(errs, ValidationError{
			Field:   "fire_at",
			Message: fmt.Sprintf("fire time %s is not in the future", d.FireAt.Format(time.RFC3339)),
		})
	}
	return errs
}
