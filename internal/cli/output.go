package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/remindsync/internal/config"
	"github.com/roach88/remindsync/internal/engine"
	"github.com/roach88/remindsync/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation refused or failed (validation, permission, scenarios failed)
	ExitCommandError = 2 // Command error (bad flags, config, database, unknown reminder)
)

// Error codes reported in the CLI envelope.
const (
	CodeValidation       = "E_VALIDATION"
	CodePermissionDenied = "E_PERMISSION_DENIED"
	CodeUnexpected       = "E_UNEXPECTED"
	CodeNotFound         = "E_NOT_FOUND"
	CodeConfig           = "E_CONFIG"
	CodeUsage            = "E_USAGE"
	CodeStore            = "E_STORE"
	CodeTestFailed       = "E_TEST_FAILED"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // payload; present on partial failures too
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E_VALIDATION", "E_NOT_FOUND", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with fmt, so payload types implement
// fmt.Stringer.
func (f *OutputFormatter) Success(data interface{}) error {
	return f.Result(data, nil)
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	return f.Result(nil, &CLIError{Code: code, Message: message, Details: details})
}

// Result outputs data together with an optional error. Both are present when
// an operation failed after some of its effects were applied.
func (f *OutputFormatter) Result(data interface{}, cliErr *CLIError) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: data, Error: cliErr}
		if cliErr != nil {
			resp.Status = "error"
		}
		encoder := json.NewEncoder(f.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(resp)
	}

	if data != nil {
		fmt.Fprintln(f.Writer, data)
	}
	if cliErr != nil {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", cliErr.Code, cliErr.Message)
		if f.Verbose && cliErr.Details != nil {
			fmt.Fprintf(f.Writer, "Details: %v\n", cliErr.Details)
		}
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// syncErrorDetails is the envelope detail of an engine.SyncError.
type syncErrorDetails struct {
	Op         string          `json:"op"`
	Capability string          `json:"capability,omitempty"`
	Partial    bool            `json:"partial"`
	Applied    []engine.Effect `json:"applied,omitempty"`
}

// classify maps an operation error to its envelope error and exit code.
func classify(err error) (*CLIError, int) {
	var se *engine.SyncError
	switch {
	case errors.As(err, &se):
		code := CodeUnexpected
		switch se.Kind {
		case engine.KindValidation:
			code = CodeValidation
		case engine.KindPermissionDenied:
			code = CodePermissionDenied
		}
		return &CLIError{
			Code:    code,
			Message: err.Error(),
			Details: syncErrorDetails{
				Op:         se.Op,
				Capability: string(se.Capability),
				Partial:    se.Partial(),
				Applied:    se.Applied,
			},
		}, ExitFailure
	case errors.Is(err, store.ErrNotFound):
		return &CLIError{Code: CodeNotFound, Message: err.Error()}, ExitCommandError
	case config.IsValidationError(err):
		return &CLIError{Code: CodeConfig, Message: err.Error()}, ExitCommandError
	}
	return &CLIError{Code: CodeStore, Message: err.Error()}, ExitCommandError
}

// report writes data and err through f and returns the matching exit error.
// data may be nil; it is shown even when err is set.
func report(f *OutputFormatter, data interface{}, err error) error {
	if err == nil {
		return f.Success(data)
	}
	cliErr, code := classify(err)
	if writeErr := f.Result(data, cliErr); writeErr != nil {
		return writeErr
	}
	return WrapExitError(code, cliErr.Code, err)
}
