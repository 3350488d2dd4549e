package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/sentinel/internal/alert"
	"github.com/roach88/sentinel/internal/config"
	"github.com/roach88/sentinel/internal/dispatch"
	"github.com/roach88/sentinel/internal/outbox"
	"github.com/roach88/sentinel/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failures, failed dispatch
	ExitCommandError = 2 // Command error (bad arguments, database cannot be opened, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set when the command already wrote its error response.
	Reported bool
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
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
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
	ErrWriter io.Writer // text-mode errors (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // store error code or E_* constant
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with fmt, so result types implement
// fmt.Stringer for their human-readable form.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format. JSON goes to Writer
// like any other response; text goes to ErrWriter.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	w := f.errWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err with the code and details ErrorCode derives from it.
func (f *OutputFormatter) Fail(err error) error {
	code, details := ErrorCode(err)
	return f.Error(code, err.Error(), details)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// ErrorCode classifies err for CLI output. Store errors keep their own
// code and carry the record involved as details.
func ErrorCode(err error) (string, any) {
	var se *store.Error
	if errors.As(err, &se) {
		details := map[string]string{"op": se.Op}
		if se.Collection != "" {
			details["collection"] = string(se.Collection)
		}
		if se.ID != "" {
			details["id"] = se.ID
		}
		return string(se.Code), details
	}
	var ce *config.ConfigError
	if errors.As(err, &ce) {
		return "E_CONFIG_" + string(ce.Type), nil
	}

	switch {
	case errors.Is(err, outbox.ErrAlreadySent):
		return "E_ALREADY_SENT", nil
	case errors.Is(err, dispatch.ErrUnknownItem):
		return string(store.ErrCodeNotFound), nil
	case errors.Is(err, alert.ErrInvalidPosition):
		return "E_INVALID_POSITION", nil
	case errors.Is(err, store.ErrNotReady):
		return "E_NOT_READY", nil
	}
	if GetExitCode(err) == ExitCommandError {
		return "E_COMMAND", nil
	}
	return "E_FAILED", nil
}
