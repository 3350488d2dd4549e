package store

import (
	"errors"
	"fmt"

	"github.com/roach88/sentinel/internal/record"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a required record is absent. Plain gets and
	// deletes of absent ids do not produce it.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConstraintViolation indicates a write was rejected before
	// persisting because it would break a record or reference constraint.
	ErrCodeConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"

	// ErrCodeMigrationFailure indicates the schema upgrade failed and the
	// store was not opened.
	ErrCodeMigrationFailure ErrorCode = "MIGRATION_FAILURE"

	// ErrCodeIOFailure indicates the storage backend failed. Not retried.
	ErrCodeIOFailure ErrorCode = "IO_FAILURE"
)

// ErrNotReady is returned by every operation on a store that is not open.
var ErrNotReady = errors.New("store not ready")

// errAborted rolls back a transaction whose callback failed; the caller
// reports the callback's own error.
var errAborted = errors.New("transaction aborted")

// Error is the error type returned by store operations.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the store operation ("put", "delete trap", "migrate v3").
	Op string

	// Collection and ID identify the record involved, when there is one.
	Collection record.Collection
	ID         string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Collection != "" {
		msg += fmt.Sprintf(" %s", e.Collection)
	}
	if e.ID != "" {
		msg += fmt.Sprintf(" %q", e.ID)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsNotFound returns true if err is a NOT_FOUND store error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsConstraintViolation returns true if err is a CONSTRAINT_VIOLATION store error.
func IsConstraintViolation(err error) bool { return hasCode(err, ErrCodeConstraintViolation) }

// IsMigrationFailure returns true if err is a MIGRATION_FAILURE store error.
func IsMigrationFailure(err error) bool { return hasCode(err, ErrCodeMigrationFailure) }

// IsIOFailure returns true if err is an IO_FAILURE store error.
func IsIOFailure(err error) bool { return hasCode(err, ErrCodeIOFailure) }

func notFound(op string, c record.Collection, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, Collection: c, ID: id, Message: "record not found"}
}

func constraintViolation(op string, c record.Collection, id, message string, err error) *Error {
	return &Error{Code: ErrCodeConstraintViolation, Op: op, Collection: c, ID: id, Message: message, Err: err}
}

func ioError(op string, c record.Collection, id string, err error) *Error {
	return &Error{Code: ErrCodeIOFailure, Op: op, Collection: c, ID: id, Err: err}
}

func migrationFailure(op string, err error) *Error {
	return &Error{Code: ErrCodeMigrationFailure, Op: op, Err: err}
}

// asStoreError keeps typed store errors and classifies anything else as
// an IO failure.
func asStoreError(op string, err error) error {
	var se *Error
	if errors.As(err, &se) || errors.Is(err, ErrNotReady) {
		return err
	}
	return ioError(op, "", "", err)
}
