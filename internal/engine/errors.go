package engine

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by awaitable operations when the engine's loop
// has exited and can no longer process events.
var ErrStopped = errors.New("engine stopped")

// ErrCloseInProgress is returned when CloseSession is called while a
// previous close (or a session switch) is already tearing the session down.
var ErrCloseInProgress = errors.New("session close already in progress")

// SaveError represents a failed persist attempt.
//
// The engine's retry policy does not distinguish failure kinds - both
// transient and permanent failures are retried indefinitely while the
// session stays open - but the kind is recorded for diagnostics, attempt
// history, and host UI.
type SaveError struct {
	// Code identifies the error category.
	Code SaveErrorCode

	// Message is a human-readable description.
	Message string

	// AttemptToken identifies the failed persist attempt.
	AttemptToken string

	// RecordID identifies the affected record.
	RecordID string

	// Err is the underlying cause, if any.
	Err error
}

// SaveErrorCode categorizes save failures.
type SaveErrorCode string

const (
	// ErrCodeTransient indicates a failure that would plausibly clear on
	// its own (timeout, connection refused, storage busy).
	ErrCodeTransient SaveErrorCode = "TRANSIENT"

	// ErrCodePermanent indicates a failure that will not clear without
	// intervention (validation rejection, record gone, schema mismatch).
	ErrCodePermanent SaveErrorCode = "PERMANENT"
)

// Error implements the error interface.
func (e *SaveError) Error() string {
	if e.RecordID != "" && e.AttemptToken != "" {
		return fmt.Sprintf("%s: %s (record=%s, attempt=%s)", e.Code, e.Message, e.RecordID, e.AttemptToken)
	}
	if e.RecordID != "" {
		return fmt.Sprintf("%s: %s (record=%s)", e.Code, e.Message, e.RecordID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *SaveError) Unwrap() error {
	return e.Err
}

// IsPermanent returns true if the error is a permanent save failure.
// Uses errors.As to handle wrapped errors.
func IsPermanent(err error) bool {
	var se *SaveError
	if errors.As(err, &se) {
		return se.Code == ErrCodePermanent
	}
	return false
}

// NewTransientError creates a SaveError for a retryable failure.
func NewTransientError(msg string, cause error) *SaveError {
	return &SaveError{
		Code:    ErrCodeTransient,
		Message: msg,
		Err:     cause,
	}
}

// NewPermanentError creates a SaveError for a non-retryable failure.
func NewPermanentError(msg string, cause error) *SaveError {
	return &SaveError{
		Code:    ErrCodePermanent,
		Message: msg,
		Err:     cause,
	}
}

// classify normalizes a port error into a *SaveError. Errors the port did
// not classify itself are treated as transient, which keeps them inside
// the retry loop rather than stranding the session.
func classify(err error, recordID, token string) *SaveError {
	var se *SaveError
	if errors.As(err, &se) {
		out := *se
		if out.RecordID == "" {
			out.RecordID = recordID
		}
		if out.AttemptToken == "" {
			out.AttemptToken = token
		}
		return &out
	}
	return &SaveError{
		Code:         ErrCodeTransient,
		Message:      err.Error(),
		RecordID:     recordID,
		AttemptToken: token,
		Err:          err,
	}
}
