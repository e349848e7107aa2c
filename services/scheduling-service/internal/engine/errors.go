package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when the referenced appointment id does not exist.
var ErrNotFound = errors.New("appointment not found")

// ValidationError is a business-rule rejection of malformed input: reversed
// intervals, unknown statuses, disallowed state transitions. The caller can
// always recover by correcting the input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError means the requested interval collides with an existing
// non-cancelled appointment for the consultant. It can surface at pre-check or
// at write time (storage-level exclusion constraint); callers treat both the
// same way.
type ConflictError struct {
	ConsultantID string
	Start        time.Time
	End          time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("consultant %s already booked between %s and %s",
		e.ConsultantID, e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339))
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
