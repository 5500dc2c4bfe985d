package session

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no active session matches (user id, digest).
	// Callers must not distinguish it from ErrUnauthorized towards clients.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnauthorized is returned when credentials or a presented session are rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPersistence matches every PersistenceError.
	ErrPersistence = errors.New("session persistence failure")

	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("invalid session input")

	// ErrDuplicateDigest is returned by stores when (user id, digest) already exists.
	// The manager reports it as a PersistenceError; it means the generator failed.
	ErrDuplicateDigest = errors.New("duplicate session digest")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// PersistenceError reports a failed store call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "session: " + e.Op + ": persistence failure"
	}
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPersistence) match.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Timeout reports whether the store call hit its deadline or was cancelled.
// Such failures are retryable.
func (e *PersistenceError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, context.Canceled)
}

// ValidationError reports malformed input to a manager operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session: invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IsTimeout reports whether err carries a retryable persistence timeout.
func IsTimeout(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Timeout()
}
