package services

import (
	"errors"
	"fmt"
)

// Error classes. The HTTP layer maps them to status codes with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrProviderDegraded = errors.New("external service unavailable")
	ErrPersistence      = errors.New("persistence failure")
)

// Error carries a short message that is safe to show to the caller.
type Error struct {
	Kind error
	Msg  string
	// Cause is the internal error, if any. It is logged, never shown.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func persistenceError(msg string, cause error) error {
	return &Error{Kind: ErrPersistence, Msg: msg, Cause: cause}
}

// Message returns the caller-safe message of err.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Msg
	}
	return "internal server error"
}
