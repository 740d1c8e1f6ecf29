// Package errs defines the error taxonomy shared by the pipeline components.
// Classification decides retry behaviour: validation and auth failures are
// never retried, transient failures are retried with backoff by the store
// client, I/O failures abort the single export job that hit them.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed input: bad symbol specs, non-positive
// bucket widths, non-finite prices or quantities.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransientError marks a failure that may succeed on retry: network
// timeouts, connection resets, 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// AuthError marks a rejected credential or session. Fatal for the current
// operation; must not be retried without credential rotation.
type AuthError struct {
	Op     string
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s rejected with status %d", e.Op, e.Status)
}

// IOError marks a local filesystem failure during export.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("io: %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// IsValidation reports whether err classifies as a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsTransient reports whether err classifies as a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsAuth reports whether err classifies as an AuthError.
func IsAuth(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}

// IsIO reports whether err classifies as an IOError.
func IsIO(err error) bool {
	var io *IOError
	return errors.As(err, &io)
}
