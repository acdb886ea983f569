package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested item doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrBadToken is returned when a continuation token can't be decoded.
	ErrBadToken = errors.New("invalid continuation token")
)

// StatusError carries an HTTP-shaped status code so callers can distinguish
// permanent client failures from transient ones.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storage error (status %d): %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// WithStatus wraps err with a status code.
func WithStatus(code int, err error) error {
	if err == nil {
		return nil
	}
	return &StatusError{Code: code, Err: err}
}

// StatusOf returns the status code attached to err, or 0 if none.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsRetryable reports whether err is worth retrying. Client errors in the
// 4xx range are permanent, except 429 which signals throttling. Errors with
// no status classification are assumed transient.
func IsRetryable(err error) bool {
	code := StatusOf(err)
	if code == 429 {
		return true
	}
	if code >= 400 && code < 500 {
		return false
	}
	return true
}
