package client

import (
	"errors"
	"fmt"
)

// ErrNotFound means the server answered 404. It is never retried.
var ErrNotFound = errors.New("resource not found")

// TransientError is a failed attempt that may succeed if repeated: a network
// error or any non-2xx status other than 404.
type TransientError struct {
	StatusCode int // zero for network-level failures
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is, or wraps, a *TransientError.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// ExhaustedRetriesError is returned once the retry budget is spent.
// Cause is the error of the final attempt.
type ExhaustedRetriesError struct {
	Attempts int
	Cause    error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Cause
}
