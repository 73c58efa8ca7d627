package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound means the item database answered 404. The site does not
	// distinguish a missing item from one without price history.
	ErrItemNotFound = errors.New("could not find price history: item does not exist or is a Neocash item")

	ErrMalformedDocument = errors.New("response body is not a parseable HTML document")
)

// ValidationError is returned for bad item identifiers before any request is made.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid item id %q: %s", e.Input, e.Reason)
}

// UnreachableError means the retry budget was spent against a failing endpoint.
type UnreachableError struct {
	Cause error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("item database unreachable: %v", e.Cause)
}

func (e *UnreachableError) Unwrap() error {
	return e.Cause
}

// MalformedPageError means a required field (name or image) is missing from the page.
type MalformedPageError struct {
	Field string
	Err   error
}

func (e *MalformedPageError) Error() string {
	if errors.Is(e.Err, ErrMalformedDocument) {
		return "malformed item page: " + e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed item page: missing field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("malformed item page: missing field %q", e.Field)
}

func (e *MalformedPageError) Unwrap() error {
	return e.Err
}

// MissingField builds the error extractors return for an absent required field.
func MissingField(field string) error {
	return &MalformedPageError{Field: field}
}

// MalformedNoticeError means an inflation banner is present but cannot be read.
type MalformedNoticeError struct {
	Reason string
}

func (e *MalformedNoticeError) Error() string {
	return "malformed inflation notice: " + e.Reason
}

// Kind returns a stable label for err, used in JSON output and metrics.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return "validation"
	}
	if errors.Is(err, ErrItemNotFound) {
		return "not_found"
	}
	var unreachable *UnreachableError
	if errors.As(err, &unreachable) {
		return "unreachable"
	}
	var notice *MalformedNoticeError
	if errors.As(err, &notice) {
		return "malformed_notice"
	}
	var page *MalformedPageError
	if errors.As(err, &page) || errors.Is(err, ErrMalformedDocument) {
		return "malformed_page"
	}
	return "other"
}

// IsRecoverable reports input problems the user can fix by entering another id.
// Everything else is an operation failure the system does not retry on its own.
func IsRecoverable(err error) bool {
	switch Kind(err) {
	case "validation", "not_found":
		return true
	default:
		return false
	}
}
