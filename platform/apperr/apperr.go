// Package apperr provides the typed errors services return. The HTTP layer maps
// the Kind to a status code; the worker uses it to pick a retry delay.
package apperr

import (
	"errors"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	// KindConflict covers a busy conversation lock and a stale stage write. Both
	// are safe to retry.
	KindConflict
	// KindUnavailable indicates a dependency (Redis, the gateway) is temporarily unreachable.
	KindUnavailable
	KindInternal
)

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap keeps err reachable through errors.Is and errors.As.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches response details, e.g. field validation errors.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func Unavailable(message string) *Error {
	return New(KindUnavailable, message)
}

// GetKind returns KindUnknown when err carries no *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
