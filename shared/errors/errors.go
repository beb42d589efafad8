package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Use errors.Is against these to classify a failure.
var (
	ErrParse        = errors.New("parse error")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStore        = errors.New("store error")
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
	Kind       error // one of the Err* kinds, may be nil
	Err        error // underlying cause, may be nil
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

func (e *ErrorWithStatusCode) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ParseError reports a malformed inbound payload or identifier.
func ParseError(format string, a ...any) error {
	return &ErrorWithStatusCode{
		Message:    fmt.Sprintf(format, a...),
		StatusCode: http.StatusBadRequest,
		Kind:       ErrParse,
	}
}

// NotFound reports a referenced identity or node absent from the store.
func NotFound(format string, a ...any) error {
	return &ErrorWithStatusCode{
		Message:    fmt.Sprintf(format, a...),
		StatusCode: http.StatusNotFound,
		Kind:       ErrNotFound,
	}
}

// Unauthorized reports a caller without supervisor privilege. cause is kept
// so that callers can still tell a missing record apart.
func Unauthorized(cause error, format string, a ...any) error {
	return &ErrorWithStatusCode{
		Message:    fmt.Sprintf(format, a...),
		StatusCode: http.StatusForbidden,
		Kind:       ErrUnauthorized,
		Err:        cause,
	}
}

// StoreError wraps a transport or backend failure. It is never retried here.
func StoreError(cause error, op string) error {
	return &ErrorWithStatusCode{
		Message:    fmt.Sprintf("store %s failed: %v", op, cause),
		StatusCode: http.StatusBadGateway,
		Kind:       ErrStore,
		Err:        cause,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}

// StatusCode returns the HTTP status carried by err, or 500.
func StatusCode(err error) int {
	var e *ErrorWithStatusCode
	if errors.As(err, &e) && e.StatusCode != 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}
