package remote

import (
	"fmt"
	"strings"
)

// StatusError is an HTTP response with a non-success status code.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// DataError reports a malformed upstream payload: a missing field or a
// value of the wrong type. Retrying cannot fix it, so it is never retried.
type DataError struct {
	Service string
	Field   string
	Reason  string
}

// Error implements the error interface.
func (e *DataError) Error() string {
	detail := e.Reason
	if e.Field != "" {
		detail = fmt.Sprintf("%s (field %q)", e.Reason, e.Field)
	}
	return fmt.Sprintf("Received invalid data from %s service: %s. Please try again later.", e.Service, detail)
}

// NotFoundError reports a valid request that matched nothing upstream.
type NotFoundError struct {
	Service string
	Query   string
	Message string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("No results from %s service for %q.", e.Service, e.Query)
}

// ExhaustedError is returned when every attempt failed with a transient
// error. LastKind is a short label for the last failure ("HTTP 503",
// "timeout", "connection refused").
type ExhaustedError struct {
	Service  string
	Attempts int
	LastKind string
	LastErr  error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s service failed after %d attempts (last error: %s). Please try again later.",
		capitalize(e.Service), e.Attempts, e.LastKind)
}

// Unwrap returns the error from the last attempt.
func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
