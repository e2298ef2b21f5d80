// Package tools provides the action registry the agent dispatches to.
//
// This file defines the error kinds a tool call can report.
package tools

import "fmt"

// ErrorKind classifies a failed tool call. Every kind is recoverable:
// the failure is shown to the model as an observation so it can adapt.
type ErrorKind string

const (
	// KindUnknownAction is a call to an action that is not registered.
	KindUnknownAction ErrorKind = "unknown_action"

	// KindInvalidArgs is a call with missing or malformed arguments.
	KindInvalidArgs ErrorKind = "invalid_args"

	// KindServiceUnavailable is an upstream service that kept failing
	// transiently or rejected the request.
	KindServiceUnavailable ErrorKind = "service_unavailable"

	// KindInvalidData is an upstream payload of the wrong shape.
	KindInvalidData ErrorKind = "invalid_data"

	// KindNotFound is a valid request that matched nothing.
	KindNotFound ErrorKind = "not_found"

	// KindUnavailable is an action whose backend is not configured.
	KindUnavailable ErrorKind = "unavailable"
)

// ErrToolFault is returned by Dispatch when a tool fails for reasons
// unrelated to the call itself: a cancelled context, a nil backend
// result, a programming error. Unlike a failed [Result], it ends the
// episode.
type ErrToolFault struct {
	ToolName string
	Err      error
}

// Error implements the error interface.
func (e *ErrToolFault) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.ToolName, e.Err)
}

// Unwrap returns the underlying error.
func (e *ErrToolFault) Unwrap() error {
	return e.Err
}
