package services

import "fmt"

// ValidationError rejects malformed input immediately; never retried.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// NotFoundError covers absent sessions, questions and reports.
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// StateConflictError rejects an operation illegal in the session's current
// state (submit on paused, double end, answer out of order). No retry, no
// state mutation.
type StateConflictError struct {
	Code    string
	Message string
}

func (e *StateConflictError) Error() string { return e.Message }

// TransientGatewayError marks a timeout, 5xx or malformed response from the
// retrieval or completion gateway. Retried once at the gateway boundary, then
// degraded to a fallback value instead of propagating.
type TransientGatewayError struct {
	Gateway string
	Cause   error
}

func (e *TransientGatewayError) Error() string {
	return fmt.Sprintf("%s gateway failure: %v", e.Gateway, e.Cause)
}

func (e *TransientGatewayError) Unwrap() error { return e.Cause }

// PersistenceError surfaces a write failure as retryable to the caller.
type PersistenceError struct{ Cause error }

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence failure: %v", e.Cause) }

func (e *PersistenceError) Unwrap() error { return e.Cause }

// UnauthorizedError covers a valid request against someone else's session.
type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }
