package model

import "errors"

// ErrOrderNotFound is returned by stores and caches when no order
// exists for the given ID.
var ErrOrderNotFound = errors.New("order not found")

// ErrOrderFinal is returned when a status update targets an order that
// already reached a terminal state. Terminal rows are never mutated.
var ErrOrderFinal = errors.New("order already in terminal state")

// ValidationError rejects malformed caller input before enqueue.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// ExternalServiceError wraps a failure from a venue call. The simulator
// never produces one, but the pipeline contract allows it so a real
// venue adapter can slot in.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return e.Service + ": " + e.Err.Error()
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// DatabaseError wraps a persistence sink failure.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return "db " + e.Op + ": " + e.Err.Error()
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// PipelineError wraps any otherwise-uncaught failure of the execution
// state machine, including recovered panics.
type PipelineError struct {
	OrderID string
	Err     error
}

func (e *PipelineError) Error() string {
	return "pipeline " + e.OrderID + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error { return e.Err }
