// Package modelerr defines the single error kind raised by the scan-network
// model. The original implementation (p2654model, Python) raises one
// exception type, SchedulerError, from every layer of the tree; this package
// keeps that shape instead of growing a taxonomy of sentinel errors.
package modelerr

import "fmt"

// Error is the model's only error kind. It carries a human-readable message
// and is always surfaced to the caller, never retried.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return e.Msg
}

// New formats a Error the way fmt.Errorf would, without needing the %w verb
// since the model never wraps foreign error types.
func New(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}
