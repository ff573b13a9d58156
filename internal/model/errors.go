package model

import "fmt"

// InvalidStateTransitionError indicates an operation was attempted against a
// claim whose current status does not permit it. It is a caller error and is
// never retried.
type InvalidStateTransitionError struct {
	ClaimID string
	From    Status
	Op      string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s not allowed for claim %s in status %s", e.Op, e.ClaimID, e.From)
}

// SchemaViolationError indicates parsed output passed syntactic parsing but
// failed domain validation (e.g. negative amount, future incident date).
// Retrying the same semantic input will not help, so it is surfaced
// immediately with the offending field noted.
type SchemaViolationError struct {
	Field  string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation on field %q: %s", e.Field, e.Reason)
}
