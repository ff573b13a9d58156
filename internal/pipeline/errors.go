package pipeline

import (
	"errors"
	"fmt"

	"github.com/covassure/claimflow/internal/model"
	"github.com/covassure/claimflow/internal/parse"
)

// CollaboratorError marks a failure in an external collaborator (the
// text-generation provider, a similarity index) as opposed to a failure in
// the claim's own data. Collaborator failures are transient and retried;
// schema violations are not.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// classify wraps unrecognized errors as collaborator failures. Errors the
// workflow already understands pass through untouched.
func classify(collaborator string, err error) error {
	var parseErr *parse.ParseError
	var schemaErr *model.SchemaViolationError
	var stateErr *model.InvalidStateTransitionError
	var collabErr *CollaboratorError
	if errors.As(err, &parseErr) || errors.As(err, &schemaErr) ||
		errors.As(err, &stateErr) || errors.As(err, &collabErr) {
		return err
	}
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}

// retryable reports whether another attempt could plausibly succeed. Parse
// failures are retried with a clarified prompt; collaborator failures are
// retried as transient. Schema violations and illegal transitions are not
// retried, since repeating them yields the same answer.
func retryable(err error) bool {
	var parseErr *parse.ParseError
	if errors.As(err, &parseErr) {
		return true
	}
	var collabErr *CollaboratorError
	return errors.As(err, &collabErr)
}
