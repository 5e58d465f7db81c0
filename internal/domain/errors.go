package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the pipeline. Handlers map these onto HTTP statuses in
// one place; everything else wraps and annotates.
var (
	// ErrUnauthorized covers a missing, malformed or expired credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest covers a missing or unusable required input.
	ErrBadRequest = errors.New("bad request")
)

// OrchestrationError reports a downstream worker or service that answered
// with an unexpected status or an unusable payload.
type OrchestrationError struct {
	Stage string
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// Orchestration wraps err as an orchestration failure at the given stage.
func Orchestration(stage string, err error) error {
	return &OrchestrationError{Stage: stage, Err: err}
}

// ValidationError reports a structured completion that failed the five-field
// schema. No record is persisted when this is returned.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("structured check-in rejected: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
