package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports missing or invalid input to a user-initiated operation.
// The operation is aborted with no partial state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreError wraps a persistence failure on a primary entity write.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// Store wraps err as a StoreError unless it already is one.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// AutosaveError is a persist failure of the script document.
// Background flushes record it; a manual save returns it.
type AutosaveError struct {
	DocumentID string
	Err        error
}

func (e *AutosaveError) Error() string {
	return fmt.Sprintf("autosave %s: %v", e.DocumentID, e.Err)
}
func (e *AutosaveError) Unwrap() error { return e.Err }

// PollError is a query failure of the log tail. Previously loaded rows are kept.
type PollError struct {
	Err error
}

func (e *PollError) Error() string { return fmt.Sprintf("poll: %v", e.Err) }
func (e *PollError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsStore(err error) bool {
	var v *StoreError
	return errors.As(err, &v)
}

func IsAutosave(err error) bool {
	var v *AutosaveError
	return errors.As(err, &v)
}

func IsPoll(err error) bool {
	var v *PollError
	return errors.As(err, &v)
}
