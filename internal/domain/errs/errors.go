// Package errs defines the error taxonomy shared by the pricing, consolidation and
// lifecycle components. Every typed error matches its sentinel through errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is matched by InvalidTransitionError
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConflict is matched by ConflictError
	ErrConflict = errors.New("concurrent modification")

	// ErrConsistency is matched by ConsistencyError
	ErrConsistency = errors.New("pricing inconsistency")

	// ErrNotFound is matched by NotFoundError
	ErrNotFound = errors.New("not found")
)

// ValidationError reports malformed or missing input
type ValidationError struct {
	Field  string
	Reason string
}

// Validation creates a ValidationError
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

// Is reports whether target is ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidTransitionError reports a lifecycle guard failure
type InvalidTransitionError struct {
	From   string
	To     string
	Reason string
}

// InvalidTransition creates an InvalidTransitionError
func InvalidTransition(from, to, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to, Reason: reason}
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Is reports whether target is ErrInvalidTransition
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ConflictError reports an optimistic-concurrency mismatch. The caller must refetch
// before retrying.
type ConflictError struct {
	Entity   string
	ID       int64
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s %d expected %s, found %s", ErrConflict, e.Entity, e.ID, e.Expected, e.Actual)
}

// Is reports whether target is ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConsistencyError reports a pricing request that cannot be reconciled
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConsistency, e.Reason)
}

// Is reports whether target is ErrConsistency
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistency
}

// NotFoundError reports a missing document
type NotFoundError struct {
	Entity string
	ID     int64
	// Key replaces ID for documents looked up by a natural key
	Key string
}

// NotFound creates a NotFoundError
func NotFound(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s", e.Entity, e.Key, ErrNotFound)
	}
	return fmt.Sprintf("%s %d: %s", e.Entity, e.ID, ErrNotFound)
}

// Is reports whether target is ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
