// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Ledger error taxonomy. Every error returned by the validation, storage and
// ledger packages wraps exactly one of these.
var (
	// ErrValidation marks bad input. Nothing was persisted.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence marks a storage failure. The operation was rolled back.
	ErrPersistence = errors.New("persistence failure")
	// ErrDanglingReference marks a row pointing at a row that no longer exists.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrNotFound marks a lookup by identifier with no match.
	ErrNotFound = errors.New("not found")
	// ErrReferenced marks a delete refused because other rows still point at the target.
	ErrReferenced = errors.New("still referenced")
	// ErrDuplicateEntry marks an insert whose identifier already exists.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// NotFoundError builds an ErrNotFound for the given entity and identifier.
func NotFoundError(entity, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, entity, id)
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// Describe turns a ledger error into a short message suitable for a terminal.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Error()
	}

	switch {
	case errors.Is(err, ErrValidation):
		return "Invalid input: " + err.Error()
	case errors.Is(err, ErrNotFound):
		return "Nothing found: " + err.Error()
	case errors.Is(err, ErrReferenced):
		return "Still in use: " + err.Error()
	case errors.Is(err, ErrDanglingReference):
		return "Ledger integrity problem, run 'tally balances verify': " + err.Error()
	case errors.Is(err, ErrPersistence):
		return "Could not save changes: " + err.Error()
	default:
		return err.Error()
	}
}
