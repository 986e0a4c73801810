package core

import (
	"errors"
	"fmt"
)

// Sentinel errors, use with errors.Is.
var (
	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing transaction, account, card or category, or one
	// not owned by the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrStoreTransaction marks an atomic unit that failed to begin or commit.
	ErrStoreTransaction = errors.New("store transaction failed")

	// ErrRecurrenceItem marks a single recurring parent that failed to materialize.
	ErrRecurrenceItem = errors.New("recurrence item failed")
)

type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	Kind string // transaction, bank_account, credit_card, category
	ID   string
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StoreTransactionError wraps a begin/commit failure of an atomic unit.
type StoreTransactionError struct {
	Op  string
	Err error
}

func (e *StoreTransactionError) Error() string {
	return fmt.Sprintf("store transaction %s: %v", e.Op, e.Err)
}

func (e *StoreTransactionError) Unwrap() []error { return []error{ErrStoreTransaction, e.Err} }

// RecurrenceItemError is logged by the scheduler for a parent that could not be
// materialized. The parent's next run date is left untouched.
type RecurrenceItemError struct {
	ParentID string
	Err      error
}

func (e *RecurrenceItemError) Error() string {
	return fmt.Sprintf("recurring transaction %s: %v", e.ParentID, e.Err)
}

func (e *RecurrenceItemError) Unwrap() []error { return []error{ErrRecurrenceItem, e.Err} }

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
