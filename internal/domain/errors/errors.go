// Package errors defines the failure classes of the billing pipeline.
package errors

import (
	"errors"
	"fmt"

	apperrors "github.com/wekeepgrowing/paper-n-print-billing/pkg/errors"
)

var (
	// ErrEventAlreadyProcessed is returned when an event id has already been claimed.
	ErrEventAlreadyProcessed = errors.New("event already processed")

	// ErrInvalidDeposit is returned for a deposit spec that cannot be applied.
	ErrInvalidDeposit = errors.New("invalid deposit specification")

	// ErrInsufficientCredits matches any InsufficientCreditsError.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// AuthenticationError means an inbound event could not be verified as coming from the provider.
type AuthenticationError struct {
	Reason string
	Err    error
}

func NewAuthenticationError(reason string, err error) *AuthenticationError {
	return &AuthenticationError{Reason: reason, Err: err}
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("event authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "event authentication failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// AppCode maps signature failures to 400; the provider treats it as a permanent rejection.
func (e *AuthenticationError) AppCode() string { return apperrors.ErrInvalidArgument }

// InvalidTransitionError means a document lifecycle precondition was violated.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
	Reason string
	Err    error
}

func NewInvalidTransitionError(entity, id, from, to, reason string) *InvalidTransitionError {
	return &InvalidTransitionError{Entity: entity, ID: id, From: from, To: to, Reason: reason}
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition %s -> %s for %s: %s", e.Entity, e.From, e.To, e.ID, e.Reason)
}

func (e *InvalidTransitionError) Unwrap() error { return e.Err }

func (e *InvalidTransitionError) AppCode() string { return apperrors.ErrPrecondition }

// NotFoundError means a referenced estimate, invoice or user does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) AppCode() string { return apperrors.ErrNotFound }

// TransientExternalError means a call to an external collaborator failed and may succeed later.
type TransientExternalError struct {
	Op  string
	Err error
}

func NewTransientExternalError(op string, err error) *TransientExternalError {
	return &TransientExternalError{Op: op, Err: err}
}

func (e *TransientExternalError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransientExternalError) Unwrap() error { return e.Err }

func (e *TransientExternalError) AppCode() string { return apperrors.ErrUnavailable }

// PersistenceError means a database read or write failed.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) AppCode() string { return apperrors.ErrInternal }

// InsufficientCreditsError is returned when a debit exceeds the ledger balance.
type InsufficientCreditsError struct {
	Requested int64
	Available int64
}

func NewInsufficientCreditsError(requested, available int64) *InsufficientCreditsError {
	return &InsufficientCreditsError{Requested: requested, Available: available}
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool { return target == ErrInsufficientCredits }

func (e *InsufficientCreditsError) AppCode() string { return apperrors.ErrConflict }

// IsAcknowledgeable reports whether a failure should be logged and acknowledged
// instead of asking the provider to redeliver.
func IsAcknowledgeable(err error) bool {
	var transition *InvalidTransitionError
	var notFound *NotFoundError
	return errors.As(err, &transition) || errors.As(err, &notFound)
}
