// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Storage and concurrency errors
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrConcurrencyConflict = errors.New("concurrent mutation for the same user")

	// Ledger errors
	ErrLedgerCorrupted = errors.New("ledger hash chain corrupted")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progression", "quest", "requirement"
	Op      string // Operation that failed, e.g., "RecordXPEvent", "CloseDay"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Progression domain errors
var (
	ErrProgressionNotFound = NewDomainError("progression", "Find", ErrNotFound, "user progression not found")
	ErrZeroBaseAmount      = NewDomainError("progression", "RecordXPEvent", ErrValidation, "base amount must be non-zero")
	ErrInvalidMultiplier   = NewDomainError("progression", "Validate", ErrValueOutOfRange, "multiplier must be positive")
	ErrChainTipMoved       = NewDomainError("progression", "Append", ErrConcurrencyConflict, "chain tip moved during append")
	ErrDayAlreadyClosed    = NewDomainError("progression", "CloseDay", ErrAlreadyProcessed, "day already closed")
	ErrDebuffAlreadyActive = NewDomainError("progression", "ApplyDebuff", ErrAlreadyProcessed, "debuff already active")
)

// Return protocol domain errors
var (
	ErrReturnNotOffered    = NewDomainError("progression", "AcceptReturn", ErrStateTransition, "return protocol is not offered")
	ErrReturnNotActive     = NewDomainError("progression", "AdvanceReturn", ErrStateTransition, "return protocol is not active")
	ErrReturnDeclineDenied = NewDomainError("progression", "DeclineReturn", ErrStateTransition, "return protocol can only be declined on day 1")
	ErrAbsenceTooShort     = NewDomainError("progression", "OfferReturn", ErrInvalidState, "absence below offer threshold")
)

// Quest domain errors
var (
	ErrTemplateNotFound  = NewDomainError("quest", "FindTemplate", ErrNotFound, "quest template not found")
	ErrInstanceNotFound  = NewDomainError("quest", "FindInstance", ErrNotFound, "quest instance not found")
	ErrInstanceFinalized = NewDomainError("quest", "Update", ErrInvalidState, "quest instance already finalized")
	ErrInstanceNotFinal  = NewDomainError("quest", "Reset", ErrInvalidState, "quest instance is not finalized")
	ErrTargetNotFound    = NewDomainError("quest", "FindTarget", ErrNotFound, "adapted target not found")
	ErrManualOverrideSet = NewDomainError("quest", "Adapt", ErrInvalidState, "manual override is set")
)

// Requirement domain errors
var (
	ErrUnknownOperator = NewDomainError("requirement", "Parse", ErrValidation, "unknown operator")
	ErrEmptyMetric     = NewDomainError("requirement", "Parse", ErrValidation, "metric name cannot be empty")
	ErrMalformedExpr   = NewDomainError("requirement", "Parse", ErrValidation, "malformed requirement expression")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsStateTransition checks if the error is an invalid state transition.
func IsStateTransition(err error) bool {
	return errors.Is(err, ErrStateTransition) || errors.Is(err, ErrInvalidState)
}

// IsRetryable checks if the operation can be retried safely.
// Ledger appends are deliberately excluded: after an ambiguous failure the
// caller must check whether the event was persisted before re-issuing.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrConcurrencyConflict)
}
