// Package apperrors defines the typed error taxonomy shared by every
// engine operation. Callers match on the concrete types with errors.As
// (or the Is* helpers) to decide whether a retry makes sense.
package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing input. It is locally
// correctable and never worth retrying unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// StateTransitionError reports an operation that is illegal in the
// entity's current lifecycle state.
type StateTransitionError struct {
	Entity    string
	Ref       string
	Current   string
	Operation string
	Reason    string
}

func (e *StateTransitionError) Error() string {
	msg := fmt.Sprintf("%s %s: cannot %s from status %q", e.Entity, e.Ref, e.Operation, e.Current)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AuthorizationError reports an actor whose role does not permit the
// requested operation.
type AuthorizationError struct {
	Role      string
	Operation string
	Reason    string
}

func (e *AuthorizationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("role %q may not perform %s: %s", e.Role, e.Operation, e.Reason)
	}
	return fmt.Sprintf("role %q may not perform %s", e.Role, e.Operation)
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Ref)
}

// InsufficientStockError reports an outbound movement that would drive a
// part's stock negative. Retrying is useful only after stock is replenished.
type InsufficientStockError struct {
	PartID    uint
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for part %d: requested %d, available %d",
		e.PartID, e.Requested, e.Available)
}

// ConcurrencyConflictError reports a bounded lock acquisition that timed
// out. The operation left no state behind and the caller may retry.
type ConcurrencyConflictError struct {
	Resource string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("could not acquire lock on %s: concurrent operation in progress", e.Resource)
}

// IntegrityError reports a write that would violate a referential or
// invariant constraint.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation: %s", e.Reason)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsStateTransition(err error) bool {
	var target *StateTransitionError
	return errors.As(err, &target)
}

func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

func IsConcurrencyConflict(err error) bool {
	var target *ConcurrencyConflictError
	return errors.As(err, &target)
}

func IsIntegrity(err error) bool {
	var target *IntegrityError
	return errors.As(err, &target)
}
