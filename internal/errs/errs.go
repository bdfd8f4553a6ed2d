// Package errs defines the error taxonomy shared by the sync pipeline.
//
// Per-record errors (ValidationError, ConstraintError) are recorded and the batch
// continues. TransientStoreError stops the current phase. ConfigurationError is the
// only class that reaches the trigger caller as an error.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is() to check for these.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrSyncInProgress is returned when a caller gives up waiting for a running sync.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Error classes as reported in sync results.
const (
	ClassValidation = "validation"
	ClassConstraint = "constraint"
	ClassTransient  = "transient"
	ClassStore      = "store"
)

// ValidationError means a raw record cannot be reconciled, typically because
// its identifying field is absent.
type ValidationError struct {
	Kind     string
	RecordID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("invalid %s %q: %s: %s", e.Kind, e.RecordID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s: %s", e.Kind, e.Field, e.Reason)
}

// ConstraintError means the relational store rejected a write because of a
// foreign-key or uniqueness constraint.
type ConstraintError struct {
	Kind       string
	RecordID   string
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("%s %q violates constraint", e.Kind, e.RecordID)
	if e.Constraint != "" {
		msg += " " + e.Constraint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// TransientStoreError is a connectivity or timeout failure talking to a store.
// Re-running the whole sync is safe.
type TransientStoreError struct {
	Store string // "document" or "relational"
	Op    string
	Err   error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Store, e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// ConfigurationError means credentials or connection settings are missing or invalid.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration"
	if e.Key != "" {
		msg += " " + e.Key
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientStoreError unless it already is one.
func Transient(store, op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransientStoreError
	if errors.As(err, &te) {
		return err
	}
	return &TransientStoreError{Store: store, Op: op, Err: err}
}

// IsTransient reports whether err should abort the current phase.
// Context cancellation and deadlines count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientStoreError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Class returns the result class for a per-record error.
func Class(err error) string {
	var (
		ve *ValidationError
		ce *ConstraintError
	)
	switch {
	case errors.As(err, &ve):
		return ClassValidation
	case errors.As(err, &ce):
		return ClassConstraint
	case IsTransient(err):
		return ClassTransient
	default:
		return ClassStore
	}
}
