// Package zkerr holds the structured error type shared by every stage of the
// witness pipeline.
//
// Callers should branch on Kind (or on Class for coarse handling) rather than
// matching error strings. Use errors.As to extract *Error.
package zkerr

import (
	"errors"
	"fmt"
)

// Kind is a stable identifier for one failure mode.
type Kind string

const (
	KindMalformed      Kind = "Malformed"
	KindNotFound       Kind = "NotFound"
	KindDomainTooShort Kind = "DomainTooShort"
	KindCapacity       Kind = "Capacity"
	KindRange          Kind = "Range"
	KindLimb           Kind = "Limb"
	KindInverse        Kind = "Inverse"
	KindHash           Kind = "Hash"
	KindAssembly       Kind = "Assembly"
	KindExecution      Kind = "Execution"
	KindProver         Kind = "Prover"
	KindDuplicate      Kind = "Duplicate"
	KindStore          Kind = "Store"
)

// Class groups kinds by how the authentication layer reacts to them.
type Class string

const (
	// ClassInput is user-visible and retryable with corrected input.
	ClassInput Class = "Input"
	// ClassCapacity means the message cannot fit the circuit.
	ClassCapacity Class = "Capacity"
	// ClassComputation is an internal deterministic fault; never retried.
	ClassComputation Class = "Computation"
	// ClassCircuitExecution is a "proof rejected" outcome.
	ClassCircuitExecution Class = "CircuitExecution"
	// ClassInfrastructure covers prover and store outages.
	ClassInfrastructure Class = "Infrastructure"
	// ClassDuplicate is the "already submitted" outcome.
	ClassDuplicate Class = "DuplicateNullifier"
)

var kindClass = map[Kind]Class{
	KindMalformed:      ClassInput,
	KindNotFound:       ClassInput,
	KindDomainTooShort: ClassInput,
	KindCapacity:       ClassCapacity,
	KindRange:          ClassComputation,
	KindLimb:           ClassComputation,
	KindInverse:        ClassComputation,
	KindHash:           ClassComputation,
	KindAssembly:       ClassComputation,
	KindExecution:      ClassCircuitExecution,
	KindProver:         ClassInfrastructure,
	KindStore:          ClassInfrastructure,
	KindDuplicate:      ClassDuplicate,
}

// Error is the pipeline's structured error type.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Message string
	// Violations lists every failed invariant for KindAssembly.
	Violations []string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns an *Error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind carrying cause.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of err, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// ClassOf maps err onto the error taxonomy. Foreign errors are treated as
// infrastructure failures so that callers fail closed.
func ClassOf(err error) Class {
	if c, ok := kindClass[KindOf(err)]; ok {
		return c
	}
	return ClassInfrastructure
}
