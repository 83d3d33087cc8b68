// Package errors provides the structured error taxonomy for the
// arbitration core. Every error carries its originating component so
// failures can be attributed in logs and audit records, and no error is
// ever converted into an approval.
package errors

import (
	"fmt"
	"strings"
)

// ErrorType categorizes a failure within the arbitration pipeline.
type ErrorType int

const (
	// TypeInvalidProposal - missing or malformed proposal fields; rejected pre-evaluation
	TypeInvalidProposal ErrorType = iota
	// TypeEvaluatorFailure - a single evaluator panicked, errored, or timed out
	TypeEvaluatorFailure
	// TypeAllEvaluatorsFailed - every evaluator in the set was degraded
	TypeAllEvaluatorsFailed
	// TypeResolutionExhausted - the strategy chain produced no result; a defect
	TypeResolutionExhausted
	// TypePrecedentUnavailable - the precedent backend could not be consulted
	TypePrecedentUnavailable
	// TypeDeadlineExceeded - the caller's deadline elapsed before a decision
	TypeDeadlineExceeded
	// TypeStorage - backend read/write failures outside the decision path
	TypeStorage
	// TypeConfig - invalid configuration at construction time
	TypeConfig
	// TypeSystem - unexpected internal state; always fail-closed
	TypeSystem
)

// Severity indicates whether execution can continue.
type Severity int

const (
	// SeverityDegraded - the decision proceeds with reduced confidence
	SeverityDegraded Severity = iota
	// SeverityRejected - the decision fails closed
	SeverityRejected
	// SeverityFatal - construction or configuration cannot proceed
	SeverityFatal
)

// Error is a structured, component-tagged error.
type Error struct {
	Type      ErrorType
	Severity  Severity
	Component string
	Message   string
	Cause     error
	Context   map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Component != "" {
		sb.WriteString(e.Component)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on error type, so errors.Is works against the sentinel
// constructors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithContext attaches a key/value pair for observability.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithComponent tags the error with its originating component.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// New creates a structured error.
func New(errType ErrorType, severity Severity, component, message string) *Error {
	return &Error{
		Type:      errType,
		Severity:  severity,
		Component: component,
		Message:   message,
	}
}

// Wrap wraps an existing error with taxonomy information. A nil cause
// is allowed; the result is always a usable error.
func Wrap(err error, errType ErrorType, severity Severity, component, message string) *Error {
	return &Error{
		Type:      errType,
		Severity:  severity,
		Component: component,
		Message:   message,
		Cause:     err,
	}
}

// Convenience constructors per taxonomy entry.

// InvalidProposal creates a pre-evaluation rejection error.
func InvalidProposal(message string) *Error {
	return New(TypeInvalidProposal, SeverityRejected, "engine", message)
}

// InvalidProposalf creates a pre-evaluation rejection error with formatting.
func InvalidProposalf(format string, args ...interface{}) *Error {
	return InvalidProposal(fmt.Sprintf(format, args...))
}

// EvaluatorFailure wraps a single evaluator's failure.
func EvaluatorFailure(err error, framework string) *Error {
	return Wrap(err, TypeEvaluatorFailure, SeverityDegraded, "evaluation", "evaluator failed").
		WithContext("framework", framework)
}

// AllEvaluatorsFailed signals a fully degraded evaluator batch.
func AllEvaluatorsFailed(count int) *Error {
	return New(TypeAllEvaluatorsFailed, SeverityRejected, "evaluation",
		fmt.Sprintf("all %d evaluators failed", count))
}

// ResolutionExhausted marks a defective strategy chain.
func ResolutionExhausted(message string) *Error {
	return New(TypeResolutionExhausted, SeverityRejected, "resolution", message)
}

// PrecedentUnavailable wraps a precedent backend failure; decisions
// proceed on a neutral prior.
func PrecedentUnavailable(err error) *Error {
	return Wrap(err, TypePrecedentUnavailable, SeverityDegraded, "precedent", "precedent backend unavailable")
}

// DeadlineExceeded marks a fail-closed timeout.
func DeadlineExceeded(component string) *Error {
	return New(TypeDeadlineExceeded, SeverityRejected, component, "deadline exceeded before decision")
}

// StorageError wraps a backend failure.
func StorageError(err error, message string) *Error {
	return Wrap(err, TypeStorage, SeverityFatal, "storage", message)
}

// ConfigError creates a construction-time configuration error.
func ConfigError(message string) *Error {
	return New(TypeConfig, SeverityFatal, "config", message)
}

// ConfigErrorf creates a configuration error with formatting.
func ConfigErrorf(format string, args ...interface{}) *Error {
	return ConfigError(fmt.Sprintf(format, args...))
}

// SystemError marks unexpected internal state; callers fail closed.
func SystemError(err error, message string) *Error {
	return Wrap(err, TypeSystem, SeverityRejected, "engine", message)
}

// GetType returns the taxonomy type of an error, defaulting to
// TypeSystem for foreign errors.
func GetType(err error) ErrorType {
	if e, ok := err.(*Error); ok {
		return e.Type
	}
	return TypeSystem
}

// IsRejection reports whether the error requires failing closed.
func IsRejection(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Severity == SeverityRejected || e.Severity == SeverityFatal
	}
	return true
}
