package engine

import (
	"errors"
	"fmt"
)

// Violation is a broken contract detected at call time.
//
// Violations map one to one to the three contract categories and are not
// meant to be handled by ordinary business logic: they indicate a bug in the
// program under test or in its contracts. Every hook returns a *Violation
// unchanged once raised, so a violation from a nested guarded call inside an
// assertion reaches the caller without being wrapped again.
type Violation struct {
	// Kind identifies the contract category.
	Kind ViolationKind

	// Subject is "Type.operation" for require and ensure violations and the
	// type name for invariant violations.
	Subject string

	// Clause is the rendered text of the offending clause.
	Clause string

	// DeclaringType is the type that declared the offending clause.
	DeclaringType string

	// Cause is the host evaluator failure, if the clause could not be
	// evaluated at all.
	Cause error
}

// ViolationKind categorizes violations.
type ViolationKind string

const (
	// KindRequire indicates a precondition failure: the caller is at fault.
	KindRequire ViolationKind = "require"

	// KindEnsure indicates a postcondition failure: the operation is at fault.
	KindEnsure ViolationKind = "ensure"

	// KindInvariant indicates the receiver is in a broken state.
	KindInvariant ViolationKind = "invariant"
)

// Error implements the error interface.
func (e *Violation) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s, %v", e.Subject, e.Clause, e.Cause)
	}
	return fmt.Sprintf("%s: %s is broken", e.Subject, e.Clause)
}

// Unwrap returns the host evaluator failure, if any.
func (e *Violation) Unwrap() error {
	return e.Cause
}

// AsViolation returns the first Violation in err's chain.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// IsViolation returns true if err is any contract violation.
func IsViolation(err error) bool {
	_, ok := AsViolation(err)
	return ok
}

// IsRequireViolation returns true if the error is a precondition violation.
// Uses errors.As to handle wrapped errors.
func IsRequireViolation(err error) bool {
	v, ok := AsViolation(err)
	return ok && v.Kind == KindRequire
}

// IsEnsureViolation returns true if the error is a postcondition violation.
func IsEnsureViolation(err error) bool {
	v, ok := AsViolation(err)
	return ok && v.Kind == KindEnsure
}

// IsInvariantViolation returns true if the error is an invariant violation.
func IsInvariantViolation(err error) bool {
	v, ok := AsViolation(err)
	return ok && v.Kind == KindInvariant
}

// wrapEvalError turns a host evaluator failure into a violation of the
// phase in progress. An error that already is a violation is returned as
// is.
func wrapEvalError(err error, kind ViolationKind, subject, clause, declaringType string) error {
	if IsViolation(err) {
		return err
	}
	return &Violation{
		Kind:          kind,
		Subject:       subject,
		Clause:        clause,
		DeclaringType: declaringType,
		Cause:         err,
	}
}
