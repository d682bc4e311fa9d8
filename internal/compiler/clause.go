package compiler

import (
	"fmt"

	"github.com/roach88/covenant/internal/ir"
)

// ParseClause parses src and checks it against the directive rules of its
// clause kind. The returned clause is ready to be shared by every composed
// contract that includes it.
func ParseClause(kind ir.ClauseKind, declaringType, src string) (*ir.Clause, error) {
	seq, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := ValidateClause(kind, seq); err != nil {
		if ce, ok := err.(*ClauseError); ok {
			ce.DeclaringType = declaringType
			ce.Source = src
		}
		return nil, err
	}
	return &ir.Clause{
		Kind:          kind,
		DeclaringType: declaringType,
		Source:        src,
		Assertion:     seq,
	}, nil
}

// ValidateClause enforces which directives a clause kind may use:
//
//	require:   {arg}, {forall}, {exists}
//	ensure:    everything; inside {old} only {arg} and plain text
//	invariant: {forall}, {exists}
//
// The first offending directive is reported.
func ValidateClause(kind ir.ClauseKind, seq *ir.Sequence) error {
	switch kind {
	case ir.KindRequire, ir.KindEnsure, ir.KindInvariant:
	default:
		return &ClauseError{
			Kind:    kind,
			Code:    ErrUnknownClauseKind,
			Message: fmt.Sprintf("unknown clause kind %q", kind),
		}
	}
	if seq == nil || seq.Empty() {
		return &ClauseError{Kind: kind, Code: ErrEmptyClause, Message: "clause is empty"}
	}

	var found *ClauseError
	report := func(n ir.Node, code, message string) bool {
		found = &ClauseError{
			Kind:    kind,
			Source:  seq.String(),
			Code:    code,
			Message: message,
			Offset:  n.Pos(),
		}
		return false
	}

	ir.Walk(seq, func(n ir.Node) bool {
		if found != nil {
			return false
		}
		switch n := n.(type) {
		case *ir.Arg:
			if kind == ir.KindInvariant {
				return report(n, ErrArgInInvariant, "{arg} is not allowed in an invariant")
			}
		case *ir.Result:
			switch kind {
			case ir.KindRequire:
				return report(n, ErrResultInRequire, "{result} is not allowed in a precondition")
			case ir.KindInvariant:
				return report(n, ErrResultInInvariant, "{result} is not allowed in an invariant")
			}
		case *ir.Old:
			switch kind {
			case ir.KindRequire:
				return report(n, ErrOldInRequire, "{old} is not allowed in a precondition")
			case ir.KindInvariant:
				return report(n, ErrOldInInvariant, "{old} is not allowed in an invariant")
			}
			if ce := validateOld(n); ce != nil {
				found = ce
				found.Kind = kind
				found.Source = seq.String()
			}
			return false
		}
		return true
	})

	if found != nil {
		return found
	}
	return nil
}

// validateOld checks the body of an {old} directive. Only text and {arg}
// may appear there: the value is computed before the call, when no result
// exists, and quantifiers are not snapshotted.
func validateOld(old *ir.Old) *ClauseError {
	var found *ClauseError
	ir.Walk(old.Inner, func(n ir.Node) bool {
		if found != nil {
			return false
		}
		switch n.(type) {
		case *ir.Result:
			found = &ClauseError{Code: ErrResultInOld, Message: "{result} is not allowed inside {old}", Offset: n.Pos()}
		case *ir.Forall, *ir.Exists:
			found = &ClauseError{Code: ErrQuantifierInOld, Message: "quantifiers are not allowed inside {old}", Offset: n.Pos()}
		case *ir.Old:
			found = &ClauseError{Code: ErrNestedOld, Message: "{old} cannot be nested", Offset: n.Pos()}
		}
		return found == nil
	})
	return found
}
