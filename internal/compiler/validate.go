package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/covenant/internal/ir"
)

// Validation error codes (E100-E119)
const (
	// General validation errors (E100)
	ErrNoDeclarations = "E100" // nothing to validate

	// TypeDecl errors (E101-E109)
	ErrTypeNameEmpty       = "E101" // type name is required
	ErrDuplicateType       = "E102" // type declared twice
	ErrOperationNameEmpty  = "E103" // operation name is required
	ErrDuplicateOperation  = "E104" // operation declared twice on one type
	ErrUnknownParent       = "E105" // parent type is not declared
	ErrDuplicateParent     = "E106" // parent listed twice
	ErrAbstractConstructor = "E107" // abstract type declares a constructor
	ErrHierarchyCycle      = "E108" // inheritance cycle

	// Clause errors (E110-E119)
	ErrClauseSyntax = "E110" // clause does not parse
	ErrClauseKind   = "E111" // directive not allowed for clause kind
)

// ValidationError represents a declaration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a complete set of type declarations.
// Returns all errors found (does not fail-fast).
//
// Every clause is parsed and checked against its kind, every parent must be
// declared in the set, and the hierarchy must be acyclic.
func Validate(decls []ir.TypeDecl) []ValidationError {
	if len(decls) == 0 {
		return []ValidationError{{
			Field:   "type",
			Message: "no type declarations found",
			Code:    ErrNoDeclarations,
		}}
	}

	var errs []ValidationError
	declared := make(map[string]bool)
	for i, d := range decls {
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("type[%d]", i),
				Message: "type name is required and must be non-empty",
				Code:    ErrTypeNameEmpty,
			})
			continue
		}
		if declared[d.Name] {
			errs = append(errs, ValidationError{
				Field:   "type." + d.Name,
				Message: fmt.Sprintf("duplicate type declaration: %q", d.Name),
				Code:    ErrDuplicateType,
			})
		}
		declared[d.Name] = true
	}

	for _, d := range decls {
		if d.Name == "" {
			continue
		}
		errs = append(errs, validateType(&d, declared)...)
	}

	for _, c := range AnalyzeHierarchy(decls) {
		errs = append(errs, ValidationError{
			Field:   "type." + c.Path[0] + ".parents",
			Message: c.Message,
			Code:    ErrHierarchyCycle,
		})
	}

	return errs
}

// validateType validates one declaration against the set of declared names.
func validateType(d *ir.TypeDecl, declared map[string]bool) []ValidationError {
	var errs []ValidationError
	prefix := "type." + d.Name

	seenParents := make(map[string]bool)
	for i, p := range d.Parents {
		field := fmt.Sprintf("%s.parents[%d]", prefix, i)
		if seenParents[p] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("parent %q listed more than once", p),
				Code:    ErrDuplicateParent,
			})
		}
		seenParents[p] = true
		if !declared[p] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("parent type %q is not declared", p),
				Code:    ErrUnknownParent,
			})
		}
	}

	for i, src := range d.Invariants {
		errs = append(errs, validateClauseSource(ir.KindInvariant, d.Name, src,
			fmt.Sprintf("%s.invariant[%d]", prefix, i))...)
	}

	seenOps := make(map[string]bool)
	for i, op := range d.Operations {
		if strings.TrimSpace(op.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.operation[%d]", prefix, i),
				Message: "operation name is required and must be non-empty",
				Code:    ErrOperationNameEmpty,
			})
			continue
		}
		opPrefix := prefix + ".operation." + op.Name
		if seenOps[op.Name] {
			errs = append(errs, ValidationError{
				Field:   opPrefix,
				Message: fmt.Sprintf("duplicate operation name: %q", op.Name),
				Code:    ErrDuplicateOperation,
			})
		}
		seenOps[op.Name] = true

		if op.Constructor && d.Abstract {
			errs = append(errs, ValidationError{
				Field:   opPrefix,
				Message: "abstract types cannot declare constructors",
				Code:    ErrAbstractConstructor,
			})
		}

		for j, src := range op.Requires {
			errs = append(errs, validateClauseSource(ir.KindRequire, d.Name, src,
				fmt.Sprintf("%s.requires[%d]", opPrefix, j))...)
		}
		for j, src := range op.Ensures {
			errs = append(errs, validateClauseSource(ir.KindEnsure, d.Name, src,
				fmt.Sprintf("%s.ensures[%d]", opPrefix, j))...)
		}
	}

	return errs
}

func validateClauseSource(kind ir.ClauseKind, declaringType, src, field string) []ValidationError {
	_, err := ParseClause(kind, declaringType, src)
	if err == nil {
		return nil
	}

	var ce *ClauseError
	if errors.As(err, &ce) {
		return []ValidationError{{Field: field, Message: err.Error(), Code: ErrClauseKind}}
	}
	return []ValidationError{{Field: field, Message: err.Error(), Code: ErrClauseSyntax}}
}
