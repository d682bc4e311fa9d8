package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/covenant/internal/ir"
)

// CompileDeclarations reads every type declared under the top-level "type"
// field of v, in declaration order.
//
//	type: Stack: {
//		parents: ["Collection"]
//		invariant: ["count() >= 0"]
//		operation: push: {
//			requires: ["!full()"]
//			ensures: ["count() == {old count()} + 1"]
//		}
//		operation: count: pure: true
//	}
//
// Clause text is not parsed here; the registry parses it when the type is
// declared. Use Validate to check clause syntax up front.
func CompileDeclarations(v cue.Value) ([]ir.TypeDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	typesVal := v.LookupPath(cue.ParsePath("type"))
	if !typesVal.Exists() {
		return nil, nil
	}

	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []ir.TypeDecl
	for iter.Next() {
		decl, err := CompileType(iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, *decl)
	}
	return decls, nil
}

// CompileType parses a single type declaration struct. The type name is
// the last selector of the value's path.
func CompileType(v cue.Value) (*ir.TypeDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	decl := &ir.TypeDecl{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		decl.Name = labels[len(labels)-1].String()
	}
	if decl.Name == "" {
		return nil, &CompileError{Field: "type", Message: "type name is required", Pos: v.Pos()}
	}

	var err error
	if decl.Parents, err = stringList(v, "parents"); err != nil {
		return nil, err
	}
	if decl.Invariants, err = stringList(v, "invariant"); err != nil {
		return nil, err
	}
	if decl.Abstract, err = optionalBool(v, "abstract"); err != nil {
		return nil, err
	}
	if decl.Skip, err = optionalBool(v, "skip"); err != nil {
		return nil, err
	}

	decl.Operations, err = parseOperations(v)
	if err != nil {
		return nil, err
	}

	return decl, nil
}

// parseOperations extracts operation declarations from a type struct.
func parseOperations(v cue.Value) ([]ir.OperationDecl, error) {
	var ops []ir.OperationDecl

	opsVal := v.LookupPath(cue.ParsePath("operation"))
	if !opsVal.Exists() {
		return ops, nil // operations are optional
	}

	iter, err := opsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		opVal := iter.Value()
		op := ir.OperationDecl{Name: iter.Label()}

		if op.Requires, err = stringList(opVal, "requires"); err != nil {
			return nil, err
		}
		if op.Ensures, err = stringList(opVal, "ensures"); err != nil {
			return nil, err
		}
		if op.Pure, err = optionalBool(opVal, "pure"); err != nil {
			return nil, err
		}
		if op.Constructor, err = optionalBool(opVal, "constructor"); err != nil {
			return nil, err
		}
		if op.Constructor && op.Pure {
			return nil, &CompileError{
				Field:   fmt.Sprintf("operation.%s", op.Name),
				Message: "a constructor cannot be pure",
				Pos:     opVal.Pos(),
			}
		}

		ops = append(ops, op)
	}

	return ops, nil
}

// stringList reads an optional field that is either a string or a list of
// strings.
func stringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}

	if s, err := fv.String(); err == nil {
		return []string{s}, nil
	}

	iter, err := fv.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "must be a string or a list of strings",
			Pos:     fv.Pos(),
		}
	}

	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field,
				Message: "must be a string or a list of strings",
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, &CompileError{
			Field:   field,
			Message: "must be a bool",
			Pos:     fv.Pos(),
		}
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
