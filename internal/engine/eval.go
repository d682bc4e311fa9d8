package engine

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/roach88/covenant/internal/ir"
)

// frame is what an assertion can see while it is evaluated.
type frame struct {
	receiver any
	args     []any

	// hasResult is false outside postconditions.
	hasResult bool
	result    any

	// contract and old are set for postconditions; contract numbers the
	// {old} nodes, old holds their values.
	contract *ir.OperationContract
	old      *OldSnapshot
}

// renderer turns a Sequence into one host expression plus its bindings.
//
// It implements ir.Visitor. Quantifiers are evaluated while rendering, in
// their own scope, and appear in the expression as a bound boolean.
type renderer struct {
	eval     Evaluator
	frame    *frame
	b        strings.Builder
	bindings map[string]any
	quant    int

	// afterIdent is set right after a reserved identifier was written.
	afterIdent bool
}

var _ ir.Visitor = (*renderer)(nil)

func newRenderer(eval Evaluator, fr *frame, bindings map[string]any) *renderer {
	return &renderer{eval: eval, frame: fr, bindings: bindings}
}

// baseBindings returns the bindings every assertion starts with.
func baseBindings(fr *frame) map[string]any {
	b := map[string]any{BindSelf: fr.receiver}
	if fr.hasResult {
		b[BindResult] = fr.result
	}
	return b
}

// evalBool evaluates seq and requires a boolean outcome.
func evalBool(eval Evaluator, fr *frame, seq *ir.Sequence) (bool, error) {
	return evalBoolIn(eval, fr, seq, baseBindings(fr))
}

func evalBoolIn(eval Evaluator, fr *frame, seq *ir.Sequence, bindings map[string]any) (bool, error) {
	v, err := evalValueIn(eval, fr, seq, bindings)
	if err != nil {
		return false, err
	}
	ok, isBool := v.(bool)
	if !isBool {
		return false, fmt.Errorf("assertion %q evaluated to %T, not bool", seq.String(), v)
	}
	return ok, nil
}

// evalValueIn renders seq against bindings and hands it to the evaluator.
// bindings is extended in place with directive values.
func evalValueIn(eval Evaluator, fr *frame, seq *ir.Sequence, bindings map[string]any) (any, error) {
	r := newRenderer(eval, fr, bindings)
	if err := seq.Accept(r); err != nil {
		return nil, err
	}
	return eval.Evaluate(r.b.String(), r.bindings)
}

func (r *renderer) VisitChunk(n *ir.Chunk) error {
	if r.afterIdent && n.Text != "" && isIdentByte(n.Text[0]) {
		r.b.WriteByte(' ')
	}
	r.afterIdent = false
	r.b.WriteString(n.Text)
	return nil
}

func (r *renderer) VisitArg(n *ir.Arg) error {
	if n.Index > len(r.frame.args) {
		return fmt.Errorf("{arg %d} out of range: call has %d arguments", n.Index, len(r.frame.args))
	}
	name := "_arg" + strconv.Itoa(n.Index)
	r.bindings[name] = r.frame.args[n.Index-1]
	r.writeIdent(name)
	return nil
}

func (r *renderer) VisitResult(*ir.Result) error {
	if !r.frame.hasResult {
		return fmt.Errorf("{result} is only available in postconditions")
	}
	r.writeIdent(BindResult)
	return nil
}

func (r *renderer) VisitOld(n *ir.Old) error {
	if r.frame.contract == nil || r.frame.old == nil {
		return fmt.Errorf("{old} is only available in postconditions")
	}
	slot, ok := r.frame.contract.OldIndex(n)
	if !ok {
		return fmt.Errorf("{old %s} has no snapshot slot", n.Inner.String())
	}
	v, ok := r.frame.old.Value(slot)
	if !ok {
		return fmt.Errorf("old-value slot %d was not captured", slot)
	}
	name := "_old" + strconv.Itoa(slot)
	r.bindings[name] = v
	r.writeIdent(name)
	return nil
}

func (r *renderer) VisitForall(n *ir.Forall) error {
	return r.quantifier(true, n.Var, n.Source, n.Body)
}

func (r *renderer) VisitExists(n *ir.Exists) error {
	return r.quantifier(false, n.Var, n.Source, n.Body)
}

func (r *renderer) VisitSequence(n *ir.Sequence) error {
	if n.Parenthesized {
		r.b.WriteByte('(')
		r.afterIdent = false
	}
	for _, child := range n.Nodes {
		if err := child.Accept(r); err != nil {
			return err
		}
	}
	if n.Parenthesized {
		r.b.WriteByte(')')
		r.afterIdent = false
	}
	return nil
}

func (r *renderer) quantifier(universal bool, name string, source, body *ir.Sequence) error {
	ok, err := quantify(r.eval, r.frame, r.bindings, universal, name, source, body)
	if err != nil {
		return err
	}
	ident := "_q" + strconv.Itoa(r.quant)
	r.quant++
	r.bindings[ident] = ok
	r.writeIdent(ident)
	return nil
}

// writeIdent writes a reserved identifier, padded so it never fuses with
// the surrounding chunk text.
func (r *renderer) writeIdent(name string) {
	if r.afterIdent || (r.b.Len() > 0 && isIdentByte(r.b.String()[r.b.Len()-1])) {
		r.b.WriteByte(' ')
	}
	r.b.WriteString(name)
	r.afterIdent = true
}

func isIdentByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// quantify evaluates a forall (universal) or exists over source.
//
// The source is evaluated in the enclosing scope. Each element is bound to
// name in a copy of that scope, so the variable shadows any outer binding
// of the same name and {arg}, {result} and {old} keep their outer meaning.
// Forall over no elements holds; exists over no elements does not.
func quantify(eval Evaluator, fr *frame, outer map[string]any, universal bool, name string, source, body *ir.Sequence) (bool, error) {
	src, err := evalValueIn(eval, fr, source, maps.Clone(outer))
	if err != nil {
		return false, fmt.Errorf("quantifier source %q: %w", source.String(), err)
	}

	elements, err := Elements(src)
	if err != nil {
		return false, fmt.Errorf("quantifier source %q: %w", source.String(), err)
	}

	for element := range elements {
		scope := maps.Clone(outer)
		scope[name] = element
		ok, err := evalBoolIn(eval, fr, body, scope)
		if err != nil {
			return false, err
		}
		if universal && !ok {
			return false, nil
		}
		if !universal && ok {
			return true, nil
		}
	}
	return universal, nil
}
