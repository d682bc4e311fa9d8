package registry

import (
	"fmt"

	"github.com/roach88/covenant/internal/ir"
)

// Operation returns the composed contract of op as seen from typ.
//
// Every type in the hierarchy that declares op with at least one require
// clause contributes a RequireGroup; ensures are concatenated in the same
// order. Ancestors that do not declare op are still traversed, so a
// grandparent's clauses apply through a parent that is silent about op.
//
// Returns ErrUnknownOperation if no type in the hierarchy declares op.
func (r *Registry) Operation(typ, op string) (*ir.OperationContract, error) {
	key := typ + "." + op

	r.mu.RLock()
	if oc, ok := r.operations[key]; ok {
		r.mu.RUnlock()
		return oc, nil
	}
	r.mu.RUnlock()

	// Use singleflight to compose each contract once under concurrent misses
	v, err, _ := r.operationGroup.Do(key, func() (any, error) {
		r.mu.RLock()
		if oc, ok := r.operations[key]; ok {
			r.mu.RUnlock()
			return oc, nil
		}
		gen := r.generation
		oc, err := r.composeOperationLocked(typ, op)
		r.mu.RUnlock()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		if r.generation == gen {
			r.operations[key] = oc
		}
		r.mu.Unlock()
		return oc, nil
	})
	if err != nil {
		return nil, err
	}

	oc, ok := v.(*ir.OperationContract)
	if !ok {
		return nil, fmt.Errorf("unexpected type from operation cache: got %T", v)
	}
	return oc, nil
}

// composeOperationLocked builds the contract. Caller must hold r.mu.
func (r *Registry) composeOperationLocked(typ, op string) (*ir.OperationContract, error) {
	chain, err := r.chainLocked(typ)
	if err != nil {
		return nil, err
	}

	var (
		requires    []ir.RequireGroup
		ensures     []*ir.Clause
		declared    bool
		constructor bool
		pure        bool
		inferred    bool
	)
	for _, name := range chain {
		oe, ok := r.types[name].operations[op]
		if !ok {
			continue
		}
		declared = true
		if len(oe.requires) > 0 {
			requires = append(requires, ir.RequireGroup{DeclaringType: name, Clauses: oe.requires})
		}
		ensures = append(ensures, oe.ensures...)
		if oe.decl.Pure {
			pure = true
		}
		if name == typ {
			constructor = oe.decl.Constructor
			inferred = oe.decl.InferredPure
		}
	}
	if !declared {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, typ, op)
	}

	oc := ir.NewOperationContract(typ, op, requires, ensures)
	oc.Constructor = constructor
	switch {
	case constructor:
		// Constructors always establish the invariant.
	case pure:
		oc.Pure, oc.PureSource = true, PureDeclared
	case inferred:
		oc.Pure, oc.PureSource = true, PureInferred
	}

	r.logger.Debug("operation contract composed",
		"subject", oc.Subject(),
		"require_groups", len(oc.Requires),
		"requires", len(oc.RequireClauses()),
		"ensures", len(oc.Ensures),
		"old_slots", len(oc.OldSlots()),
		"pure", oc.Pure)
	return oc, nil
}

// Type returns the composed invariant of typ: every ancestor's invariant
// clauses, then typ's own, each declaring type once.
func (r *Registry) Type(typ string) (*ir.TypeContract, error) {
	r.mu.RLock()
	if tc, ok := r.invariants[typ]; ok {
		r.mu.RUnlock()
		return tc, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.typeGroup.Do(typ, func() (any, error) {
		r.mu.RLock()
		if tc, ok := r.invariants[typ]; ok {
			r.mu.RUnlock()
			return tc, nil
		}
		gen := r.generation
		tc, err := r.composeTypeLocked(typ)
		r.mu.RUnlock()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		if r.generation == gen {
			r.invariants[typ] = tc
		}
		r.mu.Unlock()
		return tc, nil
	})
	if err != nil {
		return nil, err
	}

	tc, ok := v.(*ir.TypeContract)
	if !ok {
		return nil, fmt.Errorf("unexpected type from invariant cache: got %T", v)
	}
	return tc, nil
}

func (r *Registry) composeTypeLocked(typ string) (*ir.TypeContract, error) {
	chain, err := r.chainLocked(typ)
	if err != nil {
		return nil, err
	}

	tc := &ir.TypeContract{Type: typ}
	for _, name := range chain {
		tc.Invariants = append(tc.Invariants, r.types[name].invariants...)
	}

	r.logger.Debug("type contract composed",
		"type", typ,
		"invariants", len(tc.Invariants))
	return tc, nil
}
