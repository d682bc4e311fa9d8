package engine

import (
	"context"
	"time"

	"github.com/roach88/covenant/internal/ir"
)

// CheckPrecondition evaluates the composed precondition of call.
//
// Require groups are tried in composition order, ancestors first. The
// clauses of a group are conjoined; the first group that holds satisfies
// the precondition. When every group fails, the violation names the
// failing clause of the last group tried, which is the operation's own
// group whenever it declares one. A host evaluation error aborts at once.
func (e *Engine) CheckPrecondition(ctx context.Context, call *Call) error {
	r, err := e.resolve(call)
	if err != nil {
		return err
	}
	return e.checkPrecondition(ctx, call, r)
}

// CheckInvariantBefore evaluates the composed invariant before the body
// runs. It is skipped for constructors, for receivers still under
// construction, and while an invariant check on the same receiver is
// already in progress.
func (e *Engine) CheckInvariantBefore(ctx context.Context, call *Call) error {
	r, err := e.resolve(call)
	if err != nil {
		return err
	}
	return e.checkInvariantBefore(ctx, call, r)
}

// SnapshotOld captures every {old} value of the composed postcondition.
// Call it after the precondition and before the body.
func (e *Engine) SnapshotOld(ctx context.Context, call *Call) (*OldSnapshot, error) {
	r, err := e.resolve(call)
	if err != nil {
		return nil, err
	}
	return e.snapshotOld(ctx, call, r)
}

// CheckInvariantAfter evaluates the composed invariant after the body
// returned. Pure operations skip it. For a constructor it runs only on the
// most-derived type and then marks the receiver initialized.
func (e *Engine) CheckInvariantAfter(ctx context.Context, call *Call) error {
	r, err := e.resolve(call)
	if err != nil {
		return err
	}
	return e.checkInvariantAfter(ctx, call, r)
}

// CheckPostcondition evaluates every ensure clause of the composed
// postcondition, reading {old} values from old and {result} from result.
func (e *Engine) CheckPostcondition(ctx context.Context, call *Call, old *OldSnapshot, result any) error {
	r, err := e.resolve(call)
	if err != nil {
		return err
	}
	return e.checkPostcondition(ctx, call, r, old, result)
}

func (e *Engine) checkPrecondition(ctx context.Context, call *Call, r *resolved) error {
	switch {
	case !r.guarded:
		e.skip(ctx, call, PhaseRequire, ReasonUnguarded)
		return nil
	case !e.config.Require:
		e.skip(ctx, call, PhaseRequire, ReasonDisabled)
		return nil
	case !r.operation.HasRequires():
		e.skip(ctx, call, PhaseRequire, ReasonNoClauses)
		return nil
	}

	start := time.Now()
	oc := r.operation
	fr := &frame{receiver: call.Receiver, args: call.Args}

	var (
		failure   error
		evaluated int
	)
	for _, group := range oc.Requires {
		holds := true
		for _, clause := range group.Clauses {
			evaluated++
			ok, err := evalBool(e.evaluator, fr, clause.Assertion)
			if err != nil {
				err = wrapEvalError(err, KindRequire, oc.Subject(), clause.String(), clause.DeclaringType)
				return e.finish(ctx, call, PhaseRequire, e.operationFingerprint(oc), evaluated, start, err)
			}
			if !ok {
				holds = false
				failure = broken(KindRequire, oc.Subject(), clause)
				break
			}
		}
		if holds {
			return e.finish(ctx, call, PhaseRequire, e.operationFingerprint(oc), evaluated, start, nil)
		}
	}
	return e.finish(ctx, call, PhaseRequire, e.operationFingerprint(oc), evaluated, start, failure)
}

func (e *Engine) checkInvariantBefore(ctx context.Context, call *Call, r *resolved) error {
	if !r.guarded {
		e.skip(ctx, call, PhaseInvariantBefore, ReasonUnguarded)
		return nil
	}
	if !e.config.Invariant {
		e.skip(ctx, call, PhaseInvariantBefore, ReasonDisabled)
		return nil
	}
	if r.constructor() {
		e.skip(ctx, call, PhaseInvariantBefore, ReasonConstructing)
		return nil
	}

	st := e.receiverState(call)
	switch {
	case st != nil && !st.initialized:
		e.skip(ctx, call, PhaseInvariantBefore, ReasonConstructing)
		return nil
	case st != nil && st.checking:
		e.skip(ctx, call, PhaseInvariantBefore, ReasonReentrant)
		return nil
	case len(r.invariant.Invariants) == 0:
		e.skip(ctx, call, PhaseInvariantBefore, ReasonNoClauses)
		return nil
	}
	return e.runInvariant(ctx, call, r.invariant, st, PhaseInvariantBefore)
}

func (e *Engine) checkInvariantAfter(ctx context.Context, call *Call, r *resolved) error {
	if r.constructor() {
		return e.establishInvariant(ctx, call, r)
	}

	if !r.guarded {
		e.skip(ctx, call, PhaseInvariantAfter, ReasonUnguarded)
		return nil
	}
	if !e.config.Invariant {
		e.skip(ctx, call, PhaseInvariantAfter, ReasonDisabled)
		return nil
	}
	if r.operation.Pure {
		e.skip(ctx, call, PhaseInvariantAfter, ReasonPure)
		return nil
	}

	st := e.receiverState(call)
	switch {
	case st != nil && !st.initialized:
		e.skip(ctx, call, PhaseInvariantAfter, ReasonConstructing)
		return nil
	case st != nil && st.checking:
		e.skip(ctx, call, PhaseInvariantAfter, ReasonReentrant)
		return nil
	case len(r.invariant.Invariants) == 0:
		e.skip(ctx, call, PhaseInvariantAfter, ReasonNoClauses)
		return nil
	}
	return e.runInvariant(ctx, call, r.invariant, st, PhaseInvariantAfter)
}

// establishInvariant is invariant-after for constructors. Only the
// most-derived constructor checks the invariant; on success, or when the
// check does not apply, it marks the receiver initialized.
func (e *Engine) establishInvariant(ctx context.Context, call *Call, r *resolved) error {
	if !call.mostDerived() {
		e.skip(ctx, call, PhaseInvariantAfter, ReasonNotMostDerived)
		return nil
	}

	st := stateOf(call.Receiver)
	var err error
	switch {
	case !r.guarded:
		e.skip(ctx, call, PhaseInvariantAfter, ReasonUnguarded)
	case !e.config.Invariant:
		e.skip(ctx, call, PhaseInvariantAfter, ReasonDisabled)
	case st != nil && st.checking:
		e.skip(ctx, call, PhaseInvariantAfter, ReasonReentrant)
	case len(r.invariant.Invariants) == 0:
		e.skip(ctx, call, PhaseInvariantAfter, ReasonNoClauses)
	default:
		err = e.runInvariant(ctx, call, r.invariant, e.receiverState(call), PhaseInvariantAfter)
	}
	if err != nil {
		return err
	}
	if st != nil {
		st.MarkInitialized()
	}
	return nil
}

// runInvariant evaluates every invariant clause with the receiver's
// checking flag raised, so guarded calls made from inside an invariant do
// not check it again. The flag is released however the check ends.
func (e *Engine) runInvariant(ctx context.Context, call *Call, tc *ir.TypeContract, st *State, phase Phase) error {
	if st != nil {
		st.checking = true
		defer func() { st.checking = false }()
	}

	start := time.Now()
	fr := &frame{receiver: call.Receiver}
	for i, clause := range tc.Invariants {
		ok, err := evalBool(e.evaluator, fr, clause.Assertion)
		if err != nil {
			err = wrapEvalError(err, KindInvariant, tc.Type, clause.String(), clause.DeclaringType)
			return e.finish(ctx, call, phase, e.typeFingerprint(tc), i+1, start, err)
		}
		if !ok {
			return e.finish(ctx, call, phase, e.typeFingerprint(tc), i+1, start, broken(KindInvariant, tc.Type, clause))
		}
	}
	return e.finish(ctx, call, phase, e.typeFingerprint(tc), len(tc.Invariants), start, nil)
}

func (e *Engine) snapshotOld(ctx context.Context, call *Call, r *resolved) (*OldSnapshot, error) {
	switch {
	case !r.guarded:
		e.skip(ctx, call, PhaseSnapshot, ReasonUnguarded)
		return NewOldSnapshot(0), nil
	case !e.config.Ensure:
		e.skip(ctx, call, PhaseSnapshot, ReasonDisabled)
		return NewOldSnapshot(0), nil
	case len(r.operation.OldSlots()) == 0:
		e.skip(ctx, call, PhaseSnapshot, ReasonNoClauses)
		return NewOldSnapshot(0), nil
	}

	start := time.Now()
	oc := r.operation
	snap := NewOldSnapshot(len(oc.OldSlots()))
	fr := &frame{receiver: call.Receiver, args: call.Args}

	// Walk the clauses rather than the slot list so a failing capture can
	// name the clause it belongs to.
	var err error
	for _, clause := range oc.Ensures {
		ir.Walk(clause.Assertion, func(n ir.Node) bool {
			if err != nil {
				return false
			}
			old, ok := n.(*ir.Old)
			if !ok {
				return true
			}
			slot, _ := oc.OldIndex(old)
			if snap.captured(slot) {
				return false
			}
			v, evalErr := evalValueIn(e.evaluator, fr, old.Inner, baseBindings(fr))
			if evalErr != nil {
				err = wrapEvalError(evalErr, KindEnsure, oc.Subject(), clause.String(), clause.DeclaringType)
				return false
			}
			snap.set(slot, v)
			return false
		})
		if err != nil {
			break
		}
	}
	if err := e.finish(ctx, call, PhaseSnapshot, e.operationFingerprint(oc), snap.Len(), start, err); err != nil {
		return nil, err
	}
	return snap, nil
}

func (e *Engine) checkPostcondition(ctx context.Context, call *Call, r *resolved, old *OldSnapshot, result any) error {
	switch {
	case !r.guarded:
		e.skip(ctx, call, PhaseEnsure, ReasonUnguarded)
		return nil
	case !e.config.Ensure:
		e.skip(ctx, call, PhaseEnsure, ReasonDisabled)
		return nil
	case len(r.operation.Ensures) == 0:
		e.skip(ctx, call, PhaseEnsure, ReasonNoClauses)
		return nil
	}

	if old == nil {
		old = NewOldSnapshot(0)
	}
	start := time.Now()
	oc := r.operation
	fr := &frame{
		receiver:  call.Receiver,
		args:      call.Args,
		hasResult: true,
		result:    result,
		contract:  oc,
		old:       old,
	}
	for i, clause := range oc.Ensures {
		ok, err := evalBool(e.evaluator, fr, clause.Assertion)
		if err != nil {
			err = wrapEvalError(err, KindEnsure, oc.Subject(), clause.String(), clause.DeclaringType)
			return e.finish(ctx, call, PhaseEnsure, e.operationFingerprint(oc), i+1, start, err)
		}
		if !ok {
			return e.finish(ctx, call, PhaseEnsure, e.operationFingerprint(oc), i+1, start, broken(KindEnsure, oc.Subject(), clause))
		}
	}
	return e.finish(ctx, call, PhaseEnsure, e.operationFingerprint(oc), len(oc.Ensures), start, nil)
}

// broken builds the violation for a clause that evaluated to false.
func broken(kind ViolationKind, subject string, clause *ir.Clause) *Violation {
	return &Violation{
		Kind:          kind,
		Subject:       subject,
		Clause:        clause.String(),
		DeclaringType: clause.DeclaringType,
	}
}
