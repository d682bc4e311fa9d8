package engine

import (
	"context"
	"fmt"
)

// Invoke runs body under the full guarded-call protocol:
//
//	precondition → invariant-before → old snapshot → body
//	→ invariant-after → postcondition
//
// The first violation aborts the remaining steps and is returned as is.
// If body returns an error, that error is returned and invariant-after and
// the postcondition are skipped. Panics in body propagate; receiver state
// is left consistent.
func (e *Engine) Invoke(ctx context.Context, call *Call, body func() (any, error)) (any, error) {
	r, err := e.resolve(call)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, call, r, body)
}

// Construct runs body as a constructor of call.Type under the guarded-call
// protocol. No invariant is checked before body. After it, the invariant
// is checked only when call.Type is the receiver's most-derived type, and
// the receiver is then marked initialized. {result} in the constructor's
// postcondition is the receiver.
func (e *Engine) Construct(ctx context.Context, call *Call, body func() error) error {
	r, err := e.resolve(call)
	if err != nil {
		return err
	}
	r.construct = true
	_, err = e.run(ctx, call, r, func() (any, error) {
		if err := body(); err != nil {
			return nil, err
		}
		return call.Receiver, nil
	})
	return err
}

func (e *Engine) run(ctx context.Context, call *Call, r *resolved, body func() (any, error)) (any, error) {
	if err := e.checkPrecondition(ctx, call, r); err != nil {
		return nil, err
	}
	if err := e.checkInvariantBefore(ctx, call, r); err != nil {
		return nil, err
	}
	old, err := e.snapshotOld(ctx, call, r)
	if err != nil {
		return nil, err
	}

	result, err := body()
	if err != nil {
		e.logger.Debug("guarded body failed",
			"call_id", call.ID,
			"type", call.Type,
			"operation", call.Operation,
			"error", err)
		return result, err
	}

	if err := e.checkInvariantAfter(ctx, call, r); err != nil {
		return nil, err
	}
	if err := e.checkPostcondition(ctx, call, r, old, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Guard is the typed form of Invoke for a method of typ named op.
//
//	func (s *Stack) Push(ctx context.Context, x any) error {
//		_, err := engine.Guard(ctx, eng, "Stack", "push", s, func() (struct{}, error) {
//			s.items = append(s.items, x)
//			return struct{}{}, nil
//		}, x)
//		return err
//	}
func Guard[T any](ctx context.Context, e *Engine, typ, op string, receiver any, body func() (T, error), args ...any) (T, error) {
	var zero T
	out, err := e.Invoke(ctx, e.NewCall(typ, op, receiver, args...), func() (any, error) {
		return body()
	})
	if err != nil {
		if v, ok := out.(T); ok {
			return v, err
		}
		return zero, err
	}
	v, ok := out.(T)
	if !ok && out != nil {
		return zero, fmt.Errorf("%s.%s: result has type %T", typ, op, out)
	}
	return v, nil
}
