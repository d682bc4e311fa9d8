package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/roach88/covenant/internal/ir"
	"github.com/roach88/covenant/internal/registry"
)

// CallIDGenerator generates unique ids correlating the hooks of one call.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type CallIDGenerator interface {
	Generate() string
}

// Sequencer hands out the strictly increasing Seq of check events.
// Implemented by Clock.
type Sequencer interface {
	Next() int64
}

// Engine runs the guarded-call protocol against the contracts of a
// registry.
//
// Thread-safety model:
//   - All methods are safe to call from any goroutine; composed contracts
//     come from the registry's concurrent cache.
//   - Per-receiver State is not synchronized. Concurrent guarded calls on
//     the same receiver must be serialized by the caller.
//   - Observers are called synchronously from the goroutine of the call.
type Engine struct {
	registry  *registry.Registry
	evaluator Evaluator
	config    Config
	observer  Observer
	logger    *slog.Logger
	clock     Sequencer
	ids       CallIDGenerator

	// stateless records types whose receivers carry no State, so the
	// warning is logged once per type.
	stateless sync.Map

	// fingerprints caches contract fingerprints by contract pointer.
	fingerprints sync.Map
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithObserver adds an observer. Several observers are called in the
// order they were added.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		switch cur := e.observer.(type) {
		case nil:
			e.observer = o
		case MultiObserver:
			e.observer = append(cur, o)
		default:
			e.observer = MultiObserver{cur, o}
		}
	}
}

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithIDGenerator sets the generator for call ids.
//
// Default: UUIDv7Generator.
// Use NewFixedGenerator in tests for stable ids.
func WithIDGenerator(gen CallIDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = gen
	}
}

// WithClock sets the logical clock stamping check events.
func WithClock(c Sequencer) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine over reg, evaluating assertions with eval.
func New(reg *registry.Registry, eval Evaluator, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:  reg,
		evaluator: eval,
		config:    DefaultConfig(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:     NewClock(),
		ids:       UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Registry returns the contract registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Call identifies one guarded operation call.
type Call struct {
	// ID correlates the hooks of this call in check events.
	ID string

	// Type is the declared type whose operation is being called.
	Type string

	// Dynamic is the most-derived type of the receiver. It only matters
	// for constructors: the invariant is established by the constructor of
	// the most-derived type. Empty means Type.
	Dynamic string

	Operation string
	Receiver  any
	Args      []any
}

// NewCall creates a Call with a fresh id.
func (e *Engine) NewCall(typ, op string, receiver any, args ...any) *Call {
	return &Call{
		ID:        e.ids.Generate(),
		Type:      typ,
		Operation: op,
		Receiver:  receiver,
		Args:      args,
	}
}

// mostDerived reports whether Type is the receiver's most-derived type.
func (c *Call) mostDerived() bool {
	return c.Dynamic == "" || c.Dynamic == c.Type
}

// resolved is the contract view a call needs.
type resolved struct {
	guarded   bool
	operation *ir.OperationContract
	invariant *ir.TypeContract

	// construct is set by Construct for operations not declared as
	// constructors.
	construct bool
}

func (r *resolved) constructor() bool {
	return r.construct || (r.operation != nil && r.operation.Constructor)
}

// resolve composes the contracts of call. Calls on types that are not
// guarded resolve to guarded=false and no contracts. An operation declared
// nowhere in the hierarchy gets an empty, impure contract, so invariants
// still apply to it.
func (e *Engine) resolve(call *Call) (*resolved, error) {
	if !e.config.Instruments(call.Type) || !e.registry.Guarded(call.Type) {
		return &resolved{}, nil
	}

	oc, err := e.registry.Operation(call.Type, call.Operation)
	if errors.Is(err, registry.ErrUnknownOperation) {
		oc, err = ir.NewOperationContract(call.Type, call.Operation, nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("contract for %s.%s: %w", call.Type, call.Operation, err)
	}

	tc, err := e.registry.Type(call.Type)
	if err != nil {
		return nil, fmt.Errorf("invariant for %s: %w", call.Type, err)
	}
	return &resolved{guarded: true, operation: oc, invariant: tc}, nil
}

// receiverState returns the State of call's receiver. A receiver without
// one is checked without the reentrancy guard; that is logged once per
// type.
func (e *Engine) receiverState(call *Call) *State {
	st := stateOf(call.Receiver)
	if st == nil && call.Receiver != nil {
		if _, seen := e.stateless.LoadOrStore(call.Type, true); !seen {
			e.logger.Warn("receiver has no contract state, invariant checks are unguarded",
				"type", call.Type,
				"go_type", reflect.TypeOf(call.Receiver).String())
		}
	}
	return st
}

// observe stamps and forwards one event.
func (e *Engine) observe(ctx context.Context, call *Call, ev CheckEvent, start time.Time) {
	if e.observer == nil {
		return
	}
	ev.CallID = call.ID
	ev.Seq = e.clock.Next()
	ev.Type = call.Type
	ev.Operation = call.Operation
	if !start.IsZero() {
		ev.Duration = time.Since(start)
	}
	e.observer.ObserveCheck(ctx, ev)
}

func (e *Engine) skip(ctx context.Context, call *Call, phase Phase, reason string) {
	e.logger.Debug("check skipped",
		"call_id", call.ID,
		"phase", phase,
		"type", call.Type,
		"operation", call.Operation,
		"reason", reason)
	e.observe(ctx, call, CheckEvent{Phase: phase, Outcome: OutcomeSkip, Reason: reason}, time.Time{})
}

// finish reports the outcome of an executed phase and returns err.
func (e *Engine) finish(ctx context.Context, call *Call, phase Phase, fingerprint string, clauses int, start time.Time, err error) error {
	ev := CheckEvent{
		Phase:       phase,
		Outcome:     OutcomePass,
		Fingerprint: fingerprint,
		Clauses:     clauses,
	}
	if err != nil {
		ev.Outcome = OutcomeViolation
		ev.Message = err.Error()
		if v, ok := AsViolation(err); ok {
			ev.Clause = v.Clause
			ev.DeclaringType = v.DeclaringType
		}
		e.logger.Warn("contract violation",
			"call_id", call.ID,
			"phase", phase,
			"type", call.Type,
			"operation", call.Operation,
			"error", err)
	}
	e.observe(ctx, call, ev, start)
	return err
}

func (e *Engine) operationFingerprint(oc *ir.OperationContract) string {
	if e.observer == nil {
		return ""
	}
	if fp, ok := e.fingerprints.Load(oc); ok {
		return fp.(string)
	}
	fp, err := ir.OperationFingerprint(oc)
	if err != nil {
		e.logger.Error("fingerprint failed", "subject", oc.Subject(), "error", err)
		return ""
	}
	e.fingerprints.Store(oc, fp)
	return fp
}

func (e *Engine) typeFingerprint(tc *ir.TypeContract) string {
	if e.observer == nil {
		return ""
	}
	if fp, ok := e.fingerprints.Load(tc); ok {
		return fp.(string)
	}
	fp, err := ir.TypeFingerprint(tc)
	if err != nil {
		e.logger.Error("fingerprint failed", "type", tc.Type, "error", err)
		return ""
	}
	e.fingerprints.Store(tc, fp)
	return fp
}
