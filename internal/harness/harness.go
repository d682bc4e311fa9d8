package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/covenant/internal/engine"
	"github.com/roach88/covenant/internal/hostexpr"
	"github.com/roach88/covenant/internal/registry"
	"github.com/roach88/covenant/internal/store"
	"github.com/roach88/covenant/internal/testutil"
)

// Harness executes one scenario against a fresh engine.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	clock   *testutil.DeterministicClock
	ids     *testutil.SequentialIDs
	rec     *engine.Recorder
	objects map[string]*Object
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger     *slog.Logger
	observers  []engine.Observer
	config     *engine.Config
	namespaced bool
}

// WithLogger sends engine logs to logger. Logs are discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithObserver adds an observer after the recorder and the journal.
// Observers are called in the order given.
func WithObserver(o engine.Observer) Option {
	return func(c *runConfig) {
		c.observers = append(c.observers, o)
	}
}

// WithEngineConfig sets the engine configuration for scenarios that leave
// options empty. A scenario's own options always win.
func WithEngineConfig(cfg engine.Config) Option {
	return func(c *runConfig) {
		c.config = &cfg
	}
}

// WithNamespacedCalls prefixes call ids with the scenario name, so several
// scenarios can share one observer store without colliding.
func WithNamespacedCalls() Option {
	return func(c *runConfig) {
		c.namespaced = true
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal. Call ids and
// sequence numbers are deterministic, so equal scenarios give equal
// traces.
//
// Execution flow:
// 1. Load declarations from scenario.Specs into a new registry
// 2. Create the objects, in name order
// 3. Run every step, comparing its outcome with the expected one
// 4. Evaluate assertions against the trace, journal and final state
//
// A returned error means the scenario could not run; a scenario that ran
// but failed is reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	decls, err := LoadDeclarations(scenario.Specs)
	if err != nil {
		return nil, err
	}
	reg := registry.New(registry.WithLogger(cfg.logger))
	if err := reg.DeclareAll(decls); err != nil {
		return nil, fmt.Errorf("failed to declare types: %w", err)
	}

	engCfg, err := engine.ParseOptions(scenario.Options)
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if scenario.Options == "" && cfg.config != nil {
		engCfg = *cfg.config
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	prefix := scenario.CallPrefix
	if prefix == "" {
		prefix = "call"
	}
	if cfg.namespaced {
		prefix = scenario.Name + "/" + prefix
	}
	h := &Harness{
		store:   st,
		clock:   testutil.NewDeterministicClock(),
		ids:     testutil.NewSequentialIDs(prefix),
		rec:     &engine.Recorder{},
		objects: make(map[string]*Object, len(scenario.Objects)),
		logger:  cfg.logger,
	}

	engOpts := []engine.EngineOption{
		engine.WithConfig(engCfg),
		engine.WithLogger(cfg.logger),
		engine.WithIDGenerator(h.ids),
		engine.WithClock(h.clock),
		engine.WithObserver(h.rec),
		engine.WithObserver(store.NewJournal(st, store.WithSkipped(), store.WithJournalLogger(cfg.logger))),
	}
	for _, o := range cfg.observers {
		engOpts = append(engOpts, engine.WithObserver(o))
	}
	eval := hostexpr.New(hostexpr.WithLogger(cfg.logger))
	h.engine = engine.New(reg, eval, engOpts...)

	names := make([]string, 0, len(scenario.Objects))
	for name := range scenario.Objects {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.objects[name] = newObject(name, scenario.Objects[name])
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	for _, ev := range h.rec.Events {
		result.Trace = append(result.Trace, traceEventOf(ev))
	}
	for _, name := range names {
		result.State[name] = h.objects[name].Snapshot()
	}
	if err := checkJournal(ctx, st, h.clock.Current()); err != nil {
		result.AddError(err.Error())
	}
	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"events", len(result.Trace),
		"host_programs", eval.Cached())

	actx := &AssertionContext{
		Store:   st,
		Ctx:     ctx,
		Objects: h.objects,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// checkJournal verifies the scenario journal holds every event up to seq.
// Journal writes never fail a guarded call, so a lost row only shows here.
func checkJournal(ctx context.Context, st *store.Store, seq int64) error {
	last, err := st.LastSeq(ctx)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if last != seq {
		return fmt.Errorf("journal: recorded through seq %d, engine reached seq %d", last, seq)
	}
	return nil
}

// executeStep runs one guarded call and records its outcome.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	objName, op, _ := strings.Cut(step.Target(), ".")
	obj := h.objects[objName]

	typ := obj.Type
	if step.As != "" {
		typ = step.As
	}
	call := h.engine.NewCall(typ, op, obj, slices.Clone(step.Args)...)
	call.Dynamic = obj.Type

	var err error
	if step.Construct != "" {
		err = h.engine.Construct(ctx, call, func() error {
			return h.body(obj, step)
		})
	} else {
		_, err = h.engine.Invoke(ctx, call, func() (any, error) {
			if err := h.body(obj, step); err != nil {
				return nil, err
			}
			return step.Result, nil
		})
	}

	sr := StepResult{Index: index, Target: step.Target(), Outcome: outcomeOf(err)}
	if err != nil {
		sr.Message = err.Error()
	}
	result.Steps = append(result.Steps, sr)

	h.logger.Debug("step finished",
		"index", index,
		"call_id", call.ID,
		"target", sr.Target,
		"outcome", sr.Outcome)

	if sr.Outcome != step.Expected() {
		detail := ""
		if sr.Message != "" {
			detail = " (" + sr.Message + ")"
		}
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s%s",
			index, sr.Target, step.Expected(), sr.Outcome, detail))
		return
	}
	if step.Message != "" && step.Message != sr.Message {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected message %q, got %q",
			index, sr.Target, step.Message, sr.Message))
	}
}

// body is the guarded body of a step.
func (h *Harness) body(obj *Object, step Step) error {
	if step.Fail != "" {
		return errors.New(step.Fail)
	}
	obj.apply(step.Set)
	return nil
}

// outcomeOf maps a call error to a step outcome.
func outcomeOf(err error) string {
	if err == nil {
		return ExpectPass
	}
	if v, ok := engine.AsViolation(err); ok {
		switch v.Kind {
		case engine.KindRequire:
			return ExpectRequire
		case engine.KindEnsure:
			return ExpectEnsure
		case engine.KindInvariant:
			return ExpectInvariant
		}
	}
	return ExpectError
}
