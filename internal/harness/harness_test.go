package harness

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/covenant/internal/engine"
	"github.com/roach88/covenant/internal/store"
)

var stackSpec = filepath.Join("testdata", "specs", "stack.cue")

// stackScenario builds a constructed stack of capacity 1 followed by steps.
func stackScenario(steps ...Step) *Scenario {
	return &Scenario{
		Name:        "stack",
		Description: "test",
		Specs:       []string{stackSpec},
		Objects: map[string]ObjectSpec{
			"s": {Type: "Stack", State: map[string]any{"count": 0, "capacity": 0}},
		},
		Steps: append([]Step{
			{Construct: "s.newStack", Args: []any{1}, Set: map[string]any{"capacity": 1}},
		}, steps...),
	}
}

func TestRun_StepOutcomes(t *testing.T) {
	result, err := Run(stackScenario(
		Step{Call: "s.push", Args: []any{1}, Set: map[string]any{"count": 1}},
		Step{Call: "s.push", Args: []any{2}, Expect: ExpectRequire},
		Step{Call: "s.push", Args: []any{3}, Fail: "disk full", Expect: ExpectRequire},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Steps, 4)
	assert.Equal(t, ExpectPass, result.Steps[1].Outcome)
	assert.Equal(t, ExpectRequire, result.Steps[2].Outcome)
	assert.Equal(t, "Stack.push: count() < capacity() is broken", result.Steps[2].Message)
	assert.Equal(t, map[string]any{"count": 1, "capacity": 1}, result.State["s"])
}

func TestRun_EnsureViolation(t *testing.T) {
	result, err := Run(stackScenario(
		Step{Call: "s.push", Args: []any{1}, Expect: ExpectEnsure,
			Message: "Stack.push: count() == {old count()} + 1 is broken"},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, "ensure", last.Phase)
	assert.Equal(t, "violation", last.Outcome)
	assert.Equal(t, "Collection", last.DeclaringType)
}

func TestRun_BodyError(t *testing.T) {
	result, err := Run(stackScenario(
		Step{Call: "s.push", Args: []any{1}, Fail: "disk full", Expect: ExpectError, Message: "disk full"},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// require, invariant_before and snapshot ran; nothing after the body.
	assert.Equal(t, "snapshot", result.Trace[len(result.Trace)-1].Phase)
}

func TestRun_ReportsMismatches(t *testing.T) {
	result, err := Run(stackScenario(
		Step{Call: "s.push", Args: []any{1}, Set: map[string]any{"count": 1}, Expect: ExpectRequire},
		Step{Call: "s.push", Args: []any{2}, Expect: ExpectRequire, Message: "wrong"},
	))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "steps[1] s.push: expected require, got pass", result.Errors[0])
	assert.Contains(t, result.Errors[1], `steps[2] s.push: expected message "wrong"`)
}

func TestRun_Options(t *testing.T) {
	s := stackScenario(
		Step{Call: "s.push", Args: []any{1}, Set: map[string]any{"count": 5}},
	)
	s.Options = "require_check"

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	for _, ev := range result.Trace {
		if ev.Phase != "require" {
			assert.Equal(t, "skip", ev.Outcome, "seq %d", ev.Seq)
			assert.Equal(t, engine.ReasonDisabled, ev.Reason, "seq %d", ev.Seq)
		}
	}
}

func TestRun_LimitLeavesOtherTypesUnguarded(t *testing.T) {
	s := stackScenario()
	s.Options = "limit=Queue"

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Trace, 5)
	for _, ev := range result.Trace {
		assert.Equal(t, engine.ReasonUnguarded, ev.Reason, "seq %d", ev.Seq)
	}
	// Constructors still mark the receiver initialized.
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InitializedObject(t *testing.T) {
	s := &Scenario{
		Name:        "preset",
		Description: "test",
		Specs:       []string{stackSpec},
		Objects: map[string]ObjectSpec{
			"s": {Type: "Stack", State: map[string]any{"count": 3, "capacity": 2}, Initialized: true},
		},
		Steps: []Step{{Call: "s.count", Expect: ExpectInvariant, Message: "Stack: count() <= capacity() is broken"}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InvalidOptions(t *testing.T) {
	s := stackScenario()
	s.Options = "turbo"
	_, err := Run(s)
	assert.ErrorContains(t, err, "invalid options")
}

func TestRun_BadSpec(t *testing.T) {
	s := stackScenario()
	s.Specs = []string{filepath.Join(t.TempDir(), "missing.cue")}
	_, err := Run(s)
	assert.Error(t, err)
}

func TestRun_WithObserver(t *testing.T) {
	var seen []engine.Phase
	obs := engine.ObserverFunc(func(_ context.Context, ev engine.CheckEvent) {
		seen = append(seen, ev.Phase)
	})

	result, err := Run(stackScenario(), WithObserver(obs))
	require.NoError(t, err)
	assert.Len(t, seen, len(result.Trace))
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, ExpectPass, outcomeOf(nil))
	assert.Equal(t, ExpectRequire, outcomeOf(&engine.Violation{Kind: engine.KindRequire}))
	assert.Equal(t, ExpectEnsure, outcomeOf(&engine.Violation{Kind: engine.KindEnsure}))
	assert.Equal(t, ExpectInvariant, outcomeOf(&engine.Violation{Kind: engine.KindInvariant}))
	assert.Equal(t, ExpectError, outcomeOf(errors.New("boom")))
}

func TestObject_ContractBindingsReadLazily(t *testing.T) {
	o := newObject("o", ObjectSpec{Type: "T", State: map[string]any{"n": 1}})
	get := o.ContractBindings()["n"].(func() any)

	o.apply(map[string]any{"n": 2})
	assert.Equal(t, 2, get())
	assert.False(t, o.Initialized())

	o2 := newObject("o2", ObjectSpec{Type: "T", Initialized: true})
	assert.True(t, o2.Initialized())
}

func TestRun_WithEngineConfig(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Require = false

	result, err := Run(stackScenario(
		Step{Call: "s.push", Args: []any{1}, Set: map[string]any{"count": 1}},
		Step{Call: "s.push", Args: []any{2}, Set: map[string]any{"count": 2}, Expect: ExpectInvariant},
	), WithEngineConfig(cfg))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// Explicit scenario options take precedence.
	s := stackScenario(Step{Call: "s.push", Args: []any{1}, Set: map[string]any{"count": 1}})
	s.Options = "ensure_check,invariant_check"
	result, err = Run(s, WithEngineConfig(cfg))
	require.NoError(t, err)
	for _, ev := range result.Trace {
		assert.NotEqual(t, engine.ReasonDisabled, ev.Reason, "seq %d", ev.Seq)
	}
}

func TestRun_WithNamespacedCalls(t *testing.T) {
	result, err := Run(stackScenario(), WithNamespacedCalls())
	require.NoError(t, err)
	require.NotEmpty(t, result.Trace)
	assert.True(t, strings.HasPrefix(result.Trace[0].CallID, "stack/call"), result.Trace[0].CallID)
}

func TestCheckJournal(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, checkJournal(ctx, st, 0))

	require.NoError(t, st.RecordCheck(ctx, store.Check{
		CallID: "call-1", Seq: 1, Phase: engine.PhaseRequire,
		Kind: engine.KindRequire, Type: "Stack", Outcome: engine.OutcomePass,
	}))
	require.NoError(t, checkJournal(ctx, st, 1))
	assert.EqualError(t, checkJournal(ctx, st, 3), "journal: recorded through seq 1, engine reached seq 3")
}
