package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/covenant/internal/engine"
	"github.com/roach88/covenant/internal/ir"
	"github.com/roach88/covenant/internal/registry"
)

func journalEngine(t *testing.T, j *Journal) *engine.Engine {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Declare(ir.TypeDecl{
		Name: "Counter",
		Operations: []ir.OperationDecl{
			{Name: "inc", Requires: []string{"{arg 1} > 0"}},
		},
	}))
	// Accept the call only when the argument is positive.
	eval := engine.EvaluatorFunc(func(expr string, bindings map[string]any) (any, error) {
		return bindings["_arg1"].(int) > 0, nil
	})
	return engine.New(reg, eval,
		engine.WithObserver(j),
		engine.WithIDGenerator(engine.NewFixedGenerator("call-1", "call-2")))
}

func TestJournal_RecordsExecutedPhases(t *testing.T) {
	s := createTestStore(t)
	eng := journalEngine(t, NewJournal(s))
	ctx := context.Background()

	_, err := eng.Invoke(ctx, eng.NewCall("Counter", "inc", nil, 1), func() (any, error) { return nil, nil })
	require.NoError(t, err)
	_, err = eng.Invoke(ctx, eng.NewCall("Counter", "inc", nil, -1), func() (any, error) { return nil, nil })
	require.True(t, engine.IsRequireViolation(err))

	checks, err := s.ListChecks(ctx, CheckFilter{})
	require.NoError(t, err)
	require.Len(t, checks, 2)

	assert.Equal(t, "call-1", checks[0].CallID)
	assert.Equal(t, engine.OutcomePass, checks[0].Outcome)
	assert.Len(t, checks[0].Fingerprint, 64)

	assert.Equal(t, "call-2", checks[1].CallID)
	assert.Equal(t, engine.OutcomeViolation, checks[1].Outcome)
	assert.Equal(t, "{arg 1} > 0", checks[1].Clause)
	assert.Equal(t, "Counter.inc: {arg 1} > 0 is broken", checks[1].Message)
	assert.Equal(t, checks[0].Fingerprint, checks[1].Fingerprint)
}

func TestJournal_WithSkipped(t *testing.T) {
	s := createTestStore(t)
	eng := journalEngine(t, NewJournal(s, WithSkipped()))
	ctx := context.Background()

	_, err := eng.Invoke(ctx, eng.NewCall("Counter", "inc", nil, 1), func() (any, error) { return nil, nil })
	require.NoError(t, err)

	checks, err := s.ListChecks(ctx, CheckFilter{CallID: "call-1"})
	require.NoError(t, err)
	// require, invariant_before, snapshot, invariant_after, ensure
	assert.Len(t, checks, 5)
}

func TestJournal_WriteFailureDoesNotFailCall(t *testing.T) {
	s := createTestStore(t)
	eng := journalEngine(t, NewJournal(s))
	require.NoError(t, s.Close())

	_, err := eng.Invoke(context.Background(), eng.NewCall("Counter", "inc", nil, 1), func() (any, error) {
		return nil, nil
	})
	assert.NoError(t, err)
}
