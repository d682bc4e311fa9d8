package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/covenant/internal/ir"
)

// account is a receiver with no contract state of its own.
type account struct {
	State
	balance int
}

func (a *account) Balance() int { return a.balance }

func weakeningDecls() []ir.TypeDecl {
	return []ir.TypeDecl{
		{
			Name: "Base",
			Operations: []ir.OperationDecl{
				{Name: "withdraw", Requires: []string{"{arg 1} > 0"}},
				{Name: "score", Ensures: []string{"{result} >= 0"}},
			},
		},
		{
			Name:    "Inheriting",
			Parents: []string{"Base"},
			Operations: []ir.OperationDecl{
				{Name: "score", Ensures: []string{"{result} == 2"}},
			},
		},
		{
			Name:    "Relaxed",
			Parents: []string{"Base"},
			Operations: []ir.OperationDecl{
				{Name: "withdraw", Requires: []string{"true"}},
			},
		},
		{
			Name:    "Strict",
			Parents: []string{"Base"},
			Operations: []ir.OperationDecl{
				{Name: "withdraw", Requires: []string{"{arg 1} > 10", "{arg 1} < 100"}},
			},
		},
	}
}

func TestCheckPrecondition_InheritedClauseStillEnforced(t *testing.T) {
	eng, _ := newTestEngine(t, weakeningDecls())
	ctx := context.Background()
	a := &account{}

	err := eng.CheckPrecondition(ctx, eng.NewCall("Inheriting", "withdraw", a, -1))
	require.Error(t, err)
	assert.True(t, IsRequireViolation(err))
	assert.EqualError(t, err, "Inheriting.withdraw: {arg 1} > 0 is broken")

	assert.NoError(t, eng.CheckPrecondition(ctx, eng.NewCall("Inheriting", "withdraw", a, 1)))
}

func TestCheckPrecondition_OwnTrueClauseWeakens(t *testing.T) {
	eng, _ := newTestEngine(t, weakeningDecls())
	ctx := context.Background()

	for _, arg := range []int{-5, 0, 1} {
		assert.NoError(t, eng.CheckPrecondition(ctx, eng.NewCall("Relaxed", "withdraw", &account{}, arg)))
	}
}

func TestCheckPrecondition_ReportsOwnClause(t *testing.T) {
	eng, rec := newTestEngine(t, weakeningDecls())
	ctx := context.Background()

	// Base fails on -1, then Strict's first clause fails.
	err := eng.CheckPrecondition(ctx, eng.NewCall("Strict", "withdraw", &account{}, -1))
	v, ok := AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, "{arg 1} > 10", v.Clause)
	assert.Equal(t, "Strict", v.DeclaringType)
	assert.Equal(t, 2, rec.Events[0].Clauses)

	// Base holds on 5: Strict's group is never tried.
	rec.Reset()
	require.NoError(t, eng.CheckPrecondition(ctx, eng.NewCall("Strict", "withdraw", &account{}, 5)))
	assert.Equal(t, 1, rec.Events[0].Clauses)
}

func TestCheckPrecondition_HostErrorAbortsImmediately(t *testing.T) {
	decls := []ir.TypeDecl{
		{Name: "Base", Operations: []ir.OperationDecl{{Name: "op", Requires: []string{"undefinedFn()"}}}},
		{Name: "Child", Parents: []string{"Base"}, Operations: []ir.OperationDecl{{Name: "op", Requires: []string{"true"}}}},
	}
	eng, _ := newTestEngine(t, decls)

	err := eng.CheckPrecondition(context.Background(), eng.NewCall("Child", "op", &account{}))
	require.Error(t, err)
	v, ok := AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, KindRequire, v.Kind)
	assert.Equal(t, "Base", v.DeclaringType)
	require.Error(t, v.Cause)
	assert.Contains(t, err.Error(), "Child.op: undefinedFn(), ")
}

func TestCheckPrecondition_ArgOutOfRange(t *testing.T) {
	eng, _ := newTestEngine(t, weakeningDecls())

	err := eng.CheckPrecondition(context.Background(), eng.NewCall("Base", "withdraw", &account{}))
	v, ok := AsViolation(err)
	require.True(t, ok)
	assert.ErrorContains(t, v.Cause, "{arg 1} out of range")
}

func TestCheckPostcondition_Strengthening(t *testing.T) {
	eng, _ := newTestEngine(t, weakeningDecls())
	ctx := context.Background()
	call := eng.NewCall("Inheriting", "score", &account{})

	err := eng.CheckPostcondition(ctx, call, nil, -1)
	require.Error(t, err)
	assert.True(t, IsEnsureViolation(err))
	v, _ := AsViolation(err)
	assert.Equal(t, "{result} >= 0", v.Clause)
	assert.Equal(t, "Base", v.DeclaringType)

	err = eng.CheckPostcondition(ctx, call, nil, 3)
	v, _ = AsViolation(err)
	assert.Equal(t, "{result} == 2", v.Clause)

	assert.NoError(t, eng.CheckPostcondition(ctx, call, nil, 2))
}

func TestCheckPostcondition_NonBoolean(t *testing.T) {
	decls := []ir.TypeDecl{{Name: "T", Operations: []ir.OperationDecl{{Name: "op", Ensures: []string{"{result} + 1"}}}}}
	eng, _ := newTestEngine(t, decls)

	err := eng.CheckPostcondition(context.Background(), eng.NewCall("T", "op", &account{}), nil, 1)
	v, ok := AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, KindEnsure, v.Kind)
	assert.ErrorContains(t, v.Cause, "not bool")
}

func TestSnapshotOld_HooksInSequence(t *testing.T) {
	decls := []ir.TypeDecl{{
		Name: "Account",
		Operations: []ir.OperationDecl{{
			Name:    "deposit",
			Ensures: []string{"balance() == {old balance()} + {arg 1}", "{old balance()} >= 0"},
		}},
	}}
	eng, _ := newTestEngine(t, decls)
	ctx := context.Background()
	a := &account{balance: 10}
	call := eng.NewCall("Account", "deposit", a, 5)

	require.NoError(t, eng.CheckPrecondition(ctx, call))
	require.NoError(t, eng.CheckInvariantBefore(ctx, call))
	old, err := eng.SnapshotOld(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, 2, old.Len())
	v0, ok := old.Value(0)
	require.True(t, ok)
	assert.Equal(t, 10, v0)

	a.balance += 5
	require.NoError(t, eng.CheckInvariantAfter(ctx, call))
	require.NoError(t, eng.CheckPostcondition(ctx, call, old, nil))

	a.balance += 1
	assert.True(t, IsEnsureViolation(eng.CheckPostcondition(ctx, call, old, nil)))
}

func TestSnapshotOld_FailureNamesClause(t *testing.T) {
	decls := []ir.TypeDecl{{
		Name:       "Account",
		Operations: []ir.OperationDecl{{Name: "close", Ensures: []string{"{old missing()} == 0"}}},
	}}
	eng, rec := newTestEngine(t, decls)

	_, err := eng.SnapshotOld(context.Background(), eng.NewCall("Account", "close", &account{}))
	require.Error(t, err)
	v, ok := AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, KindEnsure, v.Kind)
	assert.Equal(t, "{old missing()} == 0", v.Clause)
	assert.NotNil(t, v.Cause)
	assert.Equal(t, []string{"snapshot:violation"}, rec.Phases())
}

func TestCheckPostcondition_MissingSnapshot(t *testing.T) {
	decls := []ir.TypeDecl{{
		Name:       "Account",
		Operations: []ir.OperationDecl{{Name: "close", Ensures: []string{"{old balance()} == 0"}}},
	}}
	eng, _ := newTestEngine(t, decls)

	err := eng.CheckPostcondition(context.Background(), eng.NewCall("Account", "close", &account{}), nil, nil)
	v, ok := AsViolation(err)
	require.True(t, ok)
	assert.ErrorContains(t, v.Cause, "not captured")
}

func TestReceiverWithoutState(t *testing.T) {
	decls := []ir.TypeDecl{{Name: "Plain", Invariants: []string{"_ok"}}}
	eng, _ := newTestEngine(t, decls)

	eval := func(expr string, bindings map[string]any) (any, error) {
		return true, nil
	}
	eng.evaluator = EvaluatorFunc(eval)

	// A plain value is always treated as initialized.
	call := eng.NewCall("Plain", "op", struct{ n int }{1})
	assert.NoError(t, eng.CheckInvariantBefore(context.Background(), call))
	assert.NoError(t, eng.CheckInvariantAfter(context.Background(), call))
}

func TestCheckEvent_Fingerprint(t *testing.T) {
	eng, rec := newTestEngine(t, weakeningDecls())

	require.NoError(t, eng.CheckPrecondition(context.Background(), eng.NewCall("Relaxed", "withdraw", &account{}, 1)))
	require.NoError(t, eng.CheckPrecondition(context.Background(), eng.NewCall("Relaxed", "withdraw", &account{}, 2)))

	require.Len(t, rec.Events, 2)
	assert.Len(t, rec.Events[0].Fingerprint, 64)
	assert.Equal(t, rec.Events[0].Fingerprint, rec.Events[1].Fingerprint)
	assert.Equal(t, "Relaxed.withdraw", rec.Events[0].Subject())
}
