package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/covenant/internal/compiler"
	"github.com/roach88/covenant/internal/hostexpr"
	"github.com/roach88/covenant/internal/ir"
)

// recordingEvaluator returns true and remembers what it was asked.
type recordingEvaluator struct {
	exprs    []string
	bindings []map[string]any
}

func (r *recordingEvaluator) Evaluate(expr string, bindings map[string]any) (any, error) {
	r.exprs = append(r.exprs, expr)
	r.bindings = append(r.bindings, bindings)
	return true, nil
}

func TestRender_ReplacesDirectives(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"arg", "{arg 1} > 0", "_arg1 > 0"},
		{"result", "{result} == {arg 2}", "_result == _arg2"},
		{"adjacent", "{arg 1}{arg 2}", "_arg1 _arg2"},
		{"ident after directive", "{arg 1}or true", "_arg1 or true"},
		{"parentheses kept", "(({arg 1} + 1) * 2) > 0", "((_arg1 + 1) * 2) > 0"},
		{"member access", "{arg 1}.Name != \"\"", "_arg1.Name != \"\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingEvaluator{}
			fr := &frame{args: []any{1, 2}, hasResult: true, result: 3}

			_, err := evalBool(rec, fr, compiler.MustParse(tt.src))
			require.NoError(t, err)
			require.Len(t, rec.exprs, 1)
			assert.Equal(t, tt.want, rec.exprs[0])
		})
	}
}

func TestRender_Bindings(t *testing.T) {
	rec := &recordingEvaluator{}
	self := &account{}
	fr := &frame{receiver: self, args: []any{"x"}, hasResult: true, result: 9}

	_, err := evalBool(rec, fr, compiler.MustParse("{arg 1} != {result}"))
	require.NoError(t, err)

	b := rec.bindings[0]
	assert.Same(t, self, b[BindSelf])
	assert.Equal(t, "x", b["_arg1"])
	assert.Equal(t, 9, b[BindResult])
}

func TestRender_ResultOutsidePostcondition(t *testing.T) {
	_, err := evalBool(&recordingEvaluator{}, &frame{}, compiler.MustParse("{result} > 0"))
	assert.ErrorContains(t, err, "only available in postconditions")
}

func TestRender_OldReadsSnapshotSlot(t *testing.T) {
	seq := compiler.MustParse("{old {arg 1}} < {arg 1}")
	clause := &ir.Clause{Kind: ir.KindEnsure, DeclaringType: "T", Assertion: seq}
	oc := ir.NewOperationContract("T", "op", nil, []*ir.Clause{clause})
	snap := NewOldSnapshot(1)
	snap.set(0, 1)

	rec := &recordingEvaluator{}
	fr := &frame{args: []any{5}, hasResult: true, contract: oc, old: snap}
	_, err := evalBool(rec, fr, seq)
	require.NoError(t, err)

	assert.Equal(t, "_old0 < _arg1", rec.exprs[0])
	assert.Equal(t, 1, rec.bindings[0]["_old0"])
}

func TestQuantifiers(t *testing.T) {
	eval := hostexpr.New()
	tests := []struct {
		name string
		src  string
		args []any
		want bool
	}{
		{"forall over empty is true", "{forall (Item i: []) false}", nil, true},
		{"exists over empty is false", "{exists (Item i: []) true}", nil, false},
		{"forall over nil is true", "{forall (Item i: {arg 1}) false}", []any{nil}, true},
		{"forall holds", "{forall (Item i: [1, 2, 3]) i > 0}", nil, true},
		{"forall fails", "{forall (Item i: [1, -2, 3]) i > 0}", nil, false},
		{"exists holds", "{exists (Item i: [1, -2, 3]) i < 0}", nil, true},
		{"exists fails", "{exists (Item i: [1, 2]) i < 0}", nil, false},
		{"arg keeps outer meaning", "{forall (Item i: [1, 2, 3]) i <= {arg 1}}", []any{3}, true},
		{"source from arg", "{exists (Item s: {arg 1}) s == \"b\"}", []any{[]string{"a", "b"}}, true},
		{"nested quantifiers", "{forall (Item i: [1, 2]) {exists (Item j: [2, 4]) j == i * 2}}", nil, true},
		{"inner variable shadows outer", "{forall (Item i: [1, 2]) {exists (Item i: [7]) i == 7}}", nil, true},
		{"combined with chunks", "{arg 1} > 0 && ({forall (Item i: []) false})", []any{1}, true},
		{"negated quantifier", "!{exists (Item i: [1]) i == 2}", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &frame{args: tt.args}
			got, err := evalBool(eval, fr, compiler.MustParse(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuantifiers_ShortCircuit(t *testing.T) {
	calls := 0
	eval := EvaluatorFunc(func(expr string, bindings map[string]any) (any, error) {
		switch expr {
		case "src":
			return []any{1, 2, 3}, nil
		case "body":
			calls++
			return false, nil
		}
		return bindings["_q0"], nil
	})

	got, err := evalBool(eval, &frame{}, compiler.MustParse("{forall (Item i: src) body}"))
	require.NoError(t, err)
	assert.False(t, got)
	assert.Equal(t, 1, calls, "forall stops at the first false body")
}

func TestQuantifiers_BadSource(t *testing.T) {
	_, err := evalBool(hostexpr.New(), &frame{}, compiler.MustParse("{forall (Item i: 42) true}"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "cannot iterate over int")
}
