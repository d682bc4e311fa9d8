package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/covenant/internal/ir"
)

func TestParseClauseValid(t *testing.T) {
	tests := []struct {
		kind ir.ClauseKind
		src  string
	}{
		{ir.KindRequire, "{arg 1} > 0"},
		{ir.KindRequire, "{forall(int x: {arg 1}) x > 0}"},
		{ir.KindEnsure, "count() == {old count()} + 1"},
		{ir.KindEnsure, "{old get({arg 1})} != {result}"},
		{ir.KindEnsure, "{exists(int x: items()) x == {result}}"},
		{ir.KindInvariant, "count() >= 0"},
		{ir.KindInvariant, "{forall(Item i: items()) i != nil}"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+" "+tt.src, func(t *testing.T) {
			clause, err := ParseClause(tt.kind, "Stack", tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, clause.Kind)
			assert.Equal(t, "Stack", clause.DeclaringType)
			assert.Equal(t, tt.src, clause.Source)
			assert.Equal(t, tt.src, clause.String())
		})
	}
}

func TestParseClauseKindViolations(t *testing.T) {
	tests := []struct {
		name string
		kind ir.ClauseKind
		src  string
		code string
	}{
		{"old in require", ir.KindRequire, "{old count()} > 0", ErrOldInRequire},
		{"result in require", ir.KindRequire, "{result} > 0", ErrResultInRequire},
		{"result in require quantifier", ir.KindRequire, "{forall(T v: xs) v == {result}}", ErrResultInRequire},
		{"arg in invariant", ir.KindInvariant, "{arg 1} > 0", ErrArgInInvariant},
		{"old in invariant", ir.KindInvariant, "{old count()} > 0", ErrOldInInvariant},
		{"result in invariant", ir.KindInvariant, "{result}", ErrResultInInvariant},
		{"result in old", ir.KindEnsure, "{old f({result})} > 0", ErrResultInOld},
		{"forall in old", ir.KindEnsure, "{old {forall(T v: xs) true}}", ErrQuantifierInOld},
		{"exists in old", ir.KindEnsure, "{old {exists(T v: xs) true}}", ErrQuantifierInOld},
		{"nested old", ir.KindEnsure, "{old {old x}}", ErrNestedOld},
		{"unknown kind", ir.ClauseKind("assume"), "true", ErrUnknownClauseKind},
		{"empty", ir.KindInvariant, "   ", ErrEmptyClause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClause(tt.kind, "Stack", tt.src)
			require.Error(t, err)
			assert.True(t, IsClauseError(err))
			assert.False(t, IsSyntaxError(err))

			var ce *ClauseError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.code, ce.Code)
			assert.Equal(t, "Stack", ce.DeclaringType)
			assert.Equal(t, tt.src, ce.Source)
		})
	}
}

func TestClauseErrorReportsOffset(t *testing.T) {
	_, err := ParseClause(ir.KindRequire, "Stack", "x > 0 && {result}")
	require.Error(t, err)

	ce := err.(*ClauseError)
	assert.Equal(t, 9, ce.Offset)
	assert.Equal(t, "[E121] Stack require {x > 0 && {result}}: {result} is not allowed in a precondition at 9", ce.Error())
}

func TestParseClauseSyntaxError(t *testing.T) {
	_, err := ParseClause(ir.KindEnsure, "Stack", "{old count()")
	require.Error(t, err)
	assert.True(t, IsSyntaxError(err))
}

func TestValidateClauseNil(t *testing.T) {
	err := ValidateClause(ir.KindRequire, nil)
	require.Error(t, err)
	assert.Equal(t, ErrEmptyClause, err.(*ClauseError).Code)
}
