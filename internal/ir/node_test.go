package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seq builds an unparenthesized sequence from nodes.
func seq(nodes ...Node) *Sequence {
	return &Sequence{Nodes: nodes}
}

func paren(nodes ...Node) *Sequence {
	return &Sequence{Nodes: nodes, Parenthesized: true}
}

func chunk(s string) *Chunk {
	return &Chunk{Text: s}
}

func TestSequenceEmpty(t *testing.T) {
	assert.True(t, seq().Empty())
	assert.True(t, seq(chunk("  "), chunk("\t\n")).Empty())
	assert.False(t, seq(chunk(" x ")).Empty())
	assert.False(t, seq(&Result{}).Empty())
	assert.False(t, seq(paren()).Empty(), "nested group counts as content")
}

func TestRenderDirectives(t *testing.T) {
	tests := []struct {
		name     string
		node     Node
		expected string
	}{
		{"chunk", chunk("a > b"), "a > b"},
		{"arg", &Arg{Index: 2}, "{arg 2}"},
		{"result", &Result{}, "{result}"},
		{"old", &Old{Inner: seq(chunk("count"), paren())}, "{old count()}"},
		{
			"forall",
			&Forall{Type: "int", Var: "x", Source: seq(chunk("items"), paren()), Body: seq(chunk("x > 0"))},
			"{forall(int x: items()) x > 0}",
		},
		{
			"exists",
			&Exists{Type: "pkg.Item", Var: "i", Source: seq(&Arg{Index: 1}), Body: seq(chunk("i == "), &Result{})},
			"{exists(pkg.Item i: {arg 1}) i == {result}}",
		},
		{"parenthesized", paren(chunk("a || b")), "(a || b)"},
		{"nested", seq(chunk("f"), paren(chunk("g"), paren(chunk("1")))), "f(g(1))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.node.String())
		})
	}
}

func TestWalkOrder(t *testing.T) {
	// {arg 1} > 0 && {forall(T v: {old xs()}) v == {result}}
	old := &Old{Inner: seq(chunk("xs"), paren())}
	tree := seq(
		&Arg{Index: 1},
		chunk(" > 0 && "),
		&Forall{Type: "T", Var: "v", Source: seq(old), Body: seq(chunk("v == "), &Result{})},
	)

	var kinds []string
	Walk(tree, func(n Node) bool {
		switch n.(type) {
		case *Arg:
			kinds = append(kinds, "arg")
		case *Old:
			kinds = append(kinds, "old")
		case *Result:
			kinds = append(kinds, "result")
		case *Forall:
			kinds = append(kinds, "forall")
		}
		return true
	})

	assert.Equal(t, []string{"arg", "forall", "old", "result"}, kinds)
}

func TestWalkSkipsChildren(t *testing.T) {
	tree := seq(&Old{Inner: seq(&Arg{Index: 1})})

	visited := 0
	Walk(tree, func(n Node) bool {
		visited++
		_, isOld := n.(*Old)
		return !isOld
	})

	// Sequence and Old only.
	assert.Equal(t, 2, visited)
}

type countingVisitor struct {
	chunks, args, olds int
}

func (v *countingVisitor) VisitChunk(*Chunk) error   { v.chunks++; return nil }
func (v *countingVisitor) VisitArg(*Arg) error       { v.args++; return nil }
func (v *countingVisitor) VisitResult(*Result) error { return nil }
func (v *countingVisitor) VisitOld(n *Old) error {
	v.olds++
	return n.Inner.Accept(v)
}
func (v *countingVisitor) VisitForall(*Forall) error { return nil }
func (v *countingVisitor) VisitExists(*Exists) error { return nil }
func (v *countingVisitor) VisitSequence(n *Sequence) error {
	for _, c := range n.Nodes {
		if err := c.Accept(v); err != nil {
			return err
		}
	}
	return nil
}

func TestAcceptDispatch(t *testing.T) {
	tree := seq(chunk("a"), &Arg{Index: 1}, &Old{Inner: seq(chunk("b"), &Arg{Index: 2})})

	v := &countingVisitor{}
	require.NoError(t, tree.Accept(v))

	assert.Equal(t, 2, v.chunks)
	assert.Equal(t, 2, v.args)
	assert.Equal(t, 1, v.olds)
}
