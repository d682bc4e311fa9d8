package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/covenant/internal/ir"
)

const stackSource = `package stack

import "fmt"

//covenant:invariant count() >= 0
type Collection interface {
	//covenant:pure
	Count() int

	//covenant:ensure count() == {old count()} + 1
	Push(x any)
}

//covenant:invariant valid()
type Stack struct {
	Collection
	items   []any
	corrupt bool
}

//covenant:constructor
//covenant:ensure count() == 0
func NewStack() *Stack { return &Stack{} }

func (s *Stack) Count() int { return len(s.items) }

func (s *Stack) IsEmpty() bool { return s.Count() == 0 }

func (s *Stack) Valid() bool { return !s.corrupt }

//covenant:require {arg 1} != nil
func (s *Stack) Push(x any) { s.items = append(s.items, x) }

//covenant:require !isEmpty()
func (s *Stack) Top() any { return s.items[len(s.items)-1] }

func (s *Stack) Describe() string { return fmt.Sprint(len(s.items)) }

func (s *Stack) Items() []any { return append([]any(nil), s.items...) }

func (s *Stack) Top2() int { return s.Top().(int) }

// Plain has no directives and is not declared.
type Plain struct{}

func (p Plain) Get() int { return 1 }
`

func writePackage(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func TestScan_Stack(t *testing.T) {
	dir := writePackage(t, map[string]string{"stack.go": stackSource})

	decls, err := Scan(dir)
	require.NoError(t, err)

	want := []ir.TypeDecl{
		{
			Name:       "Collection",
			Invariants: []string{"count() >= 0"},
			Abstract:   true,
			Operations: []ir.OperationDecl{
				{Name: "count", Pure: true},
				{Name: "push", Ensures: []string{"count() == {old count()} + 1"}},
			},
		},
		{
			Name:       "Stack",
			Parents:    []string{"Collection"},
			Invariants: []string{"valid()"},
			Operations: []ir.OperationDecl{
				{Name: "newStack", Constructor: true, Ensures: []string{"count() == 0"}},
				{Name: "count", InferredPure: true},
				{Name: "isEmpty", InferredPure: true},
				{Name: "valid", InferredPure: true},
				{Name: "push", Requires: []string{"{arg 1} != nil"}},
				{Name: "top", Requires: []string{"!isEmpty()"}, InferredPure: true},
				{Name: "describe"},
				{Name: "items"},
				{Name: "top2"},
			},
		},
	}
	assert.Equal(t, want, decls)
}

func TestScan_TypeDirectives(t *testing.T) {
	dir := writePackage(t, map[string]string{
		"a.go": `package p

//covenant:abstract
//covenant:invariant true
type Base struct{}

//covenant:invariant true
type Other struct{}

//covenant:parent Base, Other
//covenant:skip
type Leaf struct{}
`,
	})

	decls, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, decls, 3)
	assert.True(t, decls[0].Abstract)
	assert.Equal(t, "Leaf", decls[2].Name)
	assert.Equal(t, []string{"Base", "Other"}, decls[2].Parents)
	assert.True(t, decls[2].Skip)
}

func TestScan_AcrossFilesInSourceOrder(t *testing.T) {
	dir := writePackage(t, map[string]string{
		"a_methods.go": `package p

//covenant:require {arg 1} > 0
func (b *Box[T]) Put(n int) { b.n = n }
`,
		"b_types.go": `package p

//covenant:invariant true
type Box[T any] struct {
	n int
	v T
}

func (b *Box[T]) Get() T { return b.v }
`,
		"skip_test.go": `package p

//covenant:bogus
func helper() {}
`,
	})

	decls, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, []ir.OperationDecl{
		{Name: "put", Requires: []string{"{arg 1} > 0"}},
		{Name: "get", InferredPure: true},
	}, decls[0].Operations)
}

func TestScan_ReportsEveryProblem(t *testing.T) {
	dir := writePackage(t, map[string]string{
		"bad.go": `package p

//covenant:invariant {result} > 0
type T struct {
	//covenant:require true
	field int
}

//covenant:pure
func (t *T) Set() { t.field = 1 }

//covenant:constructor
func Build() {}
`,
	})

	_, err := Scan(dir)
	require.Error(t, err)

	var de *DirectiveError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 3, de.Pos.Line)
	assert.True(t, strings.HasSuffix(de.Pos.Filename, "bad.go"))

	msg := err.Error()
	assert.Contains(t, msg, "invariant clause")
	assert.Contains(t, msg, "not attached to a type or function declaration")
	assert.Contains(t, msg, "T.Set is declared pure but assigns to t.field")
	assert.Contains(t, msg, "constructor Build must return the constructed type first")
}

func TestScan_DuplicateOperation(t *testing.T) {
	dir := writePackage(t, map[string]string{
		"dup.go": `package p

type T struct{}

//covenant:constructor
func NewT() *T { return &T{} }

//covenant:pure
func (t *T) NewT() int { return 0 }
`,
	})

	_, err := Scan(dir)
	assert.ErrorContains(t, err, "T declares operation newT twice")
}

func TestScan_Errors(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "reading")

	_, err = Scan(t.TempDir())
	assert.ErrorContains(t, err, "no Go files")

	dir := writePackage(t, map[string]string{"broken.go": "package p\nfunc {"})
	_, err = Scan(dir)
	assert.ErrorContains(t, err, "parsing broken.go")
}

func TestOperationName(t *testing.T) {
	assert.Equal(t, "push", operationName("Push"))
	assert.Equal(t, "isEmpty", operationName("IsEmpty"))
	assert.Equal(t, "already", operationName("already"))
	assert.Equal(t, "", operationName(""))
}
