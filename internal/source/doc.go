// Package source reads contract declarations out of Go source.
//
// Contracts are written as //covenant: directives in the doc comments of
// type and method declarations:
//
//	//covenant:invariant count() >= 0
//	type Stack struct{ items []any }
//
//	//covenant:constructor
//	//covenant:ensure count() == 0
//	func NewStack() *Stack { return &Stack{} }
//
//	//covenant:require {arg 1} != nil
//	//covenant:ensure count() == {old count()} + 1
//	func (s *Stack) Push(x any) { s.items = append(s.items, x) }
//
// Operation names are the Go names with the first letter lowered, which
// is also how the host evaluator exposes receiver methods to assertions.
// Interfaces become abstract types. Embedding another declared type, in a
// struct or an interface, makes it a parent.
//
// Methods that carry no pure directive get their purity inferred from the
// body; see InferredPure on ir.OperationDecl.
//
// Analyzer reports misplaced or malformed directives and clause errors at
// vet time.
package source
