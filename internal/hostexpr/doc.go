// Package hostexpr evaluates contract expressions with expr-lang/expr.
//
// The engine renders each assertion into one expression whose directives
// are reserved identifiers (_arg1, _result, _old0, ...) bound in a map.
// This package compiles that text, caches the program by source, and runs
// it against the bindings.
//
// The receiver bound as "self" has its exported methods promoted to bare
// functions, both under their Go name and with a lower-case first letter,
// so contracts can be written the way they read:
//
//	count() == {old count()} + 1
//	{forall (Item i: self.Items()) i != nil}
//	!isEmpty()
//
// A promoted method returning a non-nil error aborts the evaluation with
// that error unchanged, so a contract violation raised by a guarded method
// called from inside an assertion reaches the engine as itself.
package hostexpr
