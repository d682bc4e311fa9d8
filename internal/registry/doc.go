// Package registry holds declared contracts and composes them across the
// type hierarchy.
//
// A Registry is the build-time table that replaces runtime discovery of
// annotations: each type is declared once with its raw clause strings and
// its direct parents. Clauses are parsed and checked at declaration time, so
// a malformed contract prevents the type from being registered at all.
//
// Composition follows three rules:
//
//   - Preconditions are weakened. Each declaring type in the hierarchy
//     contributes one group; the operation is allowed when any group holds.
//   - Postconditions are strengthened: the conjunction of every declaring
//     type's clauses, ancestors first, own last.
//   - Invariants are strengthened the same way, aggregated per type.
//
// Ancestors are ordered depth-first in declared parent order, most distant
// first, and each ancestor is visited once even in a diamond hierarchy.
//
// Composed contracts are cached. The cache is populated lazily on first
// use, safe for concurrent readers, and concurrent first requests for the
// same key are collapsed into one composition.
package registry
