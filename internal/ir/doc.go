// Package ir provides the assertion model for covenant contracts.
//
// This package contains the parsed form of contract clauses and the composed
// contracts built from them. All other internal packages import ir; ir
// imports nothing internal. This keeps the assertion model the foundational
// layer with no circular dependencies.
//
// An assertion is a Sequence of nodes. Chunks carry opaque host-expression
// text that is forwarded verbatim to the host evaluator; the remaining nodes
// are the bracketed directives of the contract language:
//
//	{arg N}                     the N-th call argument (1-based)
//	{result}                    the return value (postconditions only)
//	{old expr}                  expr evaluated before the call (postconditions only)
//	{forall(T v: source) body}  universal quantifier over source
//	{exists(T v: source) body}  existential quantifier over source
//
// Key design constraints:
//   - Parsed clauses are immutable and shared by every composed contract that
//     includes them
//   - Old-value slot numbers belong to the composed OperationContract, never
//     to the shared Old node, so one walk order is the single source of truth
//   - Rendering a Sequence reproduces the contract text it was parsed from
package ir
