// Package engine enforces composed contracts at call time.
//
// A guarded operation runs through six steps:
//
//	CheckPrecondition → CheckInvariantBefore → SnapshotOld
//	→ body → CheckInvariantAfter → CheckPostcondition
//
// Invoke, Construct and Guard run the whole protocol around a body; the
// individual hooks exist for interception layers that need to place the
// steps themselves. The first violation aborts the call and is returned
// to the caller unchanged.
//
// COMPOSITION:
//
// Contracts come from a registry.Registry. Preconditions are disjoined
// across the hierarchy (weakening), postconditions and invariants are
// conjoined (strengthening). See registry.Operation for the order.
//
// EVALUATION:
//
// Every assertion is rendered into a single host expression and handed to
// an Evaluator. Directives become reserved identifiers bound to their
// values. {old ...} values are captured by SnapshotOld before the body
// runs, addressed by the slot numbering of the composed contract.
// Quantifiers are evaluated by the engine, element by element.
//
// RECEIVER STATE:
//
// Receivers embed State. Invariants are only checked once the receiver is
// initialized, which the most-derived constructor does after establishing
// the invariant, and never while an invariant check on the same receiver
// is already running. Operations resolved as pure skip the invariant
// check after the body.
//
// Per-receiver state is not synchronized: concurrent guarded calls on one
// receiver must be serialized by the caller.
package engine
