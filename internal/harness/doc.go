// Package harness runs contract scenarios against the real engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: stack_lifecycle
//	description: "What this scenario validates"
//	specs:
//	  - ../specs/stack.cue   # CUE declarations, or a Go package directory
//	options: "require_check,invariant_check"
//	objects:
//	  s: { type: Stack, state: { count: 0, capacity: 0 } }
//	steps:
//	  - construct: s.newStack
//	    args: [2]
//	    set: { capacity: 2 }
//	  - call: s.push
//	    args: [7]
//	    set: { count: 1 }
//	  - call: s.push
//	    args: [9]
//	    expect: require
//	    message: "Stack.push: count() < capacity() is broken"
//	assertions:
//	  - type: trace_count
//	    subject: Stack.push
//	    phase: require
//	    outcome: pass
//	    count: 1
//
// Objects are receivers backed by a map of state fields. Each field is
// visible to assertions as a function of no arguments: count(). A step's
// body writes its set fields and returns result, or fails with fail.
// as names the declared type a call goes through, for constructor chains.
//
// expect is pass (the default), require, ensure, invariant or error.
//
// # Assertion Types
//
//   - trace_contains: some check event matches subject, phase, outcome, reason and clause
//   - trace_count: exactly count check events match
//   - trace_order: events, written "Subject phase:outcome", occur in this order
//   - journal: count journal rows match kind, outcome and subject
//   - final_state: an object's fields and initialization at the end
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory journal, sequential call ids and a
// logical clock starting at 1, so identical scenarios produce identical
// traces. RunWithGolden compares the trace with testdata/golden.
package harness
