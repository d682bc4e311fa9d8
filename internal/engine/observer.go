package engine

import (
	"context"
	"time"
)

// Phase names one step of the guarded-call protocol.
type Phase string

const (
	PhaseRequire         Phase = "require"
	PhaseInvariantBefore Phase = "invariant_before"
	PhaseSnapshot        Phase = "snapshot"
	PhaseInvariantAfter  Phase = "invariant_after"
	PhaseEnsure          Phase = "ensure"
)

// Outcome is the result of one phase.
type Outcome string

const (
	OutcomePass      Outcome = "pass"
	OutcomeViolation Outcome = "violation"
	OutcomeSkip      Outcome = "skip"
)

// Skip reasons reported in CheckEvent.Reason.
const (
	ReasonDisabled       = "disabled"
	ReasonUnguarded      = "unguarded"
	ReasonConstructing   = "constructing"
	ReasonReentrant      = "reentrant"
	ReasonPure           = "pure"
	ReasonNotMostDerived = "not_most_derived"
	ReasonNoClauses      = "no_clauses"
)

// CheckEvent describes one executed or skipped phase of a guarded call.
type CheckEvent struct {
	// CallID correlates the phases of one guarded call.
	CallID string

	// Seq is the engine's logical clock value for this event.
	Seq int64

	Phase     Phase
	Type      string
	Operation string
	Outcome   Outcome

	// Reason is set for skipped phases.
	Reason string

	// Clause and Message are set for violations.
	Clause        string
	DeclaringType string
	Message       string

	// Fingerprint identifies the composed contract that was checked.
	Fingerprint string

	// Clauses is the number of clauses evaluated.
	Clauses int

	Duration time.Duration
}

// Subject returns "Type.operation", or the type alone for invariant phases.
func (ev CheckEvent) Subject() string {
	if ev.Phase == PhaseInvariantBefore || ev.Phase == PhaseInvariantAfter || ev.Operation == "" {
		return ev.Type
	}
	return ev.Type + "." + ev.Operation
}

// Observer receives every check event. Implementations must not block for
// long: they run synchronously inside the guarded call.
type Observer interface {
	ObserveCheck(ctx context.Context, ev CheckEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev CheckEvent)

// ObserveCheck calls f(ctx, ev).
func (f ObserverFunc) ObserveCheck(ctx context.Context, ev CheckEvent) {
	f(ctx, ev)
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

// ObserveCheck forwards ev to every observer.
func (m MultiObserver) ObserveCheck(ctx context.Context, ev CheckEvent) {
	for _, o := range m {
		o.ObserveCheck(ctx, ev)
	}
}

// Recorder is an Observer that keeps every event in memory.
// Safe for use from one goroutine at a time.
type Recorder struct {
	Events []CheckEvent
}

// ObserveCheck appends ev.
func (r *Recorder) ObserveCheck(_ context.Context, ev CheckEvent) {
	r.Events = append(r.Events, ev)
}

// Phases returns "phase:outcome" for every recorded event, in order.
func (r *Recorder) Phases() []string {
	out := make([]string, len(r.Events))
	for i, ev := range r.Events {
		out[i] = string(ev.Phase) + ":" + string(ev.Outcome)
	}
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.Events = nil
}
