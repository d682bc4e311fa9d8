package harness

import "github.com/roach88/covenant/internal/engine"

// TraceEvent is a check event as recorded in a scenario trace. Durations
// and fingerprints are left out so traces are stable across runs.
type TraceEvent struct {
	Seq           int64  `json:"seq"`
	CallID        string `json:"call_id"`
	Subject       string `json:"subject"`
	Phase         string `json:"phase"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
	Clause        string `json:"clause,omitempty"`
	DeclaringType string `json:"declaring_type,omitempty"`
}

func traceEventOf(ev engine.CheckEvent) TraceEvent {
	return TraceEvent{
		Seq:           ev.Seq,
		CallID:        ev.CallID,
		Subject:       ev.Subject(),
		Phase:         string(ev.Phase),
		Outcome:       string(ev.Outcome),
		Reason:        ev.Reason,
		Clause:        ev.Clause,
		DeclaringType: ev.DeclaringType,
	}
}

// Key is the form trace_order assertions match: "Subject phase:outcome".
func (e TraceEvent) Key() string {
	return e.Subject + " " + e.Phase + ":" + e.Outcome
}

// StepResult is what one step produced.
type StepResult struct {
	Index   int    `json:"index"`
	Target  string `json:"target"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step met its expectation and every assertion
	// held.
	Pass bool `json:"pass"`

	Steps []StepResult `json:"steps"`

	// Trace holds every check event of the run in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors is empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State maps each object to its final fields.
	State map[string]map[string]any `json:"state,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]map[string]any),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
