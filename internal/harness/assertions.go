package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/covenant/internal/engine"
	"github.com/roach88/covenant/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.CallID, event.Key())
			if event.Reason != "" {
				fmt.Fprintf(&buf, " (%s)", event.Reason)
			}
			if event.Clause != "" {
				fmt.Fprintf(&buf, " %q", event.Clause)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// matches reports whether event passes every non-empty filter of a.
func matches(event TraceEvent, a Assertion) bool {
	return (a.Subject == "" || event.Subject == a.Subject) &&
		(a.Phase == "" || event.Phase == a.Phase) &&
		(a.Outcome == "" || event.Outcome == a.Outcome) &&
		(a.Reason == "" || event.Reason == a.Reason) &&
		(a.Clause == "" || event.Clause == a.Clause)
}

// describe renders the filters of a for failure messages.
func describe(a Assertion) string {
	var parts []string
	for _, f := range []struct{ name, value string }{
		{"subject", a.Subject},
		{"phase", a.Phase},
		{"outcome", a.Outcome},
		{"reason", a.Reason},
		{"clause", a.Clause},
	} {
		if f.value != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", f.name, f.value))
		}
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks that some event matches the filters.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matches(event, assertion) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: "event with " + describe(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the listed events appear in order.
// Events don't need to be consecutive; intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Events) && event.Key() == assertion.Events[next] {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", assertion.Events),
		Actual:   fmt.Sprintf("%q not found after %d matched events", assertion.Events[next], next),
		Trace:    trace,
	}
}

// assertTraceCount checks that exactly Count events match the filters.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d events with %s", assertion.Count, describe(assertion)),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertJournal checks the number of journal rows matching the filters.
func assertJournal(ctx context.Context, st *store.Store, assertion Assertion) error {
	checks, err := st.ListChecks(ctx, store.CheckFilter{
		Kind:    engine.ViolationKind(assertion.Kind),
		Outcome: engine.Outcome(assertion.Outcome),
		Subject: assertion.Subject,
	})
	if err != nil {
		return fmt.Errorf("journal assertion: %w", err)
	}
	if len(checks) != assertion.Count {
		return &AssertionError{
			Type: AssertJournal,
			Expected: fmt.Sprintf("%d journal rows with kind=%q outcome=%q subject=%q",
				assertion.Count, assertion.Kind, assertion.Outcome, assertion.Subject),
			Actual: fmt.Sprintf("%d rows", len(checks)),
		}
	}
	return nil
}

// assertFinalState checks an object's fields (subset match) and its
// initialization.
func assertFinalState(obj *Object, assertion Assertion) error {
	if assertion.Initialized != nil && obj.Initialized() != *assertion.Initialized {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s initialized=%t", obj.Name, *assertion.Initialized),
			Actual:   fmt.Sprintf("initialized=%t", obj.Initialized()),
		}
	}

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := assertion.Expect[key]
		got, ok := obj.Fields[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", obj.Name, key, want),
				Actual:   "field not set",
			}
		}
		if !valuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", obj.Name, key, want),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

// valuesEqual compares two field values. Integers compare by value
// whatever their Go type; everything else uses reflect.DeepEqual.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if e, ok := asInt64(expected); ok {
		a, ok := asInt64(actual)
		return ok && e == a
	}
	return reflect.DeepEqual(expected, actual)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store   *store.Store
	Ctx     context.Context
	Objects map[string]*Object
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the journal and the objects for journal and
// final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertJournal:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal requires a store", i)
			} else {
				err = assertJournal(actx.Ctx, actx.Store, assertion)
			}
		case AssertFinalState:
			var obj *Object
			if actx != nil {
				obj = actx.Objects[assertion.Object]
			}
			if obj == nil {
				err = fmt.Errorf("assertion[%d]: unknown object %q", i, assertion.Object)
			} else {
				err = assertFinalState(obj, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
