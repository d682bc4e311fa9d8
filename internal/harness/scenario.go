package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a contract scenario: objects, the guarded calls made on
// them, and assertions on the resulting check trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE declaration files or Go package directories.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Options is an engine options string, e.g. "require_check,limit=Stack".
	// Empty means every check is enabled.
	Options string `yaml:"options,omitempty"`

	// Objects are the receivers the steps act on, by name.
	Objects map[string]ObjectSpec `yaml:"objects"`

	// Steps run in order against one engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace, the journal and the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// CallPrefix prefixes the sequential call ids. Defaults to "call".
	CallPrefix string `yaml:"call_prefix,omitempty"`
}

// ObjectSpec declares a map-backed receiver.
type ObjectSpec struct {
	// Type is the most-derived declared type of the object.
	Type string `yaml:"type"`

	// State holds the initial field values.
	State map[string]any `yaml:"state,omitempty"`

	// Initialized skips construction: invariants apply from the first call.
	Initialized bool `yaml:"initialized,omitempty"`
}

// Step is one guarded call. Exactly one of Call and Construct is set, as
// "object.operation".
type Step struct {
	Call      string `yaml:"call,omitempty"`
	Construct string `yaml:"construct,omitempty"`

	// As is the declared type the call goes through. Defaults to the
	// object's type; a constructor of an ancestor sets it to that ancestor.
	As string `yaml:"as,omitempty"`

	Args []any `yaml:"args,omitempty"`

	// Set is applied to the object's fields by the body.
	Set map[string]any `yaml:"set,omitempty"`

	// Result is what the body returns.
	Result any `yaml:"result,omitempty"`

	// Fail makes the body return an error with this text instead.
	Fail string `yaml:"fail,omitempty"`

	// Expect is the outcome of the call: pass, require, ensure, invariant
	// or error. Defaults to pass.
	Expect string `yaml:"expect,omitempty"`

	// Message, if set, must equal the error text of a failing call.
	Message string `yaml:"message,omitempty"`
}

// Step outcomes.
const (
	ExpectPass      = "pass"
	ExpectRequire   = "require"
	ExpectEnsure    = "ensure"
	ExpectInvariant = "invariant"
	ExpectError     = "error"
)

// Target returns "object.operation".
func (s Step) Target() string {
	if s.Construct != "" {
		return s.Construct
	}
	return s.Call
}

// Expected returns the expected outcome, defaulting to pass.
func (s Step) Expected() string {
	if s.Expect == "" {
		return ExpectPass
	}
	return s.Expect
}

// Assertion validates trace, journal or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some event matches the filters
	// - "trace_count": exactly Count events match the filters
	// - "trace_order": Events occur in order, gaps allowed
	// - "journal": exactly Count journal rows match Kind, Outcome and Subject
	// - "final_state": Object's fields include Expect
	Type string `yaml:"type"`

	// Event filters. Empty fields match everything.
	Subject string `yaml:"subject,omitempty"`
	Phase   string `yaml:"phase,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
	Reason  string `yaml:"reason,omitempty"`
	Clause  string `yaml:"clause,omitempty"`

	// Kind is a contract kind for journal assertions.
	Kind string `yaml:"kind,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Events lists "Subject phase:outcome" keys (used by trace_order).
	Events []string `yaml:"events,omitempty"`

	// Object names the object of a final_state assertion.
	Object string `yaml:"object,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match: only listed fields are compared.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Initialized, if set, must match the object's initialization.
	Initialized *bool `yaml:"initialized,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertJournal       = "journal"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields so typos like "assertion:" fail loudly.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec not found: %s", specPath)
		}
	}

	for name, obj := range s.Objects {
		if obj.Type == "" {
			return fmt.Errorf("objects.%s: type is required", name)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, s.Objects); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, s.Objects); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step, objects map[string]ObjectSpec) error {
	switch {
	case step.Call == "" && step.Construct == "":
		return fmt.Errorf("steps[%d]: call or construct is required", index)
	case step.Call != "" && step.Construct != "":
		return fmt.Errorf("steps[%d]: call and construct are mutually exclusive", index)
	}

	obj, op, ok := strings.Cut(step.Target(), ".")
	if !ok || obj == "" || op == "" {
		return fmt.Errorf("steps[%d]: target %q must be object.operation", index, step.Target())
	}
	if _, ok := objects[obj]; !ok {
		return fmt.Errorf("steps[%d]: unknown object %q", index, obj)
	}

	switch step.Expected() {
	case ExpectPass, ExpectRequire, ExpectEnsure, ExpectInvariant, ExpectError:
	default:
		return fmt.Errorf("steps[%d]: unknown expect %q", index, step.Expect)
	}
	if step.Message != "" && step.Expected() == ExpectPass {
		return fmt.Errorf("steps[%d]: message needs a failing expect", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, objects map[string]ObjectSpec) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Subject == "" && a.Phase == "" && a.Outcome == "" && a.Reason == "" && a.Clause == "" {
			return fmt.Errorf("assertions[%d]: trace_contains needs at least one filter", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount, AssertJournal:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertFinalState:
		if a.Object == "" {
			return fmt.Errorf("assertions[%d]: object is required for final_state", index)
		}
		if _, ok := objects[a.Object]; !ok {
			return fmt.Errorf("assertions[%d]: unknown object %q", index, a.Object)
		}
		if len(a.Expect) == 0 && a.Initialized == nil {
			return fmt.Errorf("assertions[%d]: expect or initialized is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
