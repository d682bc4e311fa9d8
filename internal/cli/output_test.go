package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/covenant/internal/compiler"
	"github.com/roach88/covenant/internal/engine"
	"github.com/roach88/covenant/internal/store"
)

func TestOutputFormatter(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		verbose bool
		write   func(f *OutputFormatter) error
		want    []string
	}{
		{
			name:   "json success",
			format: "json",
			write:  func(f *OutputFormatter) error { return f.Success(map[string]int{"types": 2}) },
			want:   []string{`"status":"ok"`, `"types":2`},
		},
		{
			name:   "json error",
			format: "json",
			write:  func(f *OutputFormatter) error { return f.Error(ErrCodeNotFound, `unknown type "Queue"`, nil) },
			want:   []string{`"status":"error"`, `"code":"` + ErrCodeNotFound + `"`, `unknown type \"Queue\"`},
		},
		{
			name:   "text error",
			format: "text",
			write:  func(f *OutputFormatter) error { return f.Error("E008", "2 malformed directive(s)", []string{"bad.go:3"}) },
			want:   []string{"Error [E008]: 2 malformed directive(s)"},
		},
		{
			name:    "text error verbose details",
			format:  "text",
			verbose: true,
			write:   func(f *OutputFormatter) error { return f.Error("E008", "2 malformed directive(s)", []string{"bad.go:3"}) },
			want:    []string{"Error [E008]", "Details: [bad.go:3]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: tt.format, Writer: buf, Verbose: tt.verbose}
			require.NoError(t, tt.write(f))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestOutputFormatter_VerboseGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	f.VerboseLog("Appending checks to %s", "checks.db")
	assert.Empty(t, out.String())
	assert.Equal(t, "Appending checks to checks.db\n", errOut.String())

	f.Verbose = false
	f.VerboseLog("hidden")
	assert.NotContains(t, errOut.String(), "hidden")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "missing")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "inner", errors.New("cause")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: inner: cause", wrapped.Error())
}

func TestWriteJSONIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeJSON(buf, map[string]int{"types": 2}))
	assert.Equal(t, "{\n  \"types\": 2\n}\n", buf.String())
}

func commandWithOutput() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	return cmd, buf
}

func TestOutputCheckJSON_FailedScenarioCarriesViolations(t *testing.T) {
	cmd, buf := commandWithOutput()
	result := CheckResult{
		Scenarios: []ScenarioResult{
			{Path: "push.yaml", Name: "bounded_push", Pass: true},
			{Path: "lost.yaml", Name: "lost_push", Errors: []string{
				"steps[1] s.push: expected pass, got ensure (Stack.push: count() == {old count()} + 1 is broken)",
			}},
		},
		Passed: 1, Failed: 1, Total: 2,
	}

	err := outputCheckJSON(cmd, result)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_CHECK_FAILED", resp.Error.Code)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
	assert.Equal(t, result, resp.Data)
}

func TestOutputCheckJSON_AllPassed(t *testing.T) {
	cmd, buf := commandWithOutput()
	err := outputCheckJSON(cmd, CheckResult{
		Scenarios: []ScenarioResult{{Path: "push.yaml", Name: "bounded_push", Pass: true}},
		Passed:    1, Total: 1,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"status": "ok"`)
	assert.NotContains(t, buf.String(), `"error"`)
	assert.NotContains(t, buf.String(), `"errors"`)
}

func TestOutputCheckText(t *testing.T) {
	cmd, buf := commandWithOutput()
	printScenarioResult(cmd, ScenarioResult{Path: "lost.yaml", Name: "lost_push", Errors: []string{"expected pass, got ensure"}})
	printScenarioResult(cmd, ScenarioResult{Path: "testdata/unnamed.yaml", Pass: true})
	err := outputCheckText(cmd, CheckResult{Passed: 1, Failed: 1, Total: 2})

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "✗ lost_push\n  expected pass, got ensure\n✓ unnamed.yaml\n\nCheck Summary: 1 passed, 1 failed, 2 total\n", buf.String())
}

func TestOutputValidationErrors_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	errs := []compiler.ValidationError{
		{Code: "E121", Field: "Queue.put.requires[0]", Message: "{result} is not allowed in a require clause"},
		{Code: "E105", Field: "Queue.parents", Message: `unknown parent "Missing"`},
	}

	err := outputValidationErrors(f, errs)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.EqualError(t, err, "validation failed with 2 error(s)")

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, errs, resp.Data.Errors)
	assert.Equal(t, "E121", resp.Error.Code)
}

func TestJournalRowsJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	rows := []store.Check{
		{
			CallID: "bounded_push/call-3", Seq: 9, Phase: engine.PhaseRequire, Kind: engine.KindRequire,
			Type: "Stack", Operation: "push", Outcome: engine.OutcomeViolation,
			Clause: "count() < capacity()", DeclaringType: "Stack",
			Message: "Stack.push: count() < capacity() is broken", Clauses: 1,
		},
		{
			CallID: "bounded_push/call-3", Seq: 10, Phase: engine.PhaseInvariantBefore, Kind: engine.KindInvariant,
			Type: "Stack", Operation: "push", Outcome: engine.OutcomeSkip, Reason: engine.ReasonDisabled,
		},
	}
	require.NoError(t, f.Success(rows))

	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 2)

	violation, skip := resp.Data[0], resp.Data[1]
	assert.Equal(t, "violation", violation["outcome"])
	assert.Equal(t, "Stack.push: count() < capacity() is broken", violation["message"])
	assert.Equal(t, "Stack", violation["declaring_type"])
	assert.NotContains(t, violation, "reason")

	assert.Equal(t, "skip", skip["outcome"])
	assert.Equal(t, engine.ReasonDisabled, skip["reason"])
	assert.NotContains(t, skip, "clause")
	assert.NotContains(t, skip, "message")
}

func TestPrintChecks_DetailColumn(t *testing.T) {
	buf := &bytes.Buffer{}
	printChecks(buf, []store.Check{
		{CallID: "call-1", Seq: 1, Phase: engine.PhaseRequire, Kind: engine.KindRequire, Type: "Stack", Operation: "push",
			Outcome: engine.OutcomeViolation, Reason: "ignored", Message: "Stack.push: count() < capacity() is broken"},
		{CallID: "call-1", Seq: 2, Phase: engine.PhaseInvariantAfter, Kind: engine.KindInvariant, Type: "Stack", Operation: "push",
			Outcome: engine.OutcomeSkip, Reason: engine.ReasonPure},
	})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Regexp(t, `^1\s+call-1\s+Stack\.push\s+require\s+violation\s+Stack\.push: count\(\) < capacity\(\) is broken$`, string(lines[1]))
	assert.Regexp(t, `^2\s+call-1\s+Stack\s+invariant_after\s+skip\s+pure$`, string(lines[2]))
}
