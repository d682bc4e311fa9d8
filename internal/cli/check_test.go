package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	scenariosDir = filepath.Join("testdata", "scenarios")
	failingDir   = filepath.Join("testdata", "failing")
)

func TestCheckPassing(t *testing.T) {
	out, err := execute(t, "check", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ bounded_push")
	assert.Contains(t, out, "Check Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestCheckFailing(t *testing.T) {
	out, err := execute(t, "check", scenariosDir, failingDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ lost_push")
	assert.Contains(t, out, "expected pass, got ensure")
	assert.Contains(t, out, "Check Summary: 1 passed, 1 failed, 2 total")
}

func TestCheckJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "check", failingDir)
	require.Error(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_CHECK_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "lost_push", resp.Data.Scenarios[0].Name)
	assert.False(t, resp.Data.Scenarios[0].Pass)
}

func TestCheckNoScenarios(t *testing.T) {
	out, err := execute(t, "check", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestCheckMissingPath(t *testing.T) {
	_, err := execute(t, "check", "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckUnloadableScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: only_a_name\n"), 0644))

	out, err := execute(t, "check", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ bad.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestCheckWritesMetrics(t *testing.T) {
	metricsPath := filepath.Join(t.TempDir(), "metrics.prom")

	_, err := execute(t, "check", scenariosDir, "--metrics", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# TYPE covenant_engine_checks_total counter")
	assert.Contains(t, text, `covenant_engine_violations_total{declaring_type="Stack",kind="require",type="Stack"} 1`)
}

func TestCheckConfigDisablesRequire(t *testing.T) {
	cfgPath := writeConfig(t, "checks:\n  require: false\n")

	// Without preconditions the rejected push runs its body, which leaves
	// the count unchanged and breaks the postcondition instead.
	out, err := execute(t, "--config", cfgPath, "check", scenariosDir)
	require.Error(t, err)
	assert.Contains(t, out, "expected require, got ensure")
}
