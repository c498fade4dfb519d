package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/testutil"
)

const passingScenario = `name: greet
workflow: workflows/echo.yaml
assertions:
  - type: stored
    key: foo
    value: bar
  - type: task_count
    count: 2
`

const failingScenario = `name: wrong
inline: |
  start:
    - name: greet
      cmd: echo foo=bar
      store:
        - foo: 'foo=(\w+)'
assertions:
  - type: stored
    key: foo
    value: baz
`

// writeScenarios lays out a scenarios directory with a shared workflow.
func writeScenarios(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "workflows/echo.yaml", echoWorkflow)
	for name, content := range scenarios {
		testutil.WriteFile(t, dir, name, content)
	}
	return dir
}

func executeTest(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestTestCommand_Pass(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"greet.yaml": passingScenario})

	buf, err := executeTest(t, "text", dir)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "✓ greet")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_Failure(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"greet.yaml": passingScenario,
		"wrong.yaml": failingScenario,
	})

	buf, err := executeTest(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, buf.Bytes(), &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Total)

	for _, s := range result.Scenarios {
		if s.Name == "wrong" {
			assert.False(t, s.Pass)
			require.NotEmpty(t, s.Errors)
			assert.Contains(t, s.Errors[0], "baz")
		}
	}
}

func TestTestCommand_Filter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"greet.yaml": passingScenario,
		"wrong.yaml": failingScenario,
	})

	buf, err := executeTest(t, "text", dir, "--filter", "gr*")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1 passed, 0 failed, 1 total")
}

func TestTestCommand_GoldenUpdateAndCompare(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"greet.yaml": passingScenario})
	goldenPath := filepath.Join(dir, "golden", "greet.golden")

	buf, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ greet (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"greet"`)
	assert.Contains(t, string(golden), `"foo":"bar"`)

	// The golden directory is skipped as a scenario source
	_, err = executeTest(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"stale":true}`), 0o644))
	buf, err = executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "snapshot does not match golden file")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	dir := writeScenarios(t, nil)

	buf, err := executeTest(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found.")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := executeTest(t, "text", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_InvalidScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"broken.yaml": "description: no name\n"})

	buf, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ broken.yaml")
	assert.Contains(t, buf.String(), "failed to load scenario")
}
