package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/testutil"
)

const invalidWorkflow = `start:
  - name: broken
    cmd: echo hi
    store:
      - k: '('
  - name: ghost
    module: nonexistent
`

const warningWorkflow = `start:
  - name: loop
    cmd: echo again
    events:
      - 'again': start
      - 'never': nowhere
`

func TestValidate_Valid(t *testing.T) {
	path := testutil.WriteWorkflow(t, echoWorkflow)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ Workflow valid")
	assert.NotContains(t, buf.String(), "⚠")
}

func TestValidate_WarningsDoNotFail(t *testing.T) {
	path := testutil.WriteWorkflow(t, warningWorkflow)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "✓ Workflow valid")
	assert.Contains(t, out, "⚠ "+compiler.WarnUndefinedEvent)
	assert.Contains(t, out, "⚠ "+compiler.WarnCycle)
}

func TestValidate_InvalidText(t *testing.T) {
	path := testutil.WriteWorkflow(t, invalidWorkflow)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := buf.String()
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrInvalidPattern)
	assert.Contains(t, out, compiler.ErrUnknownModule)
}

func TestValidate_InvalidJSON(t *testing.T) {
	path := testutil.WriteWorkflow(t, invalidWorkflow)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, IsReported(err))

	var result ValidationResult
	resp := decodeResponse(t, buf.Bytes(), &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrInvalidPattern, resp.Error.Code)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}

func TestValidate_NotFound(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E002]")
}

func TestValidateWorkflow_CombinesAnalyses(t *testing.T) {
	loaded, err := LoadWorkflow(testutil.WriteWorkflow(t, warningWorkflow))
	require.NoError(t, err)

	result := ValidateWorkflow(loaded)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, compiler.WarnUndefinedEvent, result.Warnings[0].Code)
	assert.Equal(t, "loop", result.Warnings[0].Action)
	assert.Contains(t, result.Warnings[0].Message, `"nowhere"`)
	assert.Equal(t, compiler.WarnCycle, result.Warnings[1].Code)
}
