package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/testutil"
)

func TestCompile_Text(t *testing.T) {
	path := testutil.WriteWorkflow(t, echoWorkflow)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "✓ Compiled 2 event(s), 2 action(s)")
	assert.Contains(t, out, "start: 1 action(s)")
	assert.Contains(t, out, "greet [command] echo foo=bar")
	assert.Contains(t, out, `"foo=" → [report]`)
	assert.Contains(t, out, "dump [module] dump")
	assert.Contains(t, out, "Hash: "+ir.WorkflowHash([]byte(echoWorkflow)))
}

func TestCompile_JSON(t *testing.T) {
	path := testutil.WriteWorkflow(t, echoWorkflow)

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	var result CompilationResult
	resp := decodeResponse(t, buf.Bytes(), &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"start", "report"}, result.Workflow.Order)
	assert.Equal(t, ir.KindModule, result.Workflow.Events["report"][0].Kind)
	assert.NotEmpty(t, result.Hash)
}

func TestCompile_OutputFile(t *testing.T) {
	path := testutil.WriteWorkflow(t, echoWorkflow)
	outFile := filepath.Join(t.TempDir(), "compiled.json")

	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "-o", outFile})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Wrote compiled workflow to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Workflow.Events["start"], 1)
	assert.Equal(t, "greet", result.Workflow.Events["start"][0].Name)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     func(t *testing.T) string
		wantCode string
	}{
		{
			name:     "missing file",
			path:     func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.yaml") },
			wantCode: ErrCodeNotFound,
		},
		{
			name: "unsupported extension",
			path: func(t *testing.T) string {
				return testutil.WriteFile(t, t.TempDir(), "workflow.toml", "start = []")
			},
			wantCode: ErrCodeUnsupported,
		},
		{
			name: "compile error",
			path: func(t *testing.T) string {
				return testutil.WriteWorkflow(t, "start:\n  - cmd: echo hi\n")
			},
			wantCode: ErrCodeCompile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			cmd := NewCompileCommand(&RootOptions{Format: "json"})
			cmd.SetOut(buf)
			cmd.SetArgs([]string{tt.path(t)})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeResponse(t, buf.Bytes(), nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}
