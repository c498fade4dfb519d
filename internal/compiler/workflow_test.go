package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

// expectedRecon is the workflow both testdata/recon.yaml and
// testdata/recon.cue compile to.
func expectedRecon() *ir.Workflow {
	wf := ir.NewWorkflow()
	wf.Add("start", ir.ActionSpec{
		Name:     "seed",
		Kind:     ir.KindCommand,
		Cmd:      "echo url=https://www.example.com/login",
		Store:    []ir.KeyPattern{{Key: "url", Pattern: `url=(\S+)`}},
		Triggers: []ir.TriggerRule{{Pattern: "url=", Events: []string{"parse", "scan"}}},
	})
	wf.Add("parse", ir.ActionSpec{Name: "split", Kind: ir.KindModule, Module: "parse_url"})
	wf.Add("scan", ir.ActionSpec{
		Name:         "headers",
		Kind:         ir.KindCommand,
		Cmd:          "curl -sI {url}",
		StoreStatic:  []ir.KeyTemplate{{Key: "scanned", Template: "{url}"}},
		AppendScalar: []ir.KeyPattern{{Key: "headers", Pattern: `^(\S+):`}},
		AppendComposite: []ir.CompositeRule{{
			ArrayKey: "services",
			Fields: []ir.KeyPattern{
				{Key: "port", Pattern: `port=(\d+)`},
				{Key: "name", Pattern: `svc=(\w+)`},
			},
		}},
	})
	wf.Add("scan", ir.ActionSpec{
		Name:     "tail",
		Kind:     ir.KindListener,
		File:     "/var/log/scan.log",
		Triggers: []ir.TriggerRule{{Pattern: "retry", Events: []string{"scan"}}},
	})
	return wf
}

func TestLoadWorkflow_YAML(t *testing.T) {
	loaded, err := LoadWorkflow("testdata/recon.yaml")
	require.NoError(t, err)

	assert.Equal(t, expectedRecon(), loaded.Workflow)
	assert.Equal(t, ir.WorkflowHash(loaded.Source), loaded.Hash)
}

func TestLoadWorkflow_CUE(t *testing.T) {
	loaded, err := LoadWorkflow("testdata/recon.cue")
	require.NoError(t, err)

	assert.Equal(t, expectedRecon(), loaded.Workflow)
}

func TestLoadWorkflow_CUEPackage(t *testing.T) {
	loaded, err := LoadWorkflow("testdata/pkg")
	require.NoError(t, err)

	wf := loaded.Workflow
	assert.ElementsMatch(t, []string{"start", "done"}, wf.Order)
	specs, ok := wf.Actions("done")
	require.True(t, ok)
	require.Len(t, specs, 1)
	assert.Equal(t, ir.KindModule, specs[0].Kind)
	assert.NotEmpty(t, loaded.Hash)
}

func TestLoadWorkflow_Errors(t *testing.T) {
	_, err := LoadWorkflow("testdata/missing.yaml")
	assert.Error(t, err)

	_, err = LoadWorkflow("workflow_test.go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file extension")
}

func TestCompileYAML_MapRuleBlocks(t *testing.T) {
	src := `
start:
  - name: echo
    cmd: echo foo=bar
    store:
      b: 'b=(\w+)'
      a: 'a=(\w+)'
    events:
      'done': next
`
	wf, err := CompileYAML([]byte(src), "inline.yaml")
	require.NoError(t, err)

	spec := wf.Events["start"][0]
	assert.Equal(t, []ir.KeyPattern{
		{Key: "b", Pattern: `b=(\w+)`},
		{Key: "a", Pattern: `a=(\w+)`},
	}, spec.Store, "map rule blocks keep source order")
	assert.Equal(t, []ir.TriggerRule{{Pattern: "done", Events: []string{"next"}}}, spec.Triggers)
}

func TestCompileYAML_EmptyEvent(t *testing.T) {
	wf, err := CompileYAML([]byte("start:\nidle:\n"), "inline.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "idle"}, wf.Order)
	specs, ok := wf.Actions("idle")
	assert.True(t, ok)
	assert.Empty(t, specs)
}

func TestCompileYAML_Anchors(t *testing.T) {
	src := `
start:
  - &scan
    name: scan
    cmd: echo hi
again:
  - *scan
`
	wf, err := CompileYAML([]byte(src), "inline.yaml")
	require.NoError(t, err)
	assert.Equal(t, wf.Events["start"], wf.Events["again"])
}

func TestCompileYAML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		field   string
		message string
	}{
		{
			name:    "top level list",
			src:     "- a\n- b\n",
			field:   "workflow",
			message: "top level must map",
		},
		{
			name:    "actions not a list",
			src:     "start: echo\n",
			field:   "start",
			message: "actions must be a list",
		},
		{
			name:    "missing name",
			src:     "start:\n  - cmd: echo\n",
			field:   "start[0].name",
			message: "name is required",
		},
		{
			name:    "no source",
			src:     "start:\n  - name: a\n",
			field:   "start[0]",
			message: "exactly one of cmd, file, module",
		},
		{
			name:    "two sources",
			src:     "start:\n  - name: a\n    cmd: echo\n    file: /tmp/x\n",
			field:   "start[0]",
			message: "exactly one of cmd, file, module",
		},
		{
			name:    "unknown key",
			src:     "start:\n  - name: a\n    cmd: echo\n    retries: 3\n",
			field:   "start[0].retries",
			message: "unknown action key",
		},
		{
			name:    "rule item not a map",
			src:     "start:\n  - name: a\n    cmd: echo\n    store:\n      - just-a-string\n",
			field:   "start[0].store[0]",
			message: "rule must be a map",
		},
		{
			name:    "pattern not a string",
			src:     "start:\n  - name: a\n    cmd: echo\n    store:\n      - k: [x]\n",
			field:   "start[0].store.k",
			message: "expected a string",
		},
		{
			name:    "duplicate key",
			src:     "start:\n  - name: a\n    name: b\n    cmd: echo\n",
			field:   "yaml",
			message: "duplicate key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileYAML([]byte(tt.src), "inline.yaml")
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.message)
			assert.Positive(t, ce.Line)
		})
	}
}

func TestCompileYAML_Syntax(t *testing.T) {
	_, err := CompileYAML([]byte("start: [\n"), "bad.yaml")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "yaml", ce.Field)
}

func TestCompileCUEBytes_Errors(t *testing.T) {
	_, err := CompileCUEBytes([]byte("start: [{name: \"a\", cmd: string}]"), "incomplete.cue")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cue", ce.Field)
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "start[0]", Message: "bad", File: "w.yaml", Line: 3, Column: 5}
	assert.Equal(t, "w.yaml:3:5: start[0]: bad", err.Error())

	err = &CompileError{Field: "workflow", Message: "bad"}
	assert.Equal(t, "workflow: bad", err.Error())
}
