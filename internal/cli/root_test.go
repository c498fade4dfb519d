package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	for _, name := range []string{"compile", "validate", "run", "snapshots", "test"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	root := NewRootCommand()

	verbose := root.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := root.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	root := NewRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"--format", "xml", "validate", "missing.yaml"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRunCommand_FlagDefaults(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})

	cases := map[string]string{
		"event":      "start",
		"output-dir": ".",
		"max-tasks":  "1000",
		"max-depth":  "0",
		"shell":      "/bin/bash",
		"poll":       "5s",
		"timeout":    "0s",
		"strict":     "false",
	}
	for name, want := range cases {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, want, f.DefValue, name)
	}
}

func TestRootCommand_Version(t *testing.T) {
	root := NewRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), ir.EngineVersion)
}
