package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/testutil"
)

const echoWorkflow = `start:
  - name: greet
    cmd: echo foo=bar
    store:
      - foo: 'foo=(\w+)'
    events:
      - 'foo=': report

report:
  - name: dump
    module: dump
    store:
      - seen: 'foo=(\w+)'
`

// newTestCommand returns a bare command whose stdout is captured.
func newTestCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())
	return cmd, buf
}

// newRunOptions returns run options with the command defaults and a fixed
// run id.
func newRunOptions(t *testing.T, format string) *RunOptions {
	t.Helper()
	opts := &RunOptions{RootOptions: &RootOptions{Format: format}}
	flags := NewRunCommand(opts.RootOptions).Flags()
	opts.Event, _ = flags.GetString("event")
	opts.Shell, _ = flags.GetString("shell")
	opts.MaxTasks, _ = flags.GetInt("max-tasks")
	opts.Poll, _ = flags.GetDuration("poll")
	opts.OutputDir = t.TempDir()
	opts.RunIDs = testutil.NewFixedRunIDGenerator("run-cli-test")
	return opts
}

// decodeResponse decodes a JSON CLI response, placing its payload in data.
func decodeResponse(t *testing.T, raw []byte, data any) CLIResponse {
	t.Helper()
	var envelope struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope), string(raw))
	if data != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.CLIResponse
}
