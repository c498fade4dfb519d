package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/testutil"
)

// readStoredValues decodes <dir>/stored_values.txt.
func readStoredValues(t *testing.T, dir string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, store.StoredValuesFile))
	require.NoError(t, err)
	var stored map[string]string
	require.NoError(t, json.Unmarshal(data, &stored))
	return stored
}

func TestRun_WritesStoredValues(t *testing.T) {
	path := testutil.WriteWorkflow(t, echoWorkflow)
	opts := newRunOptions(t, "text")
	cmd, buf := newTestCommand(t)

	require.NoError(t, runWorkflow(opts, path, cmd))

	stored := readStoredValues(t, opts.OutputDir)
	assert.Equal(t, "bar", stored["foo"])
	assert.Equal(t, "bar", stored["seen"], "module output flows through the action's rules")
	assert.Equal(t, opts.OutputDir, stored[OutputDirKey])

	out := buf.String()
	assert.Contains(t, out, "✓ Run run-cli-test completed: 2 task(s), 3 stored key(s), 0 array(s)")
	assert.Contains(t, out, "Stored values: "+filepath.Join(opts.OutputDir, store.StoredValuesFile))
}

func TestRun_JSONSummary(t *testing.T) {
	path := testutil.WriteWorkflow(t, echoWorkflow)
	opts := newRunOptions(t, "json")
	cmd, buf := newTestCommand(t)

	require.NoError(t, runWorkflow(opts, path, cmd))

	var summary RunSummary
	resp := decodeResponse(t, buf.Bytes(), &summary)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, RunSummary{
		RunID:      "run-cli-test",
		Event:      "start",
		Status:     store.StatusCompleted,
		Spawned:    2,
		Stored:     3,
		Arrays:     0,
		OutputFile: filepath.Join(opts.OutputDir, store.StoredValuesFile),
	}, summary)
}

func TestRun_SetSeedsStore(t *testing.T) {
	path := testutil.WriteWorkflow(t, `start:
  - name: fetch
    cmd: echo status=200
    store_static:
      - target: '{url}/robots.txt'
    store:
      - status: 'status=(\d+)'
`)
	opts := newRunOptions(t, "text")
	opts.Set = []string{"url=https://example.com/?a=b"}
	cmd, _ := newTestCommand(t)

	require.NoError(t, runWorkflow(opts, path, cmd))

	stored := readStoredValues(t, opts.OutputDir)
	assert.Equal(t, "https://example.com/?a=b", stored["url"])
	assert.Equal(t, "https://example.com/?a=b/robots.txt", stored["target"])
	assert.Equal(t, "200", stored["status"])
}

func TestRun_OutputDirOverride(t *testing.T) {
	path := testutil.WriteWorkflow(t, echoWorkflow)
	results := filepath.Join(t.TempDir(), "results")
	opts := newRunOptions(t, "json")
	opts.Set = []string{"output_dir=" + results}
	cmd, buf := newTestCommand(t)

	require.NoError(t, runWorkflow(opts, path, cmd))

	stored := readStoredValues(t, results)
	assert.Equal(t, results, stored[OutputDirKey])
	assert.NoFileExists(t, filepath.Join(opts.OutputDir, store.StoredValuesFile))

	var summary RunSummary
	decodeResponse(t, buf.Bytes(), &summary)
	assert.Equal(t, filepath.Join(results, store.StoredValuesFile), summary.OutputFile)
}

func TestRun_StoredOutputDirMovesFile(t *testing.T) {
	path := testutil.WriteWorkflow(t, `start:
  - name: relocate
    cmd: echo done=1
    store_static:
      - output_dir: '{output_dir}/sub'
    store:
      - done: 'done=(\d)'
`)
	opts := newRunOptions(t, "text")
	cmd, buf := newTestCommand(t)

	require.NoError(t, runWorkflow(opts, path, cmd))

	sub := filepath.Join(opts.OutputDir, "sub")
	stored := readStoredValues(t, sub)
	assert.Equal(t, "1", stored["done"])
	assert.Equal(t, sub, stored[OutputDirKey])
	assert.Contains(t, buf.String(), "Stored values: "+filepath.Join(sub, store.StoredValuesFile))
}

func TestRun_EnvFileReachesCommands(t *testing.T) {
	dir := t.TempDir()
	envFile := testutil.WriteFile(t, dir, ".env", "API_TOKEN=s3cret\n# comment\nREGION=\"eu-west-1\"\n")
	path := testutil.WriteWorkflow(t, `start:
  - name: auth
    cmd: echo "token=$API_TOKEN region=$REGION"
    store:
      - token: 'token=(\S+)'
      - region: 'region=(\S+)'
`)
	opts := newRunOptions(t, "text")
	opts.EnvFile = envFile
	cmd, _ := newTestCommand(t)

	require.NoError(t, runWorkflow(opts, path, cmd))

	stored := readStoredValues(t, opts.OutputDir)
	assert.Equal(t, "s3cret", stored["token"])
	assert.Equal(t, "eu-west-1", stored["region"])
	_, leaked := os.LookupEnv("API_TOKEN")
	assert.False(t, leaked, "env file must not modify the process environment")
}

func TestRun_DatabaseRecordsRun(t *testing.T) {
	path := testutil.WriteWorkflow(t, echoWorkflow)
	dbPath := filepath.Join(t.TempDir(), "cascade.db")
	opts := newRunOptions(t, "text")
	opts.Database = dbPath
	cmd, _ := newTestCommand(t)

	require.NoError(t, runWorkflow(opts, path, cmd))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.GetRun(ctx, "run-cli-test")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, run.Status)
	assert.Equal(t, "start", run.RootEvent)

	snaps, err := st.ListSnapshots(ctx, "run-cli-test")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(1), snaps[0].Seq)
	assert.Equal(t, int64(2), snaps[1].Seq)
	assert.Equal(t, "bar", snaps[1].Snapshot.Stored["seen"])
}

func TestRun_TimeoutCancelsListener(t *testing.T) {
	dir := t.TempDir()
	feed := testutil.WriteFile(t, dir, "feed.log", "host=a.example\n")
	path := testutil.WriteWorkflow(t, `start:
  - name: tail
    file: `+feed+`
    append_scalar:
      - hosts: 'host=(\S+)'
`)
	opts := newRunOptions(t, "json")
	opts.Poll = 10 * time.Millisecond
	opts.Timeout = 200 * time.Millisecond
	cmd, buf := newTestCommand(t)

	require.NoError(t, runWorkflow(opts, path, cmd))

	var summary RunSummary
	decodeResponse(t, buf.Bytes(), &summary)
	assert.Equal(t, store.StatusCancelled, summary.Status)
	assert.Equal(t, 1, summary.Arrays)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		workflow string
		setup    func(opts *RunOptions)
		wantExit int
		wantCode string
	}{
		{
			name:     "undefined root event",
			workflow: echoWorkflow,
			setup:    func(opts *RunOptions) { opts.Event = "missing" },
			wantExit: ExitCommandError,
			wantCode: ErrCodeUndefinedEvt,
		},
		{
			name:     "malformed set",
			workflow: echoWorkflow,
			setup:    func(opts *RunOptions) { opts.Set = []string{"novalue"} },
			wantExit: ExitCommandError,
			wantCode: ErrCodeInvalidFlag,
		},
		{
			name:     "missing env file",
			workflow: echoWorkflow,
			setup:    func(opts *RunOptions) { opts.EnvFile = filepath.Join(opts.OutputDir, "absent.env") },
			wantExit: ExitCommandError,
			wantCode: ErrCodeNotFound,
		},
		{
			name:     "invalid workflow in strict mode",
			workflow: invalidWorkflow,
			setup:    func(opts *RunOptions) { opts.Strict = true },
			wantExit: ExitFailure,
			wantCode: "E205",
		},
		{
			name: "duplicate action name",
			workflow: `start:
  - name: a
    cmd: 'true'
  - name: a
    cmd: 'true'
`,
			setup:    func(opts *RunOptions) {},
			wantExit: ExitFailure,
			wantCode: "E202",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteWorkflow(t, tt.workflow)
			opts := newRunOptions(t, "json")
			tt.setup(opts)
			cmd, buf := newTestCommand(t)

			err := runWorkflow(opts, path, cmd)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))

			resp := decodeResponse(t, buf.Bytes(), nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)

			_, statErr := os.Stat(filepath.Join(opts.OutputDir, store.StoredValuesFile))
			assert.True(t, os.IsNotExist(statErr), "a rejected run writes nothing")
		})
	}
}

func TestRun_BadPatternFailsOnlyThatAction(t *testing.T) {
	path := testutil.WriteWorkflow(t, `start:
  - name: good
    cmd: echo ok=1
    store:
      - ok: 'ok=(\d)'
  - name: bad
    cmd: echo hi
    store:
      - x: '('
  - name: ghost
    module: nonexistent
`)
	opts := newRunOptions(t, "json")
	cmd, buf := newTestCommand(t)

	require.NoError(t, runWorkflow(opts, path, cmd))

	stored := readStoredValues(t, opts.OutputDir)
	assert.Equal(t, "1", stored["ok"])
	assert.NotContains(t, stored, "x")

	var summary RunSummary
	resp := decodeResponse(t, buf.Bytes(), &summary)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, store.StatusCompleted, summary.Status)
	assert.Equal(t, 3, summary.Spawned)
}

func TestParseSetFlags(t *testing.T) {
	got, err := parseSetFlags([]string{"url=https://x/?q=1", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"url": "https://x/?q=1", "empty": ""}, got)

	_, err = parseSetFlags([]string{"=value"})
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	env, err := loadEnvFile("")
	require.NoError(t, err)
	assert.Nil(t, env)

	path := testutil.WriteFile(t, t.TempDir(), "vars.env", "B=2\nA=1\n")
	env, err = loadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A=1", "B=2"}, env)
}
