package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/target"
)

// OutputDirKey is the stored key seeded with the output directory, so
// templates can build paths with {output_dir}. Storing a new value moves
// stored_values.txt.
const OutputDirKey = store.OutputDirKey

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Event     string
	OutputDir string
	Database  string
	Set       []string
	EnvFile   string
	Shell     string
	MaxTasks  int
	MaxDepth  int
	Poll      time.Duration
	Timeout   time.Duration
	Strict    bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunSummary is the outcome of one run.
type RunSummary struct {
	RunID      string `json:"run_id"`
	Event      string `json:"event"`
	Status     string `json:"status"`
	Spawned    int    `json:"spawned"`
	Stored     int    `json:"stored"`
	Arrays     int    `json:"arrays"`
	OutputFile string `json:"output_file"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a workflow from a root event",
		Long: `Run a workflow by firing its root event.

Every action of the event is spawned concurrently. Output lines are matched
against the action's rules; triggers fire further events. The run ends when
no task is live, on Ctrl-C, or at --timeout. Listeners keep a run alive
until it is interrupted. An action with a bad pattern or an unknown module
fails on its own while the rest of the run continues; --strict refuses the
whole run instead, as validate does. After every command or module action the stored
values are written to <output-dir>/stored_values.txt and, with --db, to the
snapshot history.

Example:
  cascade run recon.yaml --set url=https://example.com --output-dir ./out
  cascade run recon.cue --db ./cascade.db --max-depth 5 --env-file .env`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Event, "event", "start", "root event to fire")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", ".", "directory for stored_values.txt (seeded as {output_dir})")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot database (optional)")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "seed a stored value (key=value, repeatable)")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file whose variables are passed to commands")
	cmd.Flags().StringVar(&opts.Shell, "shell", engine.DefaultShell, "shell used to run commands")
	cmd.Flags().IntVar(&opts.MaxTasks, "max-tasks", engine.DefaultMaxTasks, "total tasks a run may spawn (0 = unbounded)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "maximum trigger chain depth (0 = unbounded)")
	cmd.Flags().DurationVar(&opts.Poll, "poll", engine.DefaultPollInterval, "listener poll interval at end of file")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "stop the run after this long (0 = no limit)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "refuse to run when any action fails validation")

	return cmd
}

// blockingErrors returns the validation errors that stop a run before it
// starts. Task-scoped errors only fail their own action, unless strict.
func blockingErrors(errs []compiler.ValidationError, strict bool) []compiler.ValidationError {
	if strict {
		return errs
	}
	var blocking []compiler.ValidationError
	for _, e := range errs {
		if !e.TaskScoped() {
			blocking = append(blocking, e)
		}
	}
	return blocking
}

func runWorkflow(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Load and validate before any side effect
	slog.Info("loading workflow", "path", path)
	loaded, err := LoadWorkflow(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), err.Error(), nil)
	}
	result := ValidateWorkflow(loaded)
	if blocking := blockingErrors(result.Errors, opts.Strict); len(blocking) > 0 {
		first := blocking[0]
		return formatter.Fail(ExitFailure, first.Code,
			fmt.Sprintf("workflow is invalid (%d error(s)); first: %s", len(blocking), first.Error()), nil)
	}
	for _, e := range result.Errors {
		slog.Warn("action will fail", "code", e.Code, "field", e.Field, "message", e.Message)
	}
	for _, w := range result.Warnings {
		if w.Level == "info" {
			slog.Debug("workflow note", "code", w.Code, "message", w.Message)
			continue
		}
		slog.Warn("workflow warning", "code", w.Code, "message", w.Message)
	}
	if _, ok := loaded.Workflow.Actions(opts.Event); !ok {
		return formatter.Fail(ExitCommandError, ErrCodeUndefinedEvt,
			fmt.Sprintf("event %q is not defined by %s", opts.Event, path), nil)
	}

	initial, err := parseSetFlags(opts.Set)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidFlag, "invalid --set", err)
	}
	outputDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidFlag, "invalid --output-dir", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "creating output directory", err)
	}
	if _, ok := initial[OutputDirKey]; !ok {
		initial[OutputDirKey] = outputDir
	}

	env, err := loadEnvFile(opts.EnvFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "reading --env-file", err)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	runID := runIDs.Generate()

	files := store.NewFileSnapshotter(outputDir)
	snapshotters := engine.MultiSnapshotter{files}
	managerOpts := []engine.Option{
		engine.WithRunID(runID),
		engine.WithMaxTasks(opts.MaxTasks),
		engine.WithMaxDepth(opts.MaxDepth),
		engine.WithPollInterval(opts.Poll),
		engine.WithShell(opts.Shell),
		engine.WithEnv(env),
		engine.WithLogger(slog.Default()),
	}

	// Open database (create if not exists)
	var st *store.Store
	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		run := store.Run{
			ID:            runID,
			WorkflowHash:  loaded.Hash,
			RootEvent:     opts.Event,
			EngineVersion: ir.EngineVersion,
		}
		if err := st.CreateRun(context.Background(), run); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to record run", err)
		}
		seq, err := st.MaxSeq(context.Background(), runID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to read snapshot sequence", err)
		}
		snapshotters = append(snapshotters, st)
		managerOpts = append(managerOpts, engine.WithSnapshotSeq(seq))
	}
	managerOpts = append(managerOpts, engine.WithSnapshotter(snapshotters))

	tg := target.NewWithValues(initial)
	m := engine.New(tg, loaded.Workflow, managerOpts...)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Run finished, timed out, or parent context cancelled
		}
	}()

	slog.Info("run starting", "run_id", runID, "event", opts.Event, "workflow", path)
	m.NewEvent(opts.Event)
	runErr := m.Run(ctx)

	status := store.StatusCompleted
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = store.StatusCancelled
	default:
		return WrapExitError(ExitFailure, "engine error", runErr)
	}

	if st != nil {
		if err := st.FinishRun(context.Background(), runID, status); err != nil {
			slog.Error("error recording run status", "run_id", runID, "error", err)
		}
	}

	snap := tg.Full()
	summary := RunSummary{
		RunID:      runID,
		Event:      opts.Event,
		Status:     status,
		Spawned:    m.Spawned(),
		Stored:     len(snap.Stored),
		Arrays:     len(snap.Arrays),
		OutputFile: files.Path(),
	}
	slog.Info("run stopped", "run_id", runID, "status", status, "spawned", summary.Spawned)
	return outputRunSummary(formatter, summary)
}

// outputRunSummary prints the run outcome.
func outputRunSummary(formatter *OutputFormatter, s RunSummary) error {
	if formatter.Format == "json" {
		return formatter.Success(s)
	}

	mark := "✓"
	if s.Status != store.StatusCompleted {
		mark = "■"
	}
	w := formatter.Writer
	fmt.Fprintf(w, "%s Run %s %s: %d task(s), %d stored key(s), %d array(s)\n",
		mark, s.RunID, s.Status, s.Spawned, s.Stored, s.Arrays)
	fmt.Fprintf(w, "Stored values: %s\n", s.OutputFile)
	return nil
}

// parseSetFlags turns repeated key=value flags into an initial store.
// The value may itself contain '='.
func parseSetFlags(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[key] = value
	}
	return out, nil
}

// loadEnvFile reads a dotenv file into KEY=VALUE entries, sorted by key.
// The process environment is left untouched; the entries only reach the
// commands a run spawns.
func loadEnvFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, len(keys))
	for i, k := range keys {
		env[i] = k + "=" + vars[k]
	}
	return env, nil
}
