package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/store"
)

// SnapshotsOptions holds flags for the snapshots command.
type SnapshotsOptions struct {
	*RootOptions
	Database string
	RunID    string
	Latest   bool
}

// RunSnapshots is the snapshot history of one run.
type RunSnapshots struct {
	Run       store.Run              `json:"run"`
	Snapshots []store.StoredSnapshot `json:"snapshots"`
}

// NewSnapshotsCommand creates the snapshots command.
func NewSnapshotsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect persisted runs and snapshots",
		Long: `Inspect the snapshot history written by "cascade run --db".

Without --run, lists every recorded run. With --run, lists the run's
snapshots in sequence order; --latest prints the final stored values.

Example:
  cascade snapshots --db ./cascade.db
  cascade snapshots --db ./cascade.db --run 0190... --latest`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshots(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to inspect")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "show only the latest snapshot of --run")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSnapshots(opts *SnapshotsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Opening would create an empty database; a missing file is a user error
	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.RunID == "" {
		if opts.Latest {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidFlag, "--latest requires --run", nil)
		}
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to list runs", err)
		}
		return outputRuns(formatter, runs)
	}

	run, err := st.GetRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeRunNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to read run", err)
	}

	var snaps []store.StoredSnapshot
	if opts.Latest {
		latest, err := st.LatestSnapshot(ctx, opts.RunID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			snaps = []store.StoredSnapshot{}
		case err != nil:
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to read snapshot", err)
		default:
			snaps = []store.StoredSnapshot{latest}
		}
	} else {
		snaps, err = st.ListSnapshots(ctx, opts.RunID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to list snapshots", err)
		}
	}

	return outputSnapshots(formatter, RunSnapshots{Run: run, Snapshots: snaps}, opts.Latest)
}

// outputRuns prints the recorded runs.
func outputRuns(formatter *OutputFormatter, runs []store.Run) error {
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-9s  %-12s  %s\n", "RUN", "STATUS", "EVENT", "WORKFLOW")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-9s  %-12s  %s\n", r.ID, r.Status, r.RootEvent, shortHash(r.WorkflowHash))
	}
	return nil
}

// outputSnapshots prints a run's snapshot history. With latest, the stored
// values of the final snapshot are printed as key=value lines.
func outputSnapshots(formatter *OutputFormatter, rs RunSnapshots, latest bool) error {
	if formatter.Format == "json" {
		return formatter.Success(rs)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (%s, event %s)\n", rs.Run.ID, rs.Run.Status, rs.Run.RootEvent)
	if len(rs.Snapshots) == 0 {
		fmt.Fprintln(w, "No snapshots.")
		return nil
	}

	for _, s := range rs.Snapshots {
		fmt.Fprintf(w, "  [%d] task %d %s/%s %s (%d stored, %d arrays)\n",
			s.Seq, s.TaskID, s.Event, s.Action, shortHash(s.ContentHash),
			len(s.Snapshot.Stored), len(s.Snapshot.Arrays))
	}

	if latest {
		fmt.Fprintln(w)
		stored := rs.Snapshots[len(rs.Snapshots)-1].Snapshot.Stored
		for _, k := range ir.IRRecord(stored).SortedKeys() {
			fmt.Fprintf(w, "%s=%s\n", k, stored[k])
		}
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
