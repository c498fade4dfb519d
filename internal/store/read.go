package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// ErrNotFound is returned when a requested run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// StoredSnapshot is a snapshot record together with its content hash.
type StoredSnapshot struct {
	ir.SnapshotRecord
	ContentHash string `json:"content_hash"`
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_hash, root_event, engine_version, status
		FROM runs
		WHERE id = ?
	`, runID).Scan(&run.ID, &run.WorkflowHash, &run.RootEvent, &run.EngineVersion, &run.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run ordered by ID. UUIDv7 IDs sort by creation time.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_hash, root_event, engine_version, status
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.WorkflowHash, &run.RootEvent, &run.EngineVersion, &run.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListSnapshots returns every snapshot of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no snapshots.
func (s *Store) ListSnapshots(ctx context.Context, runID string) ([]StoredSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, task_id, event, action, content, content_hash
		FROM snapshots
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []StoredSnapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// LatestSnapshot returns the snapshot with the highest seq for a run.
// Returns ErrNotFound if the run has none.
func (s *Store) LatestSnapshot(ctx context.Context, runID string) (StoredSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, seq, task_id, event, action, content, content_hash
		FROM snapshots
		WHERE run_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, runID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredSnapshot{}, fmt.Errorf("latest snapshot for run %s: %w", runID, ErrNotFound)
	}
	return snap, err
}

// MaxSeq returns the highest snapshot seq for a run, or 0 if none exist.
func (s *Store) MaxSeq(ctx context.Context, runID string) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM snapshots WHERE run_id = ?`, runID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (StoredSnapshot, error) {
	var (
		snap    StoredSnapshot
		content string
	)
	err := row.Scan(
		&snap.RunID,
		&snap.Seq,
		&snap.TaskID,
		&snap.Event,
		&snap.Action,
		&content,
		&snap.ContentHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredSnapshot{}, err
		}
		return StoredSnapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}

	snap.Snapshot, err = unmarshalSnapshot(content)
	if err != nil {
		return StoredSnapshot{}, err
	}
	return snap, nil
}
