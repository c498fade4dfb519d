package store

import (
	"context"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Run is one execution of a workflow.
type Run struct {
	ID            string `json:"id"`
	WorkflowHash  string `json:"workflow_hash"`
	RootEvent     string `json:"root_event"`
	EngineVersion string `json:"engine_version"`
	Status        string `json:"status"`
}

// CreateRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	status := run.Status
	if status == "" {
		status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, workflow_hash, root_event, engine_version, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.WorkflowHash, run.RootEvent, run.EngineVersion, status)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records how a run ended.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?`, status, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: run %s not found", runID)
	}
	return nil
}

// Save inserts a snapshot record. The run must already exist.
// Uses ON CONFLICT DO NOTHING for idempotency - a second write for the same
// (run_id, seq) is silently ignored.
//
// Save satisfies the engine's Snapshotter interface.
func (s *Store) Save(ctx context.Context, rec ir.SnapshotRecord) error {
	content, err := marshalSnapshot(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	hash, err := ir.SnapshotHash(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, seq, task_id, event, action, content, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, rec.RunID, rec.Seq, rec.TaskID, rec.Event, rec.Action, content, hash)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
