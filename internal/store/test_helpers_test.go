package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/cascade/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun inserts a run with minimal required fields.
func createTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run := Run{
		ID:            id,
		WorkflowHash:  "test-hash",
		RootEvent:     "start",
		EngineVersion: ir.EngineVersion,
	}
	if err := s.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
	run.Status = StatusRunning
	return run
}

// createTestRecord builds a snapshot record holding one stored value.
func createTestRecord(runID string, seq int64, key, value string) ir.SnapshotRecord {
	snap := ir.NewSnapshot()
	snap.Stored[key] = value
	return ir.SnapshotRecord{
		RunID:    runID,
		Seq:      seq,
		TaskID:   seq,
		Event:    "start",
		Action:   "echo",
		Snapshot: snap,
	}
}
