// Package store persists automation runs and the target snapshots taken
// after each command or module action.
//
// Two sinks exist:
//   - Store: SQLite history of runs and snapshots, queried by the CLI
//   - FileSnapshotter: the latest stored map as JSON in
//     <output-dir>/stored_values.txt, overwritten after every action
//
// # Ordering
//
// Snapshots are ordered by their seq (logical clock), never by wall time.
// All snapshot queries use ORDER BY seq ASC.
//
// # Content
//
// Snapshot content is RFC 8785 canonical JSON produced by
// ir.MarshalCanonical, and content_hash is ir.SnapshotHash of the same
// snapshot. Identical states therefore hash identically across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
