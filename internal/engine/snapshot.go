package engine

import (
	"context"
	"errors"

	"github.com/roach88/cascade/internal/ir"
)

// Snapshotter persists the target after a command or module action ends.
// Implementations must be safe for concurrent use; actions finish in
// parallel.
type Snapshotter interface {
	Save(ctx context.Context, rec ir.SnapshotRecord) error
}

// SnapshotterFunc adapts a function to Snapshotter.
type SnapshotterFunc func(ctx context.Context, rec ir.SnapshotRecord) error

// Save implements Snapshotter.
func (f SnapshotterFunc) Save(ctx context.Context, rec ir.SnapshotRecord) error {
	return f(ctx, rec)
}

// MultiSnapshotter saves to every snapshotter in order. All are attempted
// even when one fails; the failures are joined.
type MultiSnapshotter []Snapshotter

// Save implements Snapshotter.
func (m MultiSnapshotter) Save(ctx context.Context, rec ir.SnapshotRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
