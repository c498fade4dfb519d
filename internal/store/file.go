package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/cascade/internal/ir"
)

// StoredValuesFile is the fixed name of the file holding the latest stored
// map inside the output directory.
const StoredValuesFile = "stored_values.txt"

// OutputDirKey is the stored key naming the directory stored_values.txt is
// written to.
const OutputDirKey = "output_dir"

// FileSnapshotter writes the stored map of each snapshot as canonical JSON
// to stored_values.txt. Every save replaces the previous content, so the
// file always holds the state after the most recent action.
//
// The directory is read from the snapshot's stored value under DirKey, so a
// workflow that stores a new output_dir moves the file. Dir is used while
// that value is unset or empty. A relative value resolves against the
// working directory.
//
// Writes go through a temporary file and a rename, so readers never see a
// partial file.
type FileSnapshotter struct {
	Dir    string
	DirKey string

	mu       sync.Mutex
	lastSeq  int64
	lastPath string
}

// NewFileSnapshotter creates a snapshotter writing into dir until the stored
// map names another directory under OutputDirKey.
func NewFileSnapshotter(dir string) *FileSnapshotter {
	return &FileSnapshotter{Dir: dir, DirKey: OutputDirKey}
}

// Path returns the file most recently written, or the default location
// under Dir before the first save.
func (f *FileSnapshotter) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastPath != "" {
		return f.lastPath
	}
	return filepath.Join(f.Dir, StoredValuesFile)
}

func (f *FileSnapshotter) dirFor(stored map[string]string) string {
	if f.DirKey != "" {
		if dir := stored[f.DirKey]; dir != "" {
			return dir
		}
	}
	return f.Dir
}

// Save writes rec's stored map. A record older than one already written is
// skipped; actions finishing in parallel may call Save out of seq order.
func (f *FileSnapshotter) Save(_ context.Context, rec ir.SnapshotRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if rec.Seq != 0 && rec.Seq < f.lastSeq {
		return nil
	}

	stored := rec.Snapshot.Stored
	if stored == nil {
		stored = map[string]string{}
	}
	data, err := ir.MarshalCanonical(stored)
	if err != nil {
		return fmt.Errorf("write %s: %w", StoredValuesFile, err)
	}

	dir := f.dirFor(stored)
	path := filepath.Join(dir, StoredValuesFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, StoredValuesFile+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", StoredValuesFile, err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", StoredValuesFile, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", StoredValuesFile, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", StoredValuesFile, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", StoredValuesFile, err)
	}

	f.lastSeq = rec.Seq
	f.lastPath = path
	return nil
}
