package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSnapshotter_WritesStoredMap(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	f := NewFileSnapshotter(dir)

	rec := createTestRecord("run-1", 1, "foo", "bar")
	rec.Snapshot.Stored["<b>"] = "a&b"
	require.NoError(t, f.Save(context.Background(), rec))

	data, err := os.ReadFile(filepath.Join(dir, StoredValuesFile))
	require.NoError(t, err)
	assert.Equal(t, `{"<b>":"a&b","foo":"bar"}`, string(data))
	assert.Equal(t, filepath.Join(dir, StoredValuesFile), f.Path())
}

func TestFileSnapshotter_Overwrites(t *testing.T) {
	f := NewFileSnapshotter(t.TempDir())
	ctx := context.Background()

	require.NoError(t, f.Save(ctx, createTestRecord("run-1", 1, "k", "one")))
	require.NoError(t, f.Save(ctx, createTestRecord("run-1", 2, "k", "two")))

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, `{"k":"two"}`, string(data))
}

func TestFileSnapshotter_SkipsStaleSeq(t *testing.T) {
	f := NewFileSnapshotter(t.TempDir())
	ctx := context.Background()

	require.NoError(t, f.Save(ctx, createTestRecord("run-1", 5, "k", "newer")))
	require.NoError(t, f.Save(ctx, createTestRecord("run-1", 4, "k", "older")))

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, `{"k":"newer"}`, string(data))
}

func TestFileSnapshotter_FollowsStoredOutputDir(t *testing.T) {
	fallback := t.TempDir()
	moved := filepath.Join(t.TempDir(), "moved")
	f := NewFileSnapshotter(fallback)
	ctx := context.Background()

	rec := createTestRecord("run-1", 1, "k", "v")
	rec.Snapshot.Stored[OutputDirKey] = moved
	require.NoError(t, f.Save(ctx, rec))

	want := filepath.Join(moved, StoredValuesFile)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"k":"v"`)
	assert.Equal(t, want, f.Path())
	assert.NoFileExists(t, filepath.Join(fallback, StoredValuesFile))

	empty := createTestRecord("run-1", 2, "k", "w")
	empty.Snapshot.Stored[OutputDirKey] = ""
	require.NoError(t, f.Save(ctx, empty))
	assert.FileExists(t, filepath.Join(fallback, StoredValuesFile))
	assert.Equal(t, filepath.Join(fallback, StoredValuesFile), f.Path())
}

func TestFileSnapshotter_Concurrent(t *testing.T) {
	f := NewFileSnapshotter(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(seq int64) {
			defer wg.Done()
			assert.NoError(t, f.Save(ctx, createTestRecord("run-1", seq, "k", "v")))
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(f.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are renamed away")
}
