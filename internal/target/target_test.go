package target

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

// TestStore_Idempotent tests that storing an identical value twice leaves
// both the value and the mutation count unchanged.
func TestStore_Idempotent(t *testing.T) {
	tg := New()

	assert.True(t, tg.StoreLocked("user", "bob"))
	assert.Equal(t, int64(1), tg.Mutations())

	assert.False(t, tg.StoreLocked("user", "bob"))
	assert.Equal(t, int64(1), tg.Mutations())

	v, ok := tg.Get("user")
	require.True(t, ok)
	assert.Equal(t, "bob", v)
}

// TestStore_Overwrite tests that a different value replaces the old one.
func TestStore_Overwrite(t *testing.T) {
	tg := New()
	tg.StoreLocked("k", "a")
	tg.StoreLocked("k", "b")

	v, _ := tg.Get("k")
	assert.Equal(t, "b", v)
	assert.Equal(t, int64(2), tg.Mutations())
}

// TestAppend_CreatesList tests the first append creates the array.
func TestAppend_CreatesList(t *testing.T) {
	tg := New()
	tg.AppendLocked("hosts", ir.IRString("a"))
	tg.AppendLocked("hosts", ir.IRRecord{"ip": "10.0.0.1"})

	arrays := tg.Arrays()
	require.Len(t, arrays["hosts"], 2)
	assert.Equal(t, ir.IRString("a"), arrays["hosts"][0])
	assert.Equal(t, ir.IRRecord{"ip": "10.0.0.1"}, arrays["hosts"][1])

	last, ok := tg.Last("hosts")
	require.True(t, ok)
	assert.Equal(t, ir.IRRecord{"ip": "10.0.0.1"}, last)

	_, ok = tg.Last("missing")
	assert.False(t, ok)
}

// TestSnapshot_IsCopy tests that mutating a snapshot does not leak back.
func TestSnapshot_IsCopy(t *testing.T) {
	tg := NewWithValues(map[string]string{"k": "v"})
	assert.Equal(t, int64(0), tg.Mutations())

	snap := tg.Snapshot()
	snap["k"] = "changed"

	v, _ := tg.Get("k")
	assert.Equal(t, "v", v)
}

// TestFull_IncludesArrays tests that Full captures both maps.
func TestFull_IncludesArrays(t *testing.T) {
	tg := NewWithValues(map[string]string{"k": "v"})
	tg.AppendLocked("list", ir.IRString("x"))

	snap := tg.Full()
	assert.Equal(t, map[string]string{"k": "v"}, snap.Stored)
	assert.Equal(t, ir.IRArray{ir.IRString("x")}, snap.Arrays["list"])
}

// TestConcurrentAppends tests that per-call locking loses no writes.
func TestConcurrentAppends(t *testing.T) {
	tg := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tg.AppendLocked("items", ir.IRString(fmt.Sprintf("%d-%d", w, i)))
				tg.StoreLocked(fmt.Sprintf("w%d", w), fmt.Sprintf("%d", i))
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, tg.Arrays()["items"], 800)
	assert.Len(t, tg.Snapshot(), 8)
	assert.Equal(t, int64(1600), tg.Mutations())
}
