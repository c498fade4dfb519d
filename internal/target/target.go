// Package target holds the shared mutable context of one automation run.
//
// A Target accumulates everything the running actions extract: a flat
// key/value store and a set of named, ordered arrays. It owns exactly one
// mutex. Call sites acquire it immediately before a single Store or Append
// and release it immediately after; a batch of rule effects is never atomic
// as a whole, and the lock is never held across a blocking read, sleep, or
// task spawn.
package target

import (
	"sync"

	"github.com/roach88/cascade/internal/ir"
)

// Target is the shared context whose accumulated findings are stored.
//
// Thread-safety model:
//   - Store/Append: caller must hold the lock (Lock/Unlock), once per call
//   - StoreLocked/AppendLocked: acquire and release around one call
//   - Get, Snapshot, Arrays, Mutations: safe from any goroutine
type Target struct {
	mu        sync.Mutex
	stored    map[string]string
	arrays    map[string]ir.IRArray
	mutations int64 // Effective writes (post-dedupe)
}

// New creates an empty target.
func New() *Target {
	return &Target{
		stored: make(map[string]string),
		arrays: make(map[string]ir.IRArray),
	}
}

// NewWithValues creates a target seeded with initial stored values.
// Seeding does not count as a mutation.
func NewWithValues(initial map[string]string) *Target {
	t := New()
	for k, v := range initial {
		t.stored[k] = v
	}
	return t
}

// Lock acquires the target mutex.
func (t *Target) Lock() { t.mu.Lock() }

// Unlock releases the target mutex.
func (t *Target) Unlock() { t.mu.Unlock() }

// Store upserts key. The write is skipped when the current value already
// equals value. Returns true if the store changed.
//
// CRITICAL: the caller must hold the lock for exactly this call.
func (t *Target) Store(key, value string) bool {
	if cur, ok := t.stored[key]; ok && cur == value {
		return false
	}
	t.stored[key] = value
	t.mutations++
	return true
}

// Append pushes value onto the array named key, creating it on first use.
//
// CRITICAL: the caller must hold the lock for exactly this call.
func (t *Target) Append(key string, value ir.IRValue) {
	t.arrays[key] = append(t.arrays[key], value)
	t.mutations++
}

// StoreLocked wraps a single Store call in the target lock.
func (t *Target) StoreLocked(key, value string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Store(key, value)
}

// AppendLocked wraps a single Append call in the target lock.
func (t *Target) AppendLocked(key string, value ir.IRValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Append(key, value)
}

// Get returns the stored value for key. Used to decide whether a write is
// redundant; a stale answer at worst causes a duplicate write.
func (t *Target) Get(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.stored[key]
	return v, ok
}

// Last returns the most recently appended item of an array.
func (t *Target) Last(key string) (ir.IRValue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	arr := t.arrays[key]
	if len(arr) == 0 {
		return nil, false
	}
	return arr[len(arr)-1], true
}

// Snapshot returns a copy of the full stored map for persistence.
func (t *Target) Snapshot() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make(map[string]string, len(t.stored))
	for k, v := range t.stored {
		cp[k] = v
	}
	return cp
}

// Arrays returns a deep copy of every stored array.
func (t *Target) Arrays() map[string]ir.IRArray {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make(map[string]ir.IRArray, len(t.arrays))
	for k, v := range t.arrays {
		cp[k] = ir.CloneArray(v)
	}
	return cp
}

// Full returns a snapshot of both the stored map and the arrays, taken
// under a single lock acquisition.
func (t *Target) Full() ir.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := ir.NewSnapshot()
	for k, v := range t.stored {
		snap.Stored[k] = v
	}
	for k, v := range t.arrays {
		snap.Arrays[k] = ir.CloneArray(v)
	}
	return snap
}

// Mutations returns the number of effective writes so far.
func (t *Target) Mutations() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mutations
}
