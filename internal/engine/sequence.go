package engine

import "sync/atomic"

// sequence numbers tasks and snapshots. Values start after the seed and
// increase by one; ordering never depends on wall-clock time.
type sequence struct {
	last atomic.Int64
}

func newSequence(after int64) *sequence {
	s := &sequence{}
	s.last.Store(after)
	return s
}

// next reserves and returns the following value. Safe for concurrent use.
func (s *sequence) next() int64 {
	return s.last.Add(1)
}
