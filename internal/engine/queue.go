package engine

import "sync"

// spawnRequest asks the manager to spawn every action of Event.
type spawnRequest struct {
	Event  string
	Depth  int   // 0 for root events; parent depth + 1 for triggers
	Parent int64 // Triggering task ID, 0 for root events
}

// spawnQueue is a thread-safe FIFO queue of root spawn requests.
//
// The queue is unbounded so NewEvent never blocks. It uses a channel for
// signaling to enable context-aware waiting in the Run loop; finishing
// tasks also poke the signal so Run can notice when the manager goes idle.
type spawnQueue struct {
	mu       sync.Mutex
	requests []spawnRequest
	closed   bool
	signal   chan struct{} // Signals availability (buffered, size 1)
}

// newSpawnQueue creates an empty queue.
func newSpawnQueue() *spawnQueue {
	return &spawnQueue{
		requests: make([]spawnRequest, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *spawnQueue) Enqueue(r spawnRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)
	q.notifyLocked()
	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (spawnRequest{}, false) if the queue is empty.
func (q *spawnQueue) TryDequeue() (spawnRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return spawnRequest{}, false
	}

	r := q.requests[0]
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}
	return r, true
}

// Notify wakes the Run loop without enqueuing anything.
func (q *spawnQueue) Notify() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notifyLocked()
}

// notifyLocked signals availability. The buffer of 1 coalesces signals.
// Must be called with q.mu held.
func (q *spawnQueue) notifyLocked() {
	if q.closed {
		return
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Wait returns a channel that signals when requests may be available or a
// task has finished. The channel is closed when the queue is closed.
func (q *spawnQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *spawnQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Closed reports whether Close has been called.
func (q *spawnQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more requests will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *spawnQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
