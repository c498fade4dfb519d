package engine

import (
	"sync"
	"time"
)

// NoticeKind identifies the type of manager notice.
type NoticeKind string

const (
	NoticeTaskStarted     NoticeKind = "task_started"
	NoticeTaskFinished    NoticeKind = "task_finished"
	NoticeTaskFailed      NoticeKind = "task_failed"
	NoticeTaskCancelled   NoticeKind = "task_cancelled"
	NoticeSpawnRejected   NoticeKind = "spawn_rejected"
	NoticeSnapshotWritten NoticeKind = "snapshot_written"
)

// Notice is an immutable notification of manager activity.
type Notice struct {
	Kind      NoticeKind
	RunID     string
	TaskID    int64 // 0 for spawn rejections
	Parent    int64 // Triggering task, 0 for root events
	Event     string
	Action    string
	Depth     int
	Active    int // Live task count after the change
	Err       error
	Timestamp time.Time
}

// Subscription receives notices from a Bus.
type Subscription struct {
	C  <-chan Notice
	ch chan Notice
}

// Bus fans out notices to all active subscribers. It is safe for
// concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBus creates a Bus ready for use.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe.
func (b *Bus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Notice, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends a notice to all subscribers. If a subscriber's buffer is
// full the notice is dropped for that subscriber so a slow consumer never
// stalls a task.
func (b *Bus) Publish(n Notice) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- n:
		default:
		}
	}
}
