package engine

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxTasks is the default total number of tasks a run may spawn.
// This bounds cascades from self-referential trigger rules.
const DefaultMaxTasks = 1000

// TaskQuota counts spawned tasks for a run and enforces a total cap.
//
// The quota catches runaway fan-out: an event whose trigger rule matches
// its own output re-fires forever unless something stops it. TaskQuota is
// that stop, together with the depth cap. Neither detects cycles; both
// only bound how far a cascade can grow.
//
// A limit of 0 disables the quota.
type TaskQuota struct {
	mu       sync.Mutex
	maxTasks int
	current  int
}

// NewTaskQuota creates a quota with the given limit.
func NewTaskQuota(maxTasks int) *TaskQuota {
	return &TaskQuota{maxTasks: maxTasks}
}

// Check reserves one task slot. Returns TasksExceededError when the quota
// is exhausted; the slot is not consumed in that case.
// Thread-safe: called from every task that fires a trigger.
func (q *TaskQuota) Check(runID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxTasks > 0 && q.current >= q.maxTasks {
		return &TasksExceededError{
			RunID: runID,
			Tasks: q.current + 1,
			Limit: q.maxTasks,
		}
	}
	q.current++
	return nil
}

// Current returns the number of tasks spawned so far.
func (q *TaskQuota) Current() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// TasksExceededError is returned when a spawn would exceed the task quota.
//
// Only the rejected spawn is dropped; running tasks continue.
type TasksExceededError struct {
	RunID string
	Tasks int // Task count the spawn would have reached
	Limit int
}

// Error implements the error interface.
func (e *TasksExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded max tasks quota: %d tasks > %d limit",
		e.RunID, e.Tasks, e.Limit)
}

// IsTasksExceededError returns true if the error is a TasksExceededError.
// Uses errors.As to handle wrapped errors.
func IsTasksExceededError(err error) bool {
	var te *TasksExceededError
	return errors.As(err, &te)
}
