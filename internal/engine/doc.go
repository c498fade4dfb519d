// Package engine implements the cascade event manager and its tasks.
//
// The manager owns the run's Target and the set of live tasks. Firing an
// event looks up its actions in the workflow and spawns one task per
// action. Each task streams output lines through its compiled extraction
// rules; a matching trigger rule fires further events from inside the task,
// so the event graph expands live while earlier tasks keep running.
//
// ARCHITECTURE:
//
// Tasks:
//   - command:  runs a shell command to completion, stdout+stderr merged
//   - listener: tails an existing file forever, polling at EOF
//   - module:   runs a registered in-process module
//
// Each task runs on its own goroutine. External processes give true
// parallelism; line reads, the EOF poll delay, and target lock acquisition
// are the only blocking points.
//
// Spawn Flow:
//  1. NewEvent() enqueues a root spawn request (depth 0)
//  2. Run() dequeues requests and spawns their tasks
//  3. A trigger rule inside a task spawns directly at line-processing time
//     with depth = parent depth + 1
//  4. Every spawn passes the depth cap and the total-task quota first
//
// Run() returns once no task is live and no request is pending, or when
// its context is cancelled.
//
// CRITICAL PATTERNS:
//
// One Call Per Lock:
// The target mutex wraps exactly one Store or Append call and is released
// before the next read, sleep, or spawn. A line's rule batch is not atomic.
//
// Detached Children:
// Task contexts derive from the run context, never from the parent task.
// Cancelling a task leaves the tasks it already spawned running.
//
// Bounded Expansion:
// The workflow graph may be cyclic. Expansion is bounded by MaxDepth and
// MaxTasks; neither is a cycle detector, and rejected spawns are logged.
package engine
