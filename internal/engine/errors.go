package engine

import (
	"errors"
	"fmt"
)

// ProcessSpawnError reports a command that could not be started.
// Fatal to the action that raised it only.
type ProcessSpawnError struct {
	Action string
	Cmd    string
	Err    error
}

// Error implements the error interface.
func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("action %s: spawn %q: %v", e.Action, e.Cmd, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProcessSpawnError) Unwrap() error { return e.Err }

// ListenerOpenError reports a listener whose file could not be opened.
// The file must exist before the listener starts.
type ListenerOpenError struct {
	Action string
	Path   string
	Err    error
}

// Error implements the error interface.
func (e *ListenerOpenError) Error() string {
	return fmt.Sprintf("action %s: open %s: %v", e.Action, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ListenerOpenError) Unwrap() error { return e.Err }

// ModuleError reports a module that could not be resolved or failed while
// running.
type ModuleError struct {
	Action string
	Module string
	Err    error
}

// Error implements the error interface.
func (e *ModuleError) Error() string {
	return fmt.Sprintf("action %s: module %s: %v", e.Action, e.Module, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ModuleError) Unwrap() error { return e.Err }

// RuntimeError represents a spawn the manager refused.
//
// Runtime errors include:
//   - Depth exceeded: trigger chain deeper than MaxDepth
//   - Quota exceeded: run would exceed MaxTasks
//   - Undefined event: event name missing from the workflow
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Event is the event whose spawn was refused.
	Event string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDepthExceeded indicates the trigger chain is too deep.
	ErrCodeDepthExceeded RuntimeErrorCode = "DEPTH_EXCEEDED"

	// ErrCodeQuotaExceeded indicates the run exceeded max tasks.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUndefinedEvent indicates the event is not in the workflow.
	ErrCodeUndefinedEvent RuntimeErrorCode = "UNDEFINED_EVENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RunID != "" && e.Event != "" {
		return fmt.Sprintf("%s: %s (run=%s, event=%s)", e.Code, e.Message, e.RunID, e.Event)
	}
	if e.Event != "" {
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.Event)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

// IsDepthError returns true if the error is a depth-exceeded error.
func IsDepthError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDepthExceeded
	}
	return false
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and TasksExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	return IsTasksExceededError(err)
}

// NewDepthError creates a RuntimeError for a too-deep trigger chain.
func NewDepthError(runID, event string, depth, maxDepth int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("trigger depth exceeded (%d > %d)", depth, maxDepth),
		RunID:   runID,
		Event:   event,
		Details: map[string]string{
			"depth":     fmt.Sprintf("%d", depth),
			"max_depth": fmt.Sprintf("%d", maxDepth),
		},
	}
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(runID, event string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: "run exceeded max tasks",
		RunID:   runID,
		Event:   event,
		Err:     cause,
	}
}

// NewUndefinedEventError creates a RuntimeError for an unknown event.
func NewUndefinedEventError(runID, event string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUndefinedEvent,
		Message: "event is not defined in the workflow",
		RunID:   runID,
		Event:   event,
	}
}
