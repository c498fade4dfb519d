package harness

import (
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
)

// TraceEvent records one manager notice observed while a scenario ran.
// Task order across concurrent actions is not deterministic, so the trace
// feeds assertions only and never the golden snapshot.
type TraceEvent struct {
	Type   string `json:"type"` // Notice kind, e.g. "task_started"
	TaskID int64  `json:"task_id,omitempty"`
	Parent int64  `json:"parent,omitempty"`
	Event  string `json:"event"`
	Action string `json:"action,omitempty"`
	Depth  int    `json:"depth"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// RunID is the id the run was executed under.
	RunID string `json:"run_id"`

	// Trace contains every notice the run published, in publish order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the target state after the run went idle.
	Snapshot ir.Snapshot `json:"snapshot"`

	// Snapshots counts the snapshots persisted during the run.
	Snapshots int `json:"snapshots"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Snapshot: ir.NewSnapshot(),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddNotice appends a manager notice to the trace.
func (r *Result) AddNotice(n engine.Notice) {
	ev := TraceEvent{
		Type:   string(n.Kind),
		TaskID: n.TaskID,
		Parent: n.Parent,
		Event:  n.Event,
		Action: n.Action,
		Depth:  n.Depth,
	}
	if n.Err != nil {
		ev.Error = n.Err.Error()
	}
	r.Trace = append(r.Trace, ev)
}

// Count returns how many trace events have the given type. A non-empty
// action narrows the count to that action.
func (r *Result) Count(kind engine.NoticeKind, action string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Type != string(kind) {
			continue
		}
		if action != "" && ev.Action != action {
			continue
		}
		n++
	}
	return n
}
