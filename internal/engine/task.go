package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/roach88/cascade/internal/extract"
	"github.com/roach88/cascade/internal/ir"
)

// TaskInfo describes a spawned task.
type TaskInfo struct {
	ID     int64
	Event  string
	Action string
	Kind   ir.ActionKind
	Depth  int
	Parent int64 // 0 for root events
}

// Task is one running action.
type Task struct {
	TaskInfo

	spec   ir.ActionSpec
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done is closed when the task has ended.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns how the task ended. Valid only after Done is closed.
func (t *Task) Err() error { return t.err }

// taskSink applies rule effects on behalf of one task.
//
// Each Store or Append holds the target lock for exactly that call.
// Trigger events spawn at once with the task's depth plus one.
type taskSink struct {
	m    *Manager
	task *Task
}

func (s taskSink) Store(key, value string) {
	s.m.target.Lock()
	s.m.Store(key, value)
	s.m.target.Unlock()
}

func (s taskSink) Append(key string, value ir.IRValue) {
	s.m.target.Lock()
	s.m.Append(key, value)
	s.m.target.Unlock()
}

func (s taskSink) NewEvent(ctx context.Context, name string) {
	if ctx.Err() != nil {
		return
	}
	s.m.spawn(spawnRequest{
		Event:  name,
		Depth:  s.task.Depth + 1,
		Parent: s.task.ID,
	})
}

// applyStatic renders and stores the action's store_static templates.
func (m *Manager) applyStatic(t *Task, rules *extract.Rules) error {
	values, err := rules.RenderStatic(m.target)
	if err != nil {
		return err
	}
	sink := taskSink{m: m, task: t}
	for _, kv := range values {
		sink.Store(kv.Key, kv.Template)
	}
	return nil
}

// consumeLines applies rules to every line of r until EOF. A final line
// without a trailing newline is still processed.
func (m *Manager) consumeLines(ctx context.Context, t *Task, rules *extract.Rules, r io.Reader) error {
	br := bufio.NewReader(r)
	sink := taskSink{m: m, task: t}
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			m.applyLine(ctx, t, rules, sink, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (m *Manager) applyLine(ctx context.Context, t *Task, rules *extract.Rules, sink extract.Sink, raw string) {
	line := normalizeLine(raw)
	res := rules.Apply(ctx, line, sink)
	if !res.Empty() {
		m.logger.Debug("line matched",
			"task", t.ID,
			"action", t.Action,
			"stored", res.Stored,
			"appended", res.Appended,
			"fired", res.Fired)
	}
}

// normalizeLine strips all trailing whitespace and drops invalid UTF-8 bytes.
func normalizeLine(s string) string {
	s = strings.TrimRight(s, " \t\r\n\v\f")
	return strings.ToValidUTF8(s, "")
}
