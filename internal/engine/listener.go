package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/roach88/cascade/internal/extract"
)

// runListener tails an append-only file until the task is cancelled.
//
// The file must exist when the listener starts. At end of file the
// listener sleeps for the poll interval and reads again; a trailing line
// without a newline is held until its newline arrives. Listeners never
// snapshot.
func (m *Manager) runListener(ctx context.Context, t *Task) error {
	rules, err := extract.Compile(t.spec)
	if err != nil {
		return err
	}

	f, err := os.Open(t.spec.File)
	if err != nil {
		return &ListenerOpenError{Action: t.Action, Path: t.spec.File, Err: err}
	}
	defer f.Close()

	if err := m.applyStatic(t, rules); err != nil {
		return err
	}

	m.logger.Debug("listener started", "task", t.ID, "action", t.Action, "file", t.spec.File)

	br := bufio.NewReader(f)
	sink := taskSink{m: m, task: t}
	var pending strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := br.ReadString('\n')
		pending.WriteString(chunk)
		if err == nil {
			m.applyLine(ctx, t, rules, sink, pending.String())
			pending.Reset()
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("action %s: read %s: %w", t.Action, t.spec.File, err)
		}

		timer := time.NewTimer(m.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
