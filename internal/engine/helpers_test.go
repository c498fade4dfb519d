package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/target"
)

func cmdAction(name, cmd string) ir.ActionSpec {
	return ir.ActionSpec{Name: name, Kind: ir.KindCommand, Cmd: cmd}
}

func listenerAction(name, file string) ir.ActionSpec {
	return ir.ActionSpec{Name: name, Kind: ir.KindListener, File: file}
}

// harness wires a manager to a subscribed bus for assertions.
type harness struct {
	m   *Manager
	tg  *target.Target
	sub *Subscription
}

func newHarness(t *testing.T, wf *ir.Workflow, opts ...Option) *harness {
	t.Helper()
	bus := NewBus()
	sub := bus.Subscribe(1024)
	tg := target.New()
	opts = append([]Option{WithBus(bus), WithRunID("run-test"), WithPollInterval(20 * time.Millisecond)}, opts...)
	return &harness{m: New(tg, wf, opts...), tg: tg, sub: sub}
}

// run fires the events and runs the manager to idle.
func (h *harness) run(t *testing.T, events ...string) {
	t.Helper()
	for _, e := range events {
		require.True(t, h.m.NewEvent(e))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.m.Run(ctx))
}

// notices drains every notice published so far.
func (h *harness) notices() []Notice {
	var out []Notice
	for {
		select {
		case n := <-h.sub.C:
			out = append(out, n)
		default:
			return out
		}
	}
}

func filterNotices(ns []Notice, kind NoticeKind) []Notice {
	var out []Notice
	for _, n := range ns {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// recordingSnapshotter keeps every saved record.
type recordingSnapshotter struct {
	mu   sync.Mutex
	recs []ir.SnapshotRecord
}

func (r *recordingSnapshotter) Save(_ context.Context, rec ir.SnapshotRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *recordingSnapshotter) records() []ir.SnapshotRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.SnapshotRecord(nil), r.recs...)
}
