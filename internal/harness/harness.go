package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/target"
	"github.com/roach88/cascade/internal/testutil"
)

// pollInterval keeps listener scenarios fast.
const pollInterval = 50 * time.Millisecond

// traceBuffer bounds the notices kept per run. The bus drops notices once a
// subscriber is full, so scenarios that spawn more tasks than this lose
// trace entries but never state.
const traceBuffer = 8192

// Harness is the test execution engine.
// It runs scenarios against the real manager with a fixed run id and
// discarded logs.
type Harness struct {
	runIDs engine.RunIDGenerator
	logger *slog.Logger
}

// snapshotCounter counts persisted snapshots without writing them anywhere.
type snapshotCounter struct {
	n atomic.Int64
}

func (c *snapshotCounter) Save(context.Context, ir.SnapshotRecord) error {
	c.n.Add(1)
	return nil
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh target. Execution flow:
// 1. Compile the workflow (file or inline)
// 2. Seed the target from the scenario store
// 3. Fire the root event and run the manager until idle (or Duration)
// 4. Evaluate assertions against the final state and trace
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		runIDs: testutil.NewFixedRunIDGenerator(scenario.runID()),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.Run(context.Background(), scenario)
}

// Run executes one scenario under ctx.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	wf, err := scenario.compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile workflow: %w", err)
	}

	bus := engine.NewBus()
	sub := bus.Subscribe(traceBuffer)
	tg := target.NewWithValues(scenario.Store)
	snaps := &snapshotCounter{}

	opts := []engine.Option{
		engine.WithBus(bus),
		engine.WithRunID(h.runIDs.Generate()),
		engine.WithLogger(h.logger),
		engine.WithSnapshotter(snaps),
		engine.WithPollInterval(pollInterval),
	}
	if scenario.Limits.MaxTasks != nil {
		opts = append(opts, engine.WithMaxTasks(*scenario.Limits.MaxTasks))
	}
	if scenario.Limits.MaxDepth != nil {
		opts = append(opts, engine.WithMaxDepth(*scenario.Limits.MaxDepth))
	}
	m := engine.New(tg, wf, opts...)

	event := scenario.rootEvent()
	if _, ok := wf.Actions(event); !ok {
		return nil, fmt.Errorf("root event %q is not defined by the workflow", event)
	}
	m.NewEvent(event)

	timeout, duration := scenario.durations()
	limit := timeout
	if duration > 0 {
		limit = duration
	}
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	if err := m.Run(runCtx); err != nil {
		stopped := duration > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
		if !stopped {
			return nil, fmt.Errorf("scenario %s did not go idle: %w", scenario.Name, err)
		}
	}

	bus.Unsubscribe(sub)
	result := NewResult()
	result.RunID = m.RunID()
	for n := range sub.C {
		result.AddNotice(n)
	}
	result.Snapshot = tg.Full()
	result.Snapshots = int(snaps.n.Load())

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}
