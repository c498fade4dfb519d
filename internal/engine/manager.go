package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/module"
	"github.com/roach88/cascade/internal/target"
)

const (
	// DefaultPollInterval is how long a listener sleeps after reaching the
	// end of its file before reading again.
	DefaultPollInterval = 5 * time.Second

	// DefaultShell runs command actions.
	DefaultShell = "/bin/bash"
)

// ModuleResolver resolves the module named by a module action.
// Implemented by *module.Registry.
type ModuleResolver interface {
	Resolve(name string, t *target.Target) (module.Runnable, error)
}

// Manager spawns and tracks the tasks of one automation run.
//
// Root events are submitted with NewEvent and spawned by the Run loop in
// FIFO order. Trigger rules spawn directly from the task that matched, so a
// triggered task is registered before the next line of its parent is read.
//
// Thread-safety model:
//   - NewEvent, Cancel, Active, Tasks: safe from any goroutine
//   - Run: called once, from one goroutine
//   - Store, Append: the caller holds the target lock for exactly one call
//
// INVARIANTS:
//   - Task contexts derive from the run context, never from a parent task
//   - The target lock is never held across a read, sleep or spawn
type Manager struct {
	target      *target.Target
	workflow    *ir.Workflow
	modules     ModuleResolver
	snapshotter Snapshotter
	bus         *Bus
	logger      *slog.Logger

	taskIDs *sequence
	snapMu  sync.Mutex // Pairs a seq with the state it numbers
	snapSeq *sequence
	queue   *spawnQueue
	quota   *TaskQuota

	runID        string
	maxTasks     int
	maxDepth     int
	pollInterval time.Duration
	shell        string
	env          []string

	mu      sync.Mutex
	tasks   map[int64]*Task // Live tasks
	runCtx  context.Context
	started bool
	wg      sync.WaitGroup
}

// Option allows configuration of manager parameters.
type Option func(*Manager)

// WithMaxTasks sets the total number of tasks the run may spawn.
//
// Default: 1000 tasks (DefaultMaxTasks). Use 0 to disable the cap.
func WithMaxTasks(n int) Option {
	return func(m *Manager) { m.maxTasks = n }
}

// WithMaxDepth sets the maximum trigger chain depth. Root events have depth
// 0; an event fired by a task at depth d has depth d+1.
//
// Default: 0 (unbounded).
func WithMaxDepth(n int) Option {
	return func(m *Manager) { m.maxDepth = n }
}

// WithPollInterval sets how long listeners wait at end of file.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// WithShell sets the shell used as `<shell> -c <cmd>`.
func WithShell(shell string) Option {
	return func(m *Manager) { m.shell = shell }
}

// WithEnv appends KEY=VALUE entries to the environment of every command.
func WithEnv(env []string) Option {
	return func(m *Manager) { m.env = append(m.env, env...) }
}

// WithSnapshotter sets where snapshots are persisted. Without one,
// snapshots are skipped.
func WithSnapshotter(s Snapshotter) Option {
	return func(m *Manager) { m.snapshotter = s }
}

// WithModules sets the module resolver. Default: module.Builtins().
func WithModules(r ModuleResolver) Option {
	return func(m *Manager) { m.modules = r }
}

// WithBus sets the notice bus. Default: a fresh Bus.
func WithBus(b *Bus) Option {
	return func(m *Manager) { m.bus = b }
}

// WithRunID sets the run identifier. Default: a new UUIDv7.
func WithRunID(id string) Option {
	return func(m *Manager) { m.runID = id }
}

// WithSnapshotSeq continues snapshot numbering after start.
func WithSnapshotSeq(start int64) Option {
	return func(m *Manager) { m.snapSeq = newSequence(start) }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager for the given target and workflow.
func New(t *target.Target, wf *ir.Workflow, opts ...Option) *Manager {
	m := &Manager{
		target:       t,
		workflow:     wf,
		taskIDs:      newSequence(0),
		snapSeq:      newSequence(0),
		queue:        newSpawnQueue(),
		maxTasks:     DefaultMaxTasks,
		pollInterval: DefaultPollInterval,
		shell:        DefaultShell,
		tasks:        make(map[int64]*Task),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.workflow == nil {
		m.workflow = ir.NewWorkflow()
	}
	if m.modules == nil {
		m.modules = module.Builtins()
	}
	if m.bus == nil {
		m.bus = NewBus()
	}
	if m.runID == "" {
		m.runID = UUIDv7Generator{}.Generate()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("run_id", m.runID)
	m.quota = NewTaskQuota(m.maxTasks)
	return m
}

// RunID returns the run identifier.
func (m *Manager) RunID() string { return m.runID }

// Target returns the shared target.
func (m *Manager) Target() *target.Target { return m.target }

// Bus returns the notice bus.
func (m *Manager) Bus() *Bus { return m.bus }

// Spawned returns the number of tasks spawned so far.
func (m *Manager) Spawned() int { return m.quota.Current() }

// Store passes through to the target. The caller holds the target lock.
func (m *Manager) Store(key, value string) bool {
	return m.target.Store(key, value)
}

// Append passes through to the target. The caller holds the target lock.
func (m *Manager) Append(key string, value ir.IRValue) {
	m.target.Append(key, value)
}

// NewEvent submits a root event. Its actions are spawned by Run. Events are
// not deduplicated. Returns false once the run has ended.
func (m *Manager) NewEvent(name string) bool {
	return m.queue.Enqueue(spawnRequest{Event: name})
}

// Run spawns submitted events until the run is idle or ctx is cancelled.
//
// Returns nil when no task is live and no event is pending, or ctx.Err()
// on cancellation. Every task is cancelled and awaited before Run returns.
// A Manager runs once.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("engine: manager already run")
	}
	m.started = true
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.mu.Unlock()

	defer func() {
		cancel()
		m.wg.Wait()
		m.queue.Close()
	}()

	m.logger.Info("run started",
		"events", len(m.workflow.Events),
		"max_tasks", m.maxTasks,
		"max_depth", m.maxDepth)

	for {
		for {
			req, ok := m.queue.TryDequeue()
			if !ok {
				break
			}
			m.spawn(req)
		}

		if m.idle() {
			m.logger.Info("run finished",
				"spawned", m.quota.Current(),
				"mutations", m.target.Mutations())
			return nil
		}

		select {
		case <-runCtx.Done():
			m.logger.Info("run cancelled", "active", m.Active())
			return ctx.Err()
		case <-m.queue.Wait():
		}
	}
}

// Cancel cancels one task and drops it from the live set. Tasks it already
// spawned keep running. Returns false if the task is not live.
func (m *Manager) Cancel(id int64) bool {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if ok {
		delete(m.tasks, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	t.cancel()
	m.queue.Notify()
	return true
}

// Active returns the number of live tasks.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Tasks returns the live tasks ordered by ID.
func (m *Manager) Tasks() []TaskInfo {
	m.mu.Lock()
	infos := make([]TaskInfo, 0, len(m.tasks))
	for _, t := range m.tasks {
		infos = append(infos, t.TaskInfo)
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (m *Manager) idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks) == 0 && m.queue.Len() == 0
}

// spawn starts one task per action of req.Event, in declaration order.
// Rejected spawns are logged and published; running tasks are unaffected.
func (m *Manager) spawn(req spawnRequest) []*Task {
	specs, ok := m.workflow.Actions(req.Event)
	if !ok {
		m.reject(req, NewUndefinedEventError(m.runID, req.Event))
		return nil
	}
	if m.maxDepth > 0 && req.Depth > m.maxDepth {
		m.reject(req, NewDepthError(m.runID, req.Event, req.Depth, m.maxDepth))
		return nil
	}

	spawned := make([]*Task, 0, len(specs))
	for _, spec := range specs {
		if err := m.quota.Check(m.runID); err != nil {
			m.reject(req, NewQuotaError(m.runID, req.Event, err))
			break
		}
		t := m.start(req, spec)
		if t == nil {
			break
		}
		spawned = append(spawned, t)
	}
	return spawned
}

// start registers a task and launches its goroutine. Returns nil once the
// run has been cancelled.
func (m *Manager) start(req spawnRequest, spec ir.ActionSpec) *Task {
	m.mu.Lock()
	if m.runCtx == nil || m.runCtx.Err() != nil {
		m.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(m.runCtx)
	t := &Task{
		TaskInfo: TaskInfo{
			ID:     m.taskIDs.next(),
			Event:  req.Event,
			Action: spec.Name,
			Kind:   spec.Kind,
			Depth:  req.Depth,
			Parent: req.Parent,
		},
		spec:   spec,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.tasks[t.ID] = t
	active := len(m.tasks)
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("task started",
		"task", t.ID,
		"event", t.Event,
		"action", t.Action,
		"kind", t.Kind,
		"depth", t.Depth,
		"parent", t.Parent,
		"active", active)
	m.publish(NoticeTaskStarted, t, active, nil)

	go m.execute(ctx, t)
	return t
}

func (m *Manager) execute(ctx context.Context, t *Task) {
	defer m.wg.Done()

	var err error
	switch t.Kind {
	case ir.KindCommand:
		err = m.runCommand(ctx, t)
	case ir.KindListener:
		err = m.runListener(ctx, t)
	case ir.KindModule:
		err = m.runModule(ctx, t)
	default:
		err = fmt.Errorf("action %s: unknown kind %q", t.Action, t.Kind)
	}
	m.finish(ctx, t, err)
}

// finish drops t from the live set and publishes how it ended.
func (m *Manager) finish(ctx context.Context, t *Task, err error) {
	cancelled := ctx.Err() != nil
	t.cancel()

	m.mu.Lock()
	delete(m.tasks, t.ID)
	active := len(m.tasks)
	m.mu.Unlock()

	t.err = err
	close(t.done)

	log := m.logger.With("task", t.ID, "event", t.Event, "action", t.Action, "active", active)
	switch {
	case cancelled:
		log.Info("task cancelled")
		m.publish(NoticeTaskCancelled, t, active, err)
	case err != nil:
		log.Error("task failed", "error", err)
		m.publish(NoticeTaskFailed, t, active, err)
	default:
		log.Info("task finished")
		m.publish(NoticeTaskFinished, t, active, nil)
	}
	m.queue.Notify()
}

func (m *Manager) reject(req spawnRequest, err *RuntimeError) {
	level := slog.LevelError
	if err.Code == ErrCodeUndefinedEvent {
		level = slog.LevelWarn
	}
	m.logger.Log(context.Background(), level, "spawn rejected",
		"event", req.Event,
		"depth", req.Depth,
		"parent", req.Parent,
		"code", err.Code,
		"error", err)
	m.bus.Publish(Notice{
		Kind:   NoticeSpawnRejected,
		RunID:  m.runID,
		Parent: req.Parent,
		Event:  req.Event,
		Depth:  req.Depth,
		Active: m.Active(),
		Err:    err,
	})
}

func (m *Manager) publish(kind NoticeKind, t *Task, active int, err error) {
	m.bus.Publish(Notice{
		Kind:   kind,
		RunID:  m.runID,
		TaskID: t.ID,
		Parent: t.Parent,
		Event:  t.Event,
		Action: t.Action,
		Depth:  t.Depth,
		Active: active,
		Err:    err,
	})
}

// persist saves the full target state after an action ends.
// Persistence failures are logged; they do not fail the action.
func (m *Manager) persist(ctx context.Context, t *Task) {
	if m.snapshotter == nil {
		return
	}
	m.snapMu.Lock()
	rec := ir.SnapshotRecord{
		RunID:    m.runID,
		Seq:      m.snapSeq.next(),
		TaskID:   t.ID,
		Event:    t.Event,
		Action:   t.Action,
		Snapshot: m.target.Full(),
	}
	m.snapMu.Unlock()
	if err := m.snapshotter.Save(ctx, rec); err != nil {
		m.logger.Error("snapshot failed", "task", t.ID, "action", t.Action, "error", err)
		return
	}
	m.logger.Debug("snapshot written", "task", t.ID, "seq", rec.Seq)
	m.publish(NoticeSnapshotWritten, t, m.Active(), nil)
}
