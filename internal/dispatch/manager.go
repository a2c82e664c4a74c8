package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/gpiogw/internal/action"
	"github.com/mattjoyce/gpiogw/internal/events"
	"github.com/mattjoyce/gpiogw/internal/log"
	"github.com/mattjoyce/gpiogw/internal/queue"
	"github.com/mattjoyce/gpiogw/internal/storage"
	"github.com/mattjoyce/gpiogw/internal/task"
)

var (
	// ErrConfigNotFound is returned by Enqueue when the item's config name
	// does not resolve in the config store.
	ErrConfigNotFound = errors.New("config not found")
	// ErrQueueClosed is returned by Enqueue after Stop.
	ErrQueueClosed = errors.New("action queue closed")
	// ErrNoHandler is recorded when no handler serves an action kind.
	ErrNoHandler = errors.New("no handler for action kind")
	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("manager already started")
)

// Options are the global dispatch settings.
type Options struct {
	// AllowThreading runs actions that carry a task id in the background.
	AllowThreading bool
	// Simulate skips handler calls but still logs and publishes start and end.
	Simulate bool
	// StopWait bounds how long Stop waits for each task. Negative waits forever.
	StopWait time.Duration
	// StartupDir holds *.json files of actions enqueued at Start.
	StartupDir string
}

// Option customises a Manager.
type Option func(*Manager)

// WithEvents publishes lifecycle events to p.
func WithEvents(p events.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.events = p
		}
	}
}

// WithRecorder records every execution outcome to r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// Manager is the action queue manager.
type Manager struct {
	opts     Options
	configs  ConfigStore
	handlers HandlerSource
	events   events.Publisher
	recorder Recorder
	logger   *slog.Logger

	pending *queue.FIFO[action.QueueItem]
	tasks   *task.Registry

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopping  atomic.Bool
	loopDone  chan struct{}
}

// New creates a Manager. It does nothing until Start.
func New(opts Options, configs ConfigStore, handlers HandlerSource, options ...Option) *Manager {
	m := &Manager{
		opts:     opts,
		configs:  configs,
		handlers: handlers,
		events:   events.Nop{},
		logger:   log.WithComponent("dispatch"),
		pending:  queue.New[action.QueueItem](),
		tasks:    task.NewRegistry(),
		loopDone: make(chan struct{}),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

// Start loads the config store, enqueues the startup actions and launches the
// worker loop. ctx only bounds startup loading.
func (m *Manager) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	m.startOnce.Do(func() {
		err = nil
		if serr := m.configs.Start(); serr != nil {
			err = fmt.Errorf("start config store: %w", serr)
			return
		}
		m.loadStartupActions(ctx)

		m.started.Store(true)
		go m.run()
		m.logger.Info("action queue manager started",
			"allow_threading", m.opts.AllowThreading,
			"simulate", m.opts.Simulate,
			"queue_depth", m.pending.Len(),
		)
	})
	return err
}

// Enqueue appends item to the pending queue. It never blocks.
func (m *Manager) Enqueue(item action.QueueItem) error {
	if m.stopping.Load() || m.pending.Closed() {
		return ErrQueueClosed
	}
	if !m.configs.Exists(item.ConfigName) {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, item.ConfigName)
	}
	if err := m.pending.Push(item); err != nil {
		if errors.Is(err, queue.ErrClosed) {
			return ErrQueueClosed
		}
		return err
	}

	m.logger.Debug("action enqueued",
		"queue_item_id", item.ID,
		"kind", item.Action.Kind,
		"config", item.ConfigName,
		"origin", item.Origin,
		"task_id", item.Action.TaskID,
	)
	m.events.Publish(events.ActionEnqueued, itemEvent(item))
	return nil
}

// Stop cancels every running task and waits up to StopWait for each, then
// stops the config store, closes the queue and joins the worker loop. The loop
// keeps dispatching while tasks are waited on; items still queued once the
// wait ends are discarded. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		running := m.tasks.Snapshot()
		m.logger.Info("stopping action queue manager", "running_tasks", len(running), "queue_depth", m.pending.Len())
		for _, r := range running {
			r.Cancel()
			m.events.Publish(events.TaskCancelRequested, taskEvent(r))

			logger := m.logger.With("task_id", r.ID, "kind", r.Item.Action.Kind, "config", r.Item.ConfigName, "origin", r.Item.Origin)
			if r.Wait(m.opts.StopWait) {
				logger.Info("stopped task")
			} else {
				logger.Error("task did not stop in time", "stop_wait", m.opts.StopWait.String())
			}
		}

		m.stopping.Store(true)
		m.configs.Stop()
		m.pending.Close()
		if m.started.Load() {
			<-m.loopDone
		}
		m.logger.Info("action queue manager stopped")
	})
}

// CancelTask requests cancellation of a running task. It reports whether the
// task was found; the task may still be running when it returns.
func (m *Manager) CancelTask(id string) bool {
	r, ok := m.tasks.Get(id)
	if !ok {
		m.logger.Info("cancel requested for unknown task", "task_id", id)
		return false
	}
	if r.Cancel() {
		m.logger.Info("task cancellation requested", "task_id", id)
		m.events.Publish(events.TaskCancelRequested, taskEvent(r))
	}
	return true
}

// Tasks returns a snapshot of the running tasks.
func (m *Manager) Tasks() []task.Info {
	records := m.tasks.Snapshot()
	out := make([]task.Info, 0, len(records))
	for _, r := range records {
		out = append(out, r.Info())
	}
	return out
}

// GetTask returns a snapshot of one running task.
func (m *Manager) GetTask(id string) (task.Info, bool) {
	r, ok := m.tasks.Get(id)
	if !ok {
		m.logger.Debug("task lookup for unknown id", "task_id", id)
		return task.Info{}, false
	}
	return r.Info(), true
}

// QueueDepth returns the number of items waiting to be dispatched.
func (m *Manager) QueueDepth() int {
	return m.pending.Len()
}

// ActiveTasks returns the number of running background tasks.
func (m *Manager) ActiveTasks() int {
	return m.tasks.Len()
}

func (m *Manager) loadStartupActions(ctx context.Context) {
	dir := m.opts.StartupDir
	if dir == "" {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Info("startup directory does not exist, no startup actions loaded", "path", dir)
		} else {
			m.logger.Error("failed to read startup directory", "path", dir, "error", err)
		}
		return
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			m.logger.Warn("startup loading interrupted", "error", ctx.Err())
			return
		}
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}

		path := filepath.Join(dir, e.Name())
		m.logger.Info("loading startup file", "file", e.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Error("file ignored, read failure", "file", e.Name(), "error", err)
			continue
		}
		actions, err := action.ParseList(data)
		if err != nil {
			m.logger.Error("file ignored, action deserialization failure", "file", e.Name(), "error", err)
			continue
		}

		for _, a := range actions {
			if !a.Enabled {
				m.logger.Debug("startup action disabled, skipped", "file", e.Name(), "kind", a.Kind, "config", a.ConfigName)
				continue
			}
			if err := m.Enqueue(action.NewQueueItem(a, action.OriginLocal)); err != nil {
				m.logger.Error("failed to queue startup action", "file", e.Name(), "kind", a.Kind, "config", a.ConfigName, "error", err)
				continue
			}
			m.logger.Info("startup action queued", "kind", a.Kind, "config", a.ConfigName)
		}
	}
}

func (m *Manager) run() {
	defer close(m.loopDone)
	m.logger.Info("dispatch loop started")
	defer m.logger.Info("dispatch loop stopped")

	for {
		item, err := m.pending.Take(context.Background())
		if err != nil {
			return
		}
		if m.stopping.Load() {
			m.logger.Warn("discarding queued action during shutdown",
				"queue_item_id", item.ID,
				"kind", item.Action.Kind,
				"config", item.ConfigName,
			)
			m.events.Publish(events.ActionDiscarded, itemEvent(item))
			continue
		}
		m.dispatch(item)
	}
}

func (m *Manager) dispatch(item action.QueueItem) {
	if !m.opts.AllowThreading || !item.Threaded() {
		_ = m.execute(context.Background(), item, false)
		return
	}

	rec, ctx := task.NewRecord(context.Background(), item)
	if !m.tasks.InsertIfAbsent(rec) {
		rec.Cancel()
		m.logger.Error("duplicate task id, action ignored",
			"task_id", rec.ID,
			"queue_item_id", item.ID,
			"kind", item.Action.Kind,
		)
		m.events.Publish(events.TaskDuplicate, itemEvent(item))
		m.record(item, true, nil, storage.OutcomeDropped, errors.New("duplicate task id"))
		return
	}
	m.logger.Info("task registered", "task_id", rec.ID, "kind", item.Action.Kind)
	m.events.Publish(events.TaskRegistered, taskEvent(rec))

	go func() {
		err := m.execute(ctx, item, true)
		if !m.tasks.Remove(rec) {
			m.logger.Error("unable to remove task", "task_id", rec.ID)
		}
		rec.Finish(err)
		m.logger.Info("task removed", "task_id", rec.ID, "status", rec.Status())
		m.events.Publish(events.TaskRemoved, taskEvent(rec))
	}()
}

// execute runs one action and never panics. The returned error is only used
// to settle a task record's status.
func (m *Manager) execute(ctx context.Context, item action.QueueItem, threaded bool) error {
	logger := m.logger.With(
		"queue_item_id", item.ID,
		"kind", item.Action.Kind,
		"config", item.ConfigName,
		"origin", item.Origin,
		"threaded", threaded,
		"simulated", m.opts.Simulate,
	)
	if item.Action.TaskID != "" {
		logger = logger.With("task_id", item.Action.TaskID)
	}

	started := time.Now().UTC()
	logger.Info("action started")
	m.events.Publish(events.ActionStarted, itemEvent(item))

	err := m.invoke(ctx, item, logger)
	elapsed := time.Since(started)

	outcome := storage.OutcomeSucceeded
	switch {
	case err == nil && m.opts.Simulate:
		outcome = storage.OutcomeSimulated
	case err == nil:
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		outcome = storage.OutcomeCancelled
	default:
		outcome = storage.OutcomeFailed
	}

	ev := itemEvent(item)
	ev["status"] = string(outcome)
	ev["duration_ms"] = elapsed.Milliseconds()
	if outcome == storage.OutcomeFailed {
		logger.Error("action failed", "duration_ms", elapsed.Milliseconds(), "error", err)
		ev["error"] = err.Error()
		m.events.Publish(events.ActionFailed, ev)
	} else {
		logger.Info("action ended", "status", string(outcome), "duration_ms", elapsed.Milliseconds())
		m.events.Publish(events.ActionCompleted, ev)
	}

	m.record(item, threaded, &started, outcome, err)
	return err
}

func (m *Manager) invoke(ctx context.Context, item action.QueueItem, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic recovered", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	if m.opts.Simulate {
		return nil
	}

	h, ok := m.handlers.Handler(item.Action.Kind)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, item.Action.Kind)
	}
	doc, err := m.configs.Get(item.ConfigName)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}
	return h.Execute(ctx, item.Action, doc)
}

func (m *Manager) record(item action.QueueItem, threaded bool, started *time.Time, outcome storage.Outcome, err error) {
	if m.recorder == nil {
		return
	}

	completed := time.Now().UTC()
	e := storage.Entry{
		ID:          item.ID,
		TaskID:      item.Action.TaskID,
		Kind:        item.Action.Kind,
		Config:      item.ConfigName,
		Origin:      item.Origin,
		Threaded:    threaded,
		Status:      outcome,
		EnqueuedAt:  item.EnqueuedAt,
		StartedAt:   started,
		CompletedAt: completed,
	}
	if started != nil {
		e.DurationMS = completed.Sub(*started).Milliseconds()
	}
	if err != nil {
		e.LastError = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rerr := m.recorder.Record(ctx, e); rerr != nil {
		m.logger.Warn("failed to record action history", "queue_item_id", item.ID, "error", rerr)
	}
}

func itemEvent(item action.QueueItem) map[string]any {
	ev := map[string]any{
		"queue_item_id": item.ID,
		"kind":          item.Action.Kind,
		"config":        item.ConfigName,
		"origin":        item.Origin,
	}
	if item.Action.TaskID != "" {
		ev["task_id"] = item.Action.TaskID
	}
	return ev
}

func taskEvent(r *task.Record) map[string]any {
	ev := itemEvent(r.Item)
	ev["task_id"] = r.ID
	ev["status"] = string(r.Status())
	return ev
}
