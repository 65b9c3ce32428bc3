// Package tasks runs named, cancellable background operations with at most one in flight per name.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/google/uuid"
)

// ErrTaskInFlight is returned when a task with the same name is still running
var ErrTaskInFlight = errors.New("task already in flight")

// Task statuses
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Func is the body of a task
type Func func(ctx context.Context) (any, error)

// DoneFunc consumes a task's result. It is called exactly once per task, on the task's goroutine.
type DoneFunc func(ctx context.Context, result any, err error) error

// Info describes the latest task of a name
type Info struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type entry struct {
	info   Info
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner owns the background tasks of one workspace
type Runner struct {
	mu     sync.Mutex
	tasks  map[string]*entry
	wg     sync.WaitGroup
	logger ectologger.Logger
}

// NewRunner creates a task runner
func NewRunner(logger ectologger.Logger) *Runner {
	return &Runner{tasks: make(map[string]*entry), logger: logger}
}

// Start runs fn in the background under name and hands its result to onDone.
// The task outlives ctx but keeps its values. onDone may be nil.
func (r *Runner) Start(ctx context.Context, name string, fn Func, onDone DoneFunc) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.tasks[name]; ok && prev.info.Status == StatusRunning {
		return prev.info, fmt.Errorf("%w: %s", ErrTaskInFlight, name)
	}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &entry{
		info:   Info{ID: uuid.New(), Name: name, Status: StatusRunning, StartedAt: time.Now().UTC()},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.tasks[name] = e

	metrics.TasksInFlight.Inc()
	r.wg.Add(1)
	go r.run(taskCtx, e, fn, onDone)
	return e.info, nil
}

func (r *Runner) run(ctx context.Context, e *entry, fn Func, onDone DoneFunc) {
	defer r.wg.Done()
	defer close(e.done)
	defer e.cancel()
	defer metrics.TasksInFlight.Dec()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{"task": e.info.Name, "task_id": e.info.ID.String()})
	log.Debug("Task started")

	result, err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if onDone != nil {
		if doneErr := onDone(ctx, result, err); doneErr != nil && err == nil {
			err = doneErr
		}
	}

	status := StatusSucceeded
	switch {
	case errors.Is(err, context.Canceled):
		status = StatusCanceled
	case err != nil:
		status = StatusFailed
	}
	metrics.TasksTotal.WithLabelValues(e.info.Name, status).Inc()

	now := time.Now().UTC()
	r.mu.Lock()
	e.info.Status = status
	e.info.FinishedAt = &now
	if err != nil {
		e.info.Error = err.Error()
	}
	r.mu.Unlock()

	if err != nil && status == StatusFailed {
		log.WithError(err).Warn("Task failed")
		return
	}
	log.WithField("status", status).Info("Task finished")
}

// Get returns the latest task started under name
func (r *Runner) Get(name string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[name]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// All returns the latest task of every name
func (r *Runner) All() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.tasks))
	for _, e := range r.tasks {
		out = append(out, e.info)
	}
	return out
}

// Cancel cancels the running task under name. It reports whether a task was running.
func (r *Runner) Cancel(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[name]
	if !ok || e.info.Status != StatusRunning {
		return false
	}
	e.cancel()
	return true
}

// Wait blocks until the task under name finishes or ctx is done
func (r *Runner) Wait(ctx context.Context, name string) (Info, error) {
	r.mu.Lock()
	e, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return Info{}, fmt.Errorf("no task named %s", name)
	}
	select {
	case <-e.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return e.info, nil
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
}

// Shutdown cancels every running task and waits for them to finish or ctx to end
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, e := range r.tasks {
		if e.info.Status == StatusRunning {
			e.cancel()
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
