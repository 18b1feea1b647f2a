package async

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kelsos/metafetch/internal/logger"
	"github.com/kelsos/metafetch/internal/metadata"
	"github.com/kelsos/metafetch/internal/models"
	"github.com/kelsos/metafetch/internal/transport"
)

// Result is the outcome of one metadata task
type Result struct {
	ID       uuid.UUID
	URL      string
	Metadata models.Metadata
	Err      error
}

type entry struct {
	url  string
	task *metadata.Task
	data *transport.DataTask
}

// TaskManager creates metadata tasks on a session and waits for them to complete.
//
// Each task is independent: the manager only keeps a registry so callers can
// look tasks up by id while they run.
type TaskManager struct {
	session     *transport.Session
	diagnostics metadata.Diagnostics
	observer    metadata.Observer

	mu          sync.RWMutex
	activeTasks map[uuid.UUID]*entry
}

// ManagerOption configures a TaskManager
type ManagerOption func(*TaskManager)

// WithDiagnostics is passed on to every task the manager creates
func WithDiagnostics(d metadata.Diagnostics) ManagerOption {
	return func(tm *TaskManager) { tm.diagnostics = d }
}

// WithObserver is passed on to every task the manager creates
func WithObserver(o metadata.Observer) ManagerOption {
	return func(tm *TaskManager) { tm.observer = o }
}

func NewTaskManager(session *transport.Session, opts ...ManagerOption) *TaskManager {
	tm := &TaskManager{
		session:     session,
		activeTasks: make(map[uuid.UUID]*entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(tm)
		}
	}
	return tm
}

// Submit creates a task for rawURL, registers it and starts the request
func (tm *TaskManager) Submit(ctx context.Context, rawURL string) (*metadata.Task, error) {
	data, err := tm.session.DataTask(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	task, err := metadata.NewTask(uuid.New(), data,
		metadata.WithDiagnostics(tm.diagnostics),
		metadata.WithObserver(tm.observer),
	)
	if err != nil {
		data.Cancel()
		return nil, err
	}

	tm.mu.Lock()
	tm.activeTasks[task.ID()] = &entry{url: rawURL, task: task, data: data}
	tm.mu.Unlock()

	logger.Debug("Registered task %s for %s", task.ID(), rawURL)
	data.Resume()
	return task, nil
}

// Wait blocks until the task completes or ctx ends. Once the result is
// delivered the task is removed from the registry.
func (tm *TaskManager) Wait(ctx context.Context, id uuid.UUID) (Result, error) {
	tm.mu.RLock()
	e, exists := tm.activeTasks[id]
	tm.mu.RUnlock()
	if !exists {
		return Result{}, fmt.Errorf("task %s not found", id)
	}

	select {
	case <-e.task.Done():
	case <-e.data.Done():
		// Notifications land before the data task reports done, so the task
		// state is final here even when it never completed.
	case <-ctx.Done():
		e.data.Cancel()
		return Result{}, ctx.Err()
	}

	tm.mu.Lock()
	delete(tm.activeTasks, id)
	tm.mu.Unlock()

	result := Result{ID: id, URL: e.url}
	md, err := e.task.Result()
	switch {
	case err == nil:
		result.Metadata = md
	case !e.task.State().IsTerminal() && e.data.Err() != nil:
		// The transport gave up before any response reached the task.
		result.Err = metadata.InvalidRequest(metadata.NewRequestInfo(e.data.Request()), e.data.Err())
	default:
		result.Err = err
	}

	logger.Debug("Task %s finished in state %s", id, e.task.State())
	return result, nil
}

// Fetch submits rawURL and waits for its result. Failures of the fetch itself
// are reported in Result.Err; the returned error is only set when ctx ended.
func (tm *TaskManager) Fetch(ctx context.Context, rawURL string) (Result, error) {
	task, err := tm.Submit(ctx, rawURL)
	if err != nil {
		return Result{URL: rawURL, Err: err}, nil
	}
	return tm.Wait(ctx, task.ID())
}

// FetchAll runs one independent task per URL and returns results in input order
func (tm *TaskManager) FetchAll(ctx context.Context, urls []string) ([]Result, error) {
	results := make([]Result, len(urls))
	ids := make([]uuid.UUID, len(urls))

	for i, rawURL := range urls {
		task, err := tm.Submit(ctx, rawURL)
		if err != nil {
			results[i] = Result{URL: rawURL, Err: err}
			continue
		}
		ids[i] = task.ID()
	}

	for i, id := range ids {
		if id == uuid.Nil {
			continue
		}
		result, err := tm.Wait(ctx, id)
		if err != nil {
			return results, err
		}
		results[i] = result
	}
	return results, nil
}

// Active returns the ids of tasks that have not been collected by Wait
func (tm *TaskManager) Active() []uuid.UUID {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(tm.activeTasks))
	for id := range tm.activeTasks {
		ids = append(ids, id)
	}
	return ids
}

// Stop invalidates the session, ending every running task
func (tm *TaskManager) Stop() {
	tm.session.Invalidate()
}
