package metadata

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/kelsos/metafetch/internal/logger"
	"github.com/kelsos/metafetch/internal/models"
)

// Observer is told about every state transition of a task
type Observer func(id uuid.UUID, state State)

// Option configures a Task
type Option func(*Task)

// WithDiagnostics sets the sink for out-of-order notification warnings.
// A nil value keeps the default, which logs them.
func WithDiagnostics(d Diagnostics) Option {
	return func(t *Task) {
		if d != nil {
			t.diagnostics = d
		}
	}
}

// WithObserver registers a callback invoked after each transition
func WithObserver(o Observer) Option {
	return func(t *Task) { t.observer = o }
}

// Task fetches one website and tracks the operation through idle, processing
// and completed. It is driven entirely by the notifications of its handle.
type Task struct {
	id     uuid.UUID
	handle Handle

	// request is captured at construction so completion errors can name it.
	request *RequestInfo

	diagnostics Diagnostics
	observer    Observer

	mu            sync.Mutex
	state         State
	bytesReceived int64
	done          chan struct{}
}

// NewTask binds a new task to handle. The handle must not have been started;
// otherwise an invalid-task-state error is returned and the handle is left untouched.
func NewTask(id uuid.UUID, handle Handle, opts ...Option) (*Task, error) {
	if handle == nil || handle.State() != HandleSuspended {
		return nil, InvalidTaskState(id)
	}

	t := &Task{
		id:          id,
		handle:      handle,
		request:     NewRequestInfo(handle.Request()),
		diagnostics: LogDiagnostics(),
		state:       Idle(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	handle.SetSink(t)
	return t, nil
}

func (t *Task) ID() uuid.UUID { return t.id }

// Handle returns the network operation owned by the task
func (t *Task) Handle() Handle { return t.handle }

// State returns the current state
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// BytesReceived returns the number of body bytes delivered while processing
func (t *Task) BytesReceived() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytesReceived
}

// Done is closed once the task reaches the completed state
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the extracted metadata once the task completed successfully.
// Title extraction is not performed yet, so a successful result carries no title.
func (t *Task) Result() (models.Metadata, error) {
	state := t.State()
	switch {
	case !state.IsTerminal():
		return models.Metadata{}, InvalidTaskState(t.id)
	case state.Err() != nil:
		return models.Metadata{}, state.Err()
	}
	return models.NewMetadata(nil), nil
}

// DidReceiveResponse accepts the response headers. Only a 200 status moves the
// task to processing; every other status completes it with an invalid-response error.
func (t *Task) DidReceiveResponse(resp *http.Response) Disposition {
	t.mu.Lock()
	if t.state.Kind() != StateIdle {
		current := t.state
		t.mu.Unlock()
		t.warn(EventResponse, current, StateIdle)
		return Cancel
	}

	var disposition Disposition
	if resp != nil && resp.StatusCode == http.StatusOK {
		t.state = Processing()
		disposition = Allow
	} else {
		req := t.request
		if resp != nil && resp.Request != nil {
			req = NewRequestInfo(resp.Request)
		}
		t.complete(InvalidResponse(NewResponseInfo(resp), req, nil))
		disposition = Cancel
	}
	state := t.state
	t.mu.Unlock()

	t.notify(state)
	return disposition
}

// DidReceiveData accepts a body chunk while processing
func (t *Task) DidReceiveData(chunk []byte) {
	t.mu.Lock()
	if t.state.Kind() != StateProcessing {
		current := t.state
		t.mu.Unlock()
		t.warn(EventData, current, StateProcessing)
		return
	}
	t.bytesReceived += int64(len(chunk))
	t.mu.Unlock()
}

// DidComplete finishes a processing task. A transport error always wins over success.
func (t *Task) DidComplete(err error) {
	t.finish(EventComplete, err, t.request)
}

// DidBecomeInvalid finishes a processing task whose transport went away
func (t *Task) DidBecomeInvalid(err error) {
	t.finish(EventInvalidation, err, nil)
}

func (t *Task) finish(event Event, err error, req *RequestInfo) {
	t.mu.Lock()
	if t.state.Kind() != StateProcessing {
		current := t.state
		t.mu.Unlock()
		t.warn(event, current, StateProcessing)
		return
	}
	if err != nil {
		t.complete(InvalidRequest(req, err))
	} else {
		t.complete(nil)
	}
	state := t.state
	t.mu.Unlock()

	t.notify(state)
}

// complete must be called with mu held
func (t *Task) complete(err *Error) {
	t.state = Completed(err)
	close(t.done)
}

func (t *Task) notify(state State) {
	logger.Debug("Task %s moved to %s", t.id, state)
	if t.observer != nil {
		t.observer(t.id, state)
	}
}

func (t *Task) warn(event Event, current State, expected StateKind) {
	t.diagnostics.Warn(Warning{
		TaskID:   t.id,
		Event:    event,
		State:    current,
		Expected: expected,
	})
}
