package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kelsos/metafetch/internal/logger"
	"github.com/kelsos/metafetch/internal/metadata"
)

type nopSink struct{}

func (nopSink) DidReceiveResponse(*http.Response) metadata.Disposition { return metadata.Cancel }
func (nopSink) DidReceiveData([]byte)                                  {}
func (nopSink) DidComplete(error)                                      {}
func (nopSink) DidBecomeInvalid(error)                                 {}

// DataTask is a single GET request whose progress is reported to a metadata.Sink.
//
// All notifications are delivered from one goroutine, in order: response,
// body chunks, then exactly one of DidComplete or DidBecomeInvalid. A Cancel
// disposition ends delivery right after the response.
type DataTask struct {
	session   *Session
	req       *http.Request
	cancel    context.CancelFunc
	maxBody   int64
	chunkSize int

	mu          sync.Mutex
	state       metadata.HandleState
	sink        metadata.Sink
	invalidated bool
	err         error
	done        chan struct{}
}

// State implements metadata.Handle
func (t *DataTask) State() metadata.HandleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetSink implements metadata.Handle
func (t *DataTask) SetSink(sink metadata.Sink) {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
}

// Request implements metadata.Handle
func (t *DataTask) Request() *http.Request {
	return t.req
}

// Err returns the error the task ended with. It is only meaningful after Done.
func (t *DataTask) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the task finished and delivered its last notification
func (t *DataTask) Done() <-chan struct{} {
	return t.done
}

// Resume starts the request. It has no effect unless the task is suspended.
func (t *DataTask) Resume() {
	t.mu.Lock()
	if t.state != metadata.HandleSuspended {
		t.mu.Unlock()
		return
	}
	t.state = metadata.HandleRunning
	t.mu.Unlock()

	go t.run()
}

// Cancel aborts the request. A running task reports the cancellation through DidComplete.
func (t *DataTask) Cancel() {
	t.mu.Lock()
	switch t.state {
	case metadata.HandleSuspended:
		t.state = metadata.HandleFinished
		t.mu.Unlock()
		t.cancel()
		t.finished()
		return
	case metadata.HandleRunning:
		t.state = metadata.HandleCanceling
	}
	t.mu.Unlock()
	t.cancel()
}

func (t *DataTask) invalidate() {
	t.mu.Lock()
	t.invalidated = true
	t.mu.Unlock()

	t.Cancel()
}

func (t *DataTask) currentSink() metadata.Sink {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sink == nil {
		return nopSink{}
	}
	return t.sink
}

func (t *DataTask) run() {
	defer func() {
		t.mu.Lock()
		t.state = metadata.HandleFinished
		t.mu.Unlock()
		t.cancel()
		t.finished()
	}()

	start := time.Now()
	logger.Debug("Starting GET request to %s", t.req.URL)

	resp, err := t.session.httpClient.Do(t.req)
	if err != nil {
		logger.Debug("Request to %s failed after %v: %v", t.req.URL, time.Since(start), err)
		t.end(err)
		return
	}
	defer resp.Body.Close()

	logger.Debug("Request to %s answered in %v with status %d", t.req.URL, time.Since(start), resp.StatusCode)

	if t.currentSink().DidReceiveResponse(resp) == metadata.Cancel {
		logger.Debug("Response from %s rejected, cancelling", t.req.URL)
		return
	}

	body := io.LimitReader(resp.Body, t.maxBody)
	buf := make([]byte, t.chunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.currentSink().DidReceiveData(chunk)
		}
		if errors.Is(readErr, io.EOF) {
			t.end(nil)
			return
		}
		if readErr != nil {
			t.end(readErr)
			return
		}
	}
}

// end delivers the terminal notification
func (t *DataTask) end(err error) {
	t.mu.Lock()
	invalidated := t.invalidated
	if err != nil && invalidated {
		err = ErrSessionInvalidated
	}
	t.err = err
	t.mu.Unlock()

	if err != nil && invalidated {
		t.currentSink().DidBecomeInvalid(ErrSessionInvalidated)
		return
	}
	t.currentSink().DidComplete(err)
}

func (t *DataTask) finished() {
	t.session.remove(t)
	close(t.done)
}
