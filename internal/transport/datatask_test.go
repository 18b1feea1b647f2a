package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kelsos/metafetch/internal/config"
	"github.com/kelsos/metafetch/internal/metadata"
)

type recordingSink struct {
	mu          sync.Mutex
	events      []string
	data        []byte
	disposition metadata.Disposition
	status      int
	err         error
}

func (s *recordingSink) DidReceiveResponse(resp *http.Response) metadata.Disposition {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "response")
	s.status = resp.StatusCode
	return s.disposition
}

func (s *recordingSink) DidReceiveData(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "data")
	s.data = append(s.data, chunk...)
}

func (s *recordingSink) DidComplete(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "complete")
	s.err = err
}

func (s *recordingSink) DidBecomeInvalid(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "invalid")
	s.err = err
}

func (s *recordingSink) snapshot() ([]string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...), append([]byte(nil), s.data...), s.err
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Timeout = 5 * time.Second
	cfg.ChunkSize = 4
	cfg.UserAgent = "metafetch-test"
	return cfg
}

func waitDone(t *testing.T, task *DataTask) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("data task did not finish")
	}
}

func TestDataTaskDeliversInOrder(t *testing.T) {
	userAgents := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgents <- r.Header.Get("User-Agent")
		fmt.Fprint(w, "<title>hi</title>")
	}))
	defer srv.Close()

	session := NewSession(testConfig())
	task, err := session.DataTask(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DataTask: %v", err)
	}
	if task.State() != metadata.HandleSuspended {
		t.Fatalf("new task state = %s", task.State())
	}

	sink := &recordingSink{disposition: metadata.Allow}
	task.SetSink(sink)
	task.Resume()
	waitDone(t, task)

	events, data, err := sink.snapshot()
	if events[0] != "response" || events[len(events)-1] != "complete" {
		t.Fatalf("unexpected event order %v", events)
	}
	for _, e := range events[1 : len(events)-1] {
		if e != "data" {
			t.Fatalf("unexpected event order %v", events)
		}
	}
	if len(events) < 4 {
		t.Fatalf("expected body split into chunks, got %v", events)
	}
	if string(data) != "<title>hi</title>" {
		t.Fatalf("data = %q", data)
	}
	if err != nil {
		t.Fatalf("completion error = %v", err)
	}
	if ua := <-userAgents; ua != "metafetch-test" {
		t.Fatalf("User-Agent = %q", ua)
	}
	if task.State() != metadata.HandleFinished {
		t.Fatalf("final state = %s", task.State())
	}
	if session.Outstanding() != 0 {
		t.Fatalf("outstanding = %d", session.Outstanding())
	}
}

func TestDataTaskCancelDispositionStopsDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	task, err := NewSession(testConfig()).DataTask(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DataTask: %v", err)
	}
	sink := &recordingSink{disposition: metadata.Cancel}
	task.SetSink(sink)
	task.Resume()
	waitDone(t, task)

	events, _, _ := sink.snapshot()
	if len(events) != 1 || events[0] != "response" {
		t.Fatalf("events = %v", events)
	}
	if sink.status != http.StatusNotFound {
		t.Fatalf("status = %d", sink.status)
	}
}

func TestDataTaskBodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxBodyBytes = 10
	task, err := NewSession(cfg).DataTask(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DataTask: %v", err)
	}
	sink := &recordingSink{disposition: metadata.Allow}
	task.SetSink(sink)
	task.Resume()
	waitDone(t, task)

	_, data, err := sink.snapshot()
	if len(data) != 10 {
		t.Fatalf("received %d bytes, want 10", len(data))
	}
	if err != nil {
		t.Fatalf("completion error = %v", err)
	}
}

func TestDataTaskConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	task, err := NewSession(testConfig()).DataTask(context.Background(), addr)
	if err != nil {
		t.Fatalf("DataTask: %v", err)
	}
	sink := &recordingSink{disposition: metadata.Allow}
	task.SetSink(sink)
	task.Resume()
	waitDone(t, task)

	events, _, err := sink.snapshot()
	if len(events) != 1 || events[0] != "complete" {
		t.Fatalf("events = %v", events)
	}
	if err == nil {
		t.Fatal("expected transport error")
	}
}

func TestSessionInvalidateDeliversInvalidation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "partial")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	session := NewSession(testConfig())
	task, err := session.DataTask(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DataTask: %v", err)
	}
	sink := &recordingSink{disposition: metadata.Allow}
	task.SetSink(sink)
	task.Resume()

	deadline := time.After(5 * time.Second)
	for {
		events, _, _ := sink.snapshot()
		if len(events) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("body never started, events = %v", events)
		case <-time.After(10 * time.Millisecond):
		}
	}

	session.Invalidate()
	waitDone(t, task)

	events, _, err := sink.snapshot()
	if events[len(events)-1] != "invalid" {
		t.Fatalf("events = %v", events)
	}
	if !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("err = %v", err)
	}

	if _, err := session.DataTask(context.Background(), srv.URL); !errors.Is(err, metadata.ErrInvalidRequest) {
		t.Fatalf("DataTask after invalidation err = %v", err)
	}
}

func TestSessionInvalidateFinishesSuspendedTasks(t *testing.T) {
	session := NewSession(testConfig())
	task, err := session.DataTask(context.Background(), "http://example.invalid/")
	if err != nil {
		t.Fatalf("DataTask: %v", err)
	}
	sink := &recordingSink{}
	task.SetSink(sink)

	session.Invalidate()
	waitDone(t, task)

	if task.State() != metadata.HandleFinished {
		t.Fatalf("state = %s", task.State())
	}
	if events, _, _ := sink.snapshot(); len(events) != 0 {
		t.Fatalf("suspended task delivered %v", events)
	}
	task.Resume()
	if task.State() != metadata.HandleFinished {
		t.Fatalf("Resume revived a finished task")
	}
}

func TestDataTaskRejectsBadURLs(t *testing.T) {
	session := NewSession(testConfig())
	for _, raw := range []string{"ftp://example.com", "example.com", "http://", "://bad"} {
		_, err := session.DataTask(context.Background(), raw)
		if !errors.Is(err, metadata.ErrInvalidRequest) {
			t.Errorf("DataTask(%q) err = %v, want invalid request", raw, err)
		}
	}
}
