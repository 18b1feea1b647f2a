package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/kelsos/metafetch/internal/config"
	"github.com/kelsos/metafetch/internal/logger"
	"github.com/kelsos/metafetch/internal/metadata"
)

// ErrSessionInvalidated is delivered to running data tasks when their session goes away
var ErrSessionInvalidated = errors.New("transport: session invalidated")

// RoundTripperFunc adapts a function to an http.RoundTripper
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper
func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// userAgent sets the User-Agent header on requests that don't carry one
func userAgent(next http.RoundTripper, value string) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("User-Agent") != "" {
			return next.RoundTrip(r)
		}
		r2 := r.Clone(r.Context())
		r2.Header.Set("User-Agent", value)
		return next.RoundTrip(r2)
	})
}

// Session creates data tasks that share one configured HTTP client
type Session struct {
	config     *config.Config
	httpClient *http.Client

	mu          sync.Mutex
	tasks       map[*DataTask]struct{}
	invalidated bool
}

// NewSession creates a new session with the given configuration
func NewSession(cfg *config.Config) *Session {
	return NewSessionWithClient(cfg, &http.Client{})
}

// NewSessionWithClient uses httpClient as the base client. Its transport is wrapped,
// and its timeout is replaced by the configured one.
func NewSessionWithClient(cfg *config.Config, httpClient *http.Client) *Session {
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &Session{
		config: cfg,
		httpClient: &http.Client{
			Transport:     userAgent(base, cfg.UserAgent),
			Timeout:       cfg.Timeout,
			CheckRedirect: httpClient.CheckRedirect,
			Jar:           httpClient.Jar,
		},
		tasks: make(map[*DataTask]struct{}),
	}
}

// DataTask creates a suspended data task that fetches rawURL. Only absolute
// http and https URLs are accepted.
func (s *Session) DataTask(ctx context.Context, rawURL string) (*DataTask, error) {
	info := &metadata.RequestInfo{Method: http.MethodGet, URL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, metadata.InvalidRequest(info, fmt.Errorf("invalid URL: %w", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, metadata.InvalidRequest(info, fmt.Errorf("unsupported URL scheme: %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, metadata.InvalidRequest(info, fmt.Errorf("URL has no host: %q", rawURL))
	}

	taskCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(taskCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, metadata.InvalidRequest(info, fmt.Errorf("error creating request: %w", err))
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	t := &DataTask{
		session:   s,
		req:       req,
		cancel:    cancel,
		maxBody:   s.config.MaxBodyBytes,
		chunkSize: s.config.ChunkSize,
		state:     metadata.HandleSuspended,
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidated {
		cancel()
		return nil, metadata.InvalidRequest(info, ErrSessionInvalidated)
	}
	s.tasks[t] = struct{}{}

	logger.Debug("Created data task for %s", req.URL)
	return t, nil
}

// Invalidate cancels every outstanding data task. Running tasks report
// DidBecomeInvalid to their sink; suspended ones finish without notification.
// No new data tasks can be created afterwards.
func (s *Session) Invalidate() {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return
	}
	s.invalidated = true
	tasks := make([]*DataTask, 0, len(s.tasks))
	for t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	logger.Debug("Invalidating session with %d outstanding data tasks", len(tasks))
	for _, t := range tasks {
		t.invalidate()
	}
}

// Outstanding returns the number of data tasks that have not finished
func (s *Session) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Session) remove(t *DataTask) {
	s.mu.Lock()
	delete(s.tasks, t)
	s.mu.Unlock()
}
