package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/kelsos/metafetch/internal/async"
	"github.com/kelsos/metafetch/internal/logger"
	"github.com/kelsos/metafetch/internal/metadata"
)

// Sender delivers messages to a running program; *tea.Program satisfies it
type Sender interface {
	Send(msg tea.Msg)
}

// FetchMonitor runs a batch of metadata tasks and reports their progress to the TUI
type FetchMonitor struct {
	newManager func(opts ...async.ManagerOption) *async.TaskManager
	program    *tea.Program
	sender     Sender
	maxBody    int64
	logPath    string
	interval   time.Duration
}

func NewFetchMonitor(newManager func(opts ...async.ManagerOption) *async.TaskManager, maxBody int64, logPath string) *FetchMonitor {
	return &FetchMonitor{
		newManager: newManager,
		maxBody:    maxBody,
		logPath:    logPath,
		interval:   200 * time.Millisecond,
	}
}

func (fm *FetchMonitor) Start() error {
	fm.program = tea.NewProgram(NewModel(fm.maxBody, fm.logPath), tea.WithAltScreen())
	fm.sender = fm.program
	return nil
}

func (fm *FetchMonitor) Stop() {
	if fm.program != nil {
		fm.program.Quit()
	}
}

func (fm *FetchMonitor) send(msg tea.Msg) {
	if fm.sender != nil {
		fm.sender.Send(msg)
	}
}

// Observer forwards task transitions to the TUI
func (fm *FetchMonitor) Observer() metadata.Observer {
	return func(id uuid.UUID, state metadata.State) {
		fm.send(TaskUpdate{ID: id, State: state})
	}
}

// Diagnostics logs runtime warnings and mirrors them into the TUI log pane
func (fm *FetchMonitor) Diagnostics() metadata.Diagnostics {
	base := metadata.LogDiagnostics()
	return metadata.DiagnosticsFunc(func(w metadata.Warning) {
		base.Warn(w)
		fm.send(LogMessage{Message: "⚠️ " + w.String()})
	})
}

// FetchWithMonitoring submits every URL, then collects the results in order
func (fm *FetchMonitor) FetchWithMonitoring(ctx context.Context, urls []string) ([]async.Result, error) {
	tm := fm.newManager(
		async.WithObserver(fm.Observer()),
		async.WithDiagnostics(fm.Diagnostics()),
	)
	defer tm.Stop()

	results := make([]async.Result, len(urls))
	tasks := make([]*metadata.Task, len(urls))

	for i, rawURL := range urls {
		task, err := tm.Submit(ctx, rawURL)
		if err != nil {
			logger.Error("Failed to submit %s: %v", rawURL, err)
			results[i] = async.Result{URL: rawURL, Err: err}
			id := uuid.New()
			fm.send(TaskAdded{ID: id, URL: rawURL})
			var mdErr *metadata.Error
			if !errors.As(err, &mdErr) {
				mdErr = metadata.Generic(err.Error())
			}
			fm.send(TaskUpdate{ID: id, State: metadata.Completed(mdErr)})
			fm.send(TaskFinished{ID: id, Err: err})
			continue
		}
		tasks[i] = task
		fm.send(TaskAdded{ID: task.ID(), URL: rawURL})
	}

	stopProgress := fm.reportProgress(tasks)
	defer stopProgress()

	for i, task := range tasks {
		if task == nil {
			continue
		}
		result, err := tm.Wait(ctx, task.ID())
		if err != nil {
			return results, fmt.Errorf("waiting for %s: %w", urls[i], err)
		}
		results[i] = result
		fm.send(TaskFinished{ID: task.ID(), Summary: result.Metadata.String(), Err: result.Err})
	}

	fm.send(AllDone{})
	return results, nil
}

// reportProgress polls the body byte counters until the returned func is called
func (fm *FetchMonitor) reportProgress(tasks []*metadata.Task) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(fm.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for _, task := range tasks {
					if task != nil && task.State().Kind() == metadata.StateProcessing {
						fm.send(ProgressUpdate{ID: task.ID(), Bytes: task.BytesReceived()})
					}
				}
			}
		}
	}()
	return func() { close(done) }
}

// Run fetches urls while the TUI is shown. Quitting the TUI early cancels the
// outstanding tasks.
func (fm *FetchMonitor) Run(ctx context.Context, urls []string) ([]async.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var results []async.Result
	var fetchErr error
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		results, fetchErr = fm.FetchWithMonitoring(ctx, urls)
		if fetchErr != nil {
			fm.send(LogMessage{Message: fmt.Sprintf("❌ Fatal error: %v", fetchErr)})
		}
		// Signal completion
		fm.Stop()
	}()

	if _, err := fm.program.Run(); err != nil {
		cancel()
		<-finished
		return nil, fmt.Errorf("failed to run TUI: %w", err)
	}

	cancel()
	<-finished
	return results, fetchErr
}
