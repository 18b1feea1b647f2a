package metadata

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kelsos/metafetch/internal/logger"
)

// Event names a notification delivered to a Task
type Event string

const (
	EventResponse     Event = "response"
	EventData         Event = "data"
	EventComplete     Event = "complete"
	EventInvalidation Event = "invalidation"
)

// Warning describes a notification that arrived while the task was in a state
// that does not accept it
type Warning struct {
	TaskID   uuid.UUID
	Event    Event
	State    State
	Expected StateKind
}

func (w Warning) String() string {
	return fmt.Sprintf("task %s received %s notification while %s, expected %s",
		w.TaskID, w.Event, w.State, w.Expected)
}

// Diagnostics receives developer-facing warnings. Warnings never change control flow.
type Diagnostics interface {
	Warn(w Warning)
}

// DiagnosticsFunc adapts a function to Diagnostics
type DiagnosticsFunc func(Warning)

// Warn implements Diagnostics
func (f DiagnosticsFunc) Warn(w Warning) { f(w) }

type logDiagnostics struct{}

func (logDiagnostics) Warn(w Warning) {
	logger.WarnFields(map[string]string{
		"task":     w.TaskID.String(),
		"event":    string(w.Event),
		"state":    w.State.String(),
		"expected": w.Expected.String(),
	}, "runtime warning: unexpected %s notification", w.Event)
}

// LogDiagnostics returns the Diagnostics that writes warnings to the package logger
func LogDiagnostics() Diagnostics { return logDiagnostics{} }
