package metadata

// StateKind enumerates the lifecycle phases of a Task
type StateKind int

const (
	StateIdle StateKind = iota
	StateProcessing
	StateCompleted
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a Task. The zero value is idle.
type State struct {
	kind StateKind
	err  *Error
}

// Idle returns the initial state
func Idle() State { return State{kind: StateIdle} }

// Processing returns the state entered once response headers are accepted
func Processing() State { return State{kind: StateProcessing} }

// Completed returns the terminal state. A nil err means success.
func Completed(err *Error) State { return State{kind: StateCompleted, err: err} }

func (s State) Kind() StateKind { return s.kind }

// Err returns the failure carried by a completed state, nil otherwise
func (s State) Err() *Error { return s.err }

func (s State) IsTerminal() bool { return s.kind == StateCompleted }

// Succeeded reports a completed state without error
func (s State) Succeeded() bool { return s.kind == StateCompleted && s.err == nil }

func (s State) String() string {
	if s.kind == StateCompleted && s.err != nil {
		return "completed(" + s.err.Kind.String() + ")"
	}
	return s.kind.String()
}
