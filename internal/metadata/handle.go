package metadata

import "net/http"

// HandleState is the run state of an underlying network operation
type HandleState int

const (
	HandleSuspended HandleState = iota
	HandleRunning
	HandleCanceling
	HandleFinished
)

func (s HandleState) String() string {
	switch s {
	case HandleSuspended:
		return "suspended"
	case HandleRunning:
		return "running"
	case HandleCanceling:
		return "canceling"
	case HandleFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Disposition tells the transport how to proceed after a response arrived
type Disposition int

const (
	Cancel Disposition = iota
	Allow
)

func (d Disposition) String() string {
	if d == Allow {
		return "allow"
	}
	return "cancel"
}

// Sink receives the notifications of one network operation.
//
// Implementations expect calls to be serialized: each call returns before the
// next one is dispatched.
type Sink interface {
	DidReceiveResponse(resp *http.Response) Disposition
	DidReceiveData(chunk []byte)
	DidComplete(err error)
	DidBecomeInvalid(err error)
}

// Handle is a network operation that reports its progress to a single Sink
type Handle interface {
	State() HandleState
	// SetSink replaces the notification receiver. The handle keeps a single reference.
	SetSink(sink Sink)
	// Request returns the request the operation was created for.
	Request() *http.Request
}
