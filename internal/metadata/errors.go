package metadata

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrorKind identifies the variant of an Error
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindInvalidTaskState
	KindInvalidRequest
	KindInvalidResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindInvalidTaskState:
		return "invalid-task-state"
	case KindInvalidRequest:
		return "invalid-request"
	case KindInvalidResponse:
		return "invalid-response"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching by kind
var (
	ErrInvalidTaskState = &Error{Kind: KindInvalidTaskState, sentinel: true}
	ErrInvalidRequest   = &Error{Kind: KindInvalidRequest, sentinel: true}
	ErrInvalidResponse  = &Error{Kind: KindInvalidResponse, sentinel: true}
	ErrGeneric          = &Error{Kind: KindGeneric, sentinel: true}
)

// RequestInfo describes the request a task was issued for
type RequestInfo struct {
	Method string
	URL    string
}

// NewRequestInfo captures the descriptive parts of req. It returns nil for a nil request.
func NewRequestInfo(req *http.Request) *RequestInfo {
	if req == nil {
		return nil
	}
	info := &RequestInfo{Method: req.Method}
	if req.URL != nil {
		info.URL = req.URL.String()
	}
	if info.Method == "" {
		info.Method = http.MethodGet
	}
	return info
}

// ResponseInfo describes a response received from the server
type ResponseInfo struct {
	StatusCode  int
	Status      string
	URL         string
	ContentType string
}

// NewResponseInfo captures the descriptive parts of resp. It returns nil for a nil response.
func NewResponseInfo(resp *http.Response) *ResponseInfo {
	if resp == nil {
		return nil
	}
	info := &ResponseInfo{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		info.URL = resp.Request.URL.String()
	}
	return info
}

// Error is the failure type produced by metadata tasks and their transport.
//
// Only the fields relevant to Kind are populated. Data and Cause are carried for
// inspection but never take part in equality.
type Error struct {
	Kind ErrorKind

	// TaskID stands in for the offending task of an invalid-task-state error.
	TaskID   uuid.UUID
	Request  *RequestInfo
	Response *ResponseInfo
	Data     []byte
	Cause    error

	Message            string
	failureReason      string
	recoverySuggestion string
	helpAnchor         string

	sentinel bool
}

// GenericOption sets an optional diagnostic field of a generic error
type GenericOption func(*Error)

// WithFailureReason sets the failure reason of a generic error
func WithFailureReason(reason string) GenericOption {
	return func(e *Error) { e.failureReason = reason }
}

// WithRecoverySuggestion sets the recovery suggestion of a generic error
func WithRecoverySuggestion(suggestion string) GenericOption {
	return func(e *Error) { e.recoverySuggestion = suggestion }
}

// WithHelpAnchor sets the help anchor of a generic error
func WithHelpAnchor(anchor string) GenericOption {
	return func(e *Error) { e.helpAnchor = anchor }
}

// InvalidTaskState reports a task constructed or used outside its expected state.
// Pass uuid.Nil when no task can be named.
func InvalidTaskState(taskID uuid.UUID) *Error {
	return &Error{Kind: KindInvalidTaskState, TaskID: taskID}
}

// InvalidRequest reports a client-side transport failure
func InvalidRequest(req *RequestInfo, cause error) *Error {
	return &Error{Kind: KindInvalidRequest, Request: req, Cause: cause}
}

// InvalidResponse reports a server reply with an unacceptable status or content
func InvalidResponse(resp *ResponseInfo, req *RequestInfo, data []byte) *Error {
	return &Error{Kind: KindInvalidResponse, Response: resp, Request: req, Data: data}
}

// Generic builds a catch-all error. Prefer the specific constructors whenever one applies.
func Generic(message string, opts ...GenericOption) *Error {
	e := &Error{Kind: KindGeneric, Message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Description returns a human-readable message describing what went wrong
func (e *Error) Description() string {
	switch e.Kind {
	case KindInvalidTaskState:
		return "The metadata task is in an invalid state."
	case KindInvalidRequest:
		return "The request for the website could not be completed."
	case KindInvalidResponse:
		return "The website returned an invalid response."
	default:
		return e.Message
	}
}

// FailureReason explains why the failure occurred, or returns "" when unknown
func (e *Error) FailureReason() string {
	switch e.Kind {
	case KindInvalidTaskState:
		if e.TaskID == uuid.Nil {
			return "A metadata task was used outside of its expected state."
		}
		return fmt.Sprintf("Task %s was used outside of its expected state.", e.TaskID)
	case KindInvalidRequest:
		switch {
		case e.Cause != nil && e.Request != nil:
			return fmt.Sprintf("%s %s failed: %v", e.Request.Method, e.Request.URL, e.Cause)
		case e.Cause != nil:
			return e.Cause.Error()
		case e.Request != nil:
			return fmt.Sprintf("%s %s failed.", e.Request.Method, e.Request.URL)
		}
		return ""
	case KindInvalidResponse:
		if e.Response == nil {
			return ""
		}
		status := e.Response.Status
		if status == "" {
			status = fmt.Sprintf("%d %s", e.Response.StatusCode, http.StatusText(e.Response.StatusCode))
		}
		url := e.Response.URL
		if url == "" && e.Request != nil {
			url = e.Request.URL
		}
		if url == "" {
			return fmt.Sprintf("Unexpected status %s.", status)
		}
		return fmt.Sprintf("Unexpected status %s from %s.", status, url)
	default:
		return e.failureReason
	}
}

// RecoverySuggestion is only ever set on generic errors
func (e *Error) RecoverySuggestion() string {
	if e.Kind != KindGeneric {
		return ""
	}
	return e.recoverySuggestion
}

// HelpAnchor is only ever set on generic errors
func (e *Error) HelpAnchor() string {
	if e.Kind != KindGeneric {
		return ""
	}
	return e.helpAnchor
}

func (e *Error) Error() string {
	desc := e.Description()
	if reason := e.FailureReason(); reason != "" {
		if desc == "" {
			return reason
		}
		return desc + " " + reason
	}
	return desc
}

// Unwrap exposes the underlying transport error, if any
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the package sentinels by kind and any other *Error by Equal
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if e == nil || !ok || t == nil {
		return false
	}
	if t.sentinel {
		return e.Kind == t.Kind
	}
	return e.Equal(t)
}

// ErrorKey is the comparable identity of an Error
type ErrorKey struct {
	Kind               ErrorKind
	TaskID             uuid.UUID
	HasRequest         bool
	Request            RequestInfo
	HasResponse        bool
	Response           ResponseInfo
	Message            string
	FailureReason      string
	RecoverySuggestion string
	HelpAnchor         string
}

// Key returns the identity of e over its kind and descriptive payload. Raw data
// and transport errors are left out so the key can be used in maps and sets.
func (e *Error) Key() ErrorKey {
	k := ErrorKey{Kind: e.Kind}
	switch e.Kind {
	case KindInvalidTaskState:
		k.TaskID = e.TaskID
	case KindInvalidRequest:
		if e.Request != nil {
			k.HasRequest, k.Request = true, *e.Request
		}
	case KindInvalidResponse:
		if e.Request != nil {
			k.HasRequest, k.Request = true, *e.Request
		}
		if e.Response != nil {
			k.HasResponse, k.Response = true, *e.Response
		}
	default:
		k.Message = e.Message
		k.FailureReason = e.failureReason
		k.RecoverySuggestion = e.recoverySuggestion
		k.HelpAnchor = e.helpAnchor
	}
	return k
}

// Equal reports whether e and other have the same Key
func (e *Error) Equal(other *Error) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Key() == other.Key()
}
