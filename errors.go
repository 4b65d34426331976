package fetchcache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/groundedgems/fetchcache/internal/inflight"
)

// ErrorKind classifies a failed fetch. Classification happens where the
// failure is observed, never by inspecting error messages.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNetwork is a transport failure: connection refused, DNS, reset.
	KindNetwork
	// KindTimeout is a single attempt exceeding its deadline.
	KindTimeout
	// KindHTTPStatus is a response with a non-2xx status.
	KindHTTPStatus
	// KindSuperseded is a call abandoned because a newer call with the same
	// fingerprint was issued.
	KindSuperseded
	// KindCanceled is a call cancelled by the caller's context,
	// CancelRequest or CancelAllRequests.
	KindCanceled
	// KindDecode is a body that could not be decoded even as text.
	KindDecode
	KindRateLimited
	KindCircuitOpen
	KindInvalidRequest
	KindValidation
)

var kindNames = [...]string{
	KindUnknown:        "Unknown",
	KindNetwork:        "Network",
	KindTimeout:        "Timeout",
	KindHTTPStatus:     "HTTPStatus",
	KindSuperseded:     "Superseded",
	KindCanceled:       "Canceled",
	KindDecode:         "Decode",
	KindRateLimited:    "RateLimited",
	KindCircuitOpen:    "CircuitOpen",
	KindInvalidRequest: "InvalidRequest",
	KindValidation:     "Validation",
}

// String returns the kind name used in logs and metric labels.
func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Sentinel errors, one per kind, for use with errors.Is.
var (
	ErrNetwork        = errors.New("fetchcache: network error")
	ErrTimeout        = errors.New("fetchcache: attempt timed out")
	ErrHTTPStatus     = errors.New("fetchcache: unsuccessful status code")
	ErrSuperseded     = errors.New("fetchcache: superseded by a newer request")
	ErrCanceled       = errors.New("fetchcache: request canceled")
	ErrDecode         = errors.New("fetchcache: response decode failed")
	ErrRateLimited    = errors.New("fetchcache: rate limited")
	ErrCircuitOpen    = errors.New("fetchcache: circuit open")
	ErrInvalidRequest = errors.New("fetchcache: invalid request")
	ErrValidation     = errors.New("fetchcache: invalid configuration")
)

var kindSentinels = map[ErrorKind]error{
	KindNetwork:        ErrNetwork,
	KindTimeout:        ErrTimeout,
	KindHTTPStatus:     ErrHTTPStatus,
	KindSuperseded:     ErrSuperseded,
	KindCanceled:       ErrCanceled,
	KindDecode:         ErrDecode,
	KindRateLimited:    ErrRateLimited,
	KindCircuitOpen:    ErrCircuitOpen,
	KindInvalidRequest: ErrInvalidRequest,
	KindValidation:     ErrValidation,
}

// FetchError is the error returned by every Client operation.
type FetchError struct {
	Kind       ErrorKind
	Message    string
	Method     string
	URL        string
	StatusCode int
	// Body holds the response body text for KindHTTPStatus.
	Body       string
	Attempt    int
	MaxRetries int
	RequestID  string
	Duration   time.Duration
	Timestamp  time.Time
	Cause      error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt+1, e.MaxRetries+1)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches the sentinel for e.Kind, or another *FetchError of the same kind.
func (e *FetchError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*FetchError); ok {
		return e.Kind == t.Kind
	}
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *FetchError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Kind: %s\n", e.Kind)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Body != "" {
		info += fmt.Sprintf("Body: %s\n", e.Body)
	}
	info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt+1, e.MaxRetries+1)
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// KindOf returns the kind of err, or KindUnknown if err is not a *FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// IsRetryable reports whether err is transient: a network failure or an
// attempt timeout.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// errAttemptTimeout is the cancellation cause of a single attempt's deadline.
var errAttemptTimeout = errors.New("fetchcache: attempt deadline exceeded")

// classifyTransportError maps a failed round trip to an ErrorKind. The
// attempt and call contexts carry the cancellation cause, which is the only
// way a timeout is told apart from a supersession or a manual cancel.
func classifyTransportError(attemptCtx, callCtx context.Context, err error) ErrorKind {
	if callCtx.Err() != nil {
		cause := context.Cause(callCtx)
		switch {
		case errors.Is(cause, inflight.ErrSuperseded):
			return KindSuperseded
		case errors.Is(cause, context.DeadlineExceeded):
			return KindTimeout
		default:
			return KindCanceled
		}
	}

	if attemptCtx.Err() != nil && errors.Is(context.Cause(attemptCtx), errAttemptTimeout) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindNetwork
}
