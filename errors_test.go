package fetchcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/groundedgems/fetchcache/internal/inflight"
)

func TestFetchErrorMessage(t *testing.T) {
	err := &FetchError{Kind: KindNetwork, Message: "connection timeout"}

	if got := err.Error(); got != "Network: connection timeout" {
		t.Errorf("unexpected message %q", got)
	}

	withCause := &FetchError{
		Kind:       KindHTTPStatus,
		Message:    "unsuccessful status",
		StatusCode: 503,
		Cause:      errors.New("underlying error"),
		RequestID:  "req-1",
		Attempt:    1,
		MaxRetries: 2,
	}
	want := "[req-1] HTTPStatus: unsuccessful status (status 503) (underlying error) (attempt 2/3)"
	if got := withCause.Error(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	cause := errors.New("original error")
	err := &FetchError{Kind: KindNetwork, Cause: cause}

	if err.Unwrap() != cause {
		t.Error("Unwrap did not return the cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}

	var nilErr *FetchError
	if nilErr.Unwrap() != nil {
		t.Error("nil FetchError should unwrap to nil")
	}
}

func TestFetchErrorIsMatchesKindSentinel(t *testing.T) {
	sentinels := map[ErrorKind]error{
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

	for kind, sentinel := range sentinels {
		err := fmt.Errorf("wrapped: %w", &FetchError{Kind: kind})
		if !errors.Is(err, sentinel) {
			t.Errorf("%s should match its sentinel", kind)
		}
		if kind != KindTimeout && errors.Is(err, ErrTimeout) {
			t.Errorf("%s should not match ErrTimeout", kind)
		}
	}

	if !errors.Is(&FetchError{Kind: KindDecode}, &FetchError{Kind: KindDecode, Message: "other"}) {
		t.Error("FetchErrors of the same kind should match")
	}
}

func TestKindOfAndStatusCode(t *testing.T) {
	err := fmt.Errorf("ctx: %w", &FetchError{Kind: KindHTTPStatus, StatusCode: 404})

	if KindOf(err) != KindHTTPStatus {
		t.Errorf("Expected HTTPStatus, got %s", KindOf(err))
	}
	if StatusCode(err) != 404 {
		t.Errorf("Expected 404, got %d", StatusCode(err))
	}
	if KindOf(errors.New("plain")) != KindUnknown || StatusCode(nil) != 0 {
		t.Error("plain errors should have no kind or status")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := map[ErrorKind]bool{
		KindNetwork:     true,
		KindTimeout:     true,
		KindHTTPStatus:  false,
		KindSuperseded:  false,
		KindCanceled:    false,
		KindDecode:      false,
		KindCircuitOpen: false,
	}
	for kind, want := range tests {
		if got := IsRetryable(&FetchError{Kind: kind}); got != want {
			t.Errorf("IsRetryable(%s) = %v, want %v", kind, got, want)
		}
	}
}

func TestErrorKindString(t *testing.T) {
	if KindSuperseded.String() != "Superseded" {
		t.Errorf("unexpected name %s", KindSuperseded)
	}
	if ErrorKind(99).String() != "Unknown" {
		t.Errorf("out of range kind should be Unknown, got %s", ErrorKind(99))
	}
}

func TestDebugInfo(t *testing.T) {
	err := &FetchError{
		Kind:       KindTimeout,
		Message:    "attempt timed out",
		Method:     "GET",
		URL:        "http://example.com",
		RequestID:  "req-9",
		MaxRetries: 3,
		Duration:   time.Second,
		Timestamp:  time.Now(),
	}

	info := err.DebugInfo()
	for _, want := range []string{"Error Kind: Timeout", "Request ID: req-9", "Method: GET", "URL: http://example.com", "Attempt: 1/4", "Duration: 1s"} {
		if !strings.Contains(info, want) {
			t.Errorf("DebugInfo missing %q:\n%s", want, info)
		}
	}

	var nilErr *FetchError
	if nilErr.DebugInfo() != "Error: <nil>" {
		t.Error("unexpected DebugInfo for nil error")
	}
}

func TestClassifyTransportError(t *testing.T) {
	plain := errors.New("connection reset")

	t.Run("network", func(t *testing.T) {
		ctx := context.Background()
		if kind := classifyTransportError(ctx, ctx, plain); kind != KindNetwork {
			t.Errorf("Expected Network, got %s", kind)
		}
	})

	t.Run("attempt timeout", func(t *testing.T) {
		callCtx := context.Background()
		attemptCtx, cancel := context.WithTimeoutCause(callCtx, time.Nanosecond, errAttemptTimeout)
		defer cancel()
		<-attemptCtx.Done()

		if kind := classifyTransportError(attemptCtx, callCtx, context.Canceled); kind != KindTimeout {
			t.Errorf("Expected Timeout, got %s", kind)
		}
	})

	t.Run("superseded", func(t *testing.T) {
		callCtx, cancel := context.WithCancelCause(context.Background())
		cancel(inflight.ErrSuperseded)

		if kind := classifyTransportError(callCtx, callCtx, context.Canceled); kind != KindSuperseded {
			t.Errorf("Expected Superseded, got %s", kind)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		callCtx, cancel := context.WithCancelCause(context.Background())
		cancel(inflight.ErrCanceled)

		if kind := classifyTransportError(callCtx, callCtx, context.Canceled); kind != KindCanceled {
			t.Errorf("Expected Canceled, got %s", kind)
		}
	})

	t.Run("caller deadline", func(t *testing.T) {
		callCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-callCtx.Done()

		if kind := classifyTransportError(callCtx, callCtx, context.DeadlineExceeded); kind != KindTimeout {
			t.Errorf("Expected Timeout, got %s", kind)
		}
	})
}
