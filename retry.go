package fetchcache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/groundedgems/fetchcache/internal/backoff"
)

// call is the per-invocation state shared by the retry loop and Fetch.
type call struct {
	method    string
	url       string
	header    http.Header
	body      []byte
	key       string
	endpoint  string
	timeout   time.Duration
	policy    RetryPolicy
	requestID string
	start     time.Time
}

// wireResponse is a fully read 2xx response.
type wireResponse struct {
	statusCode int
	status     string
	header     http.Header
	body       []byte
	url        string
}

// execute drives the attempt loop for cl. ctx is the call context owned by
// the in-flight registry: cancelling it abandons every remaining attempt.
func (c *Client) execute(ctx context.Context, cl *call) (*wireResponse, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			c.metrics.RecordRetry(cl.method, cl.endpoint, attempt)
			if c.logs(c.debug.LogRetries) {
				c.logger.Debug("Retry attempt", "requestID", cl.requestID, "attempt", attempt, "maxRetries", cl.policy.MaxRetries, "endpoint", cl.endpoint)
			}
		}

		resp, err := c.attempt(ctx, cl, attempt)
		if err == nil {
			return resp, nil
		}

		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = c.newError(KindUnknown, "unexpected failure", err, cl, attempt)
		}
		c.metrics.RecordError(fe.Kind, cl.method, cl.endpoint)

		if ctx.Err() != nil || !cl.policy.ShouldRetry(fe, attempt) {
			return nil, fe
		}

		delay := cl.policy.Delay(attempt)
		c.logger.Warn("Attempt failed, scheduling retry",
			"requestID", cl.requestID, "url", cl.url, "kind", fe.Kind.String(),
			"attempt", attempt, "backoff", delay, "error", fe.Error())

		if err := backoff.Sleep(ctx, delay); err != nil {
			kind := classifyTransportError(ctx, ctx, err)
			return nil, c.newError(kind, "request abandoned during backoff", context.Cause(ctx), cl, attempt)
		}
	}
}

// attempt performs one bounded network operation.
func (c *Client) attempt(ctx context.Context, cl *call, attempt int) (*wireResponse, error) {
	var attemptCtx context.Context
	var cancel context.CancelFunc
	if cl.timeout > 0 {
		attemptCtx, cancel = context.WithTimeoutCause(ctx, cl.timeout, errAttemptTimeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(attemptCtx); err != nil {
			if attemptCtx.Err() != nil {
				return nil, c.newError(classifyTransportError(attemptCtx, ctx, err), "cancelled while rate limited", err, cl, attempt)
			}
			return nil, c.newError(KindRateLimited, "rate limit wait exceeds deadline", err, cl, attempt)
		}
	}

	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		c.logger.Warn("Circuit breaker open", "requestID", cl.requestID, "endpoint", cl.endpoint)
		return nil, c.newError(KindCircuitOpen, "circuit breaker is open", nil, cl, attempt)
	}

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, cl.method, cl.url, body)
	if err != nil {
		return nil, c.newError(KindInvalidRequest, "failed to build request", err, cl, attempt)
	}
	for key, values := range cl.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.chain().RoundTrip(req)
	if err != nil {
		kind := classifyTransportError(attemptCtx, ctx, err)
		if kind == KindNetwork || kind == KindTimeout {
			c.recordBreaker(true)
		}
		return nil, c.newError(kind, "network request failed", err, cl, attempt)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		kind := classifyTransportError(attemptCtx, ctx, err)
		if kind == KindNetwork || kind == KindTimeout {
			c.recordBreaker(true)
		}
		return nil, c.newError(kind, "failed to read response body", err, cl, attempt)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.recordBreaker(resp.StatusCode >= 500)
		fe := c.newError(KindHTTPStatus, "unsuccessful status: "+resp.Status, nil, cl, attempt)
		fe.StatusCode = resp.StatusCode
		fe.Body = string(payload)
		return nil, fe
	}
	c.recordBreaker(false)

	finalURL := cl.url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &wireResponse{
		statusCode: resp.StatusCode,
		status:     resp.Status,
		header:     resp.Header.Clone(),
		body:       payload,
		url:        finalURL,
	}, nil
}

func (c *Client) recordBreaker(failed bool) {
	if c.circuitBreaker == nil {
		return
	}
	if failed {
		c.circuitBreaker.RecordFailure()
	} else {
		c.circuitBreaker.RecordSuccess()
	}
	c.metrics.RecordCircuitBreakerState(c.circuitBreaker.State())
}

func (c *Client) newError(kind ErrorKind, message string, cause error, cl *call, attempt int) *FetchError {
	return &FetchError{
		Kind:       kind,
		Message:    message,
		Method:     cl.method,
		URL:        cl.url,
		Attempt:    attempt,
		MaxRetries: cl.policy.MaxRetries,
		RequestID:  cl.requestID,
		Duration:   time.Since(cl.start),
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}
