package fetchcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/groundedgems/fetchcache/internal/backoff"
	"github.com/groundedgems/fetchcache/internal/inflight"
)

// DefaultMaxBodySize caps how much of a response body is read.
const DefaultMaxBodySize = 10 << 20

// Client fetches resources with a TTL cache for GET results, supersession of
// identical in-flight calls, per-attempt timeouts and bounded retries. It is
// safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	retries        int
	retryDelay     time.Duration
	retryCondition RetryCondition
	maxBackoff     time.Duration
	jitter         float64
	cache          *CacheStore
	maxCacheSize   int
	cacheTTL       time.Duration
	cacheJanitor   time.Duration
	fingerprint    FingerprintFunc
	pending        *inflight.Registry
	circuitBreaker *CircuitBreaker
	rateLimiter    *RateLimiter
	middleware     []Middleware
	metrics        *MetricsCollector
	debug          *DebugConfig
	logger         Logger
	fetchAllLimit  int
	userAgent      string
	maxBodySize    int64
	now            func() time.Time

	validationError error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors. Every
// call on an invalid client fails with the validation error.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:     &http.Client{},
		timeout:        10 * time.Second,
		retries:        3,
		retryDelay:     time.Second,
		retryCondition: DefaultRetryCondition,
		maxCacheSize:   DefaultMaxCacheSize,
		cacheTTL:       DefaultCacheTTL,
		fingerprint:    Fingerprint,
		pending:        inflight.New(),
		middleware:     []Middleware{},
		debug:          DefaultDebugConfig(),
		maxBodySize:    DefaultMaxBodySize,
		userAgent:      DefaultUserAgent(),
		now:            time.Now,
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	if client.logger == nil {
		client.logger = NopLogger{}
	}
	if client.debug == nil {
		client.debug = &DebugConfig{}
	}

	storeOpts := []CacheStoreOption{WithStoreJanitor(client.cacheJanitor)}
	if client.now != nil {
		storeOpts = append(storeOpts, WithStoreClock(client.now))
	}
	client.cache = NewCacheStore(client.maxCacheSize, storeOpts...)

	return client
}

// Fetch performs the call described by opts (a GET when opts is nil).
//
// A fresh cached result for the same fingerprint is returned without any
// network activity. Otherwise any identical call still in flight is
// superseded, and the request runs with the per-attempt timeout and retry
// policy. Successful cacheable GET results are stored with a TTL taken from
// the response's max-age, opts.CacheTTL or the client default.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts *FetchOptions) (*Result, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	o := opts.clone()
	cl := c.newCall(rawURL, o)
	useCache := strings.EqualFold(o.Method, http.MethodGet) && !o.NoCache

	if useCache {
		if entry, ok := c.cache.Get(cl.key); ok {
			c.metrics.RecordCacheHit(cl.endpoint)
			if c.logs(c.debug.LogCache) {
				c.logger.Debug("Cache hit", "requestID", cl.requestID, "url", rawURL, "cacheKey", cl.key)
			}
			return resultFromEntry(entry), nil
		}
		c.metrics.RecordCacheMiss(cl.endpoint)
		if c.logs(c.debug.LogCache) {
			c.logger.Debug("Cache miss", "requestID", cl.requestID, "url", rawURL, "cacheKey", cl.key)
		}
	}

	if c.logs(c.debug.LogRequests) {
		c.logger.Debug("Starting request", "requestID", cl.requestID, "method", cl.method, "url", rawURL, "endpoint", cl.endpoint)
	}

	c.metrics.RecordRequestStart(cl.method, cl.endpoint)
	defer c.metrics.RecordRequestEnd(cl.method, cl.endpoint)

	callCtx, handle, superseded := c.pending.Acquire(ctx, cl.key)
	defer c.pending.Release(handle)
	if superseded {
		c.metrics.RecordSuperseded(cl.method, cl.endpoint)
		c.logger.Debug("Superseded in-flight request", "requestID", cl.requestID, "method", cl.method, "url", rawURL)
	}

	resp, err := c.execute(callCtx, cl)
	if err == nil && errors.Is(context.Cause(callCtx), inflight.ErrSuperseded) {
		// Settled at the same moment a newer call took over; its outcome wins.
		err = c.newError(KindSuperseded, "superseded by a newer request", context.Cause(callCtx), cl, 0)
	}
	if err != nil {
		c.metrics.RecordRequest(cl.method, cl.endpoint, StatusCode(err), time.Since(cl.start))
		c.logFailure(cl, err)
		return nil, err
	}
	c.metrics.RecordRequest(cl.method, cl.endpoint, resp.statusCode, time.Since(cl.start))

	data, kind, err := DecodeBody(resp.header, resp.body, c.logger)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Method, fe.URL, fe.RequestID = cl.method, cl.url, cl.requestID
			fe.StatusCode = resp.statusCode
			fe.Duration, fe.Timestamp = time.Since(cl.start), time.Now()
		}
		c.metrics.RecordError(KindDecode, cl.method, cl.endpoint)
		return nil, err
	}

	result := &Result{
		Data:     data,
		Body:     resp.body,
		BodyKind: kind,
		Response: ResponseMeta{
			StatusCode: resp.statusCode,
			Status:     resp.status,
			Header:     resp.header,
			URL:        resp.url,
		},
	}

	if useCache && IsCacheable(cl.method, resp.statusCode, resp.header) {
		c.store(cl, o, handle.ID(), result)
	}

	return result, nil
}

func (c *Client) store(cl *call, o FetchOptions, issueSeq uint64, result *Result) {
	ttl := o.CacheTTL
	if ttl <= 0 {
		ttl = TTLFromHeader(result.Response.Header, c.cacheTTL)
	}
	if ttl <= 0 {
		return
	}

	// The entry owns its own copies; the caller may modify result freely.
	body := append([]byte(nil), result.Body...)
	data, _, err := DecodeBody(result.Response.Header, body, NopLogger{})
	if err != nil {
		return
	}
	response := result.Response
	response.Header = result.Response.Header.Clone()

	entry := &CacheEntry{
		Data:     data,
		Body:     body,
		BodyKind: result.BodyKind,
		Response: response,
		StoredAt: c.now(),
		TTL:      ttl,
		issueSeq: issueSeq,
	}

	stored := c.cache.PutIfNewer(cl.key, entry)
	c.metrics.RecordCacheSize(c.cache.Len())

	if c.logs(c.debug.LogCache) {
		if stored {
			c.logger.Debug("Response cached", "requestID", cl.requestID, "cacheKey", cl.key, "ttl", ttl)
		} else {
			c.logger.Debug("Discarded cache write from an older call", "requestID", cl.requestID, "cacheKey", cl.key)
		}
	}
}

func (c *Client) logFailure(cl *call, err error) {
	switch KindOf(err) {
	case KindSuperseded, KindCanceled:
		c.logger.Debug("Request abandoned", "requestID", cl.requestID, "url", cl.url, "kind", KindOf(err).String())
	default:
		c.logger.Error("Request failed", "requestID", cl.requestID, "method", cl.method, "url", cl.url, "error", err.Error())
	}
}

func (c *Client) newCall(rawURL string, o FetchOptions) *call {
	policy := RetryPolicy{
		MaxRetries: c.retries,
		BaseDelay:  c.retryDelay,
		Condition:  c.retryCondition,
		strategy:   c.backoffStrategy(),
	}
	if o.Retries != nil {
		policy.MaxRetries = *o.Retries
	}
	if o.RetryDelay > 0 {
		policy.BaseDelay = o.RetryDelay
	}
	if o.RetryCondition != nil {
		policy.Condition = o.RetryCondition
	}

	timeout := c.timeout
	if o.Timeout > 0 {
		timeout = o.Timeout
	}

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	method := strings.ToUpper(o.Method)
	return &call{
		method:    method,
		url:       rawURL,
		header:    o.Header,
		body:      o.Body,
		key:       c.fingerprint(method, rawURL, o.Body),
		endpoint:  endpointOf(rawURL),
		timeout:   timeout,
		policy:    policy,
		requestID: requestID,
		start:     time.Now(),
	}
}

func (c *Client) backoffStrategy() backoff.Strategy {
	if c.jitter > 0 || c.maxBackoff > 0 {
		return backoff.ExponentialJitter{Max: c.maxBackoff, Jitter: c.jitter}
	}
	return backoff.Exponential{}
}

// logs reports whether an event category reaches the logger at debug
// level. Everything does unless debug is enabled, in which case the
// DebugConfig switch for the category decides.
func (c *Client) logs(category bool) bool {
	return !c.debug.Enabled || category
}

// resultFromEntry builds a result that shares no mutable state with entry.
// Data is decoded again from the stored body rather than copied.
func resultFromEntry(entry *CacheEntry) *Result {
	body := append([]byte(nil), entry.Body...)
	response := entry.Response
	response.Header = entry.Response.Header.Clone()

	data, _, err := DecodeBody(response.Header, body, NopLogger{})
	if err != nil {
		data = entry.Data
	}

	return &Result{
		Data:      data,
		Body:      body,
		BodyKind:  entry.BodyKind,
		Response:  response,
		FromCache: true,
	}
}

// Post sends body as JSON with POST. []byte, string, json.RawMessage and
// io.Reader bodies are sent as is.
func (c *Client) Post(ctx context.Context, rawURL string, body interface{}, opts *FetchOptions) (*Result, error) {
	return c.send(ctx, http.MethodPost, rawURL, body, opts)
}

// Put sends body as JSON with PUT.
func (c *Client) Put(ctx context.Context, rawURL string, body interface{}, opts *FetchOptions) (*Result, error) {
	return c.send(ctx, http.MethodPut, rawURL, body, opts)
}

// Patch sends body as JSON with PATCH.
func (c *Client) Patch(ctx context.Context, rawURL string, body interface{}, opts *FetchOptions) (*Result, error) {
	return c.send(ctx, http.MethodPatch, rawURL, body, opts)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, rawURL string, opts *FetchOptions) (*Result, error) {
	return c.send(ctx, http.MethodDelete, rawURL, nil, opts)
}

func (c *Client) send(ctx context.Context, method, rawURL string, body interface{}, opts *FetchOptions) (*Result, error) {
	o := opts.clone()
	o.Method = method

	payload, err := encodeBody(body)
	if err != nil {
		return nil, &FetchError{
			Kind:      KindInvalidRequest,
			Message:   "failed to encode request body",
			Method:    method,
			URL:       rawURL,
			Timestamp: time.Now(),
			Cause:     err,
		}
	}
	if payload != nil {
		o.Body = payload
		if o.Header == nil {
			o.Header = make(http.Header)
		}
		if o.Header.Get("Content-Type") == "" {
			o.Header.Set("Content-Type", "application/json")
		}
	}

	return c.Fetch(ctx, rawURL, &o)
}

func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case json.RawMessage:
		return b, nil
	case io.Reader:
		return io.ReadAll(b)
	default:
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			return nil, err
		}
		return bytes.TrimRight(buf.Bytes(), "\n"), nil
	}
}

// Prefetch warms the cache in the background. Failures are logged and never
// returned to the caller; the channel receives the outcome once and is then
// closed, so the swallowed error can still be inspected. The fetch outlives
// ctx's cancellation but keeps its values.
func (c *Client) Prefetch(ctx context.Context, rawURL string, opts *FetchOptions) <-chan error {
	done := make(chan error, 1)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(done)

		_, err := c.Fetch(ctx, rawURL, opts)
		if err != nil {
			c.logger.Warn("Prefetch failed", "url", rawURL, "kind", KindOf(err).String(), "error", err.Error())
		}
		done <- err
	}()

	return done
}

// FetchAll runs every request concurrently and returns one Outcome per
// request, in order. It never fails as a whole: each failure, including a
// panic in a caller-supplied hook, is confined to its own Outcome.
func (c *Client) FetchAll(ctx context.Context, requests []Request) []Outcome {
	outcomes := make([]Outcome, len(requests))

	var g errgroup.Group
	if c.fetchAllLimit > 0 {
		g.SetLimit(c.fetchAllLimit)
	}

	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = Outcome{Err: &FetchError{
						Kind:      KindUnknown,
						Message:   fmt.Sprintf("panic during fetch: %v", r),
						URL:       req.URL,
						Timestamp: time.Now(),
					}}
				}
			}()

			result, err := c.Fetch(ctx, req.URL, req.Options)
			outcomes[i] = Outcome{Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// CancelRequest cancels the in-flight call matching url and opts. It reports
// whether such a call existed.
func (c *Client) CancelRequest(rawURL string, opts *FetchOptions) bool {
	o := opts.clone()
	key := c.fingerprint(strings.ToUpper(o.Method), rawURL, o.Body)

	cancelled := c.pending.Cancel(key)
	if cancelled {
		c.logger.Debug("Cancelled request", "method", o.Method, "url", rawURL)
	}
	return cancelled
}

// CancelAllRequests cancels every in-flight call and returns how many there were.
func (c *Client) CancelAllRequests() int {
	n := c.pending.CancelAll()
	if n > 0 {
		c.logger.Debug("Cancelled all requests", "count", n)
	}
	return n
}

// PendingRequests returns the fingerprints of calls currently in flight.
func (c *Client) PendingRequests() []string {
	return c.pending.Keys()
}

// ClearCache drops every cached result.
func (c *Client) ClearCache() {
	c.cache.Clear()
	c.metrics.RecordCacheSize(0)
	if c.logs(c.debug.LogCache) {
		c.logger.Debug("Cache cleared")
	}
}

// CacheStats reports the cache size, bound and keys.
func (c *Client) CacheStats() CacheStats {
	return c.cache.Stats()
}

// endpointOf reduces a URL to host and path for metric labels.
func endpointOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)

	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
