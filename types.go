package fetchcache

import (
	"net/http"
	"time"
)

// ResponseMeta is the part of a response kept alongside decoded data.
type ResponseMeta struct {
	StatusCode int
	Status     string
	Header     http.Header
	URL        string
}

// Result is what Fetch returns. FromCache tells a cached result apart from
// a fresh network result so callers can reason about staleness.
type Result struct {
	Data      interface{}
	Body      []byte
	BodyKind  BodyKind
	Response  ResponseMeta
	FromCache bool
}

// CacheEntry is an immutable cached GET result.
type CacheEntry struct {
	Data     interface{}
	Body     []byte
	BodyKind BodyKind
	Response ResponseMeta
	StoredAt time.Time
	TTL      time.Duration

	// issueSeq orders writes by when their call was issued.
	issueSeq uint64
	// insertSeq orders entries with identical StoredAt.
	insertSeq uint64
}

// CacheStats describes the cache contents.
type CacheStats struct {
	Size    int
	MaxSize int
	Keys    []string
}

// RetryCondition decides whether a classified failure is retried.
// attempt is zero-based.
type RetryCondition func(err error, attempt int) bool

// FetchOptions configures one call. Zero values fall back to the client
// defaults. Cancellation comes from the context passed with the call.
type FetchOptions struct {
	Method string
	Header http.Header
	Body   []byte

	Timeout time.Duration
	// Retries is a pointer so that an explicit 0 can disable retries.
	Retries        *int
	RetryDelay     time.Duration
	RetryCondition RetryCondition

	// CacheTTL overrides the TTL derived from the response headers.
	CacheTTL time.Duration
	// NoCache skips the cache lookup and the cache write for this call.
	NoCache bool
}

// Retries returns a pointer to n for use in FetchOptions.
func Retries(n int) *int {
	return &n
}

func (o *FetchOptions) clone() FetchOptions {
	if o == nil {
		return FetchOptions{Method: http.MethodGet}
	}
	c := *o
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	if o.Header != nil {
		c.Header = o.Header.Clone()
	}
	if o.Body != nil {
		c.Body = append([]byte(nil), o.Body...)
	}
	if o.Retries != nil {
		n := *o.Retries
		c.Retries = &n
	}
	return c
}

// Request is one item of a FetchAll batch.
type Request struct {
	URL     string
	Options *FetchOptions
}

// Outcome is the per-request result of FetchAll. Exactly one of Result and
// Err is set.
type Outcome struct {
	Result *Result
	Err    error
}

// Middleware wraps the transport of every attempt.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc adapts a function to RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// CircuitState represents the state of the circuit breaker.
type CircuitState int64

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Option configures a Client.
type Option func(*Client)
