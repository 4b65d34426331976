package fetchcache

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// WithHTTPClient sets the underlying HTTP client. Its own Timeout, if any,
// applies on top of the per-attempt timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the default per-attempt timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetries sets the default number of retries after the first attempt.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// WithRetryDelay sets the base backoff delay. Attempt k waits
// delay*2^k before the next one.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithRetryCondition sets the default retry predicate.
func WithRetryCondition(fn RetryCondition) Option {
	return func(c *Client) {
		c.retryCondition = fn
	}
}

// WithMaxBackoff caps a single backoff delay.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithBackoffJitter adds up to f*delay of random slack to every backoff (0.0 to 1.0)
func WithBackoffJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// WithMaxCacheSize bounds the number of cached entries.
func WithMaxCacheSize(n int) Option {
	return func(c *Client) {
		c.maxCacheSize = n
	}
}

// WithDefaultCacheTTL sets the TTL used when a response carries no usable
// max-age directive.
func WithDefaultCacheTTL(d time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = d
	}
}

// WithCacheJanitor sweeps expired cache entries in the background every
// interval instead of only on writes.
func WithCacheJanitor(interval time.Duration) Option {
	return func(c *Client) {
		c.cacheJanitor = interval
	}
}

// WithFingerprintFunc replaces the key derivation used by the cache and the
// in-flight registry.
func WithFingerprintFunc(fn FingerprintFunc) Option {
	return func(c *Client) {
		c.fingerprint = fn
	}
}

// WithMaxBodySize limits how many response bytes are read per attempt.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		c.maxBodySize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithLogrus logs through the given logrus logger or entry.
func WithLogrus(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		c.logger = NewLogrusLogger(logger)
	}
}

// WithSimpleLogger enables debug logging to stderr.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging with the default configuration. A logger
// must also be configured.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator sets the function that generates request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithRateLimiter paces attempts to maxTokens in a burst and one more every
// refillRate.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithCircuitBreaker enables the circuit breaker.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithFetchAllConcurrency bounds how many FetchAll requests run at once.
// Zero means unbounded.
func WithFetchAllConcurrency(n int) Option {
	return func(c *Client) {
		c.fetchAllLimit = n
	}
}

// WithUserAgent sets the User-Agent of calls that don't carry one.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithClock replaces time.Now for cache freshness.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateCacheConfig()...)
	problems = append(problems, c.validateRateLimiterConfig()...)
	problems = append(problems, c.validateCircuitBreakerConfig()...)
	problems = append(problems, c.validateDebugConfig()...)
	problems = append(problems, c.validateMiddlewareConfig()...)
	problems = append(problems, c.validateHTTPClientConfig()...)
	problems = append(problems, c.validateExtremeValues()...)

	if len(problems) > 0 {
		return &FetchError{
			Kind:      KindValidation,
			Message:   "configuration validation failed",
			Timestamp: time.Now(),
			Cause:     fmt.Errorf("validation errors: %v", problems),
		}
	}

	return nil
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.retries < 0 {
		problems = append(problems, "retries must be non-negative")
	}
	if c.retryDelay < 0 {
		problems = append(problems, "retryDelay must be non-negative")
	}
	if c.maxBackoff < 0 {
		problems = append(problems, "maxBackoff must be non-negative")
	}
	if c.maxBackoff > 0 && c.maxBackoff < c.retryDelay {
		problems = append(problems, "maxBackoff must be greater than or equal to retryDelay")
	}
	if c.jitter < 0 || c.jitter > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	if c.timeout < 0 {
		problems = append(problems, "timeout must be non-negative")
	}

	return problems
}

func (c *Client) validateCacheConfig() []string {
	var problems []string

	if c.maxCacheSize <= 0 {
		problems = append(problems, "maxCacheSize must be positive")
	}
	if c.cacheTTL <= 0 {
		problems = append(problems, "cacheTTL must be positive")
	}
	if c.cacheJanitor < 0 {
		problems = append(problems, "cacheJanitor must be non-negative")
	}
	if c.fingerprint == nil {
		problems = append(problems, "fingerprint function cannot be nil")
	}
	if c.maxBodySize <= 0 {
		problems = append(problems, "maxBodySize must be positive")
	}
	if c.now == nil {
		problems = append(problems, "clock cannot be nil")
	}

	return problems
}

func (c *Client) validateRateLimiterConfig() []string {
	var problems []string

	if c.rateLimiter != nil {
		if c.rateLimiter.Burst() <= 0 {
			problems = append(problems, "rateLimiter maxTokens must be positive")
		}
	}
	if c.fetchAllLimit < 0 {
		problems = append(problems, "fetchAll concurrency must be non-negative")
	}

	return problems
}

func (c *Client) validateCircuitBreakerConfig() []string {
	var problems []string

	if c.circuitBreaker != nil {
		if c.circuitBreaker.config.FailureThreshold <= 0 {
			problems = append(problems, "circuitBreaker FailureThreshold must be positive")
		}
		if c.circuitBreaker.config.RecoveryTimeout <= 0 {
			problems = append(problems, "circuitBreaker RecoveryTimeout must be positive")
		}
		if c.circuitBreaker.config.SuccessThreshold <= 0 {
			problems = append(problems, "circuitBreaker SuccessThreshold must be positive")
		}
	}

	return problems
}

func (c *Client) validateDebugConfig() []string {
	var problems []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}

	return problems
}

func (c *Client) validateMiddlewareConfig() []string {
	var problems []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return problems
}

func (c *Client) validateHTTPClientConfig() []string {
	if c.httpClient == nil {
		return []string{"HTTP client cannot be nil"}
	}
	return nil
}

func (c *Client) validateExtremeValues() []string {
	var problems []string

	if c.retries > 100 {
		problems = append(problems, "retries > 100 may cause excessive resource usage")
	}
	if c.retryDelay > 10*time.Minute {
		problems = append(problems, "retryDelay > 10m may cause very long delays")
	}
	if c.maxBackoff > time.Hour {
		problems = append(problems, "maxBackoff > 1h may cause extremely long delays")
	}
	if c.timeout > 10*time.Minute {
		problems = append(problems, "timeout > 10m may cause requests to hang for too long")
	}
	if c.cacheTTL > 24*time.Hour {
		problems = append(problems, "cacheTTL > 24h may cause stale data issues")
	}
	if c.maxCacheSize > 1000000 {
		problems = append(problems, "maxCacheSize > 1M may cause memory issues")
	}

	return problems
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}
