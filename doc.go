// Package fetchcache provides a resilient fetch client for HTTP resources:
//
//   - TTL cache of successful GET results with a size bound
//   - Supersession: a newer identical call cancels the one still in flight
//   - Per-attempt timeouts and bounded retries with exponential backoff
//   - Content-type driven response decoding (JSON, text, binary)
//   - Optional rate limiting, circuit breaking and middleware
//   - Prometheus metrics and logrus-backed structured logging
//
// Typical usage:
//
//	client := fetchcache.New(
//	    fetchcache.WithRetries(2),
//	    fetchcache.WithTimeout(5*time.Second),
//	    fetchcache.WithMaxCacheSize(500),
//	)
//	result, err := client.Fetch(ctx, "https://api.example.com/data", nil)
//
// A call that is superseded by a newer identical call settles with an error
// matching ErrSuperseded and never writes to the cache. Only network failures
// and attempt timeouts are retried by default; override with
// WithRetryCondition or FetchOptions.RetryCondition.
package fetchcache
