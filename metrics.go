package fetchcache

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the fetch lifecycle.
// All methods are safe on a nil receiver, which records nothing.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   prometheus.Gauge

	supersededTotal *prometheus.CounterVec

	circuitBreakerState prometheus.Gauge

	errorsTotal *prometheus.CounterVec

	buildInfo *prometheus.GaugeVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)

	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchcache_requests_total",
				Help: "Total number of fetch calls by final status code",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchcache_request_duration_seconds",
				Help:    "Duration of fetch calls in seconds, including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchcache_requests_in_flight",
				Help: "Number of fetch calls currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchcache_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchcache_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"endpoint"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchcache_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"endpoint"},
		),
		cacheSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fetchcache_cache_size",
				Help: "Current number of entries in the cache",
			},
		),
		supersededTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchcache_superseded_total",
				Help: "Total number of in-flight calls cancelled by a newer identical call",
			},
			[]string{"method", "endpoint"},
		),
		circuitBreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fetchcache_circuit_breaker_state",
				Help: "Current state of the circuit breaker (0=closed, 1=open, 2=half-open)",
			},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchcache_errors_total",
				Help: "Total number of failed attempts by error kind",
			},
			[]string{"kind", "method", "endpoint"},
		),
		buildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchcache_build_info",
				Help: "Library version and Go runtime, always 1",
			},
			[]string{"version", "go_version"},
		),
		registry: registry,
	}

	mc.buildInfo.WithLabelValues(Version, runtime.Version()).Set(1)
	return mc
}

// RecordRequest records call count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordCacheHit increments the cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(endpoint string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(endpoint).Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(endpoint string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(endpoint).Inc()
}

// RecordCacheSize sets the cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.Set(float64(size))
}

// RecordSuperseded counts a call cancelled by a newer identical call.
func (mc *MetricsCollector) RecordSuperseded(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.supersededTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordCircuitBreakerState sets the gauge to the breaker state.
func (mc *MetricsCollector) RecordCircuitBreakerState(state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitBreakerState.Set(float64(state))
}

// RecordError increments the error counter by kind.
func (mc *MetricsCollector) RecordError(kind ErrorKind, method, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(kind.String(), method, endpoint).Inc()
}

// Registry exposes the registerer the collector was created with.
func (mc *MetricsCollector) Registry() prometheus.Registerer {
	return mc.registry
}
