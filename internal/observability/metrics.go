package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridwatch/grid-status-service/internal/upstream"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// EIA API call rate by outcome. Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// EIA API latency per request. Watch for: p95 > 2s (upstream degradation).
	UpstreamDurationSeconds *prometheus.HistogramVec

	// Retry attempts against the EIA API. High retries = unstable upstream.
	UpstreamRetriesTotal prometheus.Counter

	// Cache hits by cache type (regions, cities). Hit rate drives upstream volume.
	CacheHitsTotal *prometheus.CounterVec

	// Cache backend errors by operation (get, set, delete). Nonzero only with memcached.
	CacheErrorsTotal *prometheus.CounterVec

	// Locally synthesized records by entity (region, city, history).
	// A rising rate means the upstream is failing and the UI runs on mock data.
	FallbackSynthesisTotal *prometheus.CounterVec

	// Region snapshot refreshes by outcome (live, partial, fallback, stale).
	RegionRefreshTotal *prometheus.CounterVec

	// Region refresh wall time, including the fan-out fetch.
	RegionRefreshDurationSeconds prometheus.Histogram

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Current circuit breaker state per component (0 closed, 1 open, 2 half-open).
	CircuitBreakerState *prometheus.GaugeVec

	fallbackGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eiaApiCallsTotal",
			Help: "Total number of EIA API calls",
		},
		[]string{"status"},
	)
	UpstreamDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eiaApiDurationSeconds",
			Help:    "EIA API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eiaApiRetriesTotal",
			Help: "Total number of retry attempts for EIA API calls",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits by cache type",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of cache backend errors by operation",
		},
		[]string{"operation"},
	)
	FallbackSynthesisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallbackSynthesisTotal",
			Help: "Locally synthesized records served in place of upstream data",
		},
		[]string{"entity"},
	)
	RegionRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regionRefreshTotal",
			Help: "Region snapshot refreshes by outcome (live, partial, fallback, stale)",
		},
		[]string{"outcome"},
	)
	RegionRefreshDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "regionRefreshDurationSeconds",
			Help:    "Region snapshot refresh wall time in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDurationSeconds, UpstreamRetriesTotal,
		CacheHitsTotal, CacheErrorsTotal,
		FallbackSynthesisTotal, RegionRefreshTotal, RegionRefreshDurationSeconds,
		RateLimitDeniedTotal,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
	)
}

// RegisterFallbackShareGauges registers sliding-window gauges over the
// upstream tracker so dashboards can see how much of the served data is
// synthesized. Call once from main after the tracker is built.
func RegisterFallbackShareGauges(tracker *upstream.Tracker, window time.Duration) {
	fallbackGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "upstreamLiveInWindow",
					Help: "Live upstream fetches in the sliding window",
				},
				func() float64 {
					live, _ := tracker.Counts(window)
					return float64(live)
				},
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "upstreamFallbackInWindow",
					Help: "Fallback syntheses in the sliding window; are we serving mock data",
				},
				func() float64 {
					_, fallback := tracker.Counts(window)
					return float64(fallback)
				},
			),
		)
	})
}

// RecordCircuitBreakerTransition records one state transition for a component.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// SetCircuitBreakerState sets the state gauge for a component
// (0 closed, 1 open, 2 half-open).
func SetCircuitBreakerState(component string, state int) {
	CircuitBreakerState.WithLabelValues(component).Set(float64(state))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
