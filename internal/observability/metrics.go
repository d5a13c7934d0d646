package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	progressUpdatesTotal *prometheus.CounterVec
	progressCacheTotal   *prometheus.CounterVec
	progressEventsTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathshala_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pathshala_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathshala_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		progressUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathshala_progress_updates_total",
			Help: "Completion events recorded, by content type.",
		}, []string{"type"})

		progressCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathshala_progress_cache_total",
			Help: "Progress summary cache lookups, by result.",
		}, []string{"result"})

		progressEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pathshala_progress_events_total",
			Help: "Milestone events published to the broker, by kind.",
		}, []string{"kind"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			progressUpdatesTotal,
			progressCacheTotal,
			progressEventsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ProgressUpdates exposes the counter for recorded completions.
func ProgressUpdates() *prometheus.CounterVec {
	RegisterMetrics()
	return progressUpdatesTotal
}

// ProgressCache exposes the counter for progress cache lookups.
func ProgressCache() *prometheus.CounterVec {
	RegisterMetrics()
	return progressCacheTotal
}

// ProgressEvents exposes the counter for published milestone events.
func ProgressEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return progressEventsTotal
}
