package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the shift log API.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Store metrics.
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Auth metrics.
	AuthSuccessesTotal prometheus.Counter
	AuthFailuresTotal  prometheus.Counter

	// Rate limiting.
	RateLimitRejectionsTotal prometheus.Counter

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftlog_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shiftlog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		StoreOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftlog_store_operations_total",
			Help: "Total number of shift store operations.",
		}, []string{"operation", "status"}),

		StoreOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shiftlog_store_operation_duration_seconds",
			Help:    "Shift store operation duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		AuthSuccessesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiftlog_auth_successes_total",
			Help: "Total number of successful token verifications.",
		}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiftlog_auth_failures_total",
			Help: "Total number of failed token verifications.",
		}),

		RateLimitRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiftlog_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shiftlog_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StoreOperationsTotal,
		m.StoreOperationDuration,
		m.AuthSuccessesTotal,
		m.AuthFailuresTotal,
		m.RateLimitRejectionsTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// RecordRequest records one completed HTTP request.
func (m *Metrics) RecordRequest(method, pathPattern, statusCode string, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(seconds)
}

// RecordStoreOperation records one completed repository operation.
func (m *Metrics) RecordStoreOperation(operation string, err error, seconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordAuth records a token verification result.
func (m *Metrics) RecordAuth(ok bool) {
	if ok {
		m.AuthSuccessesTotal.Inc()
	} else {
		m.AuthFailuresTotal.Inc()
	}
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection() {
	m.RateLimitRejectionsTotal.Inc()
}
