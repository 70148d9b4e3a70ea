package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "twinquery"

// Metrics holds the prometheus collectors for the query pipeline and its
// collaborators. Each instance owns its registry so tests never collide on
// the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal       *prometheus.CounterVec
	queryDuration      *prometheus.HistogramVec
	completionTotal    *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	backendTotal       *prometheus.CounterVec
	backendDuration    *prometheus.HistogramVec
	backendRows        *prometheus.HistogramVec
	sinkErrors         *prometheus.CounterVec
	httpTotal          *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	breakerState       *prometheus.GaugeVec
}

// NewMetrics creates and registers all collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Questions processed, by route and outcome.",
		}, []string{"route", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end question processing latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"route"}),
		completionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_requests_total",
			Help:      "Completion service calls, by pipeline stage and outcome.",
		}, []string{"stage", "status"}),
		completionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_request_duration_seconds",
			Help:      "Completion service call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		backendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend query executions, by backend and outcome.",
		}, []string{"backend", "status"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend query latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		backendRows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_result_rows",
			Help:      "Rows returned per backend query.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}, []string{"backend"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_sink_errors_total",
			Help:      "Failures recording answers to history or audit stores.",
		}, []string{"sink"}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.queriesTotal,
		m.queryDuration,
		m.completionTotal,
		m.completionDuration,
		m.backendTotal,
		m.backendDuration,
		m.backendRows,
		m.sinkErrors,
		m.httpTotal,
		m.httpDuration,
		m.breakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the prometheus scrape handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordQuery records one processed question
func (m *Metrics) RecordQuery(route string, duration time.Duration, degraded bool) {
	s := "success"
	if degraded {
		s = "degraded"
	}
	m.queriesTotal.WithLabelValues(route, s).Inc()
	m.queryDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordCompletion records one completion service call
func (m *Metrics) RecordCompletion(stage string, duration time.Duration, err error) {
	m.completionTotal.WithLabelValues(stage, status(err)).Inc()
	m.completionDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordBackend records one backend execution
func (m *Metrics) RecordBackend(backend string, duration time.Duration, rows int, err error) {
	m.backendTotal.WithLabelValues(backend, status(err)).Inc()
	m.backendDuration.WithLabelValues(backend).Observe(duration.Seconds())
	if err == nil {
		m.backendRows.WithLabelValues(backend).Observe(float64(rows))
	}
}

// RecordSinkError records a failure persisting an answer
func (m *Metrics) RecordSinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// RecordHTTP records one served HTTP request
func (m *Metrics) RecordHTTP(method, path string, statusCode int, duration time.Duration) {
	m.httpTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBreakerState records a circuit breaker transition. state follows
// gobreaker's numbering.
func (m *Metrics) RecordBreakerState(name string, state int) {
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

var (
	globalMetrics     *Metrics
	globalMetricsOnce sync.Once
)

// GetGlobalMetrics returns the process-wide metrics instance
func GetGlobalMetrics() *Metrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = NewMetrics()
	})
	return globalMetrics
}
