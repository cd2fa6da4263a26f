package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Execution status labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusRefused = "refused"
	StatusSkipped = "skipped"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Execution metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	AutoDisables      prometheus.Counter

	// Injection metrics
	PassDuration  *prometheus.HistogramVec
	MarkerRenders *prometheus.CounterVec

	// Fragment inventory
	FragmentsActive prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMetrics creates a new metrics collector backed by its own registry,
// so multiple collectors can coexist in one process.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		startTime: time.Now(),
		registry:  registry,
		stop:      make(chan struct{}),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgecode_http_requests_total",
				Help: "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgecode_http_request_duration_seconds",
				Help:    "Admin HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Execution metrics
		ExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgecode_executions_total",
				Help: "Total number of fragment executions",
			},
			[]string{"kind", "status"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgecode_execution_duration_seconds",
				Help:    "Fragment execution duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"kind"},
		),
		AutoDisables: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "edgecode_auto_disables_total",
				Help: "Total number of fragments auto-disabled after a runtime failure",
			},
		),

		// Injection metrics
		PassDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgecode_pass_duration_seconds",
				Help:    "Injection pass duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"stage"},
		),
		MarkerRenders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgecode_marker_renders_total",
				Help: "Total number of on-demand marker renders",
			},
			[]string{"status"},
		),

		// Fragment inventory
		FragmentsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "edgecode_fragments_active",
				Help: "Number of active fragments",
			},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "edgecode_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// updateUptime continuously updates the uptime metric until Close
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		case <-m.stop:
			return
		}
	}
}

// Close stops the uptime updater. Safe to call more than once.
func (m *Metrics) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// RecordHTTPRequest records an admin HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordExecution records a fragment execution
func (m *Metrics) RecordExecution(kind, status string, duration time.Duration) {
	m.ExecutionsTotal.WithLabelValues(kind, status).Inc()
	m.ExecutionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordPass records an injection pass
func (m *Metrics) RecordPass(stage string, duration time.Duration) {
	m.PassDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordMarkerRender records an on-demand marker render
func (m *Metrics) RecordMarkerRender(status string) {
	m.MarkerRenders.WithLabelValues(status).Inc()
}

// IncAutoDisables increments the auto-disable counter
func (m *Metrics) IncAutoDisables() {
	m.AutoDisables.Inc()
}

// SetFragmentsActive sets the active fragment gauge
func (m *Metrics) SetFragmentsActive(n int) {
	m.FragmentsActive.Set(float64(n))
}
