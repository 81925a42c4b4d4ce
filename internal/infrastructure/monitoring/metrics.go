// Package monitoring exposes Prometheus metrics for the synchronization
// engine and the daemon's HTTP surface.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Sync engine metrics
	BatchesTotal    prometheus.Counter
	BatchSize       prometheus.Histogram
	BatchDuration   prometheus.Histogram
	ScansTotal      *prometheus.CounterVec
	ScanDuration    prometheus.Histogram
	ProjectsTracked prometheus.Gauge

	// Package source metrics
	SourceRefreshes   prometheus.Counter
	SourceFetchErrors prometheus.Counter

	// Host metrics
	HostCalls *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
}

// NewMetrics creates a metrics collector backed by its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		BatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pkgsync_batches_total",
			Help: "Total number of work batches processed",
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pkgsync_batch_size",
			Help:    "Number of work items per delivered batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pkgsync_batch_duration_seconds",
			Help:    "Batch processing duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pkgsync_project_scans_total",
			Help: "Total number of per-project scans",
		}, []string{"result"}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pkgsync_project_scan_duration_seconds",
			Help:    "Per-project scan duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		ProjectsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pkgsync_projects_tracked",
			Help: "Number of projects with cached package state",
		}),

		SourceRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "pkgsync_source_refreshes_total",
			Help: "Total number of package-source cache refreshes",
		}),
		SourceFetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "pkgsync_source_fetch_errors_total",
			Help: "Total number of failed package-source fetches",
		}),

		HostCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pkgsync_host_calls_total",
			Help: "Total number of RPC calls to the package-management host",
		}, []string{"method", "status"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pkgsync_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pkgsync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "path"}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pkgsync_ws_connections",
			Help: "Number of active event-stream connections",
		}),
	}
}

// Handler returns the scrape endpoint for this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordBatch records one processed batch.
func (m *Metrics) RecordBatch(size int, duration time.Duration) {
	m.BatchesTotal.Inc()
	m.BatchSize.Observe(float64(size))
	m.BatchDuration.Observe(duration.Seconds())
}

// RecordScan records one per-project scan outcome.
func (m *Metrics) RecordScan(result string, duration time.Duration) {
	m.ScansTotal.WithLabelValues(result).Inc()
	m.ScanDuration.Observe(duration.Seconds())
}

// RecordHostCall records one host RPC by method and outcome.
func (m *Metrics) RecordHostCall(method, status string) {
	m.HostCalls.WithLabelValues(method, status).Inc()
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
