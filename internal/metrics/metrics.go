// Package metrics holds the Prometheus collectors for the extract service.
//
// Each Metrics owns its registry, so tests and multiple servers in one
// process never collide on registration. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "content_extract"

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Run metrics
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	RunsActive     prometheus.Gauge
	Rows           *prometheus.CounterVec
	FieldFallbacks *prometheus.CounterVec
	UploadBytes    prometheus.Histogram
}

// New creates the collectors on a fresh registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Extract runs by mode, profile and outcome",
			},
			[]string{"mode", "profile", "status"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Extract run duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),
		RunsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "runs_active",
				Help:      "Extract runs currently executing",
			},
		),
		Rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Rows read and written by extract runs",
			},
			[]string{"direction"},
		),
		FieldFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "field_fallbacks_total",
				Help:      "Rows where a field had no match and used its fallback",
			},
			[]string{"profile", "field"},
		),
		UploadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_size_bytes",
				Help:      "Size of uploaded files in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RunStarted marks a run as executing. Pair with RunFinished.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsActive.Inc()
}

// RunFinished records the outcome of a run started with RunStarted.
func (m *Metrics) RunFinished(mode, profile, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RunsActive.Dec()
	m.RunsTotal.WithLabelValues(mode, profile, status).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordRows adds row counts and per-field fallback counts for one run.
func (m *Metrics) RecordRows(profile string, rowsIn, rowsOut int, misses map[string]int) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues("in").Add(float64(rowsIn))
	m.Rows.WithLabelValues("out").Add(float64(rowsOut))
	for field, n := range misses {
		m.FieldFallbacks.WithLabelValues(profile, field).Add(float64(n))
	}
}

// ObserveUpload records the size of one uploaded file.
func (m *Metrics) ObserveUpload(size int) {
	if m == nil {
		return
	}
	m.UploadBytes.Observe(float64(size))
}
