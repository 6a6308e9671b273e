package marketplace

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the marketplace client.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RecordsFetched  prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_api_requests_total",
			Help: "Total HTTP requests issued against the marketplace API.",
		},
		[]string{"operation"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recon_api_request_duration_seconds",
			Help:    "HTTP request latency for marketplace API calls.",
			Buckets: prometheus.DefBuckets,
		},
	)
	recordsFetched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recon_api_records_fetched_total",
			Help: "Total number of stock records fetched from the API.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_api_errors_total",
			Help: "Total number of marketplace API errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, recordsFetched, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RecordsFetched:  recordsFetched,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests counter for an operation label.
func (m *Metrics) IncRequest(operation string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddRecords adds to the fetched records counter.
func (m *Metrics) AddRecords(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsFetched.Add(float64(n))
}

// IncError increments the errors counter for a classification label.
func (m *Metrics) IncError(err error) {
	if m == nil || err == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorTypeLabel(err)).Inc()
}

// Recorder adapts the Prometheus collectors to the generic metrics
// contract used by the pipeline and health packages.
type Recorder struct {
	counters   *prometheus.CounterVec
	histograms *prometheus.HistogramVec
}

// NewRecorder registers two labeled families, one for counters and one
// for histograms, on the given registry.
func NewRecorder(registry *prometheus.Registry) *Recorder {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_events_total",
			Help: "Generic counters emitted by the reconciliation pipeline.",
		},
		[]string{"name"},
	)
	histograms := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recon_observations",
			Help:    "Generic observations emitted by the reconciliation pipeline.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"name"},
	)
	registry.MustRegister(counters, histograms)
	return &Recorder{counters: counters, histograms: histograms}
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	r.counters.WithLabelValues(name).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, _ map[string]string) {
	if r == nil {
		return
	}
	r.histograms.WithLabelValues(name).Observe(value)
}
