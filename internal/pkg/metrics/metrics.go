// Package metrics holds the Prometheus collectors exported by labtrack.
//
// Every recorder is nil-safe so packages can be constructed without a
// registry in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "labtrack"

// Metrics groups the service collectors.
type Metrics struct {
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	storeFailures     *prometheus.CounterVec
	uploads           *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
}

// New registers the collectors on the provided registerer.
// A nil registerer yields a no-op Metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_failures_total",
			Help:      "Failed record store writes by collection.",
		}, []string{"collection"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_uploads_total",
			Help:      "Attachment uploads by result.",
		}, []string{"result"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "equipment_status_transitions_total",
			Help:      "Derived equipment status changes.",
		}, []string{"from", "to"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "status_sweep_duration_seconds",
			Help:      "Duration of the periodic status refresh.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.storeFailures,
		m.uploads, m.statusTransitions, m.sweepDuration)
	return m
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncStoreFailure counts a failed write of the named collection.
func (m *Metrics) IncStoreFailure(collection string) {
	if m == nil || m.storeFailures == nil {
		return
	}
	m.storeFailures.WithLabelValues(normalizeLabel(collection)).Inc()
}

// Upload results.
const (
	UploadStored   = "stored"
	UploadRejected = "rejected"
)

// IncUpload counts an attachment by result.
func (m *Metrics) IncUpload(result string) {
	if m == nil || m.uploads == nil {
		return
	}
	m.uploads.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncStatusTransition counts a derived status change.
func (m *Metrics) IncStatusTransition(from, to string) {
	if m == nil || m.statusTransitions == nil {
		return
	}
	m.statusTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveSweep records how long a status sweep took.
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil || m.sweepDuration == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
