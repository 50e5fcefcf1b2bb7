package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHTTP("GET", "/api/equipment", 200, 15*time.Millisecond)
	m.ObserveHTTP("GET", "/api/equipment", 200, 5*time.Millisecond)
	m.IncStoreFailure("equipment")
	m.IncUpload(UploadStored)
	m.IncUpload(UploadRejected)
	m.IncUpload(UploadRejected)
	m.IncStatusTransition("Operational", "Maintenance Due")
	m.ObserveSweep(time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/equipment", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeFailures.WithLabelValues("equipment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues(UploadStored)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploads.WithLabelValues(UploadRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusTransitions.WithLabelValues("Operational", "Maintenance Due")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["labtrack_http_request_duration_seconds"])
	assert.True(t, names["labtrack_status_sweep_duration_seconds"])
}

func TestMetricsEmptyLabelIsUnknown(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveHTTP("GET", "", 404, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unknown", "404")))
}

func TestMetricsNilSafe(t *testing.T) {
	var nilMetrics *Metrics
	noop := New(nil)

	for _, m := range []*Metrics{nilMetrics, noop} {
		assert.NotPanics(t, func() {
			m.ObserveHTTP("GET", "/", 200, time.Millisecond)
			m.IncStoreFailure("equipment")
			m.IncUpload(UploadStored)
			m.IncStatusTransition("a", "b")
			m.ObserveSweep(time.Second)
		})
	}
}
