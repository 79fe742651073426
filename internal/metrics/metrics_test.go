package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.FileIngested("accepted")
	m.FileIngested("accepted")
	m.FileIngested("skipped")
	m.BatchFinished("ready")
	m.SummaryComputed("course")
	m.ExportSerialized()
	m.ExportCacheHit()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesIngested.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesIngested.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Summaries.WithLabelValues("course")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsSerialized))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveSessions))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FileIngested("accepted")
		m.BatchFinished("failed")
		m.SummaryComputed("cohort")
		m.ExportSerialized()
		m.ExportCacheHit()
		m.SessionOpened()
		m.SessionClosed()
	})
}
