// Package metrics holds the Prometheus instruments of the ingest, summary
// and export pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gradesum"

// Metrics groups every instrument the application records.
type Metrics struct {
	FilesIngested     *prometheus.CounterVec
	Batches           *prometheus.CounterVec
	Summaries         *prometheus.CounterVec
	ExportsSerialized prometheus.Counter
	ExportCacheHits   prometheus.Counter
	LiveSessions      prometheus.Gauge
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FilesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_ingested_total",
			Help:      "Uploaded files processed, by outcome.",
		}, []string{"outcome"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Upload batches processed, by result.",
		}, []string{"result"}),
		Summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_computed_total",
			Help:      "Summary tables computed, by drill-down level.",
		}, []string{"level"}),
		ExportsSerialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_serialized_total",
			Help:      "Summary tables serialized to XLSX.",
		}),
		ExportCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_cache_hits_total",
			Help:      "Exports served from the content cache.",
		}),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Sessions currently held in memory.",
		}),
	}

	reg.MustRegister(
		m.FilesIngested,
		m.Batches,
		m.Summaries,
		m.ExportsSerialized,
		m.ExportCacheHits,
		m.LiveSessions,
	)
	return m
}

// FileIngested counts one processed file.
func (m *Metrics) FileIngested(outcome string) {
	if m == nil {
		return
	}
	m.FilesIngested.WithLabelValues(outcome).Inc()
}

// BatchFinished counts one processed upload batch.
func (m *Metrics) BatchFinished(result string) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(result).Inc()
}

// SummaryComputed counts one computed summary table.
func (m *Metrics) SummaryComputed(level string) {
	if m == nil {
		return
	}
	m.Summaries.WithLabelValues(level).Inc()
}

// ExportSerialized counts one XLSX serialization.
func (m *Metrics) ExportSerialized() {
	if m == nil {
		return
	}
	m.ExportsSerialized.Inc()
}

// ExportCacheHit counts one export served from the cache.
func (m *Metrics) ExportCacheHit() {
	if m == nil {
		return
	}
	m.ExportCacheHits.Inc()
}

// SessionOpened increments the live session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.LiveSessions.Inc()
}

// SessionClosed decrements the live session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.LiveSessions.Dec()
}
