package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the scan pipeline.
type Metrics struct {
	scansUploaded     *prometheus.CounterVec
	uploadsRejected   *prometheus.CounterVec
	decodeFailures    prometheus.Counter
	slotLoads         *prometheus.CounterVec
	slotLoadLatency   prometheus.Histogram
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	corrections       *prometheus.CounterVec
	correctionLatency prometheus.Histogram
	landmarksPlaced   prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		scansUploaded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scans_uploaded_total",
				Help: "Total number of scans ingested, by type",
			},
			[]string{"type"},
		),
		uploadsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_uploads_rejected_total",
				Help: "Uploads rejected before any I/O, by reason",
			},
			[]string{"reason"},
		),
		decodeFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mesh_decode_failures_total",
				Help: "Byte streams that failed to decode as a mesh",
			},
		),
		slotLoads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viewer_slot_loads_total",
				Help: "Viewer slot load outcomes, by type and terminal state",
			},
			[]string{"type", "state"},
		),
		slotLoadLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "viewer_slot_load_latency_ms",
				Help:    "Latency of viewer slot fetch+decode in milliseconds",
				Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mesh_cache_hits_total",
				Help: "Mesh byte cache hits, by layer",
			},
			[]string{"layer"},
		),
		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mesh_cache_misses_total",
				Help: "Mesh byte cache misses, by layer",
			},
			[]string{"layer"},
		),
		corrections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mesh_corrections_total",
				Help: "Correction dispatch outcomes",
			},
			[]string{"outcome"},
		),
		correctionLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mesh_correction_latency_ms",
				Help:    "Latency of external correction round trips in milliseconds",
				Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
			},
		),
		landmarksPlaced: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "landmarks_placed_total",
				Help: "Landmarks placed across viewer sessions",
			},
		),
	}
}

func (m *Metrics) ScanUploaded(scanType string) { m.scansUploaded.WithLabelValues(scanType).Inc() }
func (m *Metrics) UploadRejected(reason string) { m.uploadsRejected.WithLabelValues(reason).Inc() }
func (m *Metrics) DecodeFailure()               { m.decodeFailures.Inc() }
func (m *Metrics) SlotLoad(scanType, state string) {
	m.slotLoads.WithLabelValues(scanType, state).Inc()
}
func (m *Metrics) ObserveSlotLoad(ms float64)   { m.slotLoadLatency.Observe(ms) }
func (m *Metrics) CacheHit(layer string)        { m.cacheHits.WithLabelValues(layer).Inc() }
func (m *Metrics) CacheMiss(layer string)       { m.cacheMisses.WithLabelValues(layer).Inc() }
func (m *Metrics) Correction(outcome string)    { m.corrections.WithLabelValues(outcome).Inc() }
func (m *Metrics) ObserveCorrection(ms float64) { m.correctionLatency.Observe(ms) }
func (m *Metrics) LandmarkPlaced()              { m.landmarksPlaced.Inc() }
