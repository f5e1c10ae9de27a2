package metrics

import (
	"sync"
	"time"
)

// StageTimings collects per-stage latency for one pass through the scan
// pipeline (validate, decode, upload, persist, fetch, correction). Handlers
// attach the finished breakdown to their logs.
type StageTimings struct {
	mu sync.Mutex

	startedAt time.Time
	open      map[string]time.Time

	TotalLatencyMs float64            `json:"totalLatencyMs"`
	Timings        map[string]float64 `json:"timings"`
	ScanID         string             `json:"scanId,omitempty"`
	ByteSize       int64              `json:"byteSize,omitempty"`
}

// NewStageTimings starts a collection.
func NewStageTimings() *StageTimings {
	return &StageTimings{
		startedAt: time.Now(),
		open:      make(map[string]time.Time),
		Timings:   make(map[string]float64),
	}
}

// Start marks the beginning of a named stage.
func (t *StageTimings) Start(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[stage] = time.Now()
}

// End closes a named stage and records its duration in milliseconds.
func (t *StageTimings) End(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if start, ok := t.open[stage]; ok {
		t.Timings[stage] = float64(time.Since(start).Microseconds()) / 1000.0
		delete(t.open, stage)
	}
}

// Finish closes the overall measurement.
func (t *StageTimings) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TotalLatencyMs = float64(time.Since(t.startedAt).Microseconds()) / 1000.0
}

// Stage runs fn under a started/ended stage and returns its error.
func (t *StageTimings) Stage(stage string, fn func() error) error {
	t.Start(stage)
	defer t.End(stage)
	return fn()
}
