package orchestrator

import "sync/atomic"

// Metrics accumulates counters over one run, grounded on the teacher's
// api_scheduler.go APISchedulerMetrics atomic-counter discipline.
type Metrics struct {
	cycles      int64
	completions int64
	failures    int64
	skips       int64
	iterations  int64
}

// NewMetrics returns a zeroed Metrics.
func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) recordCycle(n int)     { atomic.StoreInt64(&m.cycles, int64(n)) }
func (m *Metrics) recordCompletion()     { atomic.AddInt64(&m.completions, 1) }
func (m *Metrics) recordFailure()        { atomic.AddInt64(&m.failures, 1) }
func (m *Metrics) recordSkip()           { atomic.AddInt64(&m.skips, 1) }
func (m *Metrics) recordIteration()      { atomic.AddInt64(&m.iterations, 1) }

// MetricsSnapshot is a point-in-time, race-free read of Metrics.
type MetricsSnapshot struct {
	Cycles      int
	Completions int
	Failures    int
	Skips       int
	Iterations  int
}

// Snapshot reads every counter atomically.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Cycles:      int(atomic.LoadInt64(&m.cycles)),
		Completions: int(atomic.LoadInt64(&m.completions)),
		Failures:    int(atomic.LoadInt64(&m.failures)),
		Skips:       int(atomic.LoadInt64(&m.skips)),
		Iterations:  int(atomic.LoadInt64(&m.iterations)),
	}
}
