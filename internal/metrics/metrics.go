// Package metrics holds the small set of atomic counters and gauges
// the scheduler keeps, read through Daemon.SchedulerMetrics. They are
// not part of GetStats and are not logged.
// These are plain atomics, not a Prometheus/OTel integration: an
// exported HTTP surface is out of scope for this control plane.
package metrics

import "sync/atomic"

// SchedulerMetrics tracks the priority-queue scheduler's own
// operation, independent of any individual job.
type SchedulerMetrics struct {
	heapSize        atomic.Int64
	dueThisTick     atomic.Int64
	totalTicks      atomic.Int64
	totalFired      atomic.Int64
	tickDurationSum atomic.Int64 // nanoseconds, for a rolling average
	tickCount       atomic.Int64
	memoryEstimate  atomic.Int64 // bytes, approximate
}

// SetHeapSize records the current number of scheduled entries.
func (m *SchedulerMetrics) SetHeapSize(n int) {
	m.heapSize.Store(int64(n))
	// Rough per-entry estimate; good enough for an operational gauge.
	m.memoryEstimate.Store(int64(n) * entryEstimateBytes)
}

const entryEstimateBytes = 512

// RecordTick folds one scheduler tick's duration and due-count into
// the rolling metrics.
func (m *SchedulerMetrics) RecordTick(dueCount int, firedCount int, durationNanos int64) {
	m.totalTicks.Add(1)
	m.dueThisTick.Store(int64(dueCount))
	m.totalFired.Add(int64(firedCount))
	m.tickDurationSum.Add(durationNanos)
	m.tickCount.Add(1)
}

// Snapshot is a point-in-time read of every metric.
type Snapshot struct {
	HeapSize           int64
	DueLastTick        int64
	TotalTicks         int64
	TotalFired         int64
	AverageTickNanos   int64
	MemoryEstimateByte int64
}

// Snapshot reads every metric without blocking the hot path.
func (m *SchedulerMetrics) Snapshot() Snapshot {
	ticks := m.tickCount.Load()
	var avg int64
	if ticks > 0 {
		avg = m.tickDurationSum.Load() / ticks
	}
	return Snapshot{
		HeapSize:           m.heapSize.Load(),
		DueLastTick:        m.dueThisTick.Load(),
		TotalTicks:         m.totalTicks.Load(),
		TotalFired:         m.totalFired.Load(),
		AverageTickNanos:   avg,
		MemoryEstimateByte: m.memoryEstimate.Load(),
	}
}
