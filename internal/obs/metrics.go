package obs

import (
	"sync/atomic"
	"time"

	"main/internal/model/enum"
)

// Metrics collects lightweight counters and latency stats. All methods
// are safe on a nil receiver so call sites never guard.
type Metrics struct {
	placed  uint64
	won     uint64
	lost    uint64
	errored uint64
	retries uint64

	haltCounts [int(enum.HaltReasonTrailingStop) + 1]uint64

	lifecycleLatency LatencyStats
	quoteLatency     LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Placed  uint64
	Won     uint64
	Lost    uint64
	Errored uint64
	Retries uint64

	HaltCounts map[enum.HaltReason]uint64

	LifecycleLatency LatencySnapshot
	QuoteLatency     LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// CountPlaced records an accepted order.
func (m *Metrics) CountPlaced() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.placed, 1)
}

// CountSettled records a terminal settlement by outcome.
func (m *Metrics) CountSettled(outcome enum.Outcome) {
	if m == nil {
		return
	}
	switch outcome {
	case enum.OutcomeWon:
		atomic.AddUint64(&m.won, 1)
	case enum.OutcomeLost:
		atomic.AddUint64(&m.lost, 1)
	default:
		atomic.AddUint64(&m.errored, 1)
	}
}

// CountErrored records a lifecycle that ended without a known outcome.
func (m *Metrics) CountErrored() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.errored, 1)
}

// CountRetry records one retried quote or placement attempt.
func (m *Metrics) CountRetry() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.retries, 1)
}

// CountHalt records a risk halt by reason.
func (m *Metrics) CountHalt(reason enum.HaltReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.haltCounts) {
		atomic.AddUint64(&m.haltCounts[idx], 1)
	}
}

// ObserveLifecycle measures end-to-end order lifecycle latency.
func (m *Metrics) ObserveLifecycle(d time.Duration) {
	if m == nil {
		return
	}
	m.lifecycleLatency.Observe(d)
}

// ObserveQuote measures quote round-trip latency.
func (m *Metrics) ObserveQuote(d time.Duration) {
	if m == nil {
		return
	}
	m.quoteLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	halts := make(map[enum.HaltReason]uint64)
	for i := range m.haltCounts {
		if v := atomic.LoadUint64(&m.haltCounts[i]); v > 0 {
			halts[enum.HaltReason(i)] = v
		}
	}
	return Snapshot{
		Placed:           atomic.LoadUint64(&m.placed),
		Won:              atomic.LoadUint64(&m.won),
		Lost:             atomic.LoadUint64(&m.lost),
		Errored:          atomic.LoadUint64(&m.errored),
		Retries:          atomic.LoadUint64(&m.retries),
		HaltCounts:       halts,
		LifecycleLatency: m.lifecycleLatency.Snapshot(),
		QuoteLatency:     m.quoteLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
