package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RedirectsFound          uint64
	RedirectsNotFound       uint64
	RedirectDurationCount   uint64
	RedirectDurationTotalNs int64
	CounterIncrementFailed  uint64
	LinksCreated            uint64

	AnalyticsEventsPublished     uint64
	AnalyticsEventsDropped       uint64
	AnalyticsEventsPublishFailed uint64

	AnalyticsEventsPersisted    uint64
	AnalyticsEventsLost         uint64
	AnalyticsEventsDeadLettered uint64
	AnalyticsEventsFailed       uint64

	AnalyticsQueueDepth       int64
	AnalyticsIngestLagCount   uint64
	AnalyticsIngestLagTotalNs int64
}

// InMemoryRecorder stores metrics in memory.
// It backs the /metrics endpoint and the worker's periodic report.
type InMemoryRecorder struct {
	redirectsFound          uint64
	redirectsNotFound       uint64
	redirectDurationCount   uint64
	redirectDurationTotalNs int64
	counterIncrementFailed  uint64
	linksCreated            uint64

	published     uint64
	dropped       uint64
	publishFailed uint64

	persisted    uint64
	lost         uint64
	deadLettered uint64
	failed       uint64

	queueDepth       int64
	ingestLagCount   uint64
	ingestLagTotalNs int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		RedirectsFound:          atomic.LoadUint64(&m.redirectsFound),
		RedirectsNotFound:       atomic.LoadUint64(&m.redirectsNotFound),
		RedirectDurationCount:   atomic.LoadUint64(&m.redirectDurationCount),
		RedirectDurationTotalNs: atomic.LoadInt64(&m.redirectDurationTotalNs),
		CounterIncrementFailed:  atomic.LoadUint64(&m.counterIncrementFailed),
		LinksCreated:            atomic.LoadUint64(&m.linksCreated),

		AnalyticsEventsPublished:     atomic.LoadUint64(&m.published),
		AnalyticsEventsDropped:       atomic.LoadUint64(&m.dropped),
		AnalyticsEventsPublishFailed: atomic.LoadUint64(&m.publishFailed),

		AnalyticsEventsPersisted:    atomic.LoadUint64(&m.persisted),
		AnalyticsEventsLost:         atomic.LoadUint64(&m.lost),
		AnalyticsEventsDeadLettered: atomic.LoadUint64(&m.deadLettered),
		AnalyticsEventsFailed:       atomic.LoadUint64(&m.failed),

		AnalyticsQueueDepth:       atomic.LoadInt64(&m.queueDepth),
		AnalyticsIngestLagCount:   atomic.LoadUint64(&m.ingestLagCount),
		AnalyticsIngestLagTotalNs: atomic.LoadInt64(&m.ingestLagTotalNs),
	}
}

// IncRedirect counts a redirect lookup by outcome.
func (m *InMemoryRecorder) IncRedirect(found bool) {
	if found {
		atomic.AddUint64(&m.redirectsFound, 1)
		return
	}
	atomic.AddUint64(&m.redirectsNotFound, 1)
}

// ObserveRedirectDuration records redirect duration.
func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {
	atomic.AddUint64(&m.redirectDurationCount, 1)
	atomic.AddInt64(&m.redirectDurationTotalNs, duration.Nanoseconds())
}

// IncCounterIncrementFailed counts counter cache write failures.
func (m *InMemoryRecorder) IncCounterIncrementFailed() {
	atomic.AddUint64(&m.counterIncrementFailed, 1)
}

// IncLinkCreated increments link created counter.
func (m *InMemoryRecorder) IncLinkCreated() {
	atomic.AddUint64(&m.linksCreated, 1)
}

// IncAnalyticsEventPublished counts publish attempts by outcome.
func (m *InMemoryRecorder) IncAnalyticsEventPublished(status string) {
	switch status {
	case PublishSuccess:
		atomic.AddUint64(&m.published, 1)
	case PublishDropped:
		atomic.AddUint64(&m.dropped, 1)
	case PublishFailed:
		atomic.AddUint64(&m.publishFailed, 1)
	}
}

// IncAnalyticsEventProcessed counts consumed events by outcome.
func (m *InMemoryRecorder) IncAnalyticsEventProcessed(status string) {
	switch status {
	case ProcessPersisted:
		atomic.AddUint64(&m.persisted, 1)
	case ProcessLost:
		atomic.AddUint64(&m.lost, 1)
	case ProcessDeadLettered:
		atomic.AddUint64(&m.deadLettered, 1)
	case ProcessFailed:
		atomic.AddUint64(&m.failed, 1)
	}
}

// SetAnalyticsQueueDepth stores the last observed channel depth.
func (m *InMemoryRecorder) SetAnalyticsQueueDepth(depth int64) {
	atomic.StoreInt64(&m.queueDepth, depth)
}

// ObserveAnalyticsIngestLag records the delay between a click and its log row.
func (m *InMemoryRecorder) ObserveAnalyticsIngestLag(lag time.Duration) {
	atomic.AddUint64(&m.ingestLagCount, 1)
	atomic.AddInt64(&m.ingestLagTotalNs, lag.Nanoseconds())
}
