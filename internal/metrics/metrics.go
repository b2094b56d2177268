// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Publish outcomes.
const (
	PublishSuccess = "success"
	PublishDropped = "dropped"
	PublishFailed  = "failed"
)

// Consumer outcomes.
const (
	ProcessPersisted    = "persisted"
	ProcessLost         = "lost"
	ProcessDeadLettered = "dead_lettered"
	ProcessFailed       = "failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Redirect metrics
	IncRedirect(found bool)
	ObserveRedirectDuration(duration time.Duration)
	IncCounterIncrementFailed()

	// Link management metrics
	IncLinkCreated()

	// Click pipeline metrics
	IncAnalyticsEventPublished(status string) // PublishSuccess, PublishDropped, PublishFailed
	IncAnalyticsEventProcessed(status string) // ProcessPersisted, ProcessLost, ProcessDeadLettered, ProcessFailed
	SetAnalyticsQueueDepth(depth int64)
	ObserveAnalyticsIngestLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
