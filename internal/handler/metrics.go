package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/linkpulse/linkpulse/internal/metrics"
)

// QueueDepther reports how many items wait in an in-process queue.
type QueueDepther interface {
	Depth() int
}

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter   metrics.Snapshotter
	publishBuffer QueueDepther
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// WithPublishBuffer adds a gauge for click events waiting to be published.
func (h *MetricsHandler) WithPublishBuffer(buffer QueueDepther) *MetricsHandler {
	h.publishBuffer = buffer
	return h
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "linkpulse_redirects_total{result=\"found\"} %d\n", snap.RedirectsFound)
	writeMetric(w, "linkpulse_redirects_total{result=\"not_found\"} %d\n", snap.RedirectsNotFound)
	writeMetric(w, "linkpulse_redirect_duration_seconds_count %d\n", snap.RedirectDurationCount)
	writeMetric(w, "linkpulse_redirect_duration_seconds_sum %.6f\n", float64(snap.RedirectDurationTotalNs)/1e9)
	writeMetric(w, "linkpulse_counter_increment_failures_total %d\n", snap.CounterIncrementFailed)

	writeMetric(w, "linkpulse_links_created_total %d\n", snap.LinksCreated)

	writeMetric(w, "linkpulse_click_events_published_total{status=\"success\"} %d\n", snap.AnalyticsEventsPublished)
	writeMetric(w, "linkpulse_click_events_published_total{status=\"dropped\"} %d\n", snap.AnalyticsEventsDropped)
	writeMetric(w, "linkpulse_click_events_published_total{status=\"failed\"} %d\n", snap.AnalyticsEventsPublishFailed)
	if h.publishBuffer != nil {
		writeMetric(w, "linkpulse_click_publish_buffer_depth %d\n", h.publishBuffer.Depth())
	}

	writeMetric(w, "linkpulse_click_events_processed_total{status=\"persisted\"} %d\n", snap.AnalyticsEventsPersisted)
	writeMetric(w, "linkpulse_click_events_processed_total{status=\"lost\"} %d\n", snap.AnalyticsEventsLost)
	writeMetric(w, "linkpulse_click_events_processed_total{status=\"dead_lettered\"} %d\n", snap.AnalyticsEventsDeadLettered)
	writeMetric(w, "linkpulse_click_events_processed_total{status=\"failed\"} %d\n", snap.AnalyticsEventsFailed)

	writeMetric(w, "linkpulse_click_queue_depth %d\n", snap.AnalyticsQueueDepth)
	writeMetric(w, "linkpulse_click_ingest_lag_seconds_count %d\n", snap.AnalyticsIngestLagCount)
	writeMetric(w, "linkpulse_click_ingest_lag_seconds_sum %.6f\n", float64(snap.AnalyticsIngestLagTotalNs)/1e9)
}

func writeMetric(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
