package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/linkpulse/linkpulse/internal/metrics"
)

// DefaultReportSchedule is how often the reporter samples the channel.
const DefaultReportSchedule = "@every 30s"

// Reporter periodically samples the channel depth, trims consumed entries
// from channels that need it and logs consumer counters.
type Reporter struct {
	c        *cron.Cron
	channel  Channel
	recorder metrics.Recorder
	snap     metrics.Snapshotter
	logger   *slog.Logger
	schedule string
}

// NewReporter creates a reporter. snap may be nil.
func NewReporter(channel Channel, recorder metrics.Recorder, snap metrics.Snapshotter, logger *slog.Logger, schedule string) *Reporter {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if schedule == "" {
		schedule = DefaultReportSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Reporter{
		c:        cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		channel:  channel,
		recorder: recorder,
		snap:     snap,
		logger:   logger.With("component", "analytics.reporter"),
		schedule: schedule,
	}
}

// Start schedules the report job. The scheduler stops when ctx is done.
func (r *Reporter) Start(ctx context.Context) error {
	if _, err := r.c.AddFunc(r.schedule, func() { r.Report(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", r.schedule, err)
	}
	r.c.Start()
	r.logger.Info("reporter started", "schedule", r.schedule)

	go func() {
		<-ctx.Done()
		<-r.c.Stop().Done()
	}()
	return nil
}

// Report samples the channel once.
func (r *Reporter) Report(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	depth, err := r.channel.Depth(ctx)
	if err != nil {
		r.logger.Warn("failed to read channel depth", "error", err)
		return
	}
	r.recorder.SetAnalyticsQueueDepth(depth)

	if t, ok := r.channel.(Trimmer); ok {
		trimmed, err := t.TrimConsumed(ctx)
		if err != nil {
			r.logger.Warn("failed to trim consumed entries", "error", err)
		} else if trimmed > 0 {
			r.logger.Debug("trimmed consumed entries", "count", trimmed)
		}
	}

	if r.snap == nil {
		r.logger.Info("click pipeline report", "queue_depth", depth)
		return
	}

	s := r.snap.Snapshot()
	r.logger.Info("click pipeline report",
		"queue_depth", depth,
		"persisted", s.AnalyticsEventsPersisted,
		"lost", s.AnalyticsEventsLost,
		"dead_lettered", s.AnalyticsEventsDeadLettered,
		"failed", s.AnalyticsEventsFailed,
	)
}
