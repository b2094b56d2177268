package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/model"
)

const (
	// DefaultRetryDelay is how long the consumer backs off after a failed iteration.
	DefaultRetryDelay = 1 * time.Second

	// DefaultPersistTimeout bounds the write, dead-letter and ack of one
	// received message. Shutdown does not cut it short.
	DefaultPersistTimeout = 5 * time.Second
)

// ClickLogWriter appends rows to the click log.
type ClickLogWriter interface {
	Append(ctx context.Context, rec *model.ClickLogRecord) error
}

// Consumer drains the channel into the click log, one message at a time.
type Consumer struct {
	channel    Channel
	repo       ClickLogWriter
	logger     *slog.Logger
	metrics    metrics.Recorder
	retryDelay time.Duration
	persistTTL time.Duration
	now        func() time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewConsumer creates a new click log consumer.
func NewConsumer(channel Channel, repo ClickLogWriter, logger *slog.Logger, recorder metrics.Recorder) *Consumer {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Consumer{
		channel:    channel,
		repo:       repo,
		logger:     logger.With("component", "analytics.consumer", "ack_mode", channel.AckMode().String()),
		metrics:    recorder,
		retryDelay: DefaultRetryDelay,
		persistTTL: DefaultPersistTimeout,
		now:        time.Now,
	}
}

// SetRetryDelay overrides the base back-off after a failed iteration.
func (c *Consumer) SetRetryDelay(d time.Duration) {
	if d > 0 {
		c.retryDelay = d
	}
}

// SetPersistTimeout overrides the deadline for handling one received message.
func (c *Consumer) SetPersistTimeout(d time.Duration) {
	if d > 0 {
		c.persistTTL = d
	}
}

// Run starts the consumer loop. Blocks until context is cancelled or Shutdown is called.
func (c *Consumer) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("consumer already started")
	}
	c.started = true
	c.done = make(chan struct{})
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	defer close(c.done)

	c.logger.Info("click log consumer started")

	var failures int
	for {
		c.mu.Lock()
		draining := c.draining
		c.mu.Unlock()

		if draining {
			c.logger.Info("click log consumer draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			c.logger.Info("click log consumer stopping")
			return nil
		default:
		}

		err := c.processOnce(ctx)
		if err == nil {
			failures = 0
			continue
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}

		failures++
		delay := NextRetryDelay(c.retryDelay, failures)
		c.logger.Error("process error", "error", err, "failures", failures, "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Shutdown gracefully stops the consumer, finishing the in-flight message.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (c *Consumer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.draining = true
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	c.logger.Info("click log consumer shutdown initiated")

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		c.logger.Info("click log consumer shutdown complete")
		return nil
	case <-ctx.Done():
		c.logger.Warn("click log consumer shutdown timed out")
		return ctx.Err()
	}
}

// processOnce receives at most one message and persists it. Only the
// receive observes ctx cancellation; once a message is in hand it is
// written and acknowledged under its own deadline.
func (c *Consumer) processOnce(ctx context.Context) error {
	d, err := c.channel.Receive(ctx)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.persistTTL)
	defer cancel()

	event, err := DecodeClickEvent(d.Body)
	if err != nil {
		c.deadLetter(ctx, d, err)
		return c.ack(ctx, d)
	}

	rec := event.ToRecord(newRecordID())
	if err := c.repo.Append(ctx, rec); err != nil {
		if c.channel.AckMode() == AckOnReceipt {
			// The broker already forgot this message.
			c.logger.Error("click event lost",
				"message_id", d.ID,
				"short_code", event.ShortCode,
				"error", err,
			)
			c.metrics.IncAnalyticsEventProcessed(metrics.ProcessLost)
			return nil
		}

		c.metrics.IncAnalyticsEventProcessed(metrics.ProcessFailed)
		return fmt.Errorf("persist message %s: %w", d.ID, err)
	}

	c.logger.Debug("click event persisted",
		"message_id", d.ID,
		"short_code", rec.ShortCode,
		"record_id", rec.ID,
	)
	c.metrics.IncAnalyticsEventProcessed(metrics.ProcessPersisted)
	c.metrics.ObserveAnalyticsIngestLag(c.now().Sub(event.ObservedAt))

	return c.ack(ctx, d)
}

// deadLetter moves a poison message aside. The caller still acknowledges it.
func (c *Consumer) deadLetter(ctx context.Context, d *Delivery, cause error) {
	c.logger.Warn("dead-lettering malformed message",
		"message_id", d.ID,
		"error", cause,
	)

	if err := c.channel.DeadLetter(ctx, d, cause.Error()); err != nil {
		c.logger.Error("failed to write to dead-letter queue",
			"message_id", d.ID,
			"error", err,
		)
	}

	c.metrics.IncAnalyticsEventProcessed(metrics.ProcessDeadLettered)
}

func (c *Consumer) ack(ctx context.Context, d *Delivery) error {
	if err := d.Ack(ctx); err != nil {
		// The row is committed; redelivery will write a duplicate.
		c.logger.Warn("failed to acknowledge message",
			"message_id", d.ID,
			"error", err,
		)
	}
	return nil
}

// newRecordID returns a time-ordered UUID for a click log row.
func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
