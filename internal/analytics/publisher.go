package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/model"
)

const (
	// DefaultPublishTimeout is the max time to wait for one publish.
	DefaultPublishTimeout = 500 * time.Millisecond

	// DefaultBufferSize is the number of events queued ahead of the sender.
	DefaultBufferSize = 1024
)

// ErrPublisherClosed is returned by Dispatch after Shutdown.
var ErrPublisherClosed = errors.New("publisher closed")

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	PublishTimeout time.Duration
	BufferSize     int
	// FailOpen drops events the channel cannot take instead of
	// reporting them to the caller.
	FailOpen bool
}

// Publisher sends click events from the redirect path to the channel.
//
// In fail-open mode Dispatch only enqueues: a single sender goroutine
// drains the queue in order, so events from one process keep their
// order on the channel. A full queue or a failed send drops the event
// with a warning. In strict mode Dispatch publishes synchronously and
// returns ErrChannelUnavailable to the caller.
type Publisher struct {
	channel Channel
	logger  *slog.Logger
	metrics metrics.Recorder

	publishTimeout time.Duration
	failOpen       bool

	queue chan model.ClickEvent
	done  chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewPublisher creates a new click event publisher.
func NewPublisher(channel Channel, logger *slog.Logger, recorder metrics.Recorder, opts PublisherOptions) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &Publisher{
		channel:        channel,
		logger:         logger.With("component", "analytics.publisher"),
		metrics:        recorder,
		publishTimeout: opts.PublishTimeout,
		failOpen:       opts.FailOpen,
		queue:          make(chan model.ClickEvent, opts.BufferSize),
		done:           make(chan struct{}),
	}
}

// Start launches the sender goroutine. It is a no-op in strict mode.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}
	p.started = true

	if !p.failOpen {
		close(p.done)
		return
	}
	go p.run()
}

// Publish encodes and sends one event synchronously under the publish timeout.
// The timeout is not derived from ctx's deadline alone: the event is
// still sent if the request that produced it has already finished.
func (p *Publisher) Publish(ctx context.Context, event model.ClickEvent) error {
	body, err := EncodeClickEvent(event)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.publishTimeout)
	defer cancel()

	if err := p.channel.Publish(sendCtx, body); err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	return nil
}

// Dispatch hands an event off without blocking the redirect path.
// In fail-open mode it never returns a channel error.
func (p *Publisher) Dispatch(ctx context.Context, event model.ClickEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}

	if !p.failOpen {
		if err := p.Publish(ctx, event); err != nil {
			p.metrics.IncAnalyticsEventPublished(metrics.PublishFailed)
			return err
		}
		p.metrics.IncAnalyticsEventPublished(metrics.PublishSuccess)
		return nil
	}

	select {
	case p.queue <- event:
	default:
		p.logger.Warn("click event queue full, dropping event",
			"short_code", event.ShortCode,
		)
		p.metrics.IncAnalyticsEventPublished(metrics.PublishDropped)
	}
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)

	for event := range p.queue {
		p.send(event)
	}
}

func (p *Publisher) send(event model.ClickEvent) {
	if err := p.Publish(context.Background(), event); err != nil {
		p.logger.Warn("failed to publish click event",
			"short_code", event.ShortCode,
			"error", err,
		)
		p.metrics.IncAnalyticsEventPublished(metrics.PublishDropped)
		return
	}

	p.logger.Debug("click event published", "short_code", event.ShortCode)
	p.metrics.IncAnalyticsEventPublished(metrics.PublishSuccess)
}

// Shutdown stops accepting events and waits for queued ones to be sent.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (p *Publisher) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	close(p.queue)
	p.mu.Unlock()

	if !started {
		return nil
	}

	p.logger.Info("draining click event queue", "queued", len(p.queue))

	select {
	case <-p.done:
		p.logger.Info("click event queue drained")
		return nil
	case <-ctx.Done():
		p.logger.Warn("click event queue drain timed out", "remaining", len(p.queue))
		return ctx.Err()
	}
}

// Depth returns the number of events waiting for the sender.
func (p *Publisher) Depth() int {
	return len(p.queue)
}
