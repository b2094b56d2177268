package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/linkpulse/linkpulse/internal/analytics"
	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/model"
	"github.com/linkpulse/linkpulse/internal/repository"
)

// RedirectService resolves short codes on the hot path.
//
// A successful resolution increments the counter and dispatches one
// click event. Neither side effect can fail the redirect unless the
// dispatcher runs in strict mode and reports ErrChannelUnavailable.
type RedirectService struct {
	links   LinkStore
	counter ClickCounter
	events  EventDispatcher
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewRedirectService creates a new RedirectService.
func NewRedirectService(links LinkStore, counter ClickCounter, events EventDispatcher, logger *slog.Logger, recorder metrics.Recorder) *RedirectService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RedirectService{
		links:   links,
		counter: counter,
		events:  events,
		logger:  logger.With("component", "service.redirect"),
		metrics: recorder,
		now:     time.Now,
	}
}

// Resolve returns the destination for shortCode.
// Unknown codes return ErrLinkNotFound with no side effects.
func (s *RedirectService) Resolve(ctx context.Context, shortCode, userAgent string) (string, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	link, err := s.links.GetLinkByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			s.metrics.IncRedirect(false)
			return "", ErrLinkNotFound
		}
		return "", fmt.Errorf("failed to resolve short code: %w", err)
	}
	s.metrics.IncRedirect(true)

	if _, err := s.counter.IncrementClicks(ctx, shortCode); err != nil {
		s.logger.Warn("failed to increment click counter",
			"short_code", shortCode,
			"error", err,
		)
		s.metrics.IncCounterIncrementFailed()
	}

	event := model.ClickEvent{
		ShortCode:  shortCode,
		UserAgent:  analytics.TruncateUserAgent(lo.CoalesceOrEmpty(userAgent, model.UnknownUserAgent)),
		ObservedAt: s.now().UTC(),
	}
	if err := s.events.Dispatch(ctx, event); err != nil {
		if errors.Is(err, analytics.ErrChannelUnavailable) {
			return "", err
		}
		s.logger.Warn("click event not dispatched",
			"short_code", shortCode,
			"error", err,
		)
	}

	return link.OriginalURL, nil
}
