package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid/v2"

	"github.com/linkpulse/linkpulse/internal/cache"
	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/model"
	"github.com/linkpulse/linkpulse/internal/repository"
)

const (
	maxURLLength         = 2048
	shortCodeLength      = 6
	shortCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxShortCodeAttempts = 5
)

// LinkService handles link creation and stats.
type LinkService struct {
	links   LinkStore
	counter ClickCounter
	clicks  ClickLogReader
	logger  *slog.Logger
	metrics metrics.Recorder

	generateCode func() (string, error)
}

// NewLinkService creates a new LinkService.
func NewLinkService(links LinkStore, counter ClickCounter, clicks ClickLogReader, logger *slog.Logger, recorder metrics.Recorder) *LinkService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &LinkService{
		links:        links,
		counter:      counter,
		clicks:       clicks,
		logger:       logger.With("component", "service.link"),
		metrics:      recorder,
		generateCode: generateShortCode,
	}
}

// Shorten creates a link for rawURL and initializes its counter to zero.
func (s *LinkService) Shorten(ctx context.Context, rawURL string) (*model.Link, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxShortCodeAttempts; attempt++ {
		code, err := s.uniqueShortCode(ctx)
		if err != nil {
			return nil, err
		}

		link := &model.Link{
			ID:          ulid.Make().String(),
			ShortCode:   code,
			OriginalURL: rawURL,
			CreatedAt:   time.Now().UTC(),
		}

		if err := s.links.CreateLink(ctx, link); err != nil {
			// Lost a race with a concurrent insert of the same code.
			if errors.Is(err, repository.ErrShortCodeExists) {
				continue
			}
			return nil, fmt.Errorf("failed to create link: %w", err)
		}

		if err := s.counter.InitClicks(ctx, code); err != nil {
			// Stats read an unset counter as zero, so the link stays usable.
			s.logger.Warn("failed to init click counter",
				"short_code", code,
				"error", err,
			)
		}

		s.metrics.IncLinkCreated()
		return link, nil
	}

	return nil, fmt.Errorf("failed to generate a unique short code after %d attempts", maxShortCodeAttempts)
}

// Stats returns the destination and counter value for a short code.
func (s *LinkService) Stats(ctx context.Context, shortCode string) (*model.LinkStats, error) {
	link, err := s.lookup(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	clicks, err := s.counterValue(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	return &model.LinkStats{
		OriginalURL: link.OriginalURL,
		Clicks:      clicks,
	}, nil
}

// Audit compares the counter with the number of click log rows.
func (s *LinkService) Audit(ctx context.Context, shortCode string) (*model.LinkAudit, error) {
	if _, err := s.lookup(ctx, shortCode); err != nil {
		return nil, err
	}

	counted, err := s.counterValue(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	logged, err := s.clicks.CountByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("failed to count click log: %w", err)
	}

	return model.NewLinkAudit(shortCode, counted, logged), nil
}

// RecentClicks returns the newest click log rows for a short code.
func (s *LinkService) RecentClicks(ctx context.Context, shortCode string, limit int) ([]*model.ClickLogRecord, error) {
	if _, err := s.lookup(ctx, shortCode); err != nil {
		return nil, err
	}

	records, err := s.clicks.ListByShortCode(ctx, shortCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list click log: %w", err)
	}
	return records, nil
}

func (s *LinkService) lookup(ctx context.Context, shortCode string) (*model.Link, error) {
	link, err := s.links.GetLinkByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// counterValue reads the counter, treating an unset counter as zero.
func (s *LinkService) counterValue(ctx context.Context, shortCode string) (int64, error) {
	clicks, err := s.counter.GetClicks(ctx, shortCode)
	if err != nil {
		if errors.Is(err, cache.ErrCounterUnset) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read click counter: %w", err)
	}
	return clicks, nil
}

// uniqueShortCode generates a code not yet present in the directory.
func (s *LinkService) uniqueShortCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxShortCodeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}
		exists, err := s.links.ShortCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique short code after %d attempts", maxShortCodeAttempts)
}

// validateURL accepts absolute http(s) URLs only.
func validateURL(rawURL string) error {
	if len(rawURL) > maxURLLength {
		return ErrURLTooLong
	}

	if err := validation.Validate(rawURL,
		validation.Required,
		is.URL,
	); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil || parsed.Host == "" {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}

	return nil
}

func generateShortCode() (string, error) {
	return gonanoid.Generate(shortCodeAlphabet, shortCodeLength)
}
