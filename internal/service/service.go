// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"

	"github.com/linkpulse/linkpulse/internal/model"
)

// Service errors.
var (
	ErrInvalidURL   = errors.New("invalid URL")
	ErrURLTooLong   = errors.New("URL too long")
	ErrLinkNotFound = errors.New("link not found")
)

// LinkStore is the durable short code directory.
type LinkStore interface {
	CreateLink(ctx context.Context, link *model.Link) error
	GetLinkByShortCode(ctx context.Context, shortCode string) (*model.Link, error)
	ShortCodeExists(ctx context.Context, shortCode string) (bool, error)
}

// ClickCounter is the fast per-code click counter.
type ClickCounter interface {
	InitClicks(ctx context.Context, shortCode string) error
	IncrementClicks(ctx context.Context, shortCode string) (int64, error)
	GetClicks(ctx context.Context, shortCode string) (int64, error)
}

// ClickLogReader reads persisted click log rows.
type ClickLogReader interface {
	CountByShortCode(ctx context.Context, shortCode string) (int64, error)
	ListByShortCode(ctx context.Context, shortCode string, limit int) ([]*model.ClickLogRecord, error)
}

// EventDispatcher hands click events to the event channel.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event model.ClickEvent) error
}
