package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linkpulse/linkpulse/internal/analytics"
	"github.com/linkpulse/linkpulse/internal/service"
)

// Resolver resolves a short code to its destination.
type Resolver interface {
	Resolve(ctx context.Context, shortCode, userAgent string) (string, error)
}

// RedirectHandler handles redirect requests.
type RedirectHandler struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(resolver Resolver, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// Redirect handles GET /{shortCode} for URL redirection.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	start := time.Now()

	destination, err := h.resolver.Resolve(r.Context(), shortCode, r.UserAgent())
	duration := time.Since(start)

	if err != nil {
		h.handleRedirectError(w, shortCode, err, duration)
		return
	}

	h.logger.Info("redirect_success",
		"short_code", shortCode,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, destination, http.StatusFound)
}

// handleRedirectError handles errors during redirect resolution.
func (h *RedirectHandler) handleRedirectError(w http.ResponseWriter, shortCode string, err error, duration time.Duration) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		h.logger.Info("redirect_not_found",
			"short_code", shortCode,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		writeText(w, http.StatusNotFound, "URL not found")

	case errors.Is(err, analytics.ErrChannelUnavailable):
		h.logger.Error("redirect_channel_unavailable",
			"short_code", shortCode,
			"error", err,
		)
		writeText(w, http.StatusServiceUnavailable, "Service unavailable")

	default:
		h.logger.Error("redirect_error",
			"short_code", shortCode,
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		writeText(w, http.StatusInternalServerError, "Internal server error")
	}
}
