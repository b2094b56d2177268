package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linkpulse/linkpulse/internal/handler/dto"
	"github.com/linkpulse/linkpulse/internal/model"
	"github.com/linkpulse/linkpulse/internal/service"
)

const (
	defaultClicksLimit = 20
	maxClicksLimit     = 100
)

// LinkService is the link management surface used by LinkHandler.
type LinkService interface {
	Shorten(ctx context.Context, rawURL string) (*model.Link, error)
	Stats(ctx context.Context, shortCode string) (*model.LinkStats, error)
	Audit(ctx context.Context, shortCode string) (*model.LinkAudit, error)
	RecentClicks(ctx context.Context, shortCode string, limit int) ([]*model.ClickLogRecord, error)
}

// LinkHandler handles HTTP requests for link operations.
type LinkHandler struct {
	svc     LinkService
	baseURL string
	logger  *slog.Logger
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(svc LinkService, baseURL string, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{
		svc:     svc,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Shorten handles POST /shorten.
func (h *LinkHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req dto.ShortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "URL required"})
		return
	}

	link, err := h.svc.Shorten(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) || errors.Is(err, service.ErrURLTooLong) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "URL required"})
			return
		}
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("link_created",
		"link_id", link.ID,
		"short_code", link.ShortCode,
	)

	writeJSON(w, http.StatusOK, dto.ToShortenResponse(link, h.baseURL))
}

// Stats handles GET /stats/{shortCode}.
func (h *LinkHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), chi.URLParam(r, "shortCode"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToStatsResponse(stats))
}

// Audit handles GET /stats/{shortCode}/audit.
func (h *LinkHandler) Audit(w http.ResponseWriter, r *http.Request) {
	audit, err := h.svc.Audit(r.Context(), chi.URLParam(r, "shortCode"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToAuditResponse(audit))
}

// Clicks handles GET /stats/{shortCode}/clicks.
func (h *LinkHandler) Clicks(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	limit := defaultClicksLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = min(parsed, maxClicksLimit)
		}
	}

	records, err := h.svc.RecentClicks(r.Context(), shortCode, limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToClickListResponse(shortCode, records))
}

// handleServiceError maps service errors to HTTP responses.
func (h *LinkHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
	default:
		h.logger.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
	}
}
