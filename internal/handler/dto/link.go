// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/linkpulse/linkpulse/internal/model"
)

// ShortenRequest represents the request body for POST /shorten.
type ShortenRequest struct {
	URL string `json:"url"`
}

// ShortenResponse is returned for a newly created link.
type ShortenResponse struct {
	ShortCode    string `json:"short_code"`
	FullShortURL string `json:"full_short_url"`
}

// StatsResponse is the counter-backed stats view of a link.
type StatsResponse struct {
	OriginalURL string `json:"original_url"`
	Clicks      int64  `json:"clicks"`
}

// AuditResponse compares the counter with the click log.
type AuditResponse struct {
	ShortCode     string `json:"short_code"`
	CounterClicks int64  `json:"counter_clicks"`
	LoggedClicks  int64  `json:"logged_clicks"`
	Drift         int64  `json:"drift"`
	InSync        bool   `json:"in_sync"`
}

// ClickResponse is one click log row.
type ClickResponse struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent"`
}

// ClickListResponse lists recent click log rows for a link.
type ClickListResponse struct {
	ShortCode string          `json:"short_code"`
	Data      []ClickResponse `json:"data"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ToShortenResponse converts a link to its shorten response.
func ToShortenResponse(link *model.Link, baseURL string) ShortenResponse {
	return ShortenResponse{
		ShortCode:    link.ShortCode,
		FullShortURL: link.ShortURL(baseURL),
	}
}

// ToStatsResponse converts link stats to a response.
func ToStatsResponse(stats *model.LinkStats) StatsResponse {
	return StatsResponse{
		OriginalURL: stats.OriginalURL,
		Clicks:      stats.Clicks,
	}
}

// ToAuditResponse converts an audit to a response.
func ToAuditResponse(audit *model.LinkAudit) AuditResponse {
	return AuditResponse{
		ShortCode:     audit.ShortCode,
		CounterClicks: audit.CounterClicks,
		LoggedClicks:  audit.LoggedClicks,
		Drift:         audit.Drift,
		InSync:        audit.InSync(),
	}
}

// ToClickListResponse converts click log rows to a response.
func ToClickListResponse(shortCode string, records []*model.ClickLogRecord) ClickListResponse {
	data := make([]ClickResponse, 0, len(records))
	for _, rec := range records {
		data = append(data, ClickResponse{
			ID:        rec.ID,
			Timestamp: rec.Timestamp,
			UserAgent: rec.UserAgent,
		})
	}
	return ClickListResponse{ShortCode: shortCode, Data: data}
}
