// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// Link maps a short code to its destination. Links are immutable once created.
type Link struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// ShortURL returns the public URL for the link under baseURL.
func (l *Link) ShortURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + l.ShortCode
}

// LinkStats is the stats view of a link.
// Clicks comes from the counter cache, not from the click log.
type LinkStats struct {
	OriginalURL string `json:"original_url"`
	Clicks      int64  `json:"clicks"`
}

// LinkAudit compares the two independently updated click views of a link.
type LinkAudit struct {
	ShortCode     string `json:"short_code"`
	CounterClicks int64  `json:"counter_clicks"`
	LoggedClicks  int64  `json:"logged_clicks"`
	// Drift is CounterClicks - LoggedClicks. Positive drift means the log
	// lost or has not yet received events; negative drift means duplicates
	// were logged or the counter was reset.
	Drift int64 `json:"drift"`
}

// NewLinkAudit builds an audit and computes its drift.
func NewLinkAudit(shortCode string, counterClicks, loggedClicks int64) *LinkAudit {
	return &LinkAudit{
		ShortCode:     shortCode,
		CounterClicks: counterClicks,
		LoggedClicks:  loggedClicks,
		Drift:         counterClicks - loggedClicks,
	}
}

// InSync reports whether both views agree.
func (a *LinkAudit) InSync() bool {
	return a.Drift == 0
}
