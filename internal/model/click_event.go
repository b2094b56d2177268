// Package model defines domain entities for the application.
package model

import "time"

// UnknownUserAgent is recorded when a request carries no User-Agent header.
const UnknownUserAgent = "unknown"

// ClickEvent is the transient record of one successful redirect.
// It travels over the event channel and has no identity beyond its payload.
type ClickEvent struct {
	ShortCode  string    `json:"short_code"`
	UserAgent  string    `json:"user_agent"`
	ObservedAt time.Time `json:"observed_at"`
}

// ClickLogRecord is a durable, append-only row in the click log.
type ClickLogRecord struct {
	ID        string    `json:"id"`
	ShortCode string    `json:"short_code"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent"`
}

// ToRecord converts the event into a click log row with the given id.
func (e ClickEvent) ToRecord(id string) *ClickLogRecord {
	return &ClickLogRecord{
		ID:        id,
		ShortCode: e.ShortCode,
		Timestamp: e.ObservedAt.UTC(),
		UserAgent: e.UserAgent,
	}
}
