// Package analytics carries click events from the redirect path to the click log.
package analytics

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/linkpulse/linkpulse/internal/model"
)

const (
	maxShortCodeLength = 10
	maxUserAgentLength = 500
)

// clickEventPayload is the wire format of a click event on the channel.
type clickEventPayload struct {
	ShortCode string `json:"short_code"`
	UserAgent string `json:"user_agent"`
	Timestamp string `json:"timestamp"` // RFC 3339 with nanoseconds, UTC
}

// EncodeClickEvent serializes an event to its wire format.
func EncodeClickEvent(event model.ClickEvent) ([]byte, error) {
	payload := clickEventPayload{
		ShortCode: event.ShortCode,
		UserAgent: event.UserAgent,
		Timestamp: event.ObservedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := validateClickEventPayload(payload); err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// DecodeClickEvent parses and validates a wire payload.
// Any failure wraps ErrMalformedEvent.
func DecodeClickEvent(body []byte) (model.ClickEvent, error) {
	var payload clickEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.ClickEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := validateClickEventPayload(payload); err != nil {
		return model.ClickEvent{}, err
	}

	observedAt, err := time.Parse(time.RFC3339Nano, payload.Timestamp)
	if err != nil {
		return model.ClickEvent{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedEvent, err)
	}

	return model.ClickEvent{
		ShortCode:  payload.ShortCode,
		UserAgent:  payload.UserAgent,
		ObservedAt: observedAt.UTC(),
	}, nil
}

func validateClickEventPayload(p clickEventPayload) error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.ShortCode,
			validation.Required,
			validation.Length(1, maxShortCodeLength),
			is.Alphanumeric,
		),
		validation.Field(&p.UserAgent,
			validation.Required,
			validation.Length(1, maxUserAgentLength),
		),
		validation.Field(&p.Timestamp,
			validation.Required,
			validation.Date(time.RFC3339Nano),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// TruncateUserAgent truncates user agent to at most 500 bytes without
// splitting a UTF-8 sequence.
func TruncateUserAgent(ua string) string {
	if len(ua) <= maxUserAgentLength {
		return ua
	}
	cut := maxUserAgentLength
	for cut > 0 && !utf8.RuneStart(ua[cut]) {
		cut--
	}
	return ua[:cut]
}
