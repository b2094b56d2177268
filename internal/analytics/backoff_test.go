package analytics

import (
	"testing"
	"time"
)

func TestNextRetryDelay(t *testing.T) {
	tests := []struct {
		failures int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{0, 800 * time.Millisecond, 1200 * time.Millisecond},
		{1, 800 * time.Millisecond, 1200 * time.Millisecond},
		{2, 1600 * time.Millisecond, 2400 * time.Millisecond},
		{3, 3200 * time.Millisecond, 4800 * time.Millisecond},
		{6, 24 * time.Second, 36 * time.Second},
		{50, 24 * time.Second, 36 * time.Second},
	}

	for _, tt := range tests {
		// Run several times to account for jitter.
		for i := 0; i < 10; i++ {
			delay := NextRetryDelay(time.Second, tt.failures)
			if delay < tt.minDelay || delay > tt.maxDelay {
				t.Errorf("NextRetryDelay(1s, %d) = %v, want between %v and %v",
					tt.failures, delay, tt.minDelay, tt.maxDelay)
			}
		}
	}
}

func TestNextRetryDelay_DefaultBase(t *testing.T) {
	delay := NextRetryDelay(0, 1)
	if delay < 800*time.Millisecond || delay > 1200*time.Millisecond {
		t.Errorf("expected default base around %v, got %v", DefaultRetryDelay, delay)
	}
}
