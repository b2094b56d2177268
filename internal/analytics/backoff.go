package analytics

import (
	"math/rand/v2"
	"time"
)

const (
	// MaxRetryDelay caps the consumer back-off.
	MaxRetryDelay = 30 * time.Second

	// JitterFactor is the ±fraction of jitter applied to delays.
	JitterFactor = 0.2
)

// NextRetryDelay doubles base for every consecutive failure after the first,
// caps it at MaxRetryDelay and applies ±20% jitter so consumers sharing a
// group do not retry in lockstep. failures is 1 after the first failure.
func NextRetryDelay(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = DefaultRetryDelay
	}
	if failures < 1 {
		failures = 1
	}

	delay := base
	for i := 1; i < failures && delay < MaxRetryDelay; i++ {
		delay *= 2
	}
	if delay > MaxRetryDelay {
		delay = MaxRetryDelay
	}

	jitter := (rand.Float64()*2 - 1) * float64(delay) * JitterFactor
	return time.Duration(float64(delay) + jitter)
}
