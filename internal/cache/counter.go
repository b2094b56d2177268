package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const clicksKeyPrefix = "clicks:"

// ErrCounterUnset is returned when a short code has no counter entry.
var ErrCounterUnset = errors.New("click counter not set")

func clickKey(shortCode string) string {
	return clicksKeyPrefix + shortCode
}

// InitClicks creates the counter for a new short code at zero.
// An existing counter is left untouched.
func (c *Cache) InitClicks(ctx context.Context, shortCode string) error {
	if err := c.client.SetNX(ctx, clickKey(shortCode), 0, 0).Err(); err != nil {
		return fmt.Errorf("failed to init clicks: %w", err)
	}
	return nil
}

// IncrementClicks atomically increments the counter and returns the new value.
// A missing counter starts from zero.
func (c *Cache) IncrementClicks(ctx context.Context, shortCode string) (int64, error) {
	n, err := c.client.Incr(ctx, clickKey(shortCode)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment clicks: %w", err)
	}
	return n, nil
}

// GetClicks returns the counter value for a short code.
// Returns ErrCounterUnset if the counter was never created.
func (c *Cache) GetClicks(ctx context.Context, shortCode string) (int64, error) {
	result, err := c.client.Get(ctx, clickKey(shortCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCounterUnset
		}
		return 0, fmt.Errorf("failed to get clicks: %w", err)
	}

	count, err := strconv.ParseInt(result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse click count: %w", err)
	}

	return count, nil
}
