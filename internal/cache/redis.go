// Package cache holds the Redis-backed click counters.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the shared Redis client. The same client also carries the
// redis stream channel, so it is created once per process.
type Cache struct {
	client *redis.Client
}

// Option adjusts the parsed client options before connecting.
type Option func(*redis.Options)

// WithClientName sets the name reported by CLIENT LIST.
func WithClientName(name string) Option {
	return func(o *redis.Options) { o.ClientName = name }
}

// WithPoolSize overrides the connection pool size.
func WithPoolSize(size int) Option {
	return func(o *redis.Options) {
		if size > 0 {
			o.PoolSize = size
		}
	}
}

// New parses redisURL, connects and pings.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.PoolTimeout = 2 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ClientName = "linkpulse"
	for _, apply := range opts {
		apply(opt)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the client for the stream channel.
func (c *Cache) Client() *redis.Client {
	return c.client
}
