//go:build integration

package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkpulse/linkpulse/internal/testutil"
)

func newCounterTestEnv(t *testing.T) (context.Context, *Cache) {
	t.Helper()
	ctx := context.Background()

	c, err := New(ctx, testutil.StartRedis(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return ctx, c
}

func TestIntegrationCounter_Lifecycle(t *testing.T) {
	ctx, c := newCounterTestEnv(t)

	_, err := c.GetClicks(ctx, "abc123")
	assert.ErrorIs(t, err, ErrCounterUnset)

	require.NoError(t, c.InitClicks(ctx, "abc123"))
	n, err := c.GetClicks(ctx, "abc123")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.IncrementClicks(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Re-initializing must not reset a live counter.
	require.NoError(t, c.InitClicks(ctx, "abc123"))
	n, err = c.GetClicks(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIntegrationCounter_IncrementUnset(t *testing.T) {
	ctx, c := newCounterTestEnv(t)

	n, err := c.IncrementClicks(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIntegrationCounter_ConcurrentIncrements(t *testing.T) {
	ctx, c := newCounterTestEnv(t)
	require.NoError(t, c.InitClicks(ctx, "race"))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.IncrementClicks(ctx, "race")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := c.GetClicks(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), n)
}
