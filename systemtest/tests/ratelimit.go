package tests

import (
	"context"
	"testing"
	"time"

	"github.com/EternisAI/certpass/internal/ratelimit"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestRedisSlidingWindow(t *testing.T, client *redis.Client) {
	ctx := context.Background()
	store := ratelimit.NewRedisStore(client, "systemtest:rl:", time.Hour)
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := ratelimit.NewLimiter(store, ratelimit.WithClock(clk.Now), ratelimit.WithPurgeProbability(0))

	const (
		maxRequests = 5
		window      = 5 * time.Minute
	)
	attempt := ratelimit.Attempt{Identifier: "actor-1", Action: "verify", SourceIP: "198.51.100.7", MaxRequests: maxRequests, Window: window}

	t.Run("limits after max requests", func(t *testing.T) {
		for i := 0; i < maxRequests; i++ {
			d := limiter.Allow(ctx, attempt)
			require.False(t, d.Limited, "attempt %d", i+1)
			clk.now = clk.now.Add(10 * time.Second)
		}

		d := limiter.Allow(ctx, attempt)
		require.True(t, d.Limited)
		// The first record was made 50s ago.
		assert.Equal(t, window-50*time.Second, d.RetryAfter)

		w, err := store.Window(ctx, "actor-1", "verify", clk.now.Add(-window))
		require.NoError(t, err)
		assert.Equal(t, maxRequests, w.Count)
	})

	t.Run("other identifiers are independent", func(t *testing.T) {
		other := attempt
		other.Identifier = "actor-2"
		assert.False(t, limiter.Allow(ctx, other).Limited)
	})

	t.Run("window lower bound is exclusive", func(t *testing.T) {
		first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		w, err := store.Window(ctx, "actor-1", "verify", first)
		require.NoError(t, err)
		assert.Equal(t, maxRequests-1, w.Count)
		assert.Equal(t, first.Add(10*time.Second), w.Oldest.UTC())
	})

	t.Run("allowed again once the window elapses", func(t *testing.T) {
		clk.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(window)
		d := limiter.Allow(ctx, attempt)
		assert.False(t, d.Limited)
	})

	t.Run("purge removes old records", func(t *testing.T) {
		cutoff := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
		removed, err := store.PurgeBefore(ctx, "verify", cutoff)
		require.NoError(t, err)
		// actor-1 at 12:00:00, 12:00:10 and 12:00:20.
		assert.Equal(t, int64(3), removed)

		w, err := store.Window(ctx, "actor-1", "verify", time.Time{})
		require.NoError(t, err)
		assert.Equal(t, maxRequests-2, w.Count)
	})
}
