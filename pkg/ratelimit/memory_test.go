package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(Config{Window: time.Minute, Limit: 3})

	for i := range 3 {
		allowed, err := limiter.Allow(ctx, "sender-1")
		require.NoError(t, err)
		assert.True(t, allowed, "arrival %d should be admitted", i+1)
	}

	allowed, err := limiter.Allow(ctx, "sender-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(Config{Window: time.Minute, Limit: 2})

	current := time.Now()
	limiter.now = func() time.Time { return current }

	for range 2 {
		allowed, err := limiter.Allow(ctx, "sender-1")
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "sender-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	current = current.Add(61 * time.Second)

	allowed, err = limiter.Allow(ctx, "sender-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryLimiter_SendersAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(Config{Window: time.Minute, Limit: 1})

	allowed, err := limiter.Allow(ctx, "sender-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "sender-2")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "sender-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(Config{Window: time.Minute, Limit: 5})

	current := time.Now()
	limiter.now = func() time.Time { return current }

	_, err := limiter.Allow(ctx, "sender-1")
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)

	assert.Equal(t, 1, limiter.Sweep())
}
