package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_MarkFirstWins(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	first, err := ledger.Mark(ctx, "evt-1", "bot-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := ledger.Mark(ctx, "evt-1", "bot-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	seen, err := ledger.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryLedger_ConcurrentMarkIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	const attempts = 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			first, err := ledger.Mark(ctx, "evt-race", "bot-1", time.Minute)
			assert.NoError(t, err)

			if first {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryLedger_ExpiredMarkerIsReusable(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	current := time.Now()
	ledger.now = func() time.Time { return current }

	first, err := ledger.Mark(ctx, "evt-2", "bot-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	current = current.Add(2 * time.Minute)

	seen, err := ledger.Seen(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, seen)

	again, err := ledger.Mark(ctx, "evt-2", "bot-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestMemoryLedger_Sweep(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	current := time.Now()
	ledger.now = func() time.Time { return current }

	_, err := ledger.Mark(ctx, "evt-a", "bot-1", time.Minute)
	require.NoError(t, err)
	_, err = ledger.Mark(ctx, "evt-b", "bot-1", time.Hour)
	require.NoError(t, err)

	current = current.Add(30 * time.Minute)

	assert.Equal(t, 1, ledger.Sweep())

	seen, err := ledger.Seen(ctx, "evt-b")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryLedger_ExtendPromotesClaim(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	now := time.Now()
	ledger.now = func() time.Time { return now }

	first, err := ledger.Mark(ctx, "evt-1", "bot-1", ClaimTTL)
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, ledger.Extend(ctx, "evt-1", "bot-1", DefaultTTL))

	// Past the claim window but well inside the promoted TTL.
	now = now.Add(2 * ClaimTTL)

	seen, err := ledger.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryLedger_ExtendCreatesMissingMarker(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	require.NoError(t, ledger.Extend(ctx, "evt-1", "bot-1", DefaultTTL))

	seen, err := ledger.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryLedger_ReleaseFreesKeyForRetry(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	first, err := ledger.Mark(ctx, "evt-1", "bot-1", ClaimTTL)
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, ledger.Release(ctx, "evt-1"))

	seen, err := ledger.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	again, err := ledger.Mark(ctx, "evt-1", "bot-1", ClaimTTL)
	require.NoError(t, err)
	assert.True(t, again)
}
