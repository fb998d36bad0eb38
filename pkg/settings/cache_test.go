package settings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/replyflow/replyflow/pkg/log"
	"github.com/replyflow/replyflow/pkg/models"
	"github.com/replyflow/replyflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps the memory store to count settings reads.
type countingStore struct {
	*persistence.MemoryStore

	mu    sync.Mutex
	reads int
}

func (s *countingStore) MerchantSettings(ctx context.Context, merchantID string) (*models.MerchantSettings, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()

	return s.MemoryStore.MerchantSettings(ctx, merchantID)
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()

	store := &countingStore{MemoryStore: persistence.NewMemoryStore()}
	require.NoError(t, store.SaveMerchantSettings(context.Background(), &models.MerchantSettings{
		MerchantID:          "m1",
		ConfidenceThreshold: 0.6,
	}))

	return store
}

func TestCachedProvider_ReadThroughOnce(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(t)
	provider := NewCachedProvider(store, nil, log.WithModule("test"))

	for range 5 {
		settings, err := provider.Get(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, 0.6, settings.ConfidenceThreshold)
	}

	assert.Equal(t, 1, store.reads)
}

func TestCachedProvider_LocalTTLExpires(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(t)
	provider := NewCachedProvider(store, nil, log.WithModule("test"))

	current := time.Now()
	provider.now = func() time.Time { return current }

	_, err := provider.Get(ctx, "m1")
	require.NoError(t, err)

	current = current.Add(localTTL + time.Second)

	_, err = provider.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads)
}

func TestCachedProvider_InvalidateForcesReload(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(t)
	provider := NewCachedProvider(store, nil, log.WithModule("test"))

	_, err := provider.Get(ctx, "m1")
	require.NoError(t, err)

	require.NoError(t, provider.Invalidate(ctx, "m1"))

	_, err = provider.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads)
}

func TestCachedProvider_UnknownMerchant(t *testing.T) {
	provider := NewCachedProvider(newCountingStore(t), nil, log.WithModule("test"))

	_, err := provider.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrSettingsNotFound)
}

func TestCachedProvider_Sweep(t *testing.T) {
	ctx := context.Background()
	provider := NewCachedProvider(newCountingStore(t), nil, log.WithModule("test"))

	current := time.Now()
	provider.now = func() time.Time { return current }

	_, err := provider.Get(ctx, "m1")
	require.NoError(t, err)

	current = current.Add(localTTL + time.Second)

	assert.Equal(t, 1, provider.Sweep())
}
