package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/replyflow/replyflow/pkg/models"
	"github.com/replyflow/replyflow/pkg/persistence"
)

const (
	localTTL    = time.Minute
	sharedTTL   = 10 * time.Minute
	cachePrefix = "replyflow:settings:"
)

type localEntry struct {
	settings  *models.MerchantSettings
	expiresAt time.Time
}

// CachedProvider layers a short-TTL process-local map in front of a
// longer-TTL shared Redis tier, reading through to the persistence store.
// The shared client may be nil, in which case only the local tier is
// used.
type CachedProvider struct {
	store  persistence.Store
	shared redis.UniversalClient
	logger *slog.Logger

	mu    sync.Mutex
	local map[string]localEntry
	now   func() time.Time
}

func NewCachedProvider(store persistence.Store, shared redis.UniversalClient, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{
		store:  store,
		shared: shared,
		logger: logger.With("module", "settings_cache"),
		local:  make(map[string]localEntry),
		now:    time.Now,
	}
}

func (p *CachedProvider) Get(ctx context.Context, merchantID string) (*models.MerchantSettings, error) {
	p.mu.Lock()
	entry, ok := p.local[merchantID]
	p.mu.Unlock()

	if ok && p.now().Before(entry.expiresAt) {
		return entry.settings, nil
	}

	if settings := p.fromShared(ctx, merchantID); settings != nil {
		p.storeLocal(merchantID, settings)

		return settings, nil
	}

	settings, err := p.store.MerchantSettings(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for merchant %s: %w", merchantID, err)
	}

	p.storeLocal(merchantID, settings)
	p.storeShared(ctx, merchantID, settings)

	return settings, nil
}

// Invalidate drops both tiers. Called when the dashboard saves settings.
func (p *CachedProvider) Invalidate(ctx context.Context, merchantID string) error {
	p.mu.Lock()
	delete(p.local, merchantID)
	p.mu.Unlock()

	if p.shared == nil {
		return nil
	}

	err := p.shared.Del(ctx, cachePrefix+merchantID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to invalidate shared settings cache: %w", err)
	}

	return nil
}

// Sweep drops expired local entries. Called periodically by the janitor.
func (p *CachedProvider) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0

	for id, entry := range p.local {
		if !p.now().Before(entry.expiresAt) {
			delete(p.local, id)

			removed++
		}
	}

	return removed
}

func (p *CachedProvider) storeLocal(merchantID string, settings *models.MerchantSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.local[merchantID] = localEntry{settings: settings, expiresAt: p.now().Add(localTTL)}
}

func (p *CachedProvider) fromShared(ctx context.Context, merchantID string) *models.MerchantSettings {
	if p.shared == nil {
		return nil
	}

	payload, err := p.shared.Get(ctx, cachePrefix+merchantID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.WarnContext(ctx, "Shared settings cache read failed", "merchant_id", merchantID, "error", err)
		}

		return nil
	}

	settings := &models.MerchantSettings{}
	if err := json.Unmarshal(payload, settings); err != nil {
		p.logger.WarnContext(ctx, "Dropping undecodable shared cache entry", "merchant_id", merchantID, "error", err)

		return nil
	}

	return settings
}

func (p *CachedProvider) storeShared(ctx context.Context, merchantID string, settings *models.MerchantSettings) {
	if p.shared == nil {
		return
	}

	payload, err := json.Marshal(settings)
	if err != nil {
		return
	}

	err = p.shared.Set(ctx, cachePrefix+merchantID, payload, sharedTTL).Err()
	if err != nil {
		p.logger.WarnContext(ctx, "Shared settings cache write failed", "merchant_id", merchantID, "error", err)
	}
}
