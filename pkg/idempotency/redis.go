package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "replyflow:event:"

// RedisLedger is the shared-store ledger. SetNX gives the atomic
// check-and-set the dedupe gate requires.
type RedisLedger struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewRedisLedger(client redis.UniversalClient, logger *slog.Logger) *RedisLedger {
	return &RedisLedger{
		client: client,
		logger: logger.With("module", "idempotency_ledger"),
	}
}

func (l *RedisLedger) Mark(ctx context.Context, eventID, botID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	first, err := l.client.SetNX(ctx, keyPrefix+eventID, botID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event %s: %w", eventID, err)
	}

	if !first {
		l.logger.DebugContext(ctx, "Event already marked processed", "event_id", eventID)
	}

	return first, nil
}

func (l *RedisLedger) Extend(ctx context.Context, eventID, botID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	// Set rather than Expire so a claim lost to an intervening ledger
	// outage is recreated instead of silently dropped.
	if err := l.client.Set(ctx, keyPrefix+eventID, botID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to extend event %s: %w", eventID, err)
	}

	return nil
}

func (l *RedisLedger) Release(ctx context.Context, eventID string) error {
	if err := l.client.Del(ctx, keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("failed to release event %s: %w", eventID, err)
	}

	return nil
}

func (l *RedisLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.client.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event %s: %w", eventID, err)
	}

	return n > 0, nil
}
