package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "replyflow:rate:"

// RedisLimiter keeps one sorted set per sender, scored by arrival time.
// The trim+add+count runs in a single pipeline so concurrent checks for
// the same sender cannot undercount.
type RedisLimiter struct {
	client redis.UniversalClient
	config Config
	logger *slog.Logger
}

func NewRedisLimiter(client redis.UniversalClient, config Config, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		config: config.withDefaults(),
		logger: logger.With("module", "rate_limiter"),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, senderID string) (bool, error) {
	key := keyPrefix + senderID
	now := time.Now()
	cutoff := now.Add(-l.config.Window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, l.config.Window)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update rate window for %s: %w", senderID, err)
	}

	allowed := count.Val() <= int64(l.config.Limit)
	if !allowed {
		l.logger.WarnContext(ctx, "Sender exceeded rate window",
			"sender_id", senderID,
			"count", count.Val(),
			"limit", l.config.Limit)
	}

	return allowed, nil
}
