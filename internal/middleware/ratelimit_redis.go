package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore on Redis so limits are
// shared across API replicas. Fixed window counter via INCR + EXPIRE.
type RedisRateLimitStore struct {
	client *redis.Client
}

func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// Allow fails open: if Redis is unreachable the request is allowed, so a
// cache outage does not take the API down with it.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	redisKey := "ratelimit:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		slog.WarnContext(ctx, "redis rate limit unavailable, allowing request", "error", err)
		return true, 0
	}

	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, config.WindowDuration).Err(); err != nil {
			slog.WarnContext(ctx, "failed to set rate limit expiry", "key", redisKey, "error", err)
		}
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, 0
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		return false, int(config.WindowDuration / time.Second)
	}
	return false, int(ttl.Seconds()) + 1
}
