package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every process using the same redis.
type RedisLimiter struct {
	redis  *redis.Client
	prefix string
	max    int64
	window time.Duration
}

// NewRedisLimiter allows max attempts per key per window.
func NewRedisLimiter(client *redis.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "stl:verify"
	}
	return &RedisLimiter{redis: client, prefix: prefix, max: int64(max), window: window}
}

func (l *RedisLimiter) key(k string) string {
	return l.prefix + ":" + k
}

// Allow implements Limiter. The window starts at the first attempt.
func (l *RedisLimiter) Allow(ctx context.Context, key string, _ time.Time) (bool, error) {
	k := l.key(key)

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("verify: rate limiter: %w", err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("verify: rate limiter: %w", err)
		}
	}
	return count <= l.max, nil
}
