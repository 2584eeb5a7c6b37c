package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisRateLimiter implements fixed-window rate limiting using Redis.
// This allows rate limits to be shared across multiple instances.
type RedisRateLimiter struct {
	redis  redis.UniversalClient
	config RateLimitConfig
	prefix string
}

// NewRedisRateLimiter creates a new Redis-backed rate limiter
func NewRedisRateLimiter(client redis.UniversalClient, config RateLimitConfig, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = "agronomy:ratelimit"
	}
	return &RedisRateLimiter{redis: client, config: config, prefix: prefix}
}

// Allow counts a hit for key and reports whether it is within the window
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Allowed: true, Limit: rl.config.Requests}, fmt.Errorf("redis error: %w", err)
	}

	// The first hit opens the window; later hits never extend it.
	reset := ttl.Val()
	if reset < 0 {
		if err := rl.redis.PExpire(ctx, redisKey, rl.config.Window).Err(); err != nil {
			return Result{Allowed: true, Limit: rl.config.Requests}, fmt.Errorf("redis error: %w", err)
		}
		reset = rl.config.Window
	}
	return newResult(rl.config.Requests, incr.Val(), reset), nil
}

// Reset clears the rate limit for a key
func (rl *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

func newResult(limit int, count int64, reset time.Duration) Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetIn:   reset,
	}
}
