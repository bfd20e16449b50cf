package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limiter answers whether a caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window counter backed by Redis, shared across
// instances. The first hit in a window sets the key's TTL; subsequent
// hits increment until the limit.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *zerolog.Logger
}

// NewRedisLimiter builds a limiter allowing limit requests per window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, logger *zerolog.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, logger: logger}
}

// Allow increments the caller's window counter and compares to the limit.
// Redis errors fail open so a cache outage does not take requests down.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed, allowing")
		}
		return true, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil && l.logger != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("failed to set rate limit window")
		}
	}
	return count <= int64(l.limit), nil
}

// LocalLimiter is an in-process token bucket per key, used when Redis is
// not configured. Buckets for idle keys are dropped periodically.
type LocalLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*localBucket
	limit    rate.Limit
	burst    int
	lastScan time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter builds a limiter allowing limit requests per window,
// with a burst of the full limit.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		buckets:  make(map[string]*localBucket),
		limit:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		lastScan: time.Now(),
	}
}

// Allow consumes one token from the key's bucket.
func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if now.Sub(l.lastScan) > 10*time.Minute {
		for k, bk := range l.buckets {
			if now.Sub(bk.lastSeen) > 10*time.Minute {
				delete(l.buckets, k)
			}
		}
		l.lastScan = now
	}

	return b.limiter.Allow(), nil
}
