// Package rate throttles one-time-code resends with Redis fixed-window
// counters.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited signals the resend budget for the window is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Config holds resend limiter tuning parameters.
type Config struct {
	Enabled    bool
	MaxResends int
	Window     time.Duration
}

// Limiter enforces a per-(target, purpose) resend budget using Redis
// counters. Disabled limiters allow everything.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a resend [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// AllowResend increments the counter for the (target, purpose) pair and
// returns ErrRateLimited once the window budget is exceeded.
func (l *Limiter) AllowResend(ctx context.Context, target, purpose string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, resendKey(target, purpose), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxResends) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter for the (target, purpose) pair. Called after a
// flow completes so the next flow starts with a fresh budget.
func (l *Limiter) Reset(ctx context.Context, target, purpose string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}
	if err := l.redis.Del(ctx, resendKey(target, purpose)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func resendKey(target, purpose string) string {
	return "rsd:" + purpose + ":" + target
}
