package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Limiter enforces per-key request budgets stored in Redis.
type Limiter struct {
	limiter *redis_rate.Limiter
}

// NewLimiter creates a limiter backed by client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{limiter: redis_rate.NewLimiter(client)}
}

// AllowPerMinute reports whether key may perform another request within a
// budget of perMinute requests. When denied it also returns how long to wait.
func (l *Limiter) AllowPerMinute(ctx context.Context, key string, perMinute int) (bool, time.Duration, error) {
	if perMinute <= 0 {
		return true, 0, nil
	}

	res, err := l.limiter.Allow(ctx, key, redis_rate.PerMinute(perMinute))
	if err != nil {
		return false, 0, fmt.Errorf("failed to check rate limit for %s: %w", key, err)
	}
	if res.Allowed == 0 {
		return false, res.RetryAfter, nil
	}
	return true, 0, nil
}
