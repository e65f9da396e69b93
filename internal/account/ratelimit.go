package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrTooManyAttempts = errors.New("too many attempts")

// RateLimiter throttles credential-guessing with per-email counters in redis.
// A nil redis client disables limiting (tests, minimal deployments).
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

func (r *RateLimiter) CheckLogin(ctx context.Context, email string) error {
	return r.check(ctx, fmt.Sprintf("login_attempts:%s", email), 5, 15*time.Minute)
}

func (r *RateLimiter) CheckRegister(ctx context.Context, email string) error {
	return r.check(ctx, fmt.Sprintf("register_attempts:%s", email), 3, time.Hour)
}

func (r *RateLimiter) ResetLogin(ctx context.Context, email string) error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Del(ctx, fmt.Sprintf("login_attempts:%s", email)).Err()
}

func (r *RateLimiter) check(ctx context.Context, key string, limit int64, window time.Duration) error {
	if r.redis == nil {
		return nil
	}

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment attempt counter: %w", err)
	}
	if count == 1 {
		r.redis.Expire(ctx, key, window)
	}
	if count > limit {
		return ErrTooManyAttempts
	}
	return nil
}
