package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter throttles repeated failed login attempts per identifier.
type LoginLimiter interface {
	TooManyAttempts(ctx context.Context, loginID string) (bool, error)
	RecordFailure(ctx context.Context, loginID string) error
	Reset(ctx context.Context, loginID string) error
}

const loginAttemptKeyPrefix = "auth:login_attempts:"

// RedisLoginLimiter counts failed attempts in Redis with a rolling expiry.
type RedisLoginLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

// NewRedisLoginLimiter builds a limiter. A nil client disables throttling.
func NewRedisLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &RedisLoginLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

// TooManyAttempts reports whether the identifier exhausted its attempts.
func (l *RedisLoginLimiter) TooManyAttempts(ctx context.Context, loginID string) (bool, error) {
	if l == nil || l.client == nil {
		return false, nil
	}
	count, err := l.client.Get(ctx, loginAttemptKeyPrefix+loginID).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return count >= l.maxAttempts, nil
}

// RecordFailure increments the failure counter and refreshes its expiry.
func (l *RedisLoginLimiter) RecordFailure(ctx context.Context, loginID string) error {
	if l == nil || l.client == nil {
		return nil
	}
	key := loginAttemptKeyPrefix + loginID
	pipe := l.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	_, err := pipe.Exec(ctx)
	return err
}

// Reset clears the failure counter after a successful login.
func (l *RedisLoginLimiter) Reset(ctx context.Context, loginID string) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Del(ctx, loginAttemptKeyPrefix+loginID).Err()
}
