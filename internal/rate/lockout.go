package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the lockout backend is unreachable. It must
// propagate to callers so "locked out" is never conflated with
// "infrastructure degraded".
var ErrUnavailable = errors.New("lockout backend unavailable")

const lockoutKeyPrefix = "lockout:"

// LockoutConfig tunes the failed-login lockout window.
type LockoutConfig struct {
	Threshold int           // failures within the window that lock the account
	Window    time.Duration // rolling window; counter expires with it
}

// LockoutLimiter tracks failed login attempts per user id in Redis.
// Lockout state is derived, not stored: an account is locked while its
// counter is at or above the threshold. Increments use the store's atomic
// INCR so concurrent failures never under-count.
type LockoutLimiter struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockoutLimiter creates a limiter backed by the given Redis client.
func NewLockoutLimiter(redisClient redis.UniversalClient, cfg LockoutConfig) *LockoutLimiter {
	return &LockoutLimiter{redis: redisClient, config: cfg}
}

func (l *LockoutLimiter) key(userID string) string {
	return lockoutKeyPrefix + userID
}

// Locked reports whether the user has reached the failure threshold
// within the current window. Missing counters report false.
func (l *LockoutLimiter) Locked(ctx context.Context, userID string) (bool, error) {
	count, err := l.Failures(ctx, userID)
	if err != nil {
		return false, err
	}
	return count >= l.config.Threshold, nil
}

// RecordFailure atomically increments the failure counter and reports
// whether this failure reached the threshold. The window TTL is set on
// the first failure only, giving fixed-window semantics.
func (l *LockoutLimiter) RecordFailure(ctx context.Context, userID string) (bool, error) {
	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 && l.config.Window > 0 {
		if err := l.redis.Expire(ctx, l.key(userID), l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count >= int64(l.config.Threshold), nil
}

// Reset clears the failure counter after a successful login.
func (l *LockoutLimiter) Reset(ctx context.Context, userID string) error {
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Failures returns the current counter value. Missing keys return zero
// and do not reveal account existence.
func (l *LockoutLimiter) Failures(ctx context.Context, userID string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}
