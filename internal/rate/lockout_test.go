package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*LockoutLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewLockoutLimiter(rdb, LockoutConfig{Threshold: 5, Window: 15 * time.Minute}), mr
}

func TestLockoutThreshold(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		reached, err := limiter.RecordFailure(ctx, "user-1")
		if err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
		if reached {
			t.Fatalf("failure %d must not reach the threshold", i)
		}
	}

	reached, err := limiter.RecordFailure(ctx, "user-1")
	if err != nil {
		t.Fatalf("fifth RecordFailure: %v", err)
	}
	if !reached {
		t.Fatal("fifth failure must reach the threshold")
	}

	locked, err := limiter.Locked(ctx, "user-1")
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	if !locked {
		t.Fatal("account must be locked at the threshold")
	}
}

func TestLockoutUnknownUserNotLocked(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	locked, err := limiter.Locked(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	if locked {
		t.Fatal("missing counters must not report locked")
	}
}

func TestLockoutWindowExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := limiter.RecordFailure(ctx, "user-1"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	mr.FastForward(16 * time.Minute)

	locked, err := limiter.Locked(ctx, "user-1")
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	if locked {
		t.Fatal("lockout must expire with the window")
	}

	count, err := limiter.Failures(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if count != 0 {
		t.Fatalf("counter must be gone, got %d", count)
	}
}

func TestLockoutReset(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := limiter.RecordFailure(ctx, "user-1"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	if err := limiter.Reset(ctx, "user-1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	locked, err := limiter.Locked(ctx, "user-1")
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	if locked {
		t.Fatal("reset must clear the lock")
	}
}

func TestLockoutCountersArePerUser(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := limiter.RecordFailure(ctx, "user-1"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	locked, err := limiter.Locked(ctx, "user-2")
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	if locked {
		t.Fatal("counters must not leak across users")
	}
}

func TestLockoutUnavailableBackend(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	mr.Close()

	if _, err := limiter.Locked(context.Background(), "user-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := limiter.RecordFailure(context.Background(), "user-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
