package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"draftwire/pkg/bus"
)

func testLimiter(now *time.Time) *Limiter {
	store := NewMemoryCounterStore()
	store.now = func() time.Time { return *now }
	l := NewLimiter(store)
	l.now = func() time.Time { return *now }
	return l
}

func TestLimiterRejectsAboveHourlyCeiling(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	l := testLimiter(&now)
	platform, _ := PlatformFor("linkedin") // 2/hour

	ctx := context.Background()
	for i := 0; i < platform.MaxPerHour; i++ {
		if err := l.Allow(ctx, "u1", platform); err != nil {
			t.Fatalf("publish %d should be allowed: %v", i+1, err)
		}
		if err := l.RecordPublish(ctx, "u1", platform); err != nil {
			t.Fatalf("record publish: %v", err)
		}
	}

	err := l.Allow(ctx, "u1", platform)
	var taskErr *bus.TaskError
	if !errors.As(err, &taskErr) || taskErr.Code != bus.CodeRateLimited {
		t.Fatalf("expected rate_limited error, got %v", err)
	}
	if !taskErr.Retryable {
		t.Fatalf("rate limit is a policy error and must be retryable")
	}
	if taskErr.Context["retry_after"] == "" {
		t.Fatalf("rate limit error should carry retry_after")
	}

	// One hour later the window has rolled over.
	now = now.Add(time.Hour)
	if err := l.Allow(ctx, "u1", platform); err != nil {
		t.Fatalf("publish after window rollover should be allowed: %v", err)
	}
}

func TestLimiterEnforcesDailyCeiling(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 10, 0, 0, time.UTC)
	l := testLimiter(&now)
	platform, _ := PlatformFor("linkedin") // 5/day, 2/hour

	ctx := context.Background()
	for i := 0; i < platform.MaxPerDay; i++ {
		if err := l.Allow(ctx, "u1", platform); err != nil {
			t.Fatalf("publish %d should be allowed: %v", i+1, err)
		}
		if err := l.RecordPublish(ctx, "u1", platform); err != nil {
			t.Fatalf("record publish: %v", err)
		}
		// Spread publishes across hours to stay under the hourly cap.
		now = now.Add(time.Hour)
	}

	err := l.Allow(ctx, "u1", platform)
	var taskErr *bus.TaskError
	if !errors.As(err, &taskErr) || taskErr.Code != bus.CodeRateLimited {
		t.Fatalf("expected daily rate_limited error, got %v", err)
	}
	if taskErr.Context["window"] != "daily" {
		t.Fatalf("expected daily window, got %+v", taskErr.Context)
	}
}

func TestLimiterIsolatesUsersAndPlatforms(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l := testLimiter(&now)
	linkedin, _ := PlatformFor("linkedin")
	x, _ := PlatformFor("x")

	ctx := context.Background()
	for i := 0; i < linkedin.MaxPerHour; i++ {
		_ = l.RecordPublish(ctx, "u1", linkedin)
	}

	if err := l.Allow(ctx, "u1", linkedin); err == nil {
		t.Fatalf("u1/linkedin should be limited")
	}
	if err := l.Allow(ctx, "u2", linkedin); err != nil {
		t.Fatalf("u2 must not inherit u1's counters: %v", err)
	}
	if err := l.Allow(ctx, "u1", x); err != nil {
		t.Fatalf("platforms have independent counters: %v", err)
	}
}

func TestMemoryCounterStoreExpires(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := NewMemoryCounterStore()
	store.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := store.Increment(ctx, "k", time.Minute); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if count, _ := store.Get(ctx, "k"); count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	now = now.Add(2 * time.Minute)
	if count, _ := store.Get(ctx, "k"); count != 0 {
		t.Fatalf("expected expiry, got %d", count)
	}
}
