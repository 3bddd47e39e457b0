package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterAllow(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiterWithClock(func() time.Time { return now })
	limit := Limit{Rate: 3, Period: time.Minute}

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(context.Background(), "user-1", limit)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if want := 3 - (i + 1); res.Remaining != want {
			t.Errorf("request %d Remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res, err := limiter.Allow(context.Background(), "user-1", limit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if res.Allowed {
		t.Fatal("4th request within the window should be denied")
	}
	if res.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want %v", res.RetryAfter, time.Minute)
	}
}

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiterWithClock(func() time.Time { return now })
	limit := Limit{Rate: 2, Period: time.Minute}

	ctx := context.Background()

	// 占满窗口
	limiter.Allow(ctx, "user-1", limit)
	now = now.Add(30 * time.Second)
	limiter.Allow(ctx, "user-1", limit)

	res, _ := limiter.Allow(ctx, "user-1", limit)
	if res.Allowed {
		t.Fatal("window is full, request should be denied")
	}

	// 最早一条离开窗口后恢复配额
	now = now.Add(31 * time.Second)
	res, _ = limiter.Allow(ctx, "user-1", limit)
	if !res.Allowed {
		t.Fatal("oldest entry expired, request should be allowed")
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiterWithClock(func() time.Time { return now })
	limit := Limit{Rate: 1, Period: time.Minute}

	ctx := context.Background()

	if res, _ := limiter.Allow(ctx, "user-1", limit); !res.Allowed {
		t.Fatal("first request for user-1 should be allowed")
	}
	if res, _ := limiter.Allow(ctx, "user-1", limit); res.Allowed {
		t.Fatal("second request for user-1 should be denied")
	}
	if res, _ := limiter.Allow(ctx, "user-2", limit); !res.Allowed {
		t.Fatal("user-2 must not share user-1's window")
	}
}
