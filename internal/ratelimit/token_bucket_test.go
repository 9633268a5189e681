package ratelimit

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterCapacity(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewLimiter(client, 2, 1)

	allowed, _, err := limiter.Allow(ctx, "alice", 1)
	if err != nil || !allowed {
		t.Fatalf("expected first request allowed, got allowed=%v err=%v", allowed, err)
	}
	allowed, remaining, _ := limiter.Allow(ctx, "alice", 1)
	if !allowed {
		t.Fatal("expected second request allowed")
	}
	if remaining != 0 {
		t.Fatalf("expected bucket drained, got %v tokens", remaining)
	}
	allowed, _, _ = limiter.Allow(ctx, "alice", 1)
	if allowed {
		t.Fatal("expected third request rejected")
	}

	// Other users carry their own buckets.
	allowed, _, _ = limiter.Allow(ctx, "bob", 1)
	if !allowed {
		t.Fatal("expected a fresh user to be allowed")
	}

	// Note: refill cannot be tested with miniredis.FastForward() because the
	// Lua script takes its clock from Go's time.Now(), not Redis.
}

func TestLimiterCost(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewLimiter(client, 5, 1)

	allowed, _, err := limiter.Allow(ctx, "alice", 5)
	if err != nil || !allowed {
		t.Fatalf("expected full-cost request allowed, got allowed=%v err=%v", allowed, err)
	}
	allowed, _, _ = limiter.Allow(ctx, "alice", 1)
	if allowed {
		t.Fatal("expected exhausted bucket to reject")
	}
}
