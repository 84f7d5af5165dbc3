package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLocalLimiterBurstThenRefill(t *testing.T) {
	l := NewLocalLimiter(3, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := range 3 {
		if !l.Allow(ctx, "ip-1") {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if l.Allow(ctx, "ip-1") {
		t.Fatalf("fourth request should be blocked")
	}
	if !l.Allow(ctx, "ip-2") {
		t.Fatalf("other keys keep their own bucket")
	}

	now = now.Add(21 * time.Second)
	if !l.Allow(ctx, "ip-1") {
		t.Fatalf("one token should refill after a third of the window")
	}
}

func TestLocalLimiterEvictsIdleKeys(t *testing.T) {
	l := NewLocalLimiter(1, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	l.Allow(ctx, "ip-1")
	now = now.Add(idleEvictAfter)
	l.Allow(ctx, "ip-2")
	if _, ok := l.buckets["ip-1"]; ok {
		t.Fatalf("idle bucket should be evicted")
	}
}

func TestLocalLimiterZeroMeansUnlimited(t *testing.T) {
	l := NewLocalLimiter(0, time.Minute)
	for range 100 {
		if !l.Allow(context.Background(), "ip-1") {
			t.Fatalf("zero limit should not throttle")
		}
	}
}
