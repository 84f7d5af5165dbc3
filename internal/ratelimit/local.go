package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleEvictAfter = 10 * time.Minute

// LocalLimiter is an in-process token bucket per key, used when no Redis is
// configured. Quotas are per replica.
type LocalLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows perWindow requests per window with bursts of the
// same size.
func NewLocalLimiter(perWindow int, window time.Duration) *LocalLimiter {
	if perWindow <= 0 || window <= 0 {
		return &LocalLimiter{limit: rate.Inf, buckets: map[string]*bucket{}, now: time.Now}
	}
	return &LocalLimiter{
		limit:   rate.Limit(float64(perWindow) / window.Seconds()),
		burst:   perWindow,
		buckets: map[string]*bucket{},
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictIdle(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *LocalLimiter) evictIdle(now time.Time) {
	if now.Sub(l.lastSweep) < idleEvictAfter {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= idleEvictAfter {
			delete(l.buckets, k)
		}
	}
}
