// Package ratelimit throttles the public auth endpoints per client key.
package ratelimit

import "context"

// Limiter decides whether one more request for key fits the quota.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

var (
	_ Limiter = (*FixedWindowLimiter)(nil)
	_ Limiter = (*LocalLimiter)(nil)
)
