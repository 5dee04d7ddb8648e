// Package server implements a token bucket rate limiter for per-connection
// chat throttling.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter allows burst messages per interval. A non-positive burst
// returns nil, which allows everything.
func newRateLimiter(burst int, interval time.Duration) *rateLimiter {
	if burst <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Second
	}

	limit := rate.Limit(float64(burst) / interval.Seconds())
	return &rateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

func (rl *rateLimiter) allow() bool {
	if rl == nil {
		return true
	}
	return rl.limiter.Allow()
}
