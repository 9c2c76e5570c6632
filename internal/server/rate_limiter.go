package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter allows capacity events per interval, starting with a full
// bucket.
func newRateLimiter(capacity int, interval time.Duration) *rate.Limiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	return rate.NewLimiter(rate.Every(interval/time.Duration(capacity)), capacity)
}
