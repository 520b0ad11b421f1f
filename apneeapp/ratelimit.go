package apneeapp

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

// defaultBackoff applies when a 429 carries no usable Retry-After.
const defaultBackoff = 60 * time.Second

// RateLimiter paces the calls made to Drive with a token bucket, and holds every call
// back for a while once Drive answered 429.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with bursts of burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request can be made.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// Backoff holds every request back for d.
func (r *RateLimiter) Backoff(d time.Duration) {
	if d <= 0 {
		d = defaultBackoff
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = time.Now().Add(d)
}

// Observe inspects the outcome of a request and backs off when Drive rate limited it.
func (r *RateLimiter) Observe(err error) {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || !IsRateLimited(err) {
		return
	}
	var d time.Duration
	if gerr.Header != nil {
		if secs, convErr := strconv.Atoi(gerr.Header.Get("Retry-After")); convErr == nil {
			d = time.Duration(secs) * time.Second
		}
	}
	r.Backoff(d)
}
