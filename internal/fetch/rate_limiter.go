package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out requests per host. Pages of one crawl all live on
// the same host, so in practice this serialises request starts to one every
// delay regardless of the worker count.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	delay    time.Duration
}

// NewRateLimiter creates a limiter that allows one request per delay for
// each host. A non-positive delay disables limiting.
func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
	}
}

// Wait blocks until a request to link's host may start or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return r.limiterFor(u.Host).Wait(ctx)
}

// SetHostDelay overrides the delay for one host, e.g. from a robots.txt
// Crawl-delay. A non-positive delay restores the default.
func (r *RateLimiter) SetHostDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if delay <= 0 {
		delay = r.delay
	}
	r.limiters[host] = newLimiter(delay)
}

func (r *RateLimiter) limiterFor(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[host]
	if !ok {
		limiter = newLimiter(r.delay)
		r.limiters[host] = limiter
	}
	return limiter
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
