package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
}

// SimpleRateLimiter pauses before every action for a random delay drawn
// uniformly from [minDelay, maxDelay).
type SimpleRateLimiter struct {
	minDelay time.Duration
	maxDelay time.Duration
	mu       sync.Mutex
	rng      *rand.Rand
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NoDelay returns a limiter that never waits.
func NoDelay() *SimpleRateLimiter {
	return NewSimpleRateLimiter(0, 0)
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	delay := r.NextDelay()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NextDelay draws the delay the next Wait would use.
func (r *SimpleRateLimiter) NextDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calculateDelay()
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if r.maxDelay <= r.minDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	jitter := time.Duration(r.rng.Int63n(int64(delta)))
	return r.minDelay + jitter
}
