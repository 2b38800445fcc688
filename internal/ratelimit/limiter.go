// Package ratelimit provides the token-bucket limiter that paces
// marketplace API calls. Bucket capacity and refill rate come from
// configuration, never from hardcoded sleeps.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket. Tokens refill one per refill interval up
// to the bucket capacity.
type Limiter struct {
	mu         sync.Mutex
	tokens     int
	capacity   int
	refillRate time.Duration
	lastRefill time.Time
}

// NewLimiter creates a bucket of the given capacity refilling one
// token per refillRate.
func NewLimiter(capacity int, refillRate time.Duration) *Limiter {
	return &Limiter{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens > 0 {
		l.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}

		interval := l.refillRate / time.Duration(l.capacity)
		if interval <= 0 {
			interval = time.Millisecond
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Available reports the current token count.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens
}

// refill adds tokens for the elapsed time. Caller holds the mutex.
func (l *Limiter) refill() {
	now := time.Now()
	add := int(now.Sub(l.lastRefill) / l.refillRate)
	if add > 0 {
		l.tokens += add
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.lastRefill = now
	}
}
