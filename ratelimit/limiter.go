// Package ratelimit paces outbound deliveries per subscription with a
// token bucket keyed by subscription ID.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/courier/id"
)

// Limiter holds one token bucket per subscription. Buckets are created
// lazily on first use and sized by the subscription's configured
// deliveries-per-second; burst capacity equals the rate.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens    float64
	perSecond float64
	lastFill  time.Time
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow reports whether a delivery to the subscription may proceed now,
// consuming one token if so. perSecond <= 0 means the subscription is
// unlimited. A changed perSecond resets the subscription's bucket, so
// rate limit updates take effect on the next delivery.
func (l *Limiter) Allow(subID id.ID, perSecond int) bool {
	if perSecond <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(subID, float64(perSecond))
	b.refill(time.Now())

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Wait blocks until a token is available or ctx is done. perSecond <= 0
// returns immediately.
func (l *Limiter) Wait(ctx context.Context, subID id.ID, perSecond int) error {
	if perSecond <= 0 {
		return nil
	}

	// One token accrues every 1/perSecond seconds; poll on that interval.
	interval := time.Duration(float64(time.Second) / float64(perSecond))
	for {
		if l.Allow(subID, perSecond) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Reset discards the subscription's bucket. The next delivery starts
// with a full burst.
func (l *Limiter) Reset(subID id.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, subID.String())
}

// bucket returns the subscription's bucket, creating or re-sizing it as
// needed. Callers hold l.mu.
func (l *Limiter) bucket(subID id.ID, perSecond float64) *bucket {
	key := subID.String()
	b, ok := l.buckets[key]
	if !ok || b.perSecond != perSecond {
		b = &bucket{
			tokens:    perSecond, // full burst to start
			perSecond: perSecond,
			lastFill:  time.Now(),
		}
		l.buckets[key] = b
	}
	return b
}

func (b *bucket) refill(now time.Time) {
	b.tokens += now.Sub(b.lastFill).Seconds() * b.perSecond
	if b.tokens > b.perSecond {
		b.tokens = b.perSecond
	}
	b.lastFill = now
}
