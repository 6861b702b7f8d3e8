package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter decides whether an authenticated caller may send another request.
type Limiter interface {
	Allow(ctx context.Context, id *Identity) error
}

// Limits are requests per minute, per caller. Tiers without an entry use
// DefaultRPM. A value of zero or less means unlimited.
type Limits struct {
	DefaultRPM int
	Tiers      map[string]int
}

func (l Limits) rpm(tier string) int {
	if n, ok := l.Tiers[tier]; ok {
		return n
	}
	return l.DefaultRPM
}

// RateLimitError reports a rejected request and when the caller's window
// reopens. It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	Tier       string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for tier %q, retry after %s", e.Tier, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

const window = time.Minute

// sweepAt is the window count above which expired windows are dropped.
const sweepAt = 1024

type bucket struct {
	opened time.Time
	count  int
}

// WindowLimiter counts requests per subject in fixed one-minute windows held
// in memory. It is safe for concurrent use.
type WindowLimiter struct {
	limits Limits

	mu      sync.Mutex
	buckets map[string]*bucket

	// now is replaced in tests.
	now func() time.Time
}

// NewWindowLimiter returns a limiter enforcing limits.
func NewWindowLimiter(limits Limits) *WindowLimiter {
	return &WindowLimiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *WindowLimiter) Allow(_ context.Context, id *Identity) error {
	tier := id.Tier()
	limit := l.limits.rpm(tier)
	if limit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.buckets) > sweepAt {
		l.sweep(now)
	}

	key := tier + "/" + id.Subject
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.opened) >= window {
		l.buckets[key] = &bucket{opened: now, count: 1}
		return nil
	}
	if b.count >= limit {
		return &RateLimitError{Tier: tier, RetryAfter: b.opened.Add(window).Sub(now)}
	}
	b.count++
	return nil
}

// Len returns the number of tracked windows.
func (l *WindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *WindowLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.opened) >= window {
			delete(l.buckets, key)
		}
	}
}
