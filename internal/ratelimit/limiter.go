// Package ratelimit guards the pipeline entry point with a per-client
// sliding-window counter.
package ratelimit

import (
	"sync"
	"time"

	"github.com/maxbolgarin/gitshield/internal/config"
)

// Limiter is a sliding-window rate limiter keyed by client (remote IP or
// source repository). One instance is created per process and passed by
// reference; state is never package-global. Expired entries are pruned
// lazily on each check, so no background sweeper is needed.
type Limiter struct {
	window time.Duration
	limit  int

	mu       sync.Mutex
	requests map[string][]time.Time

	now func() time.Time
}

// New creates a limiter with the configured window and request limit.
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		window:   cfg.Window,
		limit:    cfg.Limit,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records one request for the client and reports whether it fits the
// window. Pruning, the limit check and the append happen inside a single
// critical section so concurrent callers cannot slip past the limit.
func (l *Limiter) Allow(clientKey string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.prune(clientKey, cutoff)
	if len(kept) >= l.limit {
		l.requests[clientKey] = kept
		return false
	}
	l.requests[clientKey] = append(kept, now)
	return true
}

// Remaining returns how many requests the client has left in the current
// window without recording one.
func (l *Limiter) Remaining(clientKey string) int {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.prune(clientKey, cutoff)
	l.requests[clientKey] = kept
	if rem := l.limit - len(kept); rem > 0 {
		return rem
	}
	return 0
}

// prune drops timestamps older than cutoff. Caller must hold the lock.
func (l *Limiter) prune(clientKey string, cutoff time.Time) []time.Time {
	kept := l.requests[clientKey][:0]
	for _, ts := range l.requests[clientKey] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.requests, clientKey)
		return nil
	}
	return kept
}
