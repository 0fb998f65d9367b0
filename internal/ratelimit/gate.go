// Package ratelimit provides RateGate, a per-endpoint minimum-interval gate
// used to throttle outbound calls to external vulnerability data sources.
package ratelimit

import (
	"sync"
	"time"
)

// Gate enforces a minimum interval between successive calls to Wait. Unlike
// a token bucket, it never accumulates burst capacity: each call blocks
// until at least Interval has elapsed since the previous call returned,
// matching the "one request at a time, paced" behavior spec.md §4.1
// requires of each external source's fetcher.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	nowFn    func() time.Time
	sleepFn  func(time.Duration)
}

// NewGate constructs a Gate that admits at most one call per interval.
func NewGate(interval time.Duration) *Gate {
	return &Gate{
		interval: interval,
		nowFn:    time.Now,
		sleepFn:  time.Sleep,
	}
}

// Wait blocks until the gate's minimum interval has elapsed since the last
// admitted call, then admits the caller. The first call is never blocked.
func (g *Gate) Wait() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFn()
	if !g.last.IsZero() {
		elapsed := now.Sub(g.last)
		if elapsed < g.interval {
			g.sleepFn(g.interval - elapsed)
			now = g.nowFn()
		}
	}
	g.last = now
}
