// Package cache implements the FingerprintCache: a per-scan CVE→score map
// with single-flight fetch coalescing, per spec.md §4.4.
package cache

import (
	"context"
	"sync"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

// FetchFunc performs the actual multi-source fetch-and-assemble for a
// cache miss. It returns (score, false) when every source failed — that
// result is not cached, so a later call retries.
type FetchFunc func(ctx context.Context, id fingerprint.CveId) (*scoring.VulnerabilityScore, bool)

// call tracks an in-flight fetch so that late arrivals for the same key
// can await its result instead of starting a duplicate fetch.
type call struct {
	done  chan struct{}
	score *scoring.VulnerabilityScore
	ok    bool
}

// Cache is the FingerprintCache. The zero value is not usable; construct
// with New. A Cache is scoped to a single scan and is discarded wholesale
// when the owning ScanContext ends.
type Cache struct {
	mu       sync.RWMutex
	scores   map[fingerprint.CveId]*scoring.VulnerabilityScore
	inFlight map[fingerprint.CveId]*call
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{
		scores:   make(map[fingerprint.CveId]*scoring.VulnerabilityScore),
		inFlight: make(map[fingerprint.CveId]*call),
	}
}

// GetOrFetch returns the cached score for id, or runs fetch to produce
// one. hit reports whether the result came from the cache without
// invoking fetch at all (used for PipelineHub's cache-hit/miss counters).
// found reports whether a score is available at all — a failed fetch
// returns found=false and is not cached.
//
// Concurrent calls for the same id within a scan perform at most one
// fetch: the first arrival installs an in-flight marker and performs the
// work; later arrivals block on that marker and receive the same result.
// A failed result is handed to those waiting callers as well but is not
// cached, so only a call made after the fetch completes retries it.
func (c *Cache) GetOrFetch(ctx context.Context, id fingerprint.CveId, fetch FetchFunc) (score *scoring.VulnerabilityScore, found bool, hit bool) {
	c.mu.RLock()
	if s, ok := c.scores[id]; ok {
		c.mu.RUnlock()
		return s, true, true
	}
	c.mu.RUnlock()

	c.mu.Lock()
	if s, ok := c.scores[id]; ok {
		c.mu.Unlock()
		return s, true, true
	}
	if inFlight, ok := c.inFlight[id]; ok {
		c.mu.Unlock()
		<-inFlight.done
		return inFlight.score, inFlight.ok, false
	}

	myCall := &call{done: make(chan struct{})}
	c.inFlight[id] = myCall
	c.mu.Unlock()

	fetchedScore, ok := fetch(ctx, id)

	c.mu.Lock()
	delete(c.inFlight, id)
	if ok {
		c.scores[id] = fetchedScore
	}
	c.mu.Unlock()

	myCall.score = fetchedScore
	myCall.ok = ok
	close(myCall.done)

	return fetchedScore, ok, false
}

// Get returns the cached score for id without triggering a fetch.
func (c *Cache) Get(id fingerprint.CveId) (*scoring.VulnerabilityScore, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scores[id]
	return s, ok
}

// Len reports the number of distinct CVEs currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scores)
}
