package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

func TestGetOrFetchCachesSuccessfulResult(t *testing.T) {
	c := New()
	id, _ := fingerprint.Parse("CVE-2024-0001")
	var calls int32

	fetch := func(ctx context.Context, id fingerprint.CveId) (*scoring.VulnerabilityScore, bool) {
		atomic.AddInt32(&calls, 1)
		return &scoring.VulnerabilityScore{CveID: id}, true
	}

	first, found, hit := c.GetOrFetch(context.Background(), id, fetch)
	if !found || hit {
		t.Fatalf("first call: found=%v hit=%v, want found=true hit=false", found, hit)
	}

	second, found, hit := c.GetOrFetch(context.Background(), id, fetch)
	if !found || !hit {
		t.Fatalf("second call: found=%v hit=%v, want found=true hit=true", found, hit)
	}
	if first != second {
		t.Error("second call returned a different score reference than the first")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestGetOrFetchFailedFetchIsNotCached(t *testing.T) {
	c := New()
	id, _ := fingerprint.Parse("CVE-2024-0004")
	var calls int32

	fetch := func(ctx context.Context, id fingerprint.CveId) (*scoring.VulnerabilityScore, bool) {
		atomic.AddInt32(&calls, 1)
		return nil, false
	}

	_, found, _ := c.GetOrFetch(context.Background(), id, fetch)
	if found {
		t.Fatal("found=true for a failed fetch")
	}

	_, found, _ = c.GetOrFetch(context.Background(), id, fetch)
	if found {
		t.Fatal("found=true on retry of a failed fetch")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("fetch called %d times, want 2 (retried after failure)", calls)
	}
}

// TestGetOrFetchSingleFlight mirrors spec.md's S4 scenario: 16 concurrent
// callers requesting the same CVE must trigger exactly one fetch and
// share the same resulting score reference.
func TestGetOrFetchSingleFlight(t *testing.T) {
	c := New()
	id, _ := fingerprint.Parse("CVE-2024-0003")

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, id fingerprint.CveId) (*scoring.VulnerabilityScore, bool) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &scoring.VulnerabilityScore{CveID: id}, true
	}

	const n = 16
	results := make([]*scoring.VulnerabilityScore, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			score, _, _ := c.GetOrFetch(context.Background(), id, fetch)
			results[i] = score
		}(i)
	}

	close(release)
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("fetch called %d times across %d goroutines, want 1", calls, n)
	}
	for i, r := range results {
		if r != results[0] {
			t.Errorf("goroutine %d got a different score reference", i)
		}
	}
}

func TestGetOrFetchDistinctKeysProceedInParallel(t *testing.T) {
	c := New()
	idA, _ := fingerprint.Parse("CVE-2024-0001")
	idB, _ := fingerprint.Parse("CVE-2024-0002")

	started := make(chan fingerprint.CveId, 2)
	release := make(chan struct{})
	fetch := func(ctx context.Context, id fingerprint.CveId) (*scoring.VulnerabilityScore, bool) {
		started <- id
		<-release
		return &scoring.VulnerabilityScore{CveID: id}, true
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.GetOrFetch(context.Background(), idA, fetch) }()
	go func() { defer wg.Done(); c.GetOrFetch(context.Background(), idB, fetch) }()

	// Both fetches must start before either can finish; if they were
	// serialized, the second start would never arrive before release.
	<-started
	<-started
	close(release)
	wg.Wait()
}
