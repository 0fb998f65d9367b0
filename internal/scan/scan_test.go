package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spectra-red/vulnpipe/internal/config"
	"github.com/spectra-red/vulnpipe/internal/sources"
)

func testSnapshot() *config.Snapshot {
	return &config.Snapshot{AIProvider: config.ProviderOpenAI, TopKCVSS: 10, TopKEPSS: 10}
}

func TestNewContextGeneratesUniqueScanIDs(t *testing.T) {
	a, err := NewContext(testSnapshot())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	b, err := NewContext(testSnapshot())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if a.ScanID == "" || b.ScanID == "" {
		t.Fatal("expected non-empty scan IDs")
	}
	if a.ScanID == b.ScanID {
		t.Fatal("two scans got the same scan_id")
	}
	if a.Cache == nil || a.Hosts == nil {
		t.Fatal("NewContext did not initialize Cache/Hosts")
	}
	if a.StartedAt.IsZero() {
		t.Fatal("StartedAt not set")
	}
}

func TestEndStampsEndedAt(t *testing.T) {
	c, err := NewContext(testSnapshot())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if !c.EndedAt.IsZero() {
		t.Fatal("EndedAt set before End()")
	}
	c.End()
	if c.EndedAt.IsZero() {
		t.Fatal("End() did not stamp EndedAt")
	}
	if c.EndedAt.Before(c.StartedAt) {
		t.Fatal("EndedAt precedes StartedAt")
	}
}

// TestKEVCatalogFetchesOnce mirrors spec.md §4.1/§9's per-scan KEV fetch
// requirement: however many times KEVCatalog is called, the underlying
// fetch runs at most once and every caller sees the same Catalog.
func TestKEVCatalogFetchesOnce(t *testing.T) {
	c, err := NewContext(testSnapshot())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	var calls int32
	want := &sources.Catalog{}
	fetch := func(ctx context.Context) (*sources.Catalog, error) {
		atomic.AddInt32(&calls, 1)
		return want, nil
	}

	const n = 16
	results := make([]*sources.Catalog, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			cat, err := c.KEVCatalog(context.Background(), fetch)
			if err != nil {
				t.Errorf("KEVCatalog: %v", err)
			}
			results[i] = cat
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("fetch called %d times across %d goroutines, want 1", calls, n)
	}
	for i, r := range results {
		if r != want {
			t.Errorf("goroutine %d got a different catalog reference", i)
		}
	}
}

func TestKEVCatalogCachesError(t *testing.T) {
	c, err := NewContext(testSnapshot())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	var calls int32
	wantErr := context.DeadlineExceeded
	fetch := func(ctx context.Context) (*sources.Catalog, error) {
		atomic.AddInt32(&calls, 1)
		return nil, wantErr
	}

	_, err = c.KEVCatalog(context.Background(), fetch)
	if err != wantErr {
		t.Fatalf("first call err = %v, want %v", err, wantErr)
	}
	_, err = c.KEVCatalog(context.Background(), fetch)
	if err != wantErr {
		t.Fatalf("second call err = %v, want %v (cached)", err, wantErr)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("fetch called %d times, want 1 (error also cached for scan lifetime)", calls)
	}
}
