// Package scan implements ScanContext, the owned entity keyed by scan_id
// that holds a scan's cache, host set, and configuration snapshot, per
// spec.md §3.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spectra-red/vulnpipe/internal/cache"
	"github.com/spectra-red/vulnpipe/internal/config"
	"github.com/spectra-red/vulnpipe/internal/hostagg"
	"github.com/spectra-red/vulnpipe/internal/sources"
)

// Context is the ScanContext of spec.md §3. It exclusively owns its
// cache, host map, and config snapshot; it does not re-read live config
// after construction.
type Context struct {
	ScanID    string
	Config    *config.Snapshot
	Cache     *cache.Cache
	Hosts     *hostagg.Aggregator
	StartedAt time.Time
	EndedAt   time.Time

	kevOnce    sync.Once
	kevCatalog *sources.Catalog
	kevErr     error
}

// NewContext constructs a Context with a fresh time-ordered scan ID
// (uuid.NewV7, as the teacher's job-ID generator does) and a start
// timestamp of now.
func NewContext(cfg *config.Snapshot) (*Context, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return &Context{
		ScanID:    id.String(),
		Config:    cfg,
		Cache:     cache.New(),
		Hosts:     hostagg.NewAggregator(),
		StartedAt: time.Now(),
	}, nil
}

// End stamps the scan's end time. It does not destroy the Context's
// fields — the caller (PipelineHub.EndScan) reads them for report
// assembly before discarding the Context.
func (c *Context) End() {
	c.EndedAt = time.Now()
}

// KEVCatalog fetches the CISA KEV catalog at most once for the lifetime
// of this scan, per spec.md §4.1/§9 ("Known defect (KEV per-scan
// fetch)") — every CVE lookup within the scan reuses the same catalog
// regardless of how many times KEVCatalog is called.
func (c *Context) KEVCatalog(ctx context.Context, fetch func(context.Context) (*sources.Catalog, error)) (*sources.Catalog, error) {
	c.kevOnce.Do(func() {
		c.kevCatalog, c.kevErr = fetch(ctx)
	})
	return c.kevCatalog, c.kevErr
}
