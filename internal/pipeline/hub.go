// Package pipeline implements the PipelineHub of spec.md §4.6: the
// process-wide registry of active scans, the bridge-level counters, and
// the detection-to-report dispatch that wires SourceClients, the
// FingerprintCache, HostAggregator, ScoreAssembler, and the external
// collaborators together.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spectra-red/vulnpipe/internal/collab"
	"github.com/spectra-red/vulnpipe/internal/config"
	"github.com/spectra-red/vulnpipe/internal/fingerprint"
	"github.com/spectra-red/vulnpipe/internal/hostagg"
	"github.com/spectra-red/vulnpipe/internal/ratelimit"
	"github.com/spectra-red/vulnpipe/internal/report"
	"github.com/spectra-red/vulnpipe/internal/scan"
	"github.com/spectra-red/vulnpipe/internal/scoring"
	"github.com/spectra-red/vulnpipe/internal/sources"
)

// defaultAIDeadline bounds an AI guidance call when the scan's config
// does not otherwise constrain it, per spec.md §5.
const defaultAIDeadline = 5 * time.Second

// Counters holds the bridge-level stats of spec.md §3's PipelineHub
// record: atomic increments, no ordering guarantees between counters.
type Counters struct {
	DetectionsSeen   atomic.Int64
	KEVsSeen         atomic.Int64
	CriticalsSeen    atomic.Int64
	AIEnhancedCount  atomic.Int64
	ExternalAPICalls atomic.Int64
	CacheHits        atomic.Int64
	CacheMisses      atomic.Int64

	enrichmentNanosTotal atomic.Int64
	enrichmentCount      atomic.Int64
}

// recordEnrichment folds one enrichment's wall-clock duration into the
// running average.
func (c *Counters) recordEnrichment(d time.Duration) {
	c.enrichmentNanosTotal.Add(int64(d))
	c.enrichmentCount.Add(1)
}

// AverageEnrichmentLatency returns the mean enrichment duration observed
// so far, or zero if none have completed.
func (c *Counters) AverageEnrichmentLatency() time.Duration {
	n := c.enrichmentCount.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(c.enrichmentNanosTotal.Load() / n)
}

// Hub is the PipelineHub. It is constructed once at process start and
// shared by every caller; it never grows a second instance.
//
// Per spec.md §5 and §9 ("Per-scan context discovery by 'first active'"):
// the source assumes a single active scan and resolves "the" active
// context by grabbing an arbitrary entry from its registry. This hub
// preserves that defect-faithful lookup for On* methods that omit a
// scan_id (activeScan), while also supporting the spec's recommended
// fix — explicit scan_id propagation — via the *ForScan methods. New
// callers should prefer the *ForScan methods; the scan_id-less methods
// exist only for parity with the legacy single-scan call sites.
type Hub struct {
	mu    sync.RWMutex
	scans map[string]*scan.Context

	nvdGate  *ratelimit.Gate
	epssGate *ratelimit.Gate

	nvdClient  *sources.NVDClient
	kevClient  *sources.KEVClient
	epssClient *sources.EPSSClient

	assembler *scoring.Assembler
	logger    *zap.Logger

	aiFactory func(snap *config.Snapshot) (collab.AIGuidance, error)
	archive   collab.Archive

	Counters Counters
}

// Config configures a Hub at construction.
type Config struct {
	NVDAPIKey     string
	RateLimitNVD  time.Duration
	RateLimitEPSS time.Duration
	Logger        *zap.Logger

	// AIFactory builds an AIGuidance client for a scan from its config
	// snapshot. It is called once per dispatched detection of a scan that
	// has AI enabled.
	// A nil factory disables AI enhancement regardless of config.
	AIFactory func(snap *config.Snapshot) (collab.AIGuidance, error)
	Archive   collab.Archive

	// Endpoint overrides, empty for the live spec.md §6 defaults. Used by
	// tests and by deployments pointing at a private mirror.
	NVDBaseURL  string
	KEVURL      string
	EPSSBaseURL string
}

// NewHub constructs a Hub. Rate-limit intervals default to spec.md
// §4.1's NVD 6,000 ms / EPSS 1,000 ms when zero.
func NewHub(cfg Config) *Hub {
	if cfg.RateLimitNVD == 0 {
		cfg.RateLimitNVD = 6000 * time.Millisecond
	}
	if cfg.RateLimitEPSS == 0 {
		cfg.RateLimitEPSS = 1000 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	nvdGate := ratelimit.NewGate(cfg.RateLimitNVD)
	epssGate := ratelimit.NewGate(cfg.RateLimitEPSS)

	nvdClient := sources.NewNVDClient(cfg.NVDAPIKey, nvdGate)
	kevClient := sources.NewKEVClient()
	epssClient := sources.NewEPSSClient(epssGate)
	if cfg.NVDBaseURL != "" {
		nvdClient.SetBaseURL(cfg.NVDBaseURL)
	}
	if cfg.KEVURL != "" {
		kevClient.SetURL(cfg.KEVURL)
	}
	if cfg.EPSSBaseURL != "" {
		epssClient.SetBaseURL(cfg.EPSSBaseURL)
	}

	return &Hub{
		scans:      make(map[string]*scan.Context),
		nvdGate:    nvdGate,
		epssGate:   epssGate,
		nvdClient:  nvdClient,
		kevClient:  kevClient,
		epssClient: epssClient,
		assembler:  scoring.NewAssembler(),
		logger:     cfg.Logger,
		aiFactory:  cfg.AIFactory,
		archive:    cfg.Archive,
	}
}

// StartScan creates and registers a new scan, per spec.md §3's
// ScanContext lifecycle ("created by scan-start").
func (h *Hub) StartScan(cfg *config.Snapshot) (*scan.Context, error) {
	sc, err := scan.NewContext(cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: start scan: %w", err)
	}
	h.mu.Lock()
	h.scans[sc.ScanID] = sc
	h.mu.Unlock()
	return sc, nil
}

// activeScan grabs an arbitrary entry from the registry, preserving the
// source's single-active-scan assumption per spec.md §5/§9.
func (h *Hub) activeScan() (*scan.Context, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sc := range h.scans {
		return sc, true
	}
	return nil, false
}

func (h *Hub) scanByID(scanID string) (*scan.Context, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sc, ok := h.scans[scanID]
	return sc, ok
}

// ErrNoActiveScan is returned when no scan is registered at all.
var ErrNoActiveScan = errors.New("pipeline: no active scan")

// ErrUnknownScan is returned when a scan_id does not match a live scan.
var ErrUnknownScan = errors.New("pipeline: unknown scan_id")

// ErrBadDetection corresponds to spec.md §7's BadDetection error kind.
var ErrBadDetection = errors.New("pipeline: detection missing cve_id or host")

// OnDetection dispatches a detection to the single active scan,
// defect-faithful to the source per spec.md §9.
func (h *Hub) OnDetection(ctx context.Context, cveID, host string, port int) error {
	sc, ok := h.activeScan()
	if !ok {
		h.logger.Warn("on_detection: no active scan, dropping", zap.String("cve_id", cveID))
		return ErrNoActiveScan
	}
	return h.dispatch(ctx, sc, cveID, host, port, "", "")
}

// OnDetectionWithPlugin is OnDetection plus the optional plugin_id and
// description fields of spec.md §4.6. description feeds the finding's
// service banner (see dispatch); plugin_id has no destination in the
// data model and is discarded — it exists for interface parity with
// the scanner event shape.
func (h *Hub) OnDetectionWithPlugin(ctx context.Context, cveID, host string, port int, pluginID, description string) error {
	sc, ok := h.activeScan()
	if !ok {
		h.logger.Warn("on_detection_with_plugin: no active scan, dropping", zap.String("cve_id", cveID))
		return ErrNoActiveScan
	}
	return h.dispatch(ctx, sc, cveID, host, port, pluginID, description)
}

// OnDetectionForScan is the scan_id-aware alternative recommended by
// spec.md §9 ("Per-scan context discovery by 'first active' → explicit
// scan_id propagation").
func (h *Hub) OnDetectionForScan(ctx context.Context, scanID, cveID, host string, port int) error {
	sc, ok := h.scanByID(scanID)
	if !ok {
		return ErrUnknownScan
	}
	return h.dispatch(ctx, sc, cveID, host, port, "", "")
}

// OnDetectionForScanWithPlugin is OnDetectionForScan plus the optional
// plugin_id and description fields, for scan_id-aware callers that also
// carry scanner plugin metadata.
func (h *Hub) OnDetectionForScanWithPlugin(ctx context.Context, scanID, cveID, host string, port int, pluginID, description string) error {
	sc, ok := h.scanByID(scanID)
	if !ok {
		return ErrUnknownScan
	}
	return h.dispatch(ctx, sc, cveID, host, port, pluginID, description)
}

func (h *Hub) dispatch(ctx context.Context, sc *scan.Context, cveID, host string, port int, pluginID, description string) error {
	if cveID == "" || host == "" {
		h.logger.Warn("bad detection dropped", zap.String("cve_id", cveID), zap.String("host", host))
		return ErrBadDetection
	}
	id, err := fingerprint.Parse(cveID)
	if err != nil {
		h.logger.Warn("bad detection dropped", zap.Error(err))
		return ErrBadDetection
	}
	_ = pluginID

	h.Counters.DetectionsSeen.Add(1)

	start := time.Now()
	hostCtx := sc.Hosts.HostFor(host)
	score, found, hit := sc.Cache.GetOrFetch(ctx, id, h.fetchAndAssemble(sc))
	if hit {
		h.Counters.CacheHits.Add(1)
	} else {
		h.Counters.CacheMisses.Add(1)
	}
	if !found {
		h.logger.Warn("all sources failed for detection", zap.String("cve_id", cveID))
		score = &scoring.VulnerabilityScore{CveID: id, SSVC: sources.DeriveSSVC()}
		h.assembler.Assemble(score)
	}

	if score.KEV.IsKEV {
		h.Counters.KEVsSeen.Add(1)
	}
	if score.AIPriority == scoring.PriorityCritical {
		h.Counters.CriticalsSeen.Add(1)
	}

	// description commonly carries the scanner plugin's service banner
	// (e.g. OpenVAS/Nessus plugin output), which deriveCPE parses.
	hostCtx.AppendFinding(score, port, "", "", description)
	h.Counters.recordEnrichment(time.Since(start))

	if sc.Config != nil && sc.Config.AIEnableVulnerabilityAnalysis && h.aiFactory != nil {
		h.attachGuidance(sc, score, hostCtx)
	}
	return nil
}

// attachGuidance invokes the AI capability with a bounded deadline and
// tolerates any error by leaving ai_context untouched, per spec.md
// §4.6/§5.
func (h *Hub) attachGuidance(sc *scan.Context, score *scoring.VulnerabilityScore, hostCtx *hostagg.HostContext) {
	ai, err := h.aiFactory(sc.Config)
	if err != nil || ai == nil {
		return
	}

	deadline := sc.Config.ServiceTimeout
	if deadline <= 0 {
		deadline = defaultAIDeadline
	} else if deadline > defaultAIDeadline {
		deadline = defaultAIDeadline
	}

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	guidance, err := ai.Guidance(ctx, score, hostCtx)
	if err != nil {
		h.logger.Debug("ai guidance unavailable", zap.String("cve_id", score.CveID.String()), zap.Error(err))
		return
	}
	score.AIContext = guidance
	h.Counters.AIEnhancedCount.Add(1)
}

// fetchAndAssemble builds the cache.FetchFunc that performs the actual
// multi-source fetch for a miss: NVD, the per-scan KEV catalog, EPSS,
// and the local SSVC stub, folded into one VulnerabilityScore and run
// through the ScoreAssembler.
func (h *Hub) fetchAndAssemble(sc *scan.Context) func(ctx context.Context, id fingerprint.CveId) (*scoring.VulnerabilityScore, bool) {
	return func(ctx context.Context, id fingerprint.CveId) (*scoring.VulnerabilityScore, bool) {
		score := &scoring.VulnerabilityScore{CveID: id}
		anySucceeded := false

		h.Counters.ExternalAPICalls.Add(1)
		if nvdResult, err := h.nvdClient.Fetch(ctx, id); err != nil {
			h.logger.Debug("nvd fetch failed", zap.String("cve_id", id.String()), zap.Error(err))
		} else if nvdResult != nil {
			score.Description = nvdResult.Description
			score.Published = nvdResult.Published
			score.Modified = nvdResult.Modified
			score.CWEs = nvdResult.CWEs
			score.References = nvdResult.References
			score.CVSSv2 = nvdResult.CVSSv2
			score.CVSSv30 = nvdResult.CVSSv30
			score.CVSSv31 = nvdResult.CVSSv31
			anySucceeded = true
		}

		catalog, err := sc.KEVCatalog(ctx, func(ctx context.Context) (*sources.Catalog, error) {
			h.Counters.ExternalAPICalls.Add(1)
			return h.kevClient.FetchCatalog(ctx)
		})
		if err != nil {
			h.logger.Debug("kev catalog fetch failed", zap.Error(err))
		} else if catalog != nil {
			score.KEV = catalog.Lookup(id)
			anySucceeded = true
		}

		h.Counters.ExternalAPICalls.Add(1)
		if epssInfo, err := h.epssClient.Fetch(ctx, id); err != nil {
			h.logger.Debug("epss fetch failed", zap.String("cve_id", id.String()), zap.Error(err))
		} else if epssInfo != nil {
			score.EPSS = epssInfo
			anySucceeded = true
		}

		score.SSVC = sources.DeriveSSVC()

		h.assembler.Assemble(score)
		return score, anySucceeded
	}
}

// OnEnhanceResult mirrors the cached score's fields into an
// externally-owned mutable record, per spec.md §4.6.
func (h *Hub) OnEnhanceResult(scanID string, result *EnhanceResult) error {
	sc, ok := h.scanByID(scanID)
	if !ok {
		return ErrUnknownScan
	}
	id, err := fingerprint.Parse(result.CveID)
	if err != nil {
		return ErrBadDetection
	}
	score, ok := sc.Cache.Get(id)
	if !ok {
		return nil
	}
	if cvss, ok := score.HighestCVSS(); ok {
		result.CVSSBaseScore = cvss.BaseScore
		result.CVSSSeverity = cvss.Severity
	}
	result.IsKEV = score.KEV.IsKEV
	result.KEVDueDate = score.KEV.DueDate
	if score.EPSS != nil {
		result.EPSSScore = score.EPSS.Score
		result.EPSSPercentile = score.EPSS.Percentile
	}
	result.SSVCDecision = score.SSVC.Decision
	result.AIRiskScore = score.AIRiskScore
	result.AIPriority = score.AIPriority
	result.RemediationGuidance = score.AIContext
	return nil
}

// EnhanceResult is the mutable scan-result record of spec.md §6's
// detection-record shape, enriched in place by OnEnhanceResult.
type EnhanceResult struct {
	CveID               string
	CVSSBaseScore       float64
	CVSSSeverity        scoring.Severity
	IsKEV               bool
	KEVDueDate          time.Time
	EPSSScore           float64
	EPSSPercentile      float64
	SSVCDecision        scoring.SSVCDecision
	AIRiskScore         float64
	AIPriority          scoring.Priority
	RemediationGuidance string
}

// EndScan assembles the report, hands it to the archive collaborator,
// and destroys the ScanContext, per spec.md §4.6. Apart from
// ErrUnknownScan for a scan_id that is not live, an archive write failure
// is the only error surfaced to the caller.
func (h *Hub) EndScan(ctx context.Context, scanID string) (*report.Report, error) {
	h.mu.Lock()
	sc, ok := h.scans[scanID]
	if ok {
		delete(h.scans, scanID)
	}
	h.mu.Unlock()
	if !ok {
		return nil, ErrUnknownScan
	}
	sc.End()

	topKCVSS, topKEPSS := 10, 10
	aiEnabled := false
	if sc.Config != nil {
		topKCVSS, topKEPSS = sc.Config.TopKCVSS, sc.Config.TopKEPSS
		aiEnabled = sc.Config.AIEnableVulnerabilityAnalysis
	}
	rb := report.NewAssembler(topKCVSS, topKEPSS)
	r := rb.Assemble(sc.ScanID, sc.StartedAt, sc.EndedAt, aiEnabled, sc.Hosts.All())

	if h.archive != nil {
		if err := h.archive.Save(ctx, scanID, r); err != nil {
			return r, fmt.Errorf("pipeline: archive write failed: %w", err)
		}
	}
	return r, nil
}
