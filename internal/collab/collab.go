// Package collab defines the narrow external-collaborator interfaces of
// spec.md §4.8 — detection source, archive, and AI guidance — plus
// concrete adapters grounded on the teacher's embeddings and workflow
// persistence stacks.
package collab

import (
	"context"

	"github.com/spectra-red/vulnpipe/internal/hostagg"
	"github.com/spectra-red/vulnpipe/internal/report"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

// Detection is a single scanner-emitted event, per spec.md §4.8. The core
// never calls back into whatever produced it.
type Detection struct {
	CveID       string
	Host        string
	Port        int
	PluginID    string
	Description string
}

// DetectionSource emits Detections. Implementations (e.g. the chi-based
// demo HTTP surface in internal/httpapi) push events; the pipeline never
// polls or calls back.
type DetectionSource interface {
	Detections() <-chan Detection
}

// Archive persists an assembled Report. Save is the only error surfaced
// to PipelineHub.EndScan's caller, per spec.md §7 — the core does not
// retry on failure.
type Archive interface {
	Save(ctx context.Context, scanID string, r *report.Report) error
}

// AIGuidance produces free-text remediation guidance for a single
// finding. Implementations must honor ctx's deadline; any error
// (including deadline exceeded) is tolerated by the caller, which
// proceeds without guidance.
type AIGuidance interface {
	Guidance(ctx context.Context, score *scoring.VulnerabilityScore, host *hostagg.HostContext) (string, error)
}
