// Package hostagg implements the HostAggregator of spec.md §4.5: the
// per-host set of findings, service-port index, and composite risk roll-up.
package hostagg

import (
	"sync"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

// ServiceInfo is the per-port service record of spec.md §3: a CPE 2.3
// identifier (best-effort, see cpe.go) plus insert-ordered CVE references.
type ServiceInfo struct {
	Port           int                 `json:"port"`
	ServiceName    string              `json:"service_name,omitempty"`
	ServiceVersion string              `json:"service_version,omitempty"`
	CPE            string              `json:"cpe,omitempty"`
	CVEs           []fingerprint.CveId `json:"cves,omitempty"`
}

// Finding is a single detection after enrichment: a reference to the
// shared VulnerabilityScore plus the port it was observed on. It is the
// element type the ReportAssembler flattens across every HostContext.
type Finding struct {
	Host  string
	Port  int
	Score *scoring.VulnerabilityScore
}

// HostContext is the per-host record of spec.md §3. Every method acquires
// the per-host mutex so that a reader always observes a consistent
// (findings, composite) snapshot.
type HostContext struct {
	mu sync.Mutex

	IP                 string
	Hostname           string
	AssetCriticality   string
	findings           []Finding
	services           map[int]*ServiceInfo
	compositeRiskScore float64
}

// NewHostContext constructs a HostContext for ip.
func NewHostContext(ip string) *HostContext {
	return &HostContext{IP: ip, services: make(map[int]*ServiceInfo)}
}

// AppendFinding appends a detection's enriched score to this host, per
// spec.md §4.5, then recomputes the composite roll-up under the same
// lock. If port > 0, it resolves-or-creates the ServiceInfo for that
// port and appends the CVE to its list; name/version/banner are used
// best-effort to derive ServiceInfo.CPE the first time the port is seen.
func (h *HostContext) AppendFinding(score *scoring.VulnerabilityScore, port int, serviceName, serviceVersion, banner string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.findings = append(h.findings, Finding{Host: h.IP, Port: port, Score: score})

	if port > 0 {
		svc, ok := h.services[port]
		if !ok {
			svc = &ServiceInfo{
				Port:           port,
				ServiceName:    serviceName,
				ServiceVersion: serviceVersion,
				CPE:            deriveCPE(serviceName, serviceVersion, banner),
			}
			h.services[port] = svc
		}
		svc.CVEs = append(svc.CVEs, score.CveID)
	}

	h.recomputeComposite()
}

// recomputeComposite implements the roll-up formula of spec.md §4.5. The
// caller must hold h.mu.
func (h *HostContext) recomputeComposite() {
	n := len(h.findings)
	if n == 0 {
		h.compositeRiskScore = 0
		return
	}

	var total float64
	for _, f := range h.findings {
		if cvss, ok := f.Score.HighestCVSS(); ok {
			total += cvss.BaseScore
		}
		if f.Score.KEV.IsKEV {
			total += 15.0
		}
		if f.Score.EPSS != nil {
			total += f.Score.EPSS.Score * 10.0
		}
		if f.Score.SSVC.Decision == scoring.SSVCAct {
			total += 12.0
		}
		total += f.Score.AIRiskScore
	}

	composite := total / float64(n)
	if composite > 100.0 {
		composite = 100.0
	}
	h.compositeRiskScore = composite
}

// Snapshot returns a stable copy of this host's findings, service map,
// and composite score, safe to read without holding h.mu.
func (h *HostContext) Snapshot() (findings []Finding, services map[int]*ServiceInfo, composite float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	findings = make([]Finding, len(h.findings))
	copy(findings, h.findings)

	services = make(map[int]*ServiceInfo, len(h.services))
	for port, svc := range h.services {
		cp := *svc
		cp.CVEs = append([]fingerprint.CveId(nil), svc.CVEs...)
		services[port] = &cp
	}

	return findings, services, h.compositeRiskScore
}

// CompositeRiskScore returns the current roll-up value.
func (h *HostContext) CompositeRiskScore() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.compositeRiskScore
}

// Aggregator owns the set of HostContexts for a single scan, keyed by IP,
// per spec.md §3's ScanContext.host_map ownership.
type Aggregator struct {
	mu    sync.Mutex
	hosts map[string]*HostContext
}

// NewAggregator constructs an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{hosts: make(map[string]*HostContext)}
}

// HostFor resolves or creates the HostContext for ip.
func (a *Aggregator) HostFor(ip string) *HostContext {
	a.mu.Lock()
	defer a.mu.Unlock()

	h, ok := a.hosts[ip]
	if !ok {
		h = NewHostContext(ip)
		a.hosts[ip] = h
	}
	return h
}

// All returns every HostContext currently tracked, in no particular
// order — callers that need a stable order (e.g. ReportAssembler) sort
// independently.
func (a *Aggregator) All() []*HostContext {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*HostContext, 0, len(a.hosts))
	for _, h := range a.hosts {
		out = append(out, h)
	}
	return out
}
