// Package report implements the ReportAssembler of spec.md §4.7: the
// end-of-scan JSON report with four ranked finding lists and an executive
// summary.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/spectra-red/vulnpipe/internal/hostagg"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

// FindingView is the report's element shape: a flattened, per-detection
// mirror of a VulnerabilityScore plus the host it was found on. Rankings
// do not deduplicate — the same CVE on five hosts yields five entries.
type FindingView struct {
	Host                 string               `json:"host"`
	Port                 int                  `json:"port"`
	CveID                string               `json:"cve_id"`
	CVSSBaseScore        float64              `json:"cvss_base_score"`
	CVSSSeverity         scoring.Severity     `json:"cvss_severity"`
	IsKEV                bool                 `json:"is_kev"`
	KEVDueDate           time.Time            `json:"kev_due_date,omitempty"`
	EPSSScore            float64              `json:"epss_score,omitempty"`
	SSVCDecision         scoring.SSVCDecision `json:"ssvc_decision"`
	AIRiskScore          float64              `json:"ai_risk_score"`
	AIPriority           scoring.Priority     `json:"ai_priority"`
	AIRemediationUrgency scoring.Urgency      `json:"ai_remediation_urgency"`
	AIContext            string               `json:"ai_context,omitempty"`
}

func newFindingView(f hostagg.Finding) FindingView {
	s := f.Score
	v := FindingView{
		Host:                 f.Host,
		Port:                 f.Port,
		CveID:                s.CveID.String(),
		IsKEV:                s.KEV.IsKEV,
		KEVDueDate:           s.KEV.DueDate,
		SSVCDecision:         s.SSVC.Decision,
		AIRiskScore:          s.AIRiskScore,
		AIPriority:           s.AIPriority,
		AIRemediationUrgency: s.AIRemediationUrgency,
		AIContext:            s.AIContext,
	}
	if cvss, ok := s.HighestCVSS(); ok {
		v.CVSSBaseScore = cvss.BaseScore
		v.CVSSSeverity = cvss.Severity
	}
	if s.EPSS != nil {
		v.EPSSScore = s.EPSS.Score
	}
	return v
}

// Report is the archive-facing document emitted at scan end, per
// spec.md §6.
type Report struct {
	ScanID                 string        `json:"scan_id"`
	ScanStartTime          int64         `json:"scan_start_time"`
	ScanEndTime            int64         `json:"scan_end_time"`
	AIEnhancementEnabled   bool          `json:"ai_enhancement_enabled"`
	ExecutiveSummary       string        `json:"executive_summary"`
	TopByCVSS              []FindingView `json:"top_by_cvss"`
	TopByEPSS              []FindingView `json:"top_by_epss"`
	KEVVulnerabilities     []FindingView `json:"kev_vulnerabilities"`
	SSVCActVulnerabilities []FindingView `json:"ssvc_act_vulnerabilities"`
}

// microsSinceEpoch converts a wall-clock time to microseconds since
// epoch, per spec.md §6.
func microsSinceEpoch(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

// Assembler builds Reports from a scan's flattened findings.
type Assembler struct {
	TopKCVSS int
	TopKEPSS int
}

// NewAssembler constructs an Assembler with the given top-K caps.
func NewAssembler(topKCVSS, topKEPSS int) *Assembler {
	if topKCVSS <= 0 {
		topKCVSS = 10
	}
	if topKEPSS <= 0 {
		topKEPSS = 10
	}
	return &Assembler{TopKCVSS: topKCVSS, TopKEPSS: topKEPSS}
}

// Assemble walks every host in hosts, flattens their findings into one
// working sequence, and builds the four ranked lists plus an executive
// summary, per spec.md §4.7.
func (a *Assembler) Assemble(scanID string, startedAt, endedAt time.Time, aiEnabled bool, hosts []*hostagg.HostContext) *Report {
	var flat []hostagg.Finding
	for _, h := range hosts {
		findings, _, _ := h.Snapshot()
		flat = append(flat, findings...)
	}

	views := make([]FindingView, len(flat))
	for i, f := range flat {
		views[i] = newFindingView(f)
	}

	topByCVSS := sortedCopy(views, func(a, b FindingView) bool {
		return rankLess(a.CVSSBaseScore, b.CVSSBaseScore, a, b)
	})
	if len(topByCVSS) > a.TopKCVSS {
		topByCVSS = topByCVSS[:a.TopKCVSS]
	}

	topByEPSS := sortedCopy(views, func(a, b FindingView) bool {
		return rankLess(a.EPSSScore, b.EPSSScore, a, b)
	})
	if len(topByEPSS) > a.TopKEPSS {
		topByEPSS = topByEPSS[:a.TopKEPSS]
	}

	var kev []FindingView
	for _, v := range views {
		if v.IsKEV {
			kev = append(kev, v)
		}
	}
	kev = sortedCopy(kev, func(a, b FindingView) bool {
		return rankLess(a.CVSSBaseScore, b.CVSSBaseScore, a, b)
	})

	var act []FindingView
	for _, v := range views {
		if v.SSVCDecision == scoring.SSVCAct {
			act = append(act, v)
		}
	}
	act = sortedCopy(act, func(a, b FindingView) bool {
		return rankLess(a.CVSSBaseScore, b.CVSSBaseScore, a, b)
	})

	return &Report{
		ScanID:                 scanID,
		ScanStartTime:          microsSinceEpoch(startedAt),
		ScanEndTime:            microsSinceEpoch(endedAt),
		AIEnhancementEnabled:   aiEnabled,
		ExecutiveSummary:       a.executiveSummary(views),
		TopByCVSS:              topByCVSS,
		TopByEPSS:              topByEPSS,
		KEVVulnerabilities:     kev,
		SSVCActVulnerabilities: act,
	}
}

// rankLess implements the tie-break chain of spec.md §4.7: primary key
// descending, then cve_id ascending, then host ascending.
func rankLess(keyA, keyB float64, a, b FindingView) bool {
	if keyA != keyB {
		return keyA > keyB
	}
	if a.CveID != b.CveID {
		return a.CveID < b.CveID
	}
	return a.Host < b.Host
}

func sortedCopy(views []FindingView, less func(a, b FindingView) bool) []FindingView {
	out := make([]FindingView, len(views))
	copy(out, views)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// executiveSummary builds the short text of spec.md §4.7: totals, a
// CRITICAL/KEV count, the top three by AI risk score, and one
// recommended-action sentence keyed by the highest priority observed.
func (a *Assembler) executiveSummary(views []FindingView) string {
	var criticalCount, kevCount int
	maxPriority := scoring.PriorityInfo
	for _, v := range views {
		if v.AIPriority == scoring.PriorityCritical {
			criticalCount++
		}
		if v.IsKEV {
			kevCount++
		}
		if priorityRank(v.AIPriority) > priorityRank(maxPriority) {
			maxPriority = v.AIPriority
		}
	}

	top3 := sortedCopy(views, func(a, b FindingView) bool {
		return rankLess(a.AIRiskScore, b.AIRiskScore, a, b)
	})
	if len(top3) > 3 {
		top3 = top3[:3]
	}

	summary := fmt.Sprintf("Scan found %d finding(s): %d CRITICAL, %d in the KEV catalog.",
		len(views), criticalCount, kevCount)
	if len(top3) > 0 {
		summary += " Top risks:"
		for _, v := range top3 {
			summary += fmt.Sprintf(" %s (%.1f)", v.CveID, v.AIRiskScore)
		}
		summary += "."
	}
	summary += " " + recommendedAction(maxPriority)
	return summary
}

func priorityRank(p scoring.Priority) int {
	switch p {
	case scoring.PriorityCritical:
		return 4
	case scoring.PriorityHigh:
		return 3
	case scoring.PriorityMedium:
		return 2
	case scoring.PriorityLow:
		return 1
	default:
		return 0
	}
}

func recommendedAction(maxPriority scoring.Priority) string {
	switch maxPriority {
	case scoring.PriorityCritical:
		return "Recommended action: remediate CRITICAL findings immediately."
	case scoring.PriorityHigh:
		return "Recommended action: schedule HIGH-priority remediation this cycle."
	case scoring.PriorityMedium:
		return "Recommended action: plan MEDIUM-priority remediation in the next maintenance window."
	case scoring.PriorityLow:
		return "Recommended action: track LOW-priority findings for future remediation."
	default:
		return "Recommended action: no action required."
	}
}
