// Package scoring defines VulnerabilityScore and the sub-records contributed
// by each external source, plus the composite AI risk computation that fuses
// them (ScoreAssembler).
package scoring

import (
	"time"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
)

// Severity is the qualitative CVSS severity bucket.
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
	SeverityUnknown  Severity = "UNKNOWN"
)

// Priority is the derived ai_priority bucket.
type Priority string

const (
	PriorityInfo     Priority = "INFO"
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Urgency is the derived ai_remediation_urgency bucket.
type Urgency string

const (
	UrgencyLow       Urgency = "LOW"
	UrgencyMedium    Urgency = "MEDIUM"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyImmediate Urgency = "IMMEDIATE"
)

// SSVCDecision is the stakeholder-specific vulnerability categorization
// decision. The source is a known stub (see SSVCInfo) and always derives
// TRACK unless a caller overrides it.
type SSVCDecision string

const (
	SSVCTrack     SSVCDecision = "TRACK"
	SSVCTrackStar SSVCDecision = "TRACK_STAR"
	SSVCAttend    SSVCDecision = "ATTEND"
	SSVCAct       SSVCDecision = "ACT"
)

// CVSSVector holds the base-metric attributes common to CVSS v2 and v3.
type CVSSVector struct {
	AttackVector          string `json:"av,omitempty"`
	AttackComplexity      string `json:"ac,omitempty"`
	PrivilegesRequired    string `json:"pr,omitempty"`
	UserInteraction       string `json:"ui,omitempty"`
	Scope                 string `json:"s,omitempty"`
	ConfidentialityImpact string `json:"c,omitempty"`
	IntegrityImpact       string `json:"i,omitempty"`
	AvailabilityImpact    string `json:"a,omitempty"`
}

// CVSS holds a single CVSS version's base score, qualitative severity, and
// vector attributes.
type CVSS struct {
	BaseScore float64    `json:"base_score"`
	Severity  Severity   `json:"severity"`
	Vector    CVSSVector `json:"vector"`
}

// KEVInfo mirrors the fields consumed from the CISA KEV catalog entry for a
// CVE, per spec.md's KEV fetcher. Checked distinguishes "the catalog was
// consulted and this CVE was not in it" (Checked=true, IsKEV=false, still
// contributes its scoring weight at value 0) from "the catalog fetch itself
// failed" (Checked=false, contributes no weight at all).
type KEVInfo struct {
	Checked                    bool      `json:"-"`
	IsKEV                      bool      `json:"is_kev"`
	DateAdded                  time.Time `json:"date_added,omitempty"`
	DueDate                    time.Time `json:"due_date,omitempty"`
	RequiredAction             string    `json:"required_action,omitempty"`
	KnownRansomwareCampaignUse string    `json:"known_ransomware_campaign_use,omitempty"`
	Notes                      string    `json:"notes,omitempty"`
	LastUpdated                time.Time `json:"last_updated,omitempty"`
}

// EPSSInfo mirrors the fields consumed from the EPSS API for a CVE.
type EPSSInfo struct {
	Score        float64   `json:"score"`
	Percentile   float64   `json:"percentile"`
	ModelVersion string    `json:"model_version"`
	Date         time.Time `json:"date,omitempty"`
}

// SSVCInfo is the local-only SSVC derivation. This is a known stub: the
// decision and axes are conservative defaults, never a remote policy
// engine's output, per spec.md §4.2 and §9.
type SSVCInfo struct {
	Decision         SSVCDecision `json:"decision"`
	Exploitation     string       `json:"exploitation"`
	Automatable      string       `json:"automatable"`
	TechnicalImpact  string       `json:"technical_impact"`
	MissionWellbeing string       `json:"mission_wellbeing"`
	PublicSafety     string       `json:"public_safety"`
}

// DefaultSSVCInfo returns the conservative default SSVC record: decision
// TRACK with the least-severe value on every axis.
func DefaultSSVCInfo() SSVCInfo {
	return SSVCInfo{
		Decision:         SSVCTrack,
		Exploitation:     "none",
		Automatable:      "no",
		TechnicalImpact:  "partial",
		MissionWellbeing: "low",
		PublicSafety:     "minimal",
	}
}

// VulnerabilityScore is the record keyed by a CveId that accumulates
// sub-records from each source plus the derived composite fields. It is
// shared (not copied) between the FingerprintCache and every HostContext
// finding that references it, per spec.md §9 — the only in-place mutation
// performed after construction is attaching AI guidance to AIContext.
type VulnerabilityScore struct {
	CveID fingerprint.CveId `json:"cve_id"`

	Description string    `json:"description,omitempty"`
	Published   time.Time `json:"published,omitempty"`
	Modified    time.Time `json:"modified,omitempty"`
	CWEs        []string  `json:"cwes,omitempty"`
	References  []string  `json:"references,omitempty"`

	CVSSv2  *CVSS `json:"cvss_v2,omitempty"`
	CVSSv30 *CVSS `json:"cvss_v30,omitempty"`
	CVSSv31 *CVSS `json:"cvss_v31,omitempty"`

	KEV  KEVInfo   `json:"kev"`
	EPSS *EPSSInfo `json:"epss,omitempty"`
	SSVC SSVCInfo  `json:"ssvc"`

	AIRiskScore          float64  `json:"ai_risk_score"`
	AIPriority           Priority `json:"ai_priority"`
	AIRemediationUrgency Urgency  `json:"ai_remediation_urgency"`
	AIContext            string   `json:"ai_context,omitempty"`
}

// HighestCVSS returns the highest-available CVSS sub-record, preferring
// v3.1 over v3.0 over v2, and whether any sub-record is present at all.
func (v *VulnerabilityScore) HighestCVSS() (*CVSS, bool) {
	switch {
	case v.CVSSv31 != nil:
		return v.CVSSv31, true
	case v.CVSSv30 != nil:
		return v.CVSSv30, true
	case v.CVSSv2 != nil:
		return v.CVSSv2, true
	default:
		return nil, false
	}
}

// HasAnySubrecord reports whether any of CVSS, KEV, or EPSS is present —
// used to distinguish "unknown" from "not fetched" per spec.md §4.2.
func (v *VulnerabilityScore) HasAnySubrecord() bool {
	if _, ok := v.HighestCVSS(); ok {
		return true
	}
	return v.KEV.Checked || v.EPSS != nil
}
