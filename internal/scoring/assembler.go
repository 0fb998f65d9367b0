package scoring

// Signal weights for the composite AI risk score, per spec.md §4.3.
const (
	weightCVSS = 0.4
	weightKEV  = 0.3
	weightEPSS = 0.2
	weightSSVC = 0.1
)

// ssvcContribution maps an SSVC decision to its 0-10 contribution value.
func ssvcContribution(d SSVCDecision) float64 {
	switch d {
	case SSVCTrack:
		return 2.5
	case SSVCTrackStar:
		return 5.0
	case SSVCAttend:
		return 7.5
	case SSVCAct:
		return 10.0
	default:
		return 2.5
	}
}

// Assembler computes the derived fields of a VulnerabilityScore from
// whichever sub-records are present. It holds no state — every method is a
// pure function of its VulnerabilityScore argument.
type Assembler struct{}

// NewAssembler constructs a Assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble computes AIRiskScore, AIPriority, and AIRemediationUrgency on v
// in place, leaving every other field untouched.
func (a *Assembler) Assemble(v *VulnerabilityScore) {
	v.AIRiskScore = a.compositeRiskScore(v)
	v.AIPriority = a.priority(v)
	v.AIRemediationUrgency = a.urgency(v)
}

// compositeRiskScore implements the weighted-fusion formula of spec.md
// §4.3: normalize the sum of weighted signal contributions by the weight
// actually contributed, so missing signals do not bias the result
// downward, and clamp to [0, 10]. SSVC only contributes when at least one
// of CVSS, KEV, or EPSS is present; with none present the composite is
// defined to be exactly 0.0, per the explicit override in §4.3.
func (a *Assembler) compositeRiskScore(v *VulnerabilityScore) float64 {
	cvss, cvssPresent := v.HighestCVSS()
	kevPresent := v.KEV.Checked
	epssPresent := v.EPSS != nil

	if !cvssPresent && !kevPresent && !epssPresent {
		return 0.0
	}

	var weight, numerator float64

	if cvssPresent {
		weight += weightCVSS
		numerator += weightCVSS * cvss.BaseScore
	}
	if kevPresent {
		weight += weightKEV
		if v.KEV.IsKEV {
			numerator += weightKEV * 10.0
		}
	}
	if epssPresent {
		weight += weightEPSS
		numerator += weightEPSS * (v.EPSS.Score * 10.0)
	}

	weight += weightSSVC
	numerator += weightSSVC * ssvcContribution(v.SSVC.Decision)

	if weight == 0 {
		return 0.0
	}

	composite := numerator / weight
	if composite > 10.0 {
		composite = 10.0
	}
	return composite
}

// priority implements the first-match priority ladder of spec.md §4.3.
func (a *Assembler) priority(v *VulnerabilityScore) Priority {
	cvss, cvssPresent := v.HighestCVSS()

	if v.KEV.IsKEV {
		return PriorityCritical
	}

	if cvssPresent {
		epss := 0.0
		if v.EPSS != nil {
			epss = v.EPSS.Score
		}
		if cvss.Severity == SeverityHigh || cvss.Severity == SeverityCritical {
			if epss > 0.10 {
				return PriorityCritical
			}
		}
		switch cvss.Severity {
		case SeverityCritical:
			return PriorityHigh
		case SeverityHigh:
			return PriorityMedium
		}
		if v.SSVC.Decision == SSVCAct {
			return PriorityHigh
		}
		switch cvss.Severity {
		case SeverityMedium:
			return PriorityLow
		default:
			return PriorityInfo
		}
	}

	if v.SSVC.Decision == SSVCAct {
		return PriorityHigh
	}

	return PriorityLow
}

// urgency implements the first-match urgency ladder of spec.md §4.3.
func (a *Assembler) urgency(v *VulnerabilityScore) Urgency {
	cvss, cvssPresent := v.HighestCVSS()

	if v.KEV.IsKEV {
		return UrgencyImmediate
	}

	if cvssPresent {
		epss := 0.0
		if v.EPSS != nil {
			epss = v.EPSS.Score
		}
		if cvss.Severity == SeverityCritical && epss > 0.10 {
			return UrgencyHigh
		}
		if cvss.Severity == SeverityCritical {
			return UrgencyMedium
		}
		if cvss.Severity == SeverityHigh {
			return UrgencyMedium
		}
	}

	return UrgencyLow
}
