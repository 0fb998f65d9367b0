package scoring

import (
	"testing"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
)

func mustCve(t *testing.T, raw string) fingerprint.CveId {
	t.Helper()
	id, err := fingerprint.Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q): %v", raw, err)
	}
	return id
}

func TestAssembleCompositeScore(t *testing.T) {
	asm := NewAssembler()

	t.Run("cvss and kev miss, epss missing", func(t *testing.T) {
		v := &VulnerabilityScore{
			CveID:   mustCve(t, "CVE-2021-44228"),
			CVSSv31: &CVSS{BaseScore: 7.5, Severity: SeverityHigh},
			KEV:     KEVInfo{Checked: true, IsKEV: false},
			SSVC:    DefaultSSVCInfo(),
		}
		asm.Assemble(v)
		if got, want := v.AIRiskScore, 4.0625; !almostEqual(got, want) {
			t.Errorf("AIRiskScore = %v, want %v", got, want)
		}
	})

	t.Run("epss and kev miss, cvss missing", func(t *testing.T) {
		v := &VulnerabilityScore{
			CveID: mustCve(t, "CVE-2021-44228"),
			KEV:   KEVInfo{Checked: true, IsKEV: false},
			EPSS:  &EPSSInfo{Score: 0.42},
			SSVC:  DefaultSSVCInfo(),
		}
		asm.Assemble(v)
		if got, want := v.AIRiskScore, 1.8166666666666667; !almostEqual(got, want) {
			t.Errorf("AIRiskScore = %v, want %v", got, want)
		}
	})

	t.Run("every source fails", func(t *testing.T) {
		v := &VulnerabilityScore{
			CveID: mustCve(t, "CVE-2021-44228"),
			SSVC:  DefaultSSVCInfo(),
		}
		asm.Assemble(v)
		if v.AIRiskScore != 0.0 {
			t.Errorf("AIRiskScore = %v, want 0.0", v.AIRiskScore)
		}
		if v.AIPriority != PriorityLow {
			t.Errorf("AIPriority = %v, want LOW", v.AIPriority)
		}
		if v.AIRemediationUrgency != UrgencyLow {
			t.Errorf("AIRemediationUrgency = %v, want LOW", v.AIRemediationUrgency)
		}
	})

	t.Run("kev hit forces critical priority and immediate urgency", func(t *testing.T) {
		v := &VulnerabilityScore{
			CveID:   mustCve(t, "CVE-2021-44228"),
			CVSSv31: &CVSS{BaseScore: 3.1, Severity: SeverityLow},
			KEV:     KEVInfo{Checked: true, IsKEV: true},
			SSVC:    DefaultSSVCInfo(),
		}
		asm.Assemble(v)
		if v.AIPriority != PriorityCritical {
			t.Errorf("AIPriority = %v, want CRITICAL", v.AIPriority)
		}
		if v.AIRemediationUrgency != UrgencyImmediate {
			t.Errorf("AIRemediationUrgency = %v, want IMMEDIATE", v.AIRemediationUrgency)
		}
	})

	t.Run("high severity with high epss escalates to critical", func(t *testing.T) {
		v := &VulnerabilityScore{
			CveID:   mustCve(t, "CVE-2021-44228"),
			CVSSv31: &CVSS{BaseScore: 8.8, Severity: SeverityHigh},
			KEV:     KEVInfo{Checked: true, IsKEV: false},
			EPSS:    &EPSSInfo{Score: 0.55},
			SSVC:    DefaultSSVCInfo(),
		}
		asm.Assemble(v)
		if v.AIPriority != PriorityCritical {
			t.Errorf("AIPriority = %v, want CRITICAL", v.AIPriority)
		}
		if v.AIRemediationUrgency != UrgencyMedium {
			t.Errorf("AIRemediationUrgency = %v, want MEDIUM", v.AIRemediationUrgency)
		}
	})

	t.Run("composite never exceeds 10", func(t *testing.T) {
		v := &VulnerabilityScore{
			CveID:   mustCve(t, "CVE-2021-44228"),
			CVSSv31: &CVSS{BaseScore: 10.0, Severity: SeverityCritical},
			KEV:     KEVInfo{Checked: true, IsKEV: true},
			EPSS:    &EPSSInfo{Score: 1.0},
			SSVC:    SSVCInfo{Decision: SSVCAct},
		}
		asm.Assemble(v)
		if v.AIRiskScore > 10.0 {
			t.Errorf("AIRiskScore = %v, want <= 10.0", v.AIRiskScore)
		}
	})
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
