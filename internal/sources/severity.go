package sources

import "github.com/spectra-red/vulnpipe/internal/scoring"

// bucketCVSSv3 maps a CVSS v3.0/v3.1 base score to its qualitative
// severity bucket, per spec.md §4.2.
func bucketCVSSv3(base float64) scoring.Severity {
	switch {
	case base == 0.0:
		return scoring.SeverityNone
	case base < 4.0:
		return scoring.SeverityLow
	case base < 7.0:
		return scoring.SeverityMedium
	case base < 9.0:
		return scoring.SeverityHigh
	default:
		return scoring.SeverityCritical
	}
}

// bucketCVSSv2 maps a CVSS v2 base score to its qualitative severity
// bucket, per spec.md §4.2.
func bucketCVSSv2(base float64) scoring.Severity {
	switch {
	case base >= 9.0:
		return scoring.SeverityCritical
	case base >= 7.0:
		return scoring.SeverityHigh
	case base >= 4.0:
		return scoring.SeverityMedium
	default:
		return scoring.SeverityLow
	}
}
