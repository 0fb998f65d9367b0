package sources

import "github.com/spectra-red/vulnpipe/internal/scoring"

// DeriveSSVC produces the local-only SSVC record. This is a known stub
// per spec.md §4.2 and §9: there is no remote SSVC policy engine, so
// every derivation is the same conservative TRACK default.
func DeriveSSVC() scoring.SSVCInfo {
	return scoring.DefaultSSVCInfo()
}
