// Package fingerprint defines the CveId type used throughout vulnpipe as the
// fingerprint under which vulnerability data is fetched, cached, and
// aggregated.
package fingerprint

import (
	"fmt"
	"regexp"
)

// cvePattern matches the canonical CVE-YYYY-NNNN+ syntax. The year is four
// digits and the sequence number is four or more digits, per the CVE
// numbering authority's published format.
var cvePattern = regexp.MustCompile(`^CVE-\d{4}-\d{4,}$`)

// CveId is the unique fingerprint of a vulnerability, of the form
// CVE-YYYY-NNNN+. Values are only ever constructed through Parse, so any
// CveId in circulation is guaranteed to match cvePattern.
type CveId string

// Parse validates a raw string against the CVE syntactic pattern and
// returns it as a CveId. Anything that does not match is rejected at the
// boundary, per the data model's fingerprint invariant.
func Parse(raw string) (CveId, error) {
	if !cvePattern.MatchString(raw) {
		return "", fmt.Errorf("fingerprint: %q is not a valid CVE identifier", raw)
	}
	return CveId(raw), nil
}

// Valid reports whether raw would be accepted by Parse.
func Valid(raw string) bool {
	return cvePattern.MatchString(raw)
}

// String implements fmt.Stringer.
func (c CveId) String() string {
	return string(c)
}
