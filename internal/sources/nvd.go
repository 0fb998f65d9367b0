package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
	"github.com/spectra-red/vulnpipe/internal/ratelimit"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

const nvdDefaultBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// nvdCVEData mirrors the subset of a single NVD 2.0 "cve" object consumed
// by the fetcher, per spec.md §6.
type nvdCVEData struct {
	ID           string `json:"id"`
	Published    string `json:"published"`
	LastModified string `json:"lastModified"`
	Descriptions []struct {
		Lang  string `json:"lang"`
		Value string `json:"value"`
	} `json:"descriptions"`
	Metrics struct {
		CVSSMetricV31 []nvdCVSSMetricV3 `json:"cvssMetricV31"`
		CVSSMetricV30 []nvdCVSSMetricV3 `json:"cvssMetricV30"`
		CVSSMetricV2  []nvdCVSSMetricV2 `json:"cvssMetricV2"`
	} `json:"metrics"`
	References []struct {
		URL string `json:"url"`
	} `json:"references"`
	Weaknesses []struct {
		Description []struct {
			Value string `json:"value"`
		} `json:"description"`
	} `json:"weaknesses"`
}

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE nvdCVEData `json:"cve"`
	} `json:"vulnerabilities"`
}

type nvdCVSSMetricV3 struct {
	CVSSData struct {
		BaseScore             float64 `json:"baseScore"`
		AttackVector          string  `json:"attackVector"`
		AttackComplexity      string  `json:"attackComplexity"`
		PrivilegesRequired    string  `json:"privilegesRequired"`
		UserInteraction       string  `json:"userInteraction"`
		Scope                 string  `json:"scope"`
		ConfidentialityImpact string  `json:"confidentialityImpact"`
		IntegrityImpact       string  `json:"integrityImpact"`
		AvailabilityImpact    string  `json:"availabilityImpact"`
	} `json:"cvssData"`
}

type nvdCVSSMetricV2 struct {
	CVSSData struct {
		BaseScore             float64 `json:"baseScore"`
		AccessVector          string  `json:"accessVector"`
		AccessComplexity      string  `json:"accessComplexity"`
		Authentication        string  `json:"authentication"`
		ConfidentialityImpact string  `json:"confidentialityImpact"`
		IntegrityImpact       string  `json:"integrityImpact"`
		AvailabilityImpact    string  `json:"availabilityImpact"`
	} `json:"cvssData"`
}

// NVDResult is the partial VulnerabilityScore data produced by a
// successful NVD fetch.
type NVDResult struct {
	Description string
	Published   time.Time
	Modified    time.Time
	CWEs        []string
	References  []string
	CVSSv2      *scoring.CVSS
	CVSSv30     *scoring.CVSS
	CVSSv31     *scoring.CVSS
}

// NVDClient fetches per-CVE vulnerability metadata from the NVD 2.0 API.
// It layers its own x/time/rate limiter under the caller-supplied
// ratelimit.Gate, matching the teacher's embedded-limiter pattern while
// still honoring the shared interval gate spec.md §4.1 requires.
type NVDClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	gate       *ratelimit.Gate
	limiter    *rate.Limiter
}

// NewNVDClient constructs an NVDClient. apiKey may be empty for
// unauthenticated (lower rate limit) access.
func NewNVDClient(apiKey string, gate *ratelimit.Gate) *NVDClient {
	rps := 5
	if apiKey != "" {
		rps = 50
	}
	return &NVDClient{
		httpClient: newHTTPClient(),
		baseURL:    nvdDefaultBaseURL,
		apiKey:     apiKey,
		gate:       gate,
		limiter:    rate.NewLimiter(rate.Every(30*time.Second/time.Duration(rps)), rps),
	}
}

// SetBaseURL overrides the NVD endpoint, for tests that point the
// client at an httptest server instead of the live service.
func (c *NVDClient) SetBaseURL(url string) { c.baseURL = url }

// Fetch retrieves and parses NVD data for id. It returns (nil, nil) when
// the catalog has no entry for id — the fetch succeeded but found
// nothing, per spec.md's FetchNotFound kind — and (nil, err) on a
// transport, HTTP, or parse failure. Both are treated as "no CVSS
// sub-record" by the caller.
func (c *NVDClient) Fetch(ctx context.Context, id fingerprint.CveId) (*NVDResult, error) {
	c.gate.Wait()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, netErr(err)
	}

	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, parseErr(err)
	}
	q := reqURL.Query()
	q.Set("cveId", id.String())
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, netErr(err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, netErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpErr(resp.StatusCode)
	}

	var parsed nvdResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, parseErr(err)
	}
	if len(parsed.Vulnerabilities) == 0 {
		return nil, nil
	}

	return convertNVD(parsed.Vulnerabilities[0].CVE), nil
}

// nvdTimeLayouts covers the timestamp shapes the NVD 2.0 API actually
// sends for published/lastModified: normally no timezone offset at all
// (e.g. "2019-10-09T23:15:00.907"), occasionally bare seconds, and,
// defensively, RFC3339 proper. Tried in order; the first match wins.
var nvdTimeLayouts = []string{
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// parseNVDTime parses an NVD timestamp, returning the zero time if none
// of nvdTimeLayouts match.
func parseNVDTime(s string) time.Time {
	for _, layout := range nvdTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func convertNVD(cve nvdCVEData) *NVDResult {
	result := &NVDResult{}

	for _, d := range cve.Descriptions {
		if d.Lang == "en" {
			result.Description = d.Value
			break
		}
	}
	if result.Description == "" && len(cve.Descriptions) > 0 {
		result.Description = cve.Descriptions[0].Value
	}

	result.Published = parseNVDTime(cve.Published)
	result.Modified = parseNVDTime(cve.LastModified)

	for _, ref := range cve.References {
		result.References = append(result.References, ref.URL)
	}
	for _, w := range cve.Weaknesses {
		for _, d := range w.Description {
			result.CWEs = append(result.CWEs, d.Value)
		}
	}

	if len(cve.Metrics.CVSSMetricV31) > 0 {
		result.CVSSv31 = convertCVSSv3(cve.Metrics.CVSSMetricV31[0])
	}
	if len(cve.Metrics.CVSSMetricV30) > 0 {
		result.CVSSv30 = convertCVSSv3(cve.Metrics.CVSSMetricV30[0])
	}
	if len(cve.Metrics.CVSSMetricV2) > 0 {
		result.CVSSv2 = convertCVSSv2(cve.Metrics.CVSSMetricV2[0])
	}

	return result
}

func convertCVSSv3(m nvdCVSSMetricV3) *scoring.CVSS {
	d := m.CVSSData
	return &scoring.CVSS{
		BaseScore: d.BaseScore,
		Severity:  bucketCVSSv3(d.BaseScore),
		Vector: scoring.CVSSVector{
			AttackVector:          d.AttackVector,
			AttackComplexity:      d.AttackComplexity,
			PrivilegesRequired:    d.PrivilegesRequired,
			UserInteraction:       d.UserInteraction,
			Scope:                 d.Scope,
			ConfidentialityImpact: d.ConfidentialityImpact,
			IntegrityImpact:       d.IntegrityImpact,
			AvailabilityImpact:    d.AvailabilityImpact,
		},
	}
}

func convertCVSSv2(m nvdCVSSMetricV2) *scoring.CVSS {
	d := m.CVSSData
	return &scoring.CVSS{
		BaseScore: d.BaseScore,
		Severity:  bucketCVSSv2(d.BaseScore),
		Vector: scoring.CVSSVector{
			AttackVector:          d.AccessVector,
			AttackComplexity:      d.AccessComplexity,
			PrivilegesRequired:    d.Authentication,
			ConfidentialityImpact: d.ConfidentialityImpact,
			IntegrityImpact:       d.IntegrityImpact,
			AvailabilityImpact:    d.AvailabilityImpact,
		},
	}
}
