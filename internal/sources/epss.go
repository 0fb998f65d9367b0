package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
	"github.com/spectra-red/vulnpipe/internal/ratelimit"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

const epssDefaultBaseURL = "https://api.first.org/data/v1/epss"

type epssResponse struct {
	ModelVersion string `json:"model_version"`
	Data         []struct {
		EPSS       string `json:"epss"`
		Percentile string `json:"percentile"`
		Date       string `json:"date"`
	} `json:"data"`
}

// EPSSClient fetches the EPSS exploitation-probability estimate for a
// single CVE.
type EPSSClient struct {
	httpClient *http.Client
	baseURL    string
	gate       *ratelimit.Gate
}

// NewEPSSClient constructs an EPSSClient.
func NewEPSSClient(gate *ratelimit.Gate) *EPSSClient {
	return &EPSSClient{httpClient: newHTTPClient(), baseURL: epssDefaultBaseURL, gate: gate}
}

// SetBaseURL overrides the EPSS endpoint, for tests that point the
// client at an httptest server instead of the live service.
func (c *EPSSClient) SetBaseURL(url string) { c.baseURL = url }

// Fetch retrieves the EPSS record for id. It returns (nil, nil) when the
// API's data array is empty and (nil, err) on transport, HTTP, or parse
// failure.
func (c *EPSSClient) Fetch(ctx context.Context, id fingerprint.CveId) (*scoring.EPSSInfo, error) {
	c.gate.Wait()

	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, parseErr(err)
	}
	q := reqURL.Query()
	q.Set("cve", id.String())
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, netErr(err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, netErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpErr(resp.StatusCode)
	}

	var parsed epssResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, parseErr(err)
	}
	if len(parsed.Data) == 0 {
		return nil, nil
	}

	entry := parsed.Data[0]
	score, _ := strconv.ParseFloat(entry.EPSS, 64)
	percentile, _ := strconv.ParseFloat(entry.Percentile, 64)
	date, _ := time.Parse("2006-01-02", entry.Date)

	modelVersion := parsed.ModelVersion
	if modelVersion == "" {
		modelVersion = "unknown"
	}

	return &scoring.EPSSInfo{
		Score:        score,
		Percentile:   percentile,
		ModelVersion: modelVersion,
		Date:         date,
	}, nil
}
