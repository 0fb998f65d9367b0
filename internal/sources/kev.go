package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

const kevDefaultURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

// kevResponse mirrors the top-level CISA KEV catalog document.
type kevResponse struct {
	Vulnerabilities []kevEntry `json:"vulnerabilities"`
}

type kevEntry struct {
	CVEID                      string `json:"cveID"`
	DateAdded                  string `json:"dateAdded"`
	DueDate                    string `json:"dueDate"`
	RequiredAction             string `json:"requiredAction"`
	KnownRansomwareCampaignUse string `json:"knownRansomwareCampaignUse"`
	Notes                      string `json:"notes"`
}

// Catalog is the parsed KEV catalog, indexed by CVE ID for O(1) lookups
// after the one-time linear parse of the fetched document.
type Catalog struct {
	byCVE map[string]kevEntry
}

// KEVClient fetches the whole CISA KEV catalog. Per spec.md §4.1 it has no
// RateGate: the catalog is fetched at most once per scan (the caller is
// responsible for caching the Catalog across the scan's lifetime) rather
// than once per CVE lookup.
type KEVClient struct {
	httpClient *http.Client
	url        string
}

// NewKEVClient constructs a KEVClient.
func NewKEVClient() *KEVClient {
	return &KEVClient{httpClient: newHTTPClient(), url: kevDefaultURL}
}

// SetURL overrides the KEV catalog endpoint, for tests that point the
// client at an httptest server instead of the live service.
func (c *KEVClient) SetURL(url string) { c.url = url }

// FetchCatalog retrieves and parses the full KEV catalog.
func (c *KEVClient) FetchCatalog(ctx context.Context) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
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

	var parsed kevResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, parseErr(err)
	}

	catalog := &Catalog{byCVE: make(map[string]kevEntry, len(parsed.Vulnerabilities))}
	for _, v := range parsed.Vulnerabilities {
		catalog.byCVE[v.CVEID] = v
	}
	return catalog, nil
}

// Lookup finds id in the catalog's CVE index and returns the
// corresponding KEVInfo. Checked is always true on a successful lookup,
// whether or not id was found, distinguishing "consulted, absent" from
// "never consulted" for the composite score's weight accounting.
func (c *Catalog) Lookup(id fingerprint.CveId) scoring.KEVInfo {
	entry, ok := c.byCVE[id.String()]
	info := scoring.KEVInfo{Checked: true, LastUpdated: time.Now()}
	if !ok {
		return info
	}

	info.IsKEV = true
	info.RequiredAction = entry.RequiredAction
	info.KnownRansomwareCampaignUse = entry.KnownRansomwareCampaignUse
	info.Notes = entry.Notes
	info.DateAdded, _ = time.Parse("2006-01-02", entry.DateAdded)
	info.DueDate, _ = time.Parse("2006-01-02", entry.DueDate)
	return info
}
