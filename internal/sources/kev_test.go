package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
)

func TestKEVClientFetchCatalogAndLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"vulnerabilities": [
				{"cveID": "CVE-2021-44228", "dateAdded": "2021-12-10", "dueDate": "2021-12-24", "requiredAction": "Patch immediately"}
			]
		}`))
	}))
	defer srv.Close()

	client := &KEVClient{httpClient: srv.Client(), url: srv.URL}
	catalog, err := client.FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}

	hit, _ := fingerprint.Parse("CVE-2021-44228")
	info := catalog.Lookup(hit)
	if !info.Checked {
		t.Error("Checked = false, want true after a successful fetch")
	}
	if !info.IsKEV {
		t.Error("IsKEV = false, want true for a cataloged CVE")
	}
	if info.RequiredAction != "Patch immediately" {
		t.Errorf("RequiredAction = %q, want %q", info.RequiredAction, "Patch immediately")
	}

	miss, _ := fingerprint.Parse("CVE-2024-0001")
	missInfo := catalog.Lookup(miss)
	if !missInfo.Checked {
		t.Error("Checked = false for a miss, want true — catalog was consulted")
	}
	if missInfo.IsKEV {
		t.Error("IsKEV = true for an uncataloged CVE")
	}
}

func TestKEVClientFetchCatalogHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := &KEVClient{httpClient: srv.Client(), url: srv.URL}
	if _, err := client.FetchCatalog(context.Background()); err == nil {
		t.Fatal("FetchCatalog() returned no error for HTTP 503")
	}
}
