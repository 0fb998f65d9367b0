package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
	"github.com/spectra-red/vulnpipe/internal/ratelimit"
)

func TestNVDClientFetchParsesHighestCVSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"vulnerabilities": [{
				"cve": {
					"id": "CVE-2021-44228",
					"published": "2021-12-10T10:15:00.000",
					"lastModified": "2021-12-14T10:15:00.000",
					"descriptions": [{"lang": "en", "value": "Log4Shell"}],
					"metrics": {
						"cvssMetricV31": [{"cvssData": {"baseScore": 10.0, "attackVector": "NETWORK"}}],
						"cvssMetricV2": [{"cvssData": {"baseScore": 9.3}}]
					},
					"weaknesses": [{"description": [{"value": "CWE-502"}]}],
					"references": [{"url": "https://example.com/advisory"}]
				}
			}]
		}`))
	}))
	defer srv.Close()

	client := &NVDClient{httpClient: srv.Client(), baseURL: srv.URL, gate: ratelimit.NewGate(0), limiter: rate.NewLimiter(rate.Inf, 1)}
	id, err := fingerprint.Parse("CVE-2021-44228")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	result, err := client.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result == nil {
		t.Fatal("Fetch returned nil result for a populated response")
	}
	if result.CVSSv31 == nil || result.CVSSv31.BaseScore != 10.0 {
		t.Errorf("CVSSv31 = %+v, want base score 10.0", result.CVSSv31)
	}
	if result.CVSSv2 == nil {
		t.Error("CVSSv2 should still be populated alongside v3.1")
	}
	if len(result.CWEs) != 1 || result.CWEs[0] != "CWE-502" {
		t.Errorf("CWEs = %v, want [CWE-502]", result.CWEs)
	}
	if result.Description != "Log4Shell" {
		t.Errorf("Description = %q, want Log4Shell", result.Description)
	}
}

func TestNVDClientFetchEmptyVulnerabilities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vulnerabilities": []}`))
	}))
	defer srv.Close()

	client := &NVDClient{httpClient: srv.Client(), baseURL: srv.URL, gate: ratelimit.NewGate(0), limiter: rate.NewLimiter(rate.Inf, 1)}
	id, _ := fingerprint.Parse("CVE-2021-44228")

	result, err := client.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result != nil {
		t.Errorf("Fetch() = %+v, want nil for empty vulnerabilities array", result)
	}
}

func TestNVDClientFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := &NVDClient{httpClient: srv.Client(), baseURL: srv.URL, gate: ratelimit.NewGate(0), limiter: rate.NewLimiter(rate.Inf, 1)}
	id, _ := fingerprint.Parse("CVE-2024-0002")

	_, err := client.Fetch(context.Background(), id)
	if err == nil {
		t.Fatal("Fetch() returned no error for HTTP 500")
	}
}

func TestBucketCVSSv3(t *testing.T) {
	tests := []struct {
		base float64
		want string
	}{
		{0.0, "NONE"},
		{2.0, "LOW"},
		{5.5, "MEDIUM"},
		{8.0, "HIGH"},
		{9.8, "CRITICAL"},
	}
	for _, tt := range tests {
		if got := string(bucketCVSSv3(tt.base)); got != tt.want {
			t.Errorf("bucketCVSSv3(%v) = %v, want %v", tt.base, got, tt.want)
		}
	}
}

func TestParseNVDTimeHandlesMissingTimezoneOffset(t *testing.T) {
	// The real NVD 2.0 API sends published/lastModified without a
	// timezone suffix, unlike RFC3339.
	got := parseNVDTime("2019-10-09T23:15:00.907")
	if got.IsZero() {
		t.Fatal("parseNVDTime returned zero time for a real NVD timestamp")
	}
	if got.Year() != 2019 || got.Month() != 10 || got.Day() != 9 {
		t.Errorf("parseNVDTime date = %v, want 2019-10-09", got)
	}
	if got.Hour() != 23 || got.Minute() != 15 {
		t.Errorf("parseNVDTime time = %v, want 23:15", got)
	}
}

func TestParseNVDTimeInvalidReturnsZero(t *testing.T) {
	if got := parseNVDTime("not-a-timestamp"); !got.IsZero() {
		t.Errorf("parseNVDTime(%q) = %v, want zero time", "not-a-timestamp", got)
	}
}

func TestBucketCVSSv2(t *testing.T) {
	tests := []struct {
		base float64
		want string
	}{
		{9.3, "CRITICAL"},
		{7.5, "HIGH"},
		{5.0, "MEDIUM"},
		{2.0, "LOW"},
	}
	for _, tt := range tests {
		if got := string(bucketCVSSv2(tt.base)); got != tt.want {
			t.Errorf("bucketCVSSv2(%v) = %v, want %v", tt.base, got, tt.want)
		}
	}
}
