package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
	"github.com/spectra-red/vulnpipe/internal/ratelimit"
)

func TestEPSSClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"model_version": "v2023.03.01",
			"data": [{"epss": "0.97", "percentile": "0.999", "date": "2024-01-15"}]
		}`))
	}))
	defer srv.Close()

	client := &EPSSClient{httpClient: srv.Client(), baseURL: srv.URL, gate: ratelimit.NewGate(0)}
	id, _ := fingerprint.Parse("CVE-2021-44228")

	info, err := client.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info == nil {
		t.Fatal("Fetch returned nil for populated data")
	}
	if info.Score != 0.97 {
		t.Errorf("Score = %v, want 0.97", info.Score)
	}
	if info.ModelVersion != "v2023.03.01" {
		t.Errorf("ModelVersion = %q, want v2023.03.01", info.ModelVersion)
	}
}

func TestEPSSClientFetchEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	client := &EPSSClient{httpClient: srv.Client(), baseURL: srv.URL, gate: ratelimit.NewGate(0)}
	id, _ := fingerprint.Parse("CVE-2024-9999")

	info, err := client.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info != nil {
		t.Errorf("Fetch() = %+v, want nil for empty data array", info)
	}
}

func TestEPSSClientMissingModelVersionDefaultsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"epss": "0.1", "percentile": "0.5", "date": "2024-01-01"}]}`))
	}))
	defer srv.Close()

	client := &EPSSClient{httpClient: srv.Client(), baseURL: srv.URL, gate: ratelimit.NewGate(0)}
	id, _ := fingerprint.Parse("CVE-2024-0001")

	info, err := client.Fetch(context.Background(), id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info.ModelVersion != "unknown" {
		t.Errorf("ModelVersion = %q, want unknown", info.ModelVersion)
	}
}
