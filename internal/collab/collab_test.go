package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spectra-red/vulnpipe/internal/fingerprint"
	"github.com/spectra-red/vulnpipe/internal/hostagg"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

func mustCve(t *testing.T, raw string) fingerprint.CveId {
	t.Helper()
	id, err := fingerprint.Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q): %v", raw, err)
	}
	return id
}

func TestNewOpenAIGuidanceClientRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIGuidanceClient(OpenAIGuidanceConfig{}); err == nil {
		t.Fatal("expected error for empty APIKey, got nil")
	}
}

func TestOpenAIGuidanceClientGuidanceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-3.5-turbo",
			"choices": []map[string]interface{}{
				{
					"index": 0,
					"message": map[string]string{
						"role":    "assistant",
						"content": "Patch immediately and restrict network access.",
					},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer srv.Close()

	client, err := NewOpenAIGuidanceClient(OpenAIGuidanceConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIGuidanceClient: %v", err)
	}

	score := &scoring.VulnerabilityScore{
		CveID:      mustCve(t, "CVE-2021-44228"),
		CVSSv31:    &scoring.CVSS{BaseScore: 10.0, Severity: scoring.SeverityCritical},
		AIPriority: scoring.PriorityCritical,
	}
	host := hostagg.NewHostContext("10.0.0.7")

	guidance, err := client.Guidance(context.Background(), score, host)
	if err != nil {
		t.Fatalf("Guidance: %v", err)
	}
	if guidance == "" {
		t.Error("expected non-empty guidance text")
	}
}

func TestOpenAIGuidanceClientGuidanceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewOpenAIGuidanceClient(OpenAIGuidanceConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIGuidanceClient: %v", err)
	}

	score := &scoring.VulnerabilityScore{CveID: mustCve(t, "CVE-2021-44228")}
	if _, err := client.Guidance(context.Background(), score, nil); err == nil {
		t.Fatal("expected error from 500 response, got nil")
	}
}

func TestOpenAIGuidanceClientGuidanceTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewOpenAIGuidanceClient(OpenAIGuidanceConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewOpenAIGuidanceClient: %v", err)
	}

	score := &scoring.VulnerabilityScore{CveID: mustCve(t, "CVE-2021-44228")}
	_, err = client.Guidance(context.Background(), score, nil)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}
