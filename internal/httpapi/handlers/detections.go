// Package handlers implements the demo HTTP surface's request handlers,
// grounded on the teacher's api/handlers package.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/spectra-red/vulnpipe/internal/collab"
)

// detectionRequest is the wire shape of a single posted detection, per
// spec.md §4.8's DetectionSource contract.
type detectionRequest struct {
	CveID       string `json:"cve_id"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	PluginID    string `json:"plugin_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// DetectionIngestSource implements collab.DetectionSource: HTTP handlers
// push events into it; PipelineHub never calls back into the scanner
// that produced them. The channel is buffered so a burst of detections
// does not block request handlers on a slow consumer.
type DetectionIngestSource struct {
	events chan collab.Detection
	logger *zap.Logger
}

// NewDetectionIngestSource constructs a DetectionIngestSource with the
// given channel buffer size.
func NewDetectionIngestSource(bufferSize int, logger *zap.Logger) *DetectionIngestSource {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetectionIngestSource{events: make(chan collab.Detection, bufferSize), logger: logger}
}

// Detections implements collab.DetectionSource.
func (s *DetectionIngestSource) Detections() <-chan collab.Detection {
	return s.events
}

// IngestHandler decodes a posted detection and enqueues it. It responds
// 202 Accepted once queued — enrichment happens asynchronously via
// whatever consumes Detections().
func (s *DetectionIngestSource) IngestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req detectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
			return
		}
		if req.CveID == "" || req.Host == "" {
			writeJSONError(w, http.StatusBadRequest, "bad_detection", "cve_id and host are required")
			return
		}

		d := collab.Detection{
			CveID:       req.CveID,
			Host:        req.Host,
			Port:        req.Port,
			PluginID:    req.PluginID,
			Description: req.Description,
		}

		select {
		case s.events <- d:
		default:
			s.logger.Warn("detection queue full, dropping", zap.String("cve_id", req.CveID))
			writeJSONError(w, http.StatusServiceUnavailable, "queue_full", "detection queue is full")
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "error": message})
}
