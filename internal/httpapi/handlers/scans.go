package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spectra-red/vulnpipe/internal/config"
	"github.com/spectra-red/vulnpipe/internal/pipeline"
)

// StartScanHandler creates a scan from the server's static configuration
// snapshot and returns its scan_id. A real deployment would accept a
// per-request config override; this demo surface reuses one snapshot.
func StartScanHandler(hub *pipeline.Hub, cfg *config.Snapshot, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := hub.StartScan(cfg)
		if err != nil {
			logger.Error("start scan failed", zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to start scan")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"scan_id": sc.ScanID})
	}
}

// EndScanHandler assembles and returns the report for a scan_id, then
// destroys the ScanContext, per spec.md §4.6.
func EndScanHandler(hub *pipeline.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scanID := chi.URLParam(r, "scan_id")

		rpt, err := hub.EndScan(r.Context(), scanID)
		if err != nil {
			if errors.Is(err, pipeline.ErrUnknownScan) {
				writeJSONError(w, http.StatusNotFound, "unknown_scan", "no such scan_id")
				return
			}
			// ArchiveWriteError per spec.md §7 — the only error surfaced
			// to end_scan's caller — but the report itself is still
			// usable, so return it alongside the error status.
			logger.Warn("archive write failed", zap.String("scan_id", scanID), zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(rpt)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(rpt)
	}
}
