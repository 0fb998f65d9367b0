// Package httpapi is the demo HTTP surface of SPEC_FULL.md: a chi router
// exposing health, scan lifecycle, and detection ingestion endpoints over
// the pipeline core. It is an external collaborator in spec.md §1's
// sense (scanner-facing transport), not part of the pipeline itself.
package httpapi

import (
	"context"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spectra-red/vulnpipe/internal/config"
	"github.com/spectra-red/vulnpipe/internal/httpapi/handlers"
	"github.com/spectra-red/vulnpipe/internal/httpapi/middleware"
	"github.com/spectra-red/vulnpipe/internal/pipeline"
)

// SetupRoutes configures the router and its middleware chain.
func SetupRoutes(logger *zap.Logger, hub *pipeline.Hub, cfg *config.Snapshot, source *handlers.DetectionIngestSource) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", handlers.HealthHandler(logger))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/scans", func(r chi.Router) {
			r.Post("/", handlers.StartScanHandler(hub, cfg, logger))
			r.Post("/{scan_id}/end", handlers.EndScanHandler(hub, logger))
		})
		r.Post("/detections", source.IngestHandler())
	})

	return r
}

// PumpDetections drains source's channel and dispatches each detection
// to the active scan, per spec.md §4.6's on_detection/
// on_detection_with_plugin operations. It runs until ctx is canceled.
// This is the consumer side of collab.DetectionSource — the pipeline
// never calls back into whatever produced a detection, it only pulls.
func PumpDetections(ctx context.Context, hub *pipeline.Hub, source *handlers.DetectionIngestSource, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-source.Detections():
			var err error
			if d.PluginID != "" || d.Description != "" {
				err = hub.OnDetectionWithPlugin(ctx, d.CveID, d.Host, d.Port, d.PluginID, d.Description)
			} else {
				err = hub.OnDetection(ctx, d.CveID, d.Host, d.Port)
			}
			if err != nil {
				logger.Debug("detection dropped", zap.String("cve_id", d.CveID), zap.Error(err))
			}
		}
	}
}
