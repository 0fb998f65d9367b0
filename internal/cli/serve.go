package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/surrealdb/surrealdb.go"
	"go.uber.org/zap"

	"github.com/spectra-red/vulnpipe/internal/collab"
	"github.com/spectra-red/vulnpipe/internal/config"
	"github.com/spectra-red/vulnpipe/internal/httpapi"
	"github.com/spectra-red/vulnpipe/internal/httpapi/handlers"
	"github.com/spectra-red/vulnpipe/internal/pipeline"
)

// NewServeCommand creates the serve command: it starts the chi-based
// demo HTTP surface over a freshly constructed PipelineHub.
func NewServeCommand() *cobra.Command {
	var (
		addr       string
		surrealURL string
		nvdAPIKey  string
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP",
		Long: `Start the demo HTTP surface: health, scan lifecycle, and detection
ingestion endpoints backed by a live PipelineHub.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer logger.Sync()

			snap, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			var archive collab.Archive
			if surrealURL != "" {
				db, err := surrealdb.New(surrealURL)
				if err != nil {
					logger.Warn("surrealdb connection failed, archiving disabled", zap.Error(err))
				} else {
					archive = collab.NewSurrealArchive(db)
				}
			}

			hub := pipeline.NewHub(pipeline.Config{
				NVDAPIKey:     nvdAPIKey,
				RateLimitNVD:  snap.RateLimitNVD,
				RateLimitEPSS: snap.RateLimitEPSS,
				Logger:        logger,
				AIFactory:     newAIFactory(logger),
				Archive:       archive,
			})

			source := handlers.NewDetectionIngestSource(256, logger)
			router := httpapi.SetupRoutes(logger, hub, snap, source)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			go httpapi.PumpDetections(ctx, hub, source, logger)

			srv := &http.Server{Addr: addr, Handler: router}
			go func() {
				<-ctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				srv.Shutdown(shutdownCtx)
			}()

			logger.Info("serving", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&surrealURL, "surreal-url", "", "SurrealDB websocket URL for report archiving (disabled if empty)")
	serveCmd.Flags().StringVar(&nvdAPIKey, "nvd-api-key", "", "NVD API key (raises the unauthenticated rate limit)")

	return serveCmd
}

// newAIFactory builds an AIFactory that honors a scan's config snapshot,
// returning nil (AI disabled) unless the snapshot both enables analysis
// and names a supported provider with a key.
func newAIFactory(logger *zap.Logger) func(*config.Snapshot) (collab.AIGuidance, error) {
	return func(snap *config.Snapshot) (collab.AIGuidance, error) {
		if !snap.AIEnableVulnerabilityAnalysis {
			return nil, nil
		}
		switch snap.AIProvider {
		case config.ProviderOpenAI:
			return collab.NewOpenAIGuidanceClient(collab.OpenAIGuidanceConfig{
				APIKey: snap.AIAPIKey,
				Logger: logger,
			})
		default:
			// claude/local providers have no collaborator adapter yet;
			// fail open rather than block the scan on AI enhancement.
			logger.Warn("ai provider has no guidance adapter, disabling AI enhancement", zap.String("provider", snap.AIProvider))
			return nil, nil
		}
	}
}
