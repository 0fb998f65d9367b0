package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spectra-red/vulnpipe/internal/config"
	"github.com/spectra-red/vulnpipe/internal/pipeline"
)

// simulatedDetection mirrors the wire shape accepted by the HTTP
// ingestion endpoint, for offline replay of a recorded detection batch.
type simulatedDetection struct {
	CveID       string `json:"cve_id"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	PluginID    string `json:"plugin_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewSimulateCommand creates the simulate command: it runs one scan
// start-to-end over a file of recorded detections and prints the
// resulting report, without starting an HTTP server.
func NewSimulateCommand() *cobra.Command {
	var (
		filePath     string
		outputFormat string
		noColor      bool
		nvdAPIKey    string
	)

	simulateCmd := &cobra.Command{
		Use:   "simulate [file]",
		Short: "Replay a batch of detections through one scan",
		Long: `Read a JSON array of detections, dispatch each through a single
scan, then assemble and print the report.

Examples:
  # Replay recorded detections from a file
  vulnpipectl simulate detections.json

  # Replay from stdin
  cat detections.json | vulnpipectl simulate -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath := filePath
			if inputPath == "" && len(args) > 0 {
				inputPath = args[0]
			}
			if inputPath == "" {
				inputPath = "-"
			}

			data, err := readInput(inputPath)
			if err != nil {
				return fmt.Errorf("failed to read detections: %w", err)
			}

			var detections []simulatedDetection
			if err := json.Unmarshal(data, &detections); err != nil {
				return fmt.Errorf("invalid detections JSON: %w", err)
			}

			logger := zap.NewNop()
			snap, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			hub := pipeline.NewHub(pipeline.Config{
				NVDAPIKey:     nvdAPIKey,
				RateLimitNVD:  snap.RateLimitNVD,
				RateLimitEPSS: snap.RateLimitEPSS,
				Logger:        logger,
				AIFactory:     newAIFactory(logger),
			})

			sc, err := hub.StartScan(snap)
			if err != nil {
				return fmt.Errorf("failed to start scan: %w", err)
			}

			ctx := context.Background()
			for _, d := range detections {
				var dispatchErr error
				if d.PluginID != "" || d.Description != "" {
					dispatchErr = hub.OnDetectionForScanWithPlugin(ctx, sc.ScanID, d.CveID, d.Host, d.Port, d.PluginID, d.Description)
				} else {
					dispatchErr = hub.OnDetectionForScan(ctx, sc.ScanID, d.CveID, d.Host, d.Port)
				}
				if dispatchErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "dropped detection %s@%s: %v\n", d.CveID, d.Host, dispatchErr)
				}
			}

			rpt, err := hub.EndScan(ctx, sc.ScanID)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "report archiving failed: %v\n", err)
			}

			opts := NewOutputOptions(outputFormat, noColor)
			opts.Writer = cmd.OutOrStdout()
			return FormatReport(opts, rpt)
		},
	}

	simulateCmd.Flags().StringVarP(&filePath, "file", "f", "", "detections file (use '-' for stdin)")
	simulateCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	simulateCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	simulateCmd.Flags().StringVar(&nvdAPIKey, "nvd-api-key", "", "NVD API key (raises the unauthenticated rate limit)")

	return simulateCmd
}
