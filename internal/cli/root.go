// Package cli implements the vulnpipectl command-line interface: serving
// the pipeline over HTTP, simulating a scan from recorded detections,
// and rendering an assembled report, grounded on the teacher's cobra +
// viper command layer.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information (set via ldflags at build time)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"

	cfgFile string
	verbose bool
)

// NewRootCommand creates and returns the root command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vulnpipectl",
		Short: "Vulnerability enrichment and scoring pipeline CLI",
		Long: `vulnpipectl drives the vulnerability enrichment and scoring pipeline.

It can:
  - serve the pipeline over HTTP for scanners to post detections against
  - simulate a scan from a file of recorded detections
  - render an assembled report in table, JSON, or YAML form

Configuration precedence: environment variables > config file > defaults.

Environment Variables:
  VULNPIPE_AI_PROVIDER   openai, claude, or local
  VULNPIPE_AI_API_KEY    AI provider credential
  VULNPIPE_CONFIG        path to config file`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				fmt.Fprintf(os.Stderr, "config file: %s\n", viper.ConfigFileUsed())
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./vulnpipe.yaml, ~/.vulnpipe/vulnpipe.yaml, or /etc/vulnpipe/vulnpipe.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewSimulateCommand())
	rootCmd.AddCommand(NewReportCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
