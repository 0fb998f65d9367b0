package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spectra-red/vulnpipe/internal/report"
)

// NewReportCommand creates the report command: it reads an assembled
// report.Report JSON document (as produced by scan end, or archived by
// collab.Archive) and renders it in the requested format.
func NewReportCommand() *cobra.Command {
	var (
		filePath     string
		outputFormat string
		noColor      bool
	)

	reportCmd := &cobra.Command{
		Use:   "report [file]",
		Short: "Render an assembled vulnerability report",
		Long: `Render a report.Report JSON document as a table, JSON, or YAML.

Examples:
  # Render a saved report as a table
  vulnpipectl report scan-report.json

  # Pipe a report from stdin
  cat scan-report.json | vulnpipectl report -`,
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
				return fmt.Errorf("failed to read report: %w", err)
			}

			var r report.Report
			if err := json.Unmarshal(data, &r); err != nil {
				return fmt.Errorf("invalid report JSON: %w", err)
			}

			opts := NewOutputOptions(outputFormat, noColor)
			opts.Writer = cmd.OutOrStdout()
			return FormatReport(opts, &r)
		},
	}

	reportCmd.Flags().StringVarP(&filePath, "file", "f", "", "report file (use '-' for stdin)")
	reportCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	reportCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return reportCmd
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
