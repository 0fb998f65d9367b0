package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/spectra-red/vulnpipe/internal/report"
	"github.com/spectra-red/vulnpipe/internal/scoring"
)

// OutputFormat represents the supported output formats.
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatTable OutputFormat = "table"
)

// OutputOptions controls output formatting behavior.
type OutputOptions struct {
	Format     OutputFormat
	NoColor    bool
	Writer     io.Writer
	IsTerminal bool
}

// NewOutputOptions creates output options with sensible defaults.
func NewOutputOptions(format string, noColor bool) *OutputOptions {
	opts := &OutputOptions{
		Format:  FormatTable,
		NoColor: noColor,
		Writer:  os.Stdout,
	}

	if f, ok := opts.Writer.(*os.File); ok {
		opts.IsTerminal = isatty.IsTerminal(f.Fd())
	}

	switch strings.ToLower(format) {
	case "json":
		opts.Format = FormatJSON
	case "yaml", "yml":
		opts.Format = FormatYAML
	default:
		opts.Format = FormatTable
	}

	if !opts.IsTerminal || noColor {
		color.NoColor = true
	}

	return opts
}

// FormatReport renders an assembled report per opts.Format.
func FormatReport(opts *OutputOptions, r *report.Report) error {
	switch opts.Format {
	case FormatJSON:
		return formatJSON(opts.Writer, r)
	case FormatYAML:
		return formatYAML(opts.Writer, r)
	case FormatTable:
		return formatReportTable(opts, r)
	default:
		return fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

func formatJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func formatYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}

func formatReportTable(opts *OutputOptions, r *report.Report) error {
	headerColor := color.New(color.FgCyan, color.Bold)
	printHeader := func(format string, a ...interface{}) {
		if !opts.NoColor && opts.IsTerminal {
			headerColor.Fprintf(opts.Writer, format, a...)
		} else {
			fmt.Fprintf(opts.Writer, format, a...)
		}
	}

	printHeader("\nScan %s\n", r.ScanID)
	fmt.Fprintf(opts.Writer, "AI Enhancement: %v\n\n", r.AIEnhancementEnabled)
	fmt.Fprintln(opts.Writer, r.ExecutiveSummary)

	printFindings := func(title string, findings []report.FindingView) {
		if len(findings) == 0 {
			return
		}
		printHeader("\n%s:\n", title)
		table := tablewriter.NewWriter(opts.Writer)
		table.SetHeader([]string{"Host", "Port", "CVE ID", "CVSS", "Severity", "KEV", "EPSS", "SSVC", "AI Risk", "Priority"})
		table.SetBorder(true)

		for _, f := range findings {
			severity := string(f.CVSSSeverity)
			priority := string(f.AIPriority)
			if !opts.NoColor && opts.IsTerminal {
				severity = colorSeverity(severity)
				priority = colorPriority(f.AIPriority)
			}
			kev := "No"
			if f.IsKEV {
				kev = "Yes"
			}
			table.Append([]string{
				f.Host,
				fmt.Sprintf("%d", f.Port),
				f.CveID,
				fmt.Sprintf("%.1f", f.CVSSBaseScore),
				severity,
				kev,
				fmt.Sprintf("%.3f", f.EPSSScore),
				string(f.SSVCDecision),
				fmt.Sprintf("%.2f", f.AIRiskScore),
				priority,
			})
		}
		table.Render()
	}

	printFindings("Top by CVSS", r.TopByCVSS)
	printFindings("Top by EPSS", r.TopByEPSS)
	printFindings("KEV Vulnerabilities", r.KEVVulnerabilities)
	printFindings("SSVC Act Vulnerabilities", r.SSVCActVulnerabilities)

	return nil
}

func colorSeverity(severity string) string {
	switch strings.ToUpper(severity) {
	case string(scoring.SeverityCritical):
		return color.RedString(severity)
	case string(scoring.SeverityHigh):
		return color.New(color.FgRed).Sprint(severity)
	case string(scoring.SeverityMedium):
		return color.YellowString(severity)
	case string(scoring.SeverityLow):
		return color.GreenString(severity)
	default:
		return severity
	}
}

func colorPriority(p scoring.Priority) string {
	s := string(p)
	switch p {
	case scoring.PriorityCritical:
		return color.RedString(s)
	case scoring.PriorityHigh:
		return color.New(color.FgRed).Sprint(s)
	case scoring.PriorityMedium:
		return color.YellowString(s)
	default:
		return s
	}
}
