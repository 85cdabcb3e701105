package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/schemascope"
	"github.com/tordrt/schemascope/internal/analysis"
	"github.com/tordrt/schemascope/internal/formatter"
)

// errUnhealthy makes the command exit non-zero without printing a usage error
var errUnhealthy = errors.New("schema has health issues")

type healthFlags struct {
	tables       string
	exclude      string
	format       string
	failOnIssues bool
	noColor      bool
}

func newHealthCmd() *cobra.Command {
	var f healthFlags

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report near-duplicate tables, duplicate columns and other schema issues",
		Long: `Health compares the column-name sets of every pair of tables and reports pairs whose overlap
meets --threshold percent. It also lists columns whose names collide within a table, tables without
primary keys, foreign keys pointing at missing tables, unindexed foreign keys and type conflicts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.Float64("threshold", analysis.DefaultThreshold, "minimum similarity score (0-100) to report")
	flags.Int("min-columns", analysis.DefaultMinColumns, "skip tables with fewer comparable columns")
	flags.String("ignore", "id,created_at,updated_at", "columns left out of comparisons (comma-separated)")
	flags.StringVarP(&f.tables, "tables", "t", "", "specific tables (comma-separated)")
	flags.StringVarP(&f.exclude, "exclude", "x", "", "tables to leave out (comma-separated)")
	flags.StringVarP(&f.format, "format", "f", formatter.FormatText, "output format: text, markdown or json")
	flags.BoolVar(&f.failOnIssues, "fail-on-issues", false, "exit with status 1 when the report is unhealthy")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colored output")

	return cmd
}

func runHealth(cmd *cobra.Command, f healthFlags) error {
	if err := requireDatabaseURL(); err != nil {
		return err
	}
	switch f.format {
	case formatter.FormatText, formatter.FormatMarkdown, "json":
	default:
		return fmt.Errorf("invalid format: %s (must be 'text', 'markdown' or 'json')", f.format)
	}

	opts := cfg.Analysis.Options()
	report, err := schemascope.Analyze(cmd.Context(), cfg.Database.URL, sourceOptions(parseTableList(f.tables), parseTableList(f.exclude)), opts)
	if err != nil {
		return err
	}

	logger.Debug("health report built",
		zap.Int("tables", report.TableCount),
		zap.Int("issues", report.IssueCount()),
		zap.Int("warnings", report.WarningCount()),
	)

	if err := writeReport(cmd.OutOrStdout(), report, f.format, f.noColor || color.NoColor); err != nil {
		return err
	}

	if f.failOnIssues && !report.Healthy {
		return errUnhealthy
	}
	return nil
}

func writeReport(w io.Writer, report *analysis.Report, format string, noColor bool) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case formatter.FormatMarkdown:
		return formatter.NewReportFormatter(w, true).FormatMarkdown(report)
	default:
		return formatter.NewReportFormatter(w, noColor).FormatText(report)
	}
}
