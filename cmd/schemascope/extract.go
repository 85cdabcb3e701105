package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/schemascope"
	"github.com/tordrt/schemascope/internal/formatter"
	"github.com/tordrt/schemascope/internal/schema"
)

type extractFlags struct {
	outputFile     string
	outputDir      string
	tables         string
	exclude        string
	format         string
	splitThreshold int
}

func newExtractCmd() *cobra.Command {
	var f extractFlags

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the schema in an LLM-friendly format",
		Long: `Extract writes the schema as compact text or markdown, either to one file (or stdout) or,
with --output-dir, to an _overview file plus one file per table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.outputFile, "output", "o", "", "output file (default: stdout)")
	flags.StringVarP(&f.outputDir, "output-dir", "d", "", "output directory for multi-file output")
	flags.StringVarP(&f.tables, "tables", "t", "", "specific tables (comma-separated)")
	flags.StringVarP(&f.exclude, "exclude", "x", "", "tables to leave out (comma-separated)")
	flags.StringVarP(&f.format, "format", "f", formatter.FormatText, "output format: text or markdown")
	flags.IntVar(&f.splitThreshold, "split-threshold", 0, "with --output-dir, split into one file per table only when the table count exceeds this")

	return cmd
}

func runExtract(cmd *cobra.Command, f extractFlags) error {
	if err := requireDatabaseURL(); err != nil {
		return err
	}
	if f.outputDir != "" && f.outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}
	if !formatter.ValidFormat(f.format) {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", f.format)
	}

	s, err := schemascope.ExtractSchema(cmd.Context(), cfg.Database.URL, sourceOptions(parseTableList(f.tables), parseTableList(f.exclude)))
	if err != nil {
		return err
	}
	logger.Debug("schema extracted", zap.String("schema", s.Name), zap.Int("tables", len(s.Tables)))

	out, closeOut, err := outputFor(f, s, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOut()

	if err := schemascope.FormatSchema(s, out); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

// shouldSplit reports whether the schema goes to one file per table
func shouldSplit(f extractFlags, tableCount int) bool {
	return f.outputDir != "" && (f.splitThreshold == 0 || tableCount > f.splitThreshold)
}

// outputFor picks the destination: a directory of per-table files, a single
// file inside the output directory, an explicit output file or stdout.
func outputFor(f extractFlags, s *schema.Schema, stdout io.Writer) (*schemascope.OutputOptions, func(), error) {
	noop := func() {}

	if shouldSplit(f, len(s.Tables)) {
		return &schemascope.OutputOptions{OutputDir: f.outputDir, Format: f.format}, noop, nil
	}

	path := f.outputFile
	if f.outputDir != "" {
		if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		ext := ".txt"
		if f.format == formatter.FormatMarkdown {
			ext = ".md"
		}
		path = filepath.Join(f.outputDir, "schema"+ext)
	}

	if path == "" {
		return &schemascope.OutputOptions{Writer: stdout, Format: f.format}, noop, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	closeFile := func() {
		if err := file.Close(); err != nil {
			logger.Warn("failed to close output file", zap.String("path", path), zap.Error(err))
		}
	}
	return &schemascope.OutputOptions{Writer: file, Format: f.format}, closeFile, nil
}
