package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tordrt/schemascope/internal/schema"
)

// Schema output formats
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"

	overviewName = "_overview"
)

// ValidFormat reports whether name is a schema output format
func ValidFormat(name string) bool {
	return name == FormatText || name == FormatMarkdown
}

// MultiFileFormatter writes an overview plus one file per table into a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the schema to multiple files
func (f *MultiFileFormatter) Format(s *schema.Schema) error {
	if !ValidFormat(f.OutputFormat) {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", f.OutputFormat)
	}

	if err := os.MkdirAll(f.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeFile(overviewName, func(w io.Writer) { f.writeOverview(w, s) }); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for i := range s.Tables {
		table := &s.Tables[i]
		incoming := s.IncomingRelations(table.Name)
		if err := f.writeFile(table.Name, func(w io.Writer) { f.writeTable(w, table, incoming) }); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeFile(name string, render func(io.Writer)) error {
	file, err := os.Create(filepath.Join(f.OutputDir, name+f.fileExtension()))
	if err != nil {
		return err
	}
	render(file)
	return file.Close()
}

func (f *MultiFileFormatter) writeOverview(w io.Writer, s *schema.Schema) {
	sorted := make([]schema.Table, len(s.Tables))
	copy(sorted, s.Tables)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(w, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(w, "Each table has a corresponding file: `<table_name>%s`\n\n", f.fileExtension())
		_, _ = fmt.Fprintf(w, "## Tables\n\n")
		for _, table := range sorted {
			_, _ = fmt.Fprintf(w, "- **%s**%s\n", table.Name, referenceList(&table, ", "))
		}
		return
	}

	_, _ = fmt.Fprintf(w, "SCHEMA OVERVIEW\n")
	_, _ = fmt.Fprintf(w, "Each table has a file: <table_name>%s\n\n", f.fileExtension())
	for _, table := range sorted {
		_, _ = fmt.Fprintf(w, "%s%s\n", table.Name, referenceList(&table, ","))
	}
}

func (f *MultiFileFormatter) writeTable(w io.Writer, table *schema.Table, incoming []schema.IncomingRelation) {
	if f.OutputFormat == FormatMarkdown {
		NewMarkdownFormatter(w).FormatTable(table, incoming)
		return
	}

	NewTextFormatter(w).FormatTable(table)
	if len(incoming) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "  REFERENCED BY:")
		for _, rel := range incoming {
			_, _ = fmt.Fprintf(w, "    %s.%s → %s (%s)\n", rel.SourceTable, rel.SourceColumn, rel.TargetColumn, rel.Cardinality)
		}
	}
}

// referenceList renders " (references: a, b)" for tables with outgoing foreign keys
func referenceList(table *schema.Table, sep string) string {
	if len(table.Relations) == 0 {
		return ""
	}
	targets := make([]string, 0, len(table.Relations))
	for _, rel := range table.Relations {
		targets = append(targets, rel.TargetTable)
	}
	return fmt.Sprintf(" (references: %s)", strings.Join(targets, sep))
}

func (f *MultiFileFormatter) fileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
