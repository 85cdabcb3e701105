package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/tordrt/schemascope/internal/analysis"
)

// ReportFormatter renders an analysis report as text or markdown
type ReportFormatter struct {
	writer  io.Writer
	noColor bool
}

// NewReportFormatter creates a report formatter. Colors only apply to text output.
func NewReportFormatter(w io.Writer, noColor bool) *ReportFormatter {
	return &ReportFormatter{writer: w, noColor: noColor}
}

// FormatText writes a terminal-friendly report
func (f *ReportFormatter) FormatText(r *analysis.Report) error {
	bold := color.New(color.Bold, color.FgCyan)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen, color.Bold)
	if f.noColor {
		for _, c := range []*color.Color{bold, red, yellow, green} {
			c.DisableColor()
		}
	}

	w := f.writer
	_, _ = bold.Fprintf(w, "SCHEMA HEALTH %s (%s)\n", r.Schema, r.Source)
	_, _ = fmt.Fprintf(w, "%d tables, %d columns, %d relations\n\n", r.TableCount, r.ColumnCount, r.RelationCount)

	section := func(c *color.Color, title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		_, _ = c.Fprintf(w, "%s (%d)\n", title, len(lines))
		for _, line := range lines {
			_, _ = fmt.Fprintf(w, "  %s\n", line)
		}
		_, _ = fmt.Fprintln(w)
	}

	section(red, "TABLES WITHOUT PRIMARY KEY", r.TablesWithoutPrimaryKey)
	section(red, "TABLES WITHOUT COLUMNS", r.EmptyTables)
	section(red, "DANGLING FOREIGN KEYS", danglingLines(r))
	section(red, "SIMILAR TABLES", similarLines(r))
	section(red, "DUPLICATE COLUMNS", duplicateLines(r))
	section(yellow, "UNINDEXED FOREIGN KEYS", unindexedLines(r))
	section(yellow, "TYPE CONFLICTS", conflictLines(r))

	if !r.IndexesChecked {
		_, _ = fmt.Fprintln(w, "Index checks skipped: the source does not expose indexes.")
		_, _ = fmt.Fprintln(w)
	}

	if r.Healthy {
		_, _ = green.Fprintf(w, "HEALTHY (%d warnings)\n", r.WarningCount())
	} else {
		_, _ = red.Fprintf(w, "UNHEALTHY: %d issues, %d warnings\n", r.IssueCount(), r.WarningCount())
	}
	return nil
}

// FormatMarkdown writes the report as a markdown document
func (f *ReportFormatter) FormatMarkdown(r *analysis.Report) error {
	w := f.writer
	_, _ = fmt.Fprintf(w, "# Schema Health: %s\n\n", r.Schema)

	status := "Healthy"
	if !r.Healthy {
		status = "Unhealthy"
	}
	_, _ = fmt.Fprintf(w, "- **Status:** %s\n", status)
	_, _ = fmt.Fprintf(w, "- **Source:** %s\n", r.Source)
	_, _ = fmt.Fprintf(w, "- **Tables:** %d\n", r.TableCount)
	_, _ = fmt.Fprintf(w, "- **Columns:** %d\n", r.ColumnCount)
	_, _ = fmt.Fprintf(w, "- **Relations:** %d\n\n", r.RelationCount)

	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		_, _ = fmt.Fprintf(w, "## %s\n\n", title)
		for _, line := range lines {
			_, _ = fmt.Fprintf(w, "- %s\n", line)
		}
		_, _ = fmt.Fprintln(w)
	}

	section("Tables without primary key", r.TablesWithoutPrimaryKey)
	section("Tables without columns", r.EmptyTables)
	section("Dangling foreign keys", danglingLines(r))
	section("Similar tables", similarLines(r))
	section("Duplicate columns", duplicateLines(r))
	section("Unindexed foreign keys", unindexedLines(r))
	section("Type conflicts", conflictLines(r))

	return nil
}

func danglingLines(r *analysis.Report) []string {
	lines := make([]string, 0, len(r.DanglingRelations))
	for _, d := range r.DanglingRelations {
		lines = append(lines, fmt.Sprintf("%s.%s → %s.%s (missing table)", d.Table, d.Column, d.TargetTable, d.TargetColumn))
	}
	return lines
}

func similarLines(r *analysis.Report) []string {
	lines := make([]string, 0, len(r.SimilarTables))
	for _, s := range r.SimilarTables {
		line := fmt.Sprintf("%s ~ %s: %.1f%% (shared: %s)", s.TableA, s.TableB, s.Score, strings.Join(s.SharedColumns, ", "))
		if s.Identical {
			line += " identical"
		}
		lines = append(lines, line)
	}
	return lines
}

func duplicateLines(r *analysis.Report) []string {
	lines := make([]string, 0, len(r.DuplicateColumns))
	for _, d := range r.DuplicateColumns {
		lines = append(lines, fmt.Sprintf("%s: %s", d.Table, strings.Join(d.Columns, ", ")))
	}
	return lines
}

func unindexedLines(r *analysis.Report) []string {
	lines := make([]string, 0, len(r.UnindexedForeignKeys))
	for _, u := range r.UnindexedForeignKeys {
		lines = append(lines, fmt.Sprintf("%s.%s → %s", u.Table, u.Column, u.TargetTable))
	}
	return lines
}

func conflictLines(r *analysis.Report) []string {
	lines := make([]string, 0, len(r.TypeConflicts))
	for _, c := range r.TypeConflicts {
		usages := make([]string, 0, len(c.Usages))
		for _, u := range c.Usages {
			usages = append(usages, u.Table+" "+u.Type)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", c.Column, strings.Join(usages, ", ")))
	}
	return lines
}
