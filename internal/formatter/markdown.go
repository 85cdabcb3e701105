package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemascope/internal/schema"
)

// MarkdownFormatter formats schema as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the schema in markdown format
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	title := "Database Schema"
	if s.Name != "" {
		title = fmt.Sprintf("Database Schema: %s", s.Name)
	}
	_, _ = fmt.Fprintf(f.writer, "# %s\n\n", title)

	for i := range s.Tables {
		f.FormatTable(&s.Tables[i], nil)
	}
	return nil
}

// FormatTable writes one table section. incoming, when non-empty, is listed under "Referenced by".
func (f *MarkdownFormatter) FormatTable(table *schema.Table, incoming []schema.IncomingRelation) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)
	if table.RowEstimate != nil {
		_, _ = fmt.Fprintf(f.writer, "Approximately %d rows.\n\n", *table.RowEstimate)
	}

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)
	for _, col := range table.Columns {
		line := fmt.Sprintf("- **%s:** %s", col.Name, typeWithEnum(col))
		if constraints := markdownConstraints(col, table); constraints != "" {
			line += ", " + constraints
		}
		if col.Comment != "" {
			line += " (" + col.Comment + ")"
		}
		_, _ = fmt.Fprintln(f.writer, line)
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(table.Relations) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		for _, rel := range table.Relations {
			_, _ = fmt.Fprintf(f.writer, "- %s → %s.%s (%s)\n", rel.SourceColumn, rel.TargetTable, rel.TargetColumn, rel.Cardinality)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(incoming) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Referenced by")
		_, _ = fmt.Fprintln(f.writer)
		for _, rel := range incoming {
			_, _ = fmt.Fprintf(f.writer, "- %s.%s → %s (%s)\n", rel.SourceTable, rel.SourceColumn, rel.TargetColumn, rel.Cardinality)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Indexes")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range table.Indexes {
			unique := ""
			if idx.IsUnique {
				unique = ", unique"
			}
			_, _ = fmt.Fprintf(f.writer, "- %s on (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), unique)
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func markdownConstraints(col schema.Column, table *schema.Table) string {
	var constraints []string

	if table.IsPrimaryKey(col.Name) {
		constraints = append(constraints, "PK")
	}
	if col.IsUnique {
		constraints = append(constraints, "UNIQUE")
	}
	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}
	if col.DefaultValue != nil {
		constraints = append(constraints, "DEFAULT "+*col.DefaultValue)
	}

	return strings.Join(constraints, ", ")
}
