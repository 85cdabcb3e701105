package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemascope/internal/schema"
)

// TextFormatter formats schema as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the schema in compact text format
func (f *TextFormatter) Format(s *schema.Schema) error {
	for i := range s.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer)
		}
		f.FormatTable(&s.Tables[i])
	}
	return nil
}

// FormatTable writes one table block
func (f *TextFormatter) FormatTable(table *schema.Table) {
	_, _ = fmt.Fprintf(f.writer, "TABLE %s%s\n", table.Name, tableAnnotations(table, ", "))

	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", textColumn(col))
	}

	if len(table.Relations) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  RELATIONS:")
		for _, rel := range table.Relations {
			_, _ = fmt.Fprintf(f.writer, "    %s → %s.%s (%s)\n", rel.SourceColumn, rel.TargetTable, rel.TargetColumn, rel.Cardinality)
		}
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			unique := ""
			if idx.IsUnique {
				unique = " UNIQUE"
			}
			_, _ = fmt.Fprintf(f.writer, "    %s (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), unique)
		}
	}
}

// tableAnnotations renders " (PK: a, b; ~120 rows)" or nothing
func tableAnnotations(table *schema.Table, sep string) string {
	var notes []string
	if len(table.PrimaryKey) > 0 {
		notes = append(notes, "PK: "+strings.Join(table.PrimaryKey, sep))
	}
	if table.RowEstimate != nil {
		notes = append(notes, fmt.Sprintf("~%d rows", *table.RowEstimate))
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, "; ") + ")"
}

func textColumn(col schema.Column) string {
	parts := []string{col.Name + ":", typeWithEnum(col)}

	if col.IsUnique {
		parts = append(parts, "UNIQUE")
	}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.DefaultValue != nil {
		parts = append(parts, "DEFAULT "+*col.DefaultValue)
	}
	if col.Comment != "" {
		parts = append(parts, "-- "+col.Comment)
	}

	return strings.Join(parts, " ")
}

func typeWithEnum(col schema.Column) string {
	if len(col.EnumValues) == 0 {
		return col.Type
	}
	return fmt.Sprintf("%s (%s)", col.Type, strings.Join(col.EnumValues, "|"))
}
