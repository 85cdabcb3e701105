package analysis

import (
	"sort"
	"strings"

	"github.com/tordrt/schemascope/internal/schema"
)

// DuplicateColumn is a set of columns in one table whose names collide once normalized
type DuplicateColumn struct {
	Table   string   `json:"table"`
	Key     string   `json:"key"`
	Columns []string `json:"columns"`
}

// ColumnUsage is one table's declaration of a column
type ColumnUsage struct {
	Table string `json:"table"`
	Type  string `json:"type"`
}

// TypeConflict is a column name declared with different types across tables
type TypeConflict struct {
	Column string        `json:"column"`
	Usages []ColumnUsage `json:"usages"`
}

// NormalizeColumnName folds case and drops separators so that first_name,
// firstName and "First Name" compare equal.
func NormalizeColumnName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case '_', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FindDuplicateColumns reports, per table, columns whose normalized names collide
func FindDuplicateColumns(s *schema.Schema) []DuplicateColumn {
	var duplicates []DuplicateColumn

	for _, table := range s.Tables {
		groups := make(map[string][]string)
		var keys []string
		for _, col := range table.Columns {
			key := NormalizeColumnName(col.Name)
			if _, seen := groups[key]; !seen {
				keys = append(keys, key)
			}
			groups[key] = append(groups[key], col.Name)
		}

		for _, key := range keys {
			if len(groups[key]) > 1 {
				duplicates = append(duplicates, DuplicateColumn{
					Table:   table.Name,
					Key:     key,
					Columns: groups[key],
				})
			}
		}
	}

	return duplicates
}

// FindTypeConflicts reports column names that carry more than one type across tables.
// Names in ignore are skipped.
func FindTypeConflicts(s *schema.Schema, opts Options) []TypeConflict {
	ignore := opts.ignoreSet()
	usages := make(map[string][]ColumnUsage)

	for _, table := range s.Tables {
		for _, col := range table.Columns {
			name := strings.ToLower(col.Name)
			if ignore[name] {
				continue
			}
			usages[name] = append(usages[name], ColumnUsage{Table: table.Name, Type: strings.ToLower(col.Type)})
		}
	}

	var conflicts []TypeConflict
	for name, uses := range usages {
		types := make(map[string]bool)
		for _, u := range uses {
			types[u.Type] = true
		}
		if len(types) > 1 {
			conflicts = append(conflicts, TypeConflict{Column: name, Usages: uses})
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Column < conflicts[j].Column
	})

	return conflicts
}
