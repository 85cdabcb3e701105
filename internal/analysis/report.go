package analysis

import (
	"time"

	"github.com/tordrt/schemascope/internal/schema"
)

// DanglingRelation is a foreign key whose target table is not in the schema
type DanglingRelation struct {
	Table        string `json:"table"`
	Column       string `json:"column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`
}

// UnindexedForeignKey is a foreign key column no index leads with
type UnindexedForeignKey struct {
	Table       string `json:"table"`
	Column      string `json:"column"`
	TargetTable string `json:"target_table"`
}

// Report summarizes structural issues in a schema
type Report struct {
	Schema        string    `json:"schema"`
	Source        string    `json:"source"`
	GeneratedAt   time.Time `json:"generated_at"`
	TableCount    int       `json:"table_count"`
	ColumnCount   int       `json:"column_count"`
	RelationCount int       `json:"relation_count"`

	TablesWithoutPrimaryKey []string              `json:"tables_without_primary_key"`
	EmptyTables             []string              `json:"empty_tables"`
	DanglingRelations       []DanglingRelation    `json:"dangling_relations"`
	UnindexedForeignKeys    []UnindexedForeignKey `json:"unindexed_foreign_keys"`
	SimilarTables           []TableSimilarity     `json:"similar_tables"`
	DuplicateColumns        []DuplicateColumn     `json:"duplicate_columns"`
	TypeConflicts           []TypeConflict        `json:"type_conflicts"`

	// IndexesChecked is false for sources that do not expose indexes
	IndexesChecked bool `json:"indexes_checked"`
	Healthy        bool `json:"healthy"`
}

// IssueCount counts findings that make a schema unhealthy
func (r *Report) IssueCount() int {
	return len(r.TablesWithoutPrimaryKey) +
		len(r.EmptyTables) +
		len(r.DanglingRelations) +
		len(r.SimilarTables) +
		len(r.DuplicateColumns)
}

// WarningCount counts findings worth a look that do not fail the report
func (r *Report) WarningCount() int {
	return len(r.UnindexedForeignKeys) + len(r.TypeConflicts)
}

// BuildReport runs every check against the schema
func BuildReport(s *schema.Schema, opts Options) *Report {
	report := &Report{
		Schema:                  s.Name,
		Source:                  s.Source,
		GeneratedAt:             time.Now().UTC(),
		TableCount:              len(s.Tables),
		TablesWithoutPrimaryKey: []string{},
		EmptyTables:             []string{},
		DanglingRelations:       []DanglingRelation{},
		UnindexedForeignKeys:    []UnindexedForeignKey{},
		IndexesChecked:          s.Source != schema.SourceREST,
	}

	known := make(map[string]bool, len(s.Tables))
	for _, table := range s.Tables {
		known[table.Name] = true
	}

	for i := range s.Tables {
		table := &s.Tables[i]
		report.ColumnCount += len(table.Columns)
		report.RelationCount += len(table.Relations)

		if len(table.Columns) == 0 {
			report.EmptyTables = append(report.EmptyTables, table.Name)
		}
		if len(table.PrimaryKey) == 0 {
			report.TablesWithoutPrimaryKey = append(report.TablesWithoutPrimaryKey, table.Name)
		}

		for _, rel := range table.Relations {
			if !known[rel.TargetTable] {
				report.DanglingRelations = append(report.DanglingRelations, DanglingRelation{
					Table:        table.Name,
					Column:       rel.SourceColumn,
					TargetTable:  rel.TargetTable,
					TargetColumn: rel.TargetColumn,
				})
			}
			if report.IndexesChecked && !leadsAnyIndex(table, rel.SourceColumn) {
				report.UnindexedForeignKeys = append(report.UnindexedForeignKeys, UnindexedForeignKey{
					Table:       table.Name,
					Column:      rel.SourceColumn,
					TargetTable: rel.TargetTable,
				})
			}
		}
	}

	report.SimilarTables = FindSimilarTables(s, opts)
	if report.SimilarTables == nil {
		report.SimilarTables = []TableSimilarity{}
	}
	report.DuplicateColumns = FindDuplicateColumns(s)
	if report.DuplicateColumns == nil {
		report.DuplicateColumns = []DuplicateColumn{}
	}
	report.TypeConflicts = FindTypeConflicts(s, opts)
	if report.TypeConflicts == nil {
		report.TypeConflicts = []TypeConflict{}
	}

	report.Healthy = report.IssueCount() == 0
	return report
}

// leadsAnyIndex reports whether column is the first key of the primary key or any index
func leadsAnyIndex(table *schema.Table, column string) bool {
	if len(table.PrimaryKey) > 0 && table.PrimaryKey[0] == column {
		return true
	}
	for _, idx := range table.Indexes {
		if len(idx.Columns) > 0 && idx.Columns[0] == column {
			return true
		}
	}
	return false
}
