package schema

// Source kinds reported in Schema.Source
const (
	SourcePostgres = "postgres"
	SourceMySQL    = "mysql"
	SourceSQLite   = "sqlite"
	SourceREST     = "rest"
)

// Schema represents a complete database schema
type Schema struct {
	Name   string  `json:"name"`
	Source string  `json:"source"`
	Tables []Table `json:"tables"`
}

// Table represents a database table
type Table struct {
	Name        string     `json:"name"`
	Columns     []Column   `json:"columns"`
	Relations   []Relation `json:"relations,omitempty"`
	Indexes     []Index    `json:"indexes,omitempty"`
	PrimaryKey  []string   `json:"primary_key,omitempty"`
	RowEstimate *int64     `json:"row_estimate,omitempty"`
}

// Column represents a table column
type Column struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Nullable     bool     `json:"nullable"`
	DefaultValue *string  `json:"default,omitempty"`
	IsUnique     bool     `json:"is_unique,omitempty"`
	EnumValues   []string `json:"enum_values,omitempty"`
	Comment      string   `json:"comment,omitempty"`
}

// Relation represents a foreign key relationship
type Relation struct {
	SourceColumn string `json:"source_column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`
	Cardinality  string `json:"cardinality"` // always N:1 for a plain foreign key
}

// IncomingRelation is a foreign key on another table pointing at this one
type IncomingRelation struct {
	SourceTable  string `json:"source_table"`
	SourceColumn string `json:"source_column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`
	Cardinality  string `json:"cardinality"`
}

// Index represents a database index
type Index struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	IsUnique bool     `json:"is_unique"`
}

// Table returns the table with the given name.
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Filter keeps only the tables named in include (when non-empty) and then
// drops everything named in exclude.
func (s *Schema) Filter(include, exclude []string) {
	if len(include) == 0 && len(exclude) == 0 {
		return
	}

	includeSet := toSet(include)
	excludeSet := toSet(exclude)

	filtered := make([]Table, 0, len(s.Tables))
	for _, table := range s.Tables {
		if len(includeSet) > 0 && !includeSet[table.Name] {
			continue
		}
		if excludeSet[table.Name] {
			continue
		}
		filtered = append(filtered, table)
	}
	s.Tables = filtered
}

// IncomingRelations finds all foreign keys pointing to the named table
func (s *Schema) IncomingRelations(tableName string) []IncomingRelation {
	var incoming []IncomingRelation

	for _, table := range s.Tables {
		for _, rel := range table.Relations {
			if rel.TargetTable == tableName {
				incoming = append(incoming, IncomingRelation{
					SourceTable:  table.Name,
					SourceColumn: rel.SourceColumn,
					TargetTable:  rel.TargetTable,
					TargetColumn: rel.TargetColumn,
					Cardinality:  rel.Cardinality,
				})
			}
		}
	}

	return incoming
}

// ColumnNames returns column names in ordinal order
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		names = append(names, col.Name)
	}
	return names
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// IsPrimaryKey reports whether the column is part of the primary key
func (t *Table) IsPrimaryKey(column string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == column {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
