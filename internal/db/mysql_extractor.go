package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tordrt/schemascope/internal/schema"
)

// MySQLExtractor reads schema metadata from MySQL's information_schema.
// In MySQL a schema is a database, so schemaName is the database name.
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL schema extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// Ping checks that the database is reachable
func (e *MySQLExtractor) Ping(ctx context.Context) error {
	return e.client.Ping(ctx)
}

// mysqlTable is a row of information_schema.tables
type mysqlTable struct {
	name string
	rows sql.NullInt64
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the schema
func (e *MySQLExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	selected, err := e.listTables(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	extractedTables := make([]schema.Table, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTables)
	for i, t := range selected {
		g.Go(func() error {
			table, err := e.extractTable(gctx, t.name)
			if err != nil {
				return fmt.Errorf("failed to extract table %s: %w", t.name, err)
			}
			// TABLE_ROWS is an InnoDB estimate, NULL for some engines
			if t.rows.Valid {
				estimate := t.rows.Int64
				table.RowEstimate = &estimate
			}
			extractedTables[i] = *table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &schema.Schema{
		Name:   e.schemaName,
		Source: schema.SourceMySQL,
		Tables: extractedTables,
	}, nil
}

// listTables returns the base tables to extract with their row estimates, in
// the requested order when tables were named and by name otherwise.
func (e *MySQLExtractor) listTables(ctx context.Context, requested []string) ([]mysqlTable, error) {
	query := `
		SELECT table_name, table_rows
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []mysqlTable
	for rows.Next() {
		var t mysqlTable
		if err := rows.Scan(&t.name, &t.rows); err != nil {
			return nil, err
		}
		all = append(all, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(requested) == 0 {
		return all, nil
	}

	names := make([]string, len(all))
	byName := make(map[string]mysqlTable, len(all))
	for i, t := range all {
		names[i] = t.name
		byName[t.name] = t
	}
	if err := checkRequestedTables(requested, names); err != nil {
		return nil, err
	}

	selected := make([]mysqlTable, len(requested))
	for i, name := range requested {
		selected[i] = byName[name]
	}
	return selected, nil
}

// extractTable extracts all information for a single table
func (e *MySQLExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns

	pk, relations, err := e.extractKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keys: %w", err)
	}
	table.PrimaryKey = pk
	table.Relations = relations

	indexes, err := e.extractIndexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Indexes = indexes

	// Every UNIQUE constraint in MySQL is backed by a unique index
	for _, idx := range indexes {
		if idx.IsUnique && len(idx.Columns) == 1 {
			if col, ok := table.Column(idx.Columns[0]); ok {
				col.IsUnique = true
			}
		}
	}

	return table, nil
}

// extractColumns extracts column information for a table
func (e *MySQLExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT column_name, column_type, data_type, is_nullable, column_default, column_comment
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var dataType, nullable string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &col.Type, &dataType, &nullable, &defaultVal, &col.Comment); err != nil {
			return nil, err
		}

		col.Nullable = nullable == "YES"
		if defaultVal.Valid {
			col.DefaultValue = &defaultVal.String
		}
		if dataType == "enum" {
			values, err := parseMySQLEnum(col.Type)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
			col.EnumValues = values
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// parseMySQLEnum returns the labels of a column type such as enum('new','it''s').
func parseMySQLEnum(columnType string) ([]string, error) {
	body, ok := strings.CutPrefix(columnType, "enum(")
	if !ok {
		return nil, nil
	}
	body, ok = strings.CutSuffix(body, ")")
	if !ok {
		return nil, fmt.Errorf("invalid enum type format: %s", columnType)
	}

	var values []string
	for len(body) > 0 {
		if body[0] != '\'' {
			return nil, fmt.Errorf("invalid enum type format: %s", columnType)
		}

		var label strings.Builder
		i := 1
		for ; i < len(body); i++ {
			if body[i] != '\'' {
				label.WriteByte(body[i])
				continue
			}
			// '' is an escaped quote inside a label
			if i+1 < len(body) && body[i+1] == '\'' {
				label.WriteByte('\'')
				i++
				continue
			}
			break
		}
		if i >= len(body) {
			return nil, fmt.Errorf("unterminated enum label: %s", columnType)
		}

		values = append(values, label.String())
		body = strings.TrimPrefix(body[i+1:], ",")
	}

	return values, nil
}

// extractKeys reads the primary key and foreign keys of a table in one pass
// over key_column_usage.
func (e *MySQLExtractor) extractKeys(ctx context.Context, tableName string) ([]string, []schema.Relation, error) {
	query := `
		SELECT constraint_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND (constraint_name = 'PRIMARY' OR referenced_table_name IS NOT NULL)
		ORDER BY constraint_name = 'PRIMARY' DESC, constraint_name, ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var pk []string
	var relations []schema.Relation
	for rows.Next() {
		var constraint, column string
		var targetTable, targetColumn sql.NullString

		if err := rows.Scan(&constraint, &column, &targetTable, &targetColumn); err != nil {
			return nil, nil, err
		}

		if constraint == "PRIMARY" {
			pk = append(pk, column)
			continue
		}
		relations = append(relations, schema.Relation{
			SourceColumn: column,
			TargetTable:  targetTable.String,
			TargetColumn: targetColumn.String,
			Cardinality:  cardinalityManyToOne,
		})
	}

	return pk, relations, rows.Err()
}

// extractIndexes reads non-primary indexes from information_schema.statistics
func (e *MySQLExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT index_name, non_unique, column_name
		FROM information_schema.statistics
		WHERE table_schema = ?
			AND table_name = ?
			AND index_name <> 'PRIMARY'
		ORDER BY index_name, seq_in_index
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var name string
		var nonUnique int
		// functional key parts have no column name
		var column sql.NullString

		if err := rows.Scan(&name, &nonUnique, &column); err != nil {
			return nil, err
		}

		if len(indexes) == 0 || indexes[len(indexes)-1].Name != name {
			indexes = append(indexes, schema.Index{Name: name, IsUnique: nonUnique == 0})
		}
		if column.Valid {
			last := &indexes[len(indexes)-1]
			last.Columns = append(last.Columns, column.String)
		}
	}

	return indexes, rows.Err()
}
