package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tordrt/schemascope/internal/schema"
)

// SQLiteExtractor handles schema extraction from SQLite
type SQLiteExtractor struct {
	client *SQLiteClient
}

// NewSQLiteExtractor creates a new SQLite schema extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{
		client: client,
	}
}

// Ping checks that the database is reachable
func (e *SQLiteExtractor) Ping(ctx context.Context) error {
	return e.client.Ping(ctx)
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the database
func (e *SQLiteExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	var extractedTables []schema.Table

	tableNames, err := e.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	for _, tableName := range tableNames {
		table, err := e.extractTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableName, err)
		}
		extractedTables = append(extractedTables, *table)
	}

	return &schema.Schema{
		Name:   "main",
		Source: schema.SourceSQLite,
		Tables: extractedTables,
	}, nil
}

// getTableNames returns the list of tables to extract
func (e *SQLiteExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(requestedTables) > 0 {
		if err := checkRequestedTables(requestedTables, tableList); err != nil {
			return nil, err
		}
		return requestedTables, nil
	}

	return tableList, nil
}

// extractTable extracts all information for a single table
func (e *SQLiteExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	columns, pk, err := e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns
	table.PrimaryKey = pk

	relations, err := e.extractRelations(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract relations: %w", err)
	}
	table.Relations = relations

	indexes, err := e.listIndexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}

	// UNIQUE constraints are backed by sqlite_autoindex_* indexes. They stay in
	// Indexes like Postgres constraint indexes do, and single-column ones also
	// mark the column unique.
	for _, idx := range indexes {
		if idx.IsUnique && len(idx.Columns) == 1 && !table.IsPrimaryKey(idx.Columns[0]) {
			if col, ok := table.Column(idx.Columns[0]); ok {
				col.IsUnique = true
			}
		}
	}
	table.Indexes = indexes

	return table, nil
}

// extractColumns extracts column information and the primary key for a table
func (e *SQLiteExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, []string, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, pragmaQuery("table_info", tableName))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	pkOrder := make(map[int]string)

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, nil, err
		}

		col := schema.Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0 && pk == 0,
		}
		if defaultValue.Valid {
			col.DefaultValue = &defaultValue.String
		}

		// pk is the 1-based position within the primary key
		if pk > 0 {
			pkOrder[pk] = name
		}

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var primaryKey []string
	for i := 1; i <= len(pkOrder); i++ {
		if name, ok := pkOrder[i]; ok {
			primaryKey = append(primaryKey, name)
		}
	}

	return columns, primaryKey, nil
}

// extractRelations extracts foreign key relationships
func (e *SQLiteExtractor) extractRelations(ctx context.Context, tableName string) ([]schema.Relation, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, pragmaQuery("foreign_key_list", tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relations []schema.Relation

	for rows.Next() {
		var id, seq int
		var targetTable, fromCol, onUpdate, onDelete, match string
		var toCol sql.NullString

		if err := rows.Scan(&id, &seq, &targetTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}

		rel := schema.Relation{
			SourceColumn: fromCol,
			TargetTable:  targetTable,
			TargetColumn: toCol.String, // NULL when the key references the target's primary key
			Cardinality:  cardinalityManyToOne,
		}

		relations = append(relations, rel)
	}

	return relations, rows.Err()
}

// listIndexes returns every index on a table, including auto-generated ones
func (e *SQLiteExtractor) listIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, pragmaQuery("index_list", tableName))
	if err != nil {
		return nil, err
	}

	var indexes []schema.Index
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int

		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			_ = rows.Close()
			return nil, err
		}
		// Primary key indexes are reported through table_info
		if origin == "pk" {
			continue
		}
		indexes = append(indexes, schema.Index{Name: name, IsUnique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	result := indexes[:0]
	for _, idx := range indexes {
		columns, err := e.indexColumns(ctx, idx.Name)
		if err != nil {
			return nil, err
		}
		if len(columns) > 0 {
			idx.Columns = columns
			result = append(result, idx)
		}
	}

	return result, nil
}

// indexColumns returns the columns of an index in key order
func (e *SQLiteExtractor) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, pragmaQuery("index_info", indexName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString

		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		// Expression columns have no name
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}

	return columns, rows.Err()
}

// pragmaQuery renders a table-valued PRAGMA call with a quoted argument
func pragmaQuery(pragma, name string) string {
	return fmt.Sprintf("PRAGMA %s(%s)", pragma, quoteSQLiteIdent(name))
}

func quoteSQLiteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
