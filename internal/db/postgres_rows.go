package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes mapped to lookup errors
const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// ErrColumnNotFound is returned when a row query names a column that does not exist
var ErrColumnNotFound = errors.New("column not found")

// ReadRows reads a page of rows from a table in the extractor's schema
func (e *PostgresExtractor) ReadRows(ctx context.Context, q RowQuery) (*RowPage, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}

	selectSQL, countSQL := buildPostgresRowQueries(e.schema, q)

	rows, err := e.client.GetPool().Query(ctx, selectSQL, q.Limit, q.Offset)
	if err != nil {
		return nil, mapPostgresError(q.Table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, 0, len(fields))
	for _, fd := range fields {
		columns = append(columns, fd.Name)
	}

	result := make([]map[string]any, 0, q.Limit)
	for rows.Next() {
		row, err := pgx.RowToMap(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for k, v := range row {
			row[k] = displayValue(v)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(q.Table, err)
	}

	var total int64
	if err := e.client.GetPool().QueryRow(ctx, countSQL).Scan(&total); err != nil {
		return nil, mapPostgresError(q.Table, err)
	}

	return &RowPage{
		Table:   q.Table,
		Columns: columns,
		Rows:    result,
		Limit:   q.Limit,
		Offset:  q.Offset,
		Total:   &total,
	}, nil
}

// buildPostgresRowQueries renders the page and count statements.
// Every identifier must already be validated.
func buildPostgresRowQueries(schemaName string, q RowQuery) (selectSQL, countSQL string) {
	from := pgx.Identifier{schemaName, q.Table}.Sanitize()

	selectList := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, 0, len(q.Columns))
		for _, col := range q.Columns {
			quoted = append(quoted, pgx.Identifier{col}.Sanitize())
		}
		selectList = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", selectList, from)
	if len(q.Order) > 0 {
		terms := make([]string, 0, len(q.Order))
		for _, term := range q.Order {
			dir := "ASC"
			if term.Descending {
				dir = "DESC"
			}
			terms = append(terms, pgx.Identifier{term.Column}.Sanitize()+" "+dir)
		}
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(terms, ", "))
	}
	b.WriteString(" LIMIT $1 OFFSET $2")

	return b.String(), "SELECT count(*) FROM " + from
}

// displayValue converts driver values that do not encode well as JSON
func displayValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	default:
		return v
	}
}

func mapPostgresError(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUndefinedTable:
			return fmt.Errorf("%w: %s", ErrTableNotFound, table)
		case pgUndefinedColumn:
			return fmt.Errorf("%w: %s", ErrColumnNotFound, pgErr.Message)
		}
	}
	return fmt.Errorf("failed to read rows from %s: %w", table, err)
}
