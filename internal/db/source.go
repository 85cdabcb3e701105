// Package db reads schema metadata and table rows from the supported sources:
// PostgreSQL, MySQL, SQLite and the REST interface of a hosted database service.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/tordrt/schemascope/internal/schema"
)

const (
	// DefaultRowLimit is used when a RowQuery has no limit
	DefaultRowLimit = 50
	// MaxRowLimit caps the page size of a RowQuery
	MaxRowLimit = 1000

	cardinalityManyToOne = "N:1"
)

var (
	// ErrTableNotFound is returned when a requested table does not exist
	ErrTableNotFound = errors.New("table not found")
	// ErrRowsUnsupported is returned by sources that cannot read table rows
	ErrRowsUnsupported = errors.New("row reads are not supported by this source")
)

// Extractor extracts schema metadata from a source
type Extractor interface {
	// ExtractSchema extracts the complete schema for the specified tables.
	// If tables is empty, every base table is extracted.
	ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error)
}

// Pinger checks that a source is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// RowReader reads pages of rows from a table
type RowReader interface {
	ReadRows(ctx context.Context, q RowQuery) (*RowPage, error)
}

// OrderTerm is a single ORDER BY entry
type OrderTerm struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// RowQuery describes a page of rows to fetch
type RowQuery struct {
	Table   string
	Columns []string // empty selects every column
	Order   []OrderTerm
	Limit   int
	Offset  int
}

// RowPage is a page of rows returned by a RowReader
type RowPage struct {
	Table   string           `json:"table"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	Total   *int64           `json:"total,omitempty"`
}

// Normalize validates every identifier in the query and applies limit defaults.
func (q *RowQuery) Normalize() error {
	if err := schema.ValidateIdentifier(q.Table); err != nil {
		return err
	}
	if err := schema.ValidateIdentifiers(q.Columns...); err != nil {
		return err
	}
	for _, term := range q.Order {
		if err := schema.ValidateIdentifier(term.Column); err != nil {
			return err
		}
	}

	if q.Limit <= 0 {
		q.Limit = DefaultRowLimit
	}
	if q.Limit > MaxRowLimit {
		q.Limit = MaxRowLimit
	}
	if q.Offset < 0 {
		return fmt.Errorf("offset must not be negative: %d", q.Offset)
	}
	return nil
}

// checkRequestedTables validates requested table names and makes sure they exist
func checkRequestedTables(requested, existing []string) error {
	if err := schema.ValidateIdentifiers(requested...); err != nil {
		return err
	}

	known := make(map[string]bool, len(existing))
	for _, name := range existing {
		known[name] = true
	}
	for _, name := range requested {
		if !known[name] {
			return fmt.Errorf("%w: %s", ErrTableNotFound, name)
		}
	}
	return nil
}
