// Package server exposes schema introspection, health analysis and a validated
// row proxy over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tordrt/schemascope/internal/analysis"
	"github.com/tordrt/schemascope/internal/cache"
	"github.com/tordrt/schemascope/internal/db"
	"github.com/tordrt/schemascope/internal/schema"
)

// SnapshotStore caches extracted schemas between requests
type SnapshotStore interface {
	Get(ctx context.Context, key string) (*schema.Schema, error)
	Set(ctx context.Context, key string, s *schema.Schema) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// ServiceConfig wires a Service together. Rows and Cache are optional.
type ServiceConfig struct {
	Extractor db.Extractor
	Rows      db.RowReader
	Cache     SnapshotStore
	// Source, Location and SchemaName identify the snapshot in the cache.
	// Location is the database host and name without credentials.
	Source     string
	Location   string
	SchemaName string
	Analysis   analysis.Options
	Logger     *zap.Logger
}

// Service answers API requests from a schema source
type Service struct {
	extractor db.Extractor
	rows      db.RowReader
	cache     SnapshotStore
	cacheKey  string
	analysis  analysis.Options
	logger    *zap.Logger
}

// NewService creates a Service
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		extractor: cfg.Extractor,
		rows:      cfg.Rows,
		cache:     cfg.Cache,
		cacheKey:  cache.Key(cfg.Source, cfg.Location, cfg.SchemaName),
		analysis:  cfg.Analysis,
		logger:    logger,
	}
}

// AnalysisOptions returns a copy of the configured analysis defaults
func (s *Service) AnalysisOptions() analysis.Options {
	opts := s.analysis
	opts.IgnoreColumns = append([]string(nil), s.analysis.IgnoreColumns...)
	return opts
}

// Ping checks the schema source when it supports it
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.extractor.(db.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// CacheEnabled reports whether a snapshot cache is configured
func (s *Service) CacheEnabled() bool {
	return s.cache != nil
}

// PingCache checks the snapshot cache. It is a no-op when caching is off.
func (s *Service) PingCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Ping(ctx)
}

// Schema returns the cached snapshot, extracting and caching it on a miss.
// Cache failures are logged and fall through to the source.
func (s *Service) Schema(ctx context.Context) (*schema.Schema, error) {
	if s.cache != nil {
		snapshot, err := s.cache.Get(ctx, s.cacheKey)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("snapshot cache read failed", zap.String("key", s.cacheKey), zap.Error(err))
		}
	}

	return s.extract(ctx)
}

// Refresh drops the cached snapshot and extracts a new one
func (s *Service) Refresh(ctx context.Context) (*schema.Schema, error) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, s.cacheKey); err != nil {
			s.logger.Warn("snapshot cache delete failed", zap.String("key", s.cacheKey), zap.Error(err))
		}
	}
	return s.extract(ctx)
}

func (s *Service) extract(ctx context.Context) (*schema.Schema, error) {
	snapshot, err := s.extractor.ExtractSchema(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to extract schema: %w", err)
	}

	s.logger.Debug("schema extracted",
		zap.String("schema", snapshot.Name),
		zap.String("source", snapshot.Source),
		zap.Int("tables", len(snapshot.Tables)),
	)

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheKey, snapshot); err != nil {
			s.logger.Warn("snapshot cache write failed", zap.String("key", s.cacheKey), zap.Error(err))
		}
	}
	return snapshot, nil
}

// TableDetail is a table together with the foreign keys that point at it
type TableDetail struct {
	schema.Table
	ReferencedBy []schema.IncomingRelation `json:"referenced_by"`
}

// Table looks up a single table by name
func (s *Service) Table(ctx context.Context, name string) (*TableDetail, error) {
	if err := schema.ValidateIdentifier(name); err != nil {
		return nil, err
	}

	snapshot, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}

	table, ok := snapshot.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrTableNotFound, name)
	}

	incoming := snapshot.IncomingRelations(name)
	if incoming == nil {
		incoming = []schema.IncomingRelation{}
	}
	return &TableDetail{Table: *table, ReferencedBy: incoming}, nil
}

// SimilarityResult is the outcome of a similarity pass
type SimilarityResult struct {
	Threshold        float64                    `json:"threshold"`
	MinColumns       int                        `json:"min_columns"`
	IgnoreColumns    []string                   `json:"ignore_columns"`
	SimilarTables    []analysis.TableSimilarity `json:"similar_tables"`
	DuplicateColumns []analysis.DuplicateColumn `json:"duplicate_columns"`
}

// Similar scores every pair of tables and lists duplicate columns
func (s *Service) Similar(ctx context.Context, opts analysis.Options) (*SimilarityResult, error) {
	snapshot, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}

	result := &SimilarityResult{
		Threshold:        opts.Threshold,
		MinColumns:       opts.MinColumns,
		IgnoreColumns:    opts.IgnoreColumns,
		SimilarTables:    analysis.FindSimilarTables(snapshot, opts),
		DuplicateColumns: analysis.FindDuplicateColumns(snapshot),
	}
	if result.IgnoreColumns == nil {
		result.IgnoreColumns = []string{}
	}
	if result.SimilarTables == nil {
		result.SimilarTables = []analysis.TableSimilarity{}
	}
	if result.DuplicateColumns == nil {
		result.DuplicateColumns = []analysis.DuplicateColumn{}
	}
	return result, nil
}

// Report builds the full health report
func (s *Service) Report(ctx context.Context, opts analysis.Options) (*analysis.Report, error) {
	snapshot, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return analysis.BuildReport(snapshot, opts), nil
}

// Rows reads a page of rows after checking the table and columns against the snapshot
func (s *Service) Rows(ctx context.Context, q db.RowQuery) (*db.RowPage, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	if s.rows == nil {
		return nil, db.ErrRowsUnsupported
	}

	snapshot, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}

	table, ok := snapshot.Table(q.Table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrTableNotFound, q.Table)
	}
	for _, col := range q.Columns {
		if _, ok := table.Column(col); !ok {
			return nil, fmt.Errorf("%w: %s.%s", db.ErrColumnNotFound, q.Table, col)
		}
	}
	for _, term := range q.Order {
		if _, ok := table.Column(term.Column); !ok {
			return nil, fmt.Errorf("%w: %s.%s", db.ErrColumnNotFound, q.Table, term.Column)
		}
	}

	page, err := s.rows.ReadRows(ctx, q)
	if err != nil {
		return nil, err
	}
	// an empty page carries no column names of its own
	if len(page.Columns) == 0 {
		page.Columns = table.ColumnNames()
	}
	return page, nil
}
