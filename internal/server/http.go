package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tordrt/schemascope/internal/analysis"
	"github.com/tordrt/schemascope/internal/db"
)

const readyTimeout = 5 * time.Second

// HTTPServer serves the JSON API on top of a Service
type HTTPServer struct {
	service    *Service
	logger     *zap.Logger
	corsOrigin string
}

// NewHTTPServer creates an HTTPServer. corsOrigin is sent as Access-Control-Allow-Origin.
func NewHTTPServer(service *Service, logger *zap.Logger, corsOrigin string) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{service: service, logger: logger, corsOrigin: corsOrigin}
}

// Handler returns the routed handler with request-id, access log and CORS middleware
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, s.accessLog, s.cors)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/health/similar", s.handleSimilar)
	r.Get("/api/health/report", s.handleReport)

	r.Get("/api/schema", s.handleSchema)
	r.Post("/api/schema/refresh", s.handleRefresh)
	r.Get("/api/schema/{table}", s.handleTable)

	r.Get("/api/tables/{table}/rows", s.handleRows)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"source": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["source"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	if s.service.CacheEnabled() {
		checks["cache"] = map[string]any{"status": "ok"}
		// reads fall through to the source, so a cache outage only degrades
		if err := s.service.PingCache(ctx); err != nil {
			if status == "ready" {
				status = "degraded"
			}
			checks["cache"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     statusCode == http.StatusOK,
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSimilar(w http.ResponseWriter, r *http.Request) {
	opts, err := parseAnalysisOptions(r, s.service.AnalysisOptions())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.service.Similar(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request) {
	opts, err := parseAnalysisOptions(r, s.service.AnalysisOptions())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	report, err := s.service.Report(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type tableSummary struct {
	Name          string   `json:"name"`
	ColumnCount   int      `json:"column_count"`
	RelationCount int      `json:"relation_count"`
	PrimaryKey    []string `json:"primary_key"`
	RowEstimate   *int64   `json:"row_estimate,omitempty"`
}

func (s *HTTPServer) handleSchema(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.service.Schema(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	tables := make([]tableSummary, 0, len(snapshot.Tables))
	for _, t := range snapshot.Tables {
		pk := t.PrimaryKey
		if pk == nil {
			pk = []string{}
		}
		tables = append(tables, tableSummary{
			Name:          t.Name,
			ColumnCount:   len(t.Columns),
			RelationCount: len(t.Relations),
			PrimaryKey:    pk,
			RowEstimate:   t.RowEstimate,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":   snapshot.Name,
		"source": snapshot.Source,
		"tables": tables,
	})
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.service.Refresh(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"name":   snapshot.Name,
		"source": snapshot.Source,
		"tables": len(snapshot.Tables),
	})
}

func (s *HTTPServer) handleTable(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.Table(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *HTTPServer) handleRows(w http.ResponseWriter, r *http.Request) {
	q, err := parseRowQuery(r, chi.URLParam(r, "table"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page, err := s.service.Rows(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// fail writes the error response and logs server-side failures
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status == statusClientClosedRequest {
		s.logger.Debug("request canceled",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
		)
	}
	if apiErr.Status >= http.StatusInternalServerError && apiErr.Status != http.StatusNotImplemented {
		s.logger.Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, apiErr.Status, apiErr.Code, apiErr.Message, apiErr.Details)
}

// parseAnalysisOptions overrides defaults with threshold, min_columns and ignore query params
func parseAnalysisOptions(r *http.Request, opts analysis.Options) (analysis.Options, error) {
	query := r.URL.Query()

	if raw := query.Get("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 || threshold > 100 {
			return opts, invalidParameter("threshold", "threshold must be a number between 0 and 100")
		}
		opts.Threshold = threshold
	}

	if raw := query.Get("min_columns"); raw != "" {
		minColumns, err := strconv.Atoi(raw)
		if err != nil || minColumns < 1 {
			return opts, invalidParameter("min_columns", "min_columns must be a positive integer")
		}
		opts.MinColumns = minColumns
	}

	if query.Has("ignore") {
		opts.IgnoreColumns = splitCSV(query.Get("ignore"))
	}

	return opts, nil
}

// parseRowQuery reads select=a,b&order=col.desc,other&limit=&offset=
func parseRowQuery(r *http.Request, table string) (db.RowQuery, error) {
	query := r.URL.Query()
	q := db.RowQuery{
		Table:   table,
		Columns: splitCSV(query.Get("select")),
	}

	for _, term := range splitCSV(query.Get("order")) {
		column, direction, _ := strings.Cut(term, ".")
		switch strings.ToLower(direction) {
		case "", "asc":
			q.Order = append(q.Order, db.OrderTerm{Column: column})
		case "desc":
			q.Order = append(q.Order, db.OrderTerm{Column: column, Descending: true})
		default:
			return q, invalidParameter("order", "order direction must be asc or desc")
		}
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return q, invalidParameter("limit", "limit must be a positive integer")
		}
		q.Limit = limit
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return q, invalidParameter("offset", "offset must be a non-negative integer")
		}
		q.Offset = offset
	}

	return q, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}
