package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Error codes the REST layer uses for missing relations and columns
const (
	restMissingTable  = "PGRST205"
	restMissingColumn = "PGRST204"
)

// ReadRows forwards a validated page request to the REST interface
func (e *RESTExtractor) ReadRows(ctx context.Context, q RowQuery) (*RowPage, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}

	params := restRowParams(q)
	headers := http.Header{"Prefer": []string{"count=exact"}}

	body, respHeaders, err := e.client.get(ctx, "/"+url.PathEscape(q.Table), params, headers)
	if err != nil {
		return nil, mapRESTError(q.Table, err)
	}

	rows, err := decodeRows(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rows from %s: %w", q.Table, err)
	}

	columns := q.Columns
	if len(columns) == 0 {
		columns = firstRowKeys(body)
	}
	if columns == nil {
		columns = []string{}
	}

	return &RowPage{
		Table:   q.Table,
		Columns: columns,
		Rows:    rows,
		Limit:   q.Limit,
		Offset:  q.Offset,
		Total:   parseContentRangeTotal(respHeaders.Get("Content-Range")),
	}, nil
}

// restRowParams renders the select/order/limit/offset query parameters
func restRowParams(q RowQuery) url.Values {
	params := url.Values{}

	selectList := "*"
	if len(q.Columns) > 0 {
		selectList = strings.Join(q.Columns, ",")
	}
	params.Set("select", selectList)

	if len(q.Order) > 0 {
		terms := make([]string, 0, len(q.Order))
		for _, term := range q.Order {
			dir := "asc"
			if term.Descending {
				dir = "desc"
			}
			terms = append(terms, term.Column+"."+dir)
		}
		params.Set("order", strings.Join(terms, ","))
	}

	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	return params
}

func decodeRows(body []byte) ([]map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var rows []map[string]any
	if err := decoder.Decode(&rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

// firstRowKeys returns the keys of the first row in document order
func firstRowKeys(body []byte) []string {
	var keys []string
	gjson.GetBytes(body, "0").ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

// parseContentRangeTotal reads the total from "0-24/3573" or "*/0".
// An unknown total ("0-24/*") yields nil.
func parseContentRangeTotal(header string) *int64 {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return nil
	}
	total, err := strconv.ParseInt(header[idx+1:], 10, 64)
	if err != nil {
		return nil
	}
	return &total
}

func mapRESTError(table string, err error) error {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		switch upstream.Code {
		case pgUndefinedTable, restMissingTable:
			return fmt.Errorf("%w: %s", ErrTableNotFound, table)
		case pgUndefinedColumn, restMissingColumn:
			return fmt.Errorf("%w: %s", ErrColumnNotFound, upstream.Message)
		}
	}
	return fmt.Errorf("failed to read rows from %s: %w", table, err)
}
