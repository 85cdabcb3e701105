package db

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tordrt/schemascope/internal/schema"
)

// Markers the REST layer appends to column descriptions
var (
	primaryKeyMarker  = "<pk/>"
	foreignKeyPattern = regexp.MustCompile(`<fk table='([^']+)' column='([^']+)'/>`)
)

// RESTExtractor builds a schema from the OpenAPI description served by the REST interface
type RESTExtractor struct {
	client *RESTClient
}

// NewRESTExtractor creates a new REST schema extractor
func NewRESTExtractor(client *RESTClient) *RESTExtractor {
	return &RESTExtractor{client: client}
}

// Ping checks that the REST interface answers
func (e *RESTExtractor) Ping(ctx context.Context) error {
	return e.client.Ping(ctx)
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts every table the description exposes
func (e *RESTExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	doc, err := e.client.FetchOpenAPI(ctx)
	if err != nil {
		return nil, err
	}

	s, err := ParseOpenAPISchema(doc, e.client.schemaName)
	if err != nil {
		return nil, err
	}

	if len(tables) > 0 {
		existing := make([]string, 0, len(s.Tables))
		for _, table := range s.Tables {
			existing = append(existing, table.Name)
		}
		if err := checkRequestedTables(tables, existing); err != nil {
			return nil, fmt.Errorf("failed to get table names: %w", err)
		}
		s.Filter(tables, nil)
	}

	return s, nil
}

// ParseOpenAPISchema converts the Swagger 2.0 description produced by the REST
// layer into a schema. Tables are sorted by name; columns keep document order.
func ParseOpenAPISchema(doc []byte, schemaName string) (*schema.Schema, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("OpenAPI description is not valid JSON")
	}

	definitions := gjson.GetBytes(doc, "definitions")
	if !definitions.Exists() || !definitions.IsObject() {
		return nil, fmt.Errorf("OpenAPI description has no definitions")
	}

	if schemaName == "" {
		schemaName = "public"
	}

	var tables []schema.Table
	definitions.ForEach(func(key, def gjson.Result) bool {
		name := key.String()
		if strings.HasPrefix(name, "rpc/") {
			return true
		}
		tables = append(tables, parseDefinition(name, def, schemaName))
		return true
	})

	sort.Slice(tables, func(i, j int) bool {
		return tables[i].Name < tables[j].Name
	})

	return &schema.Schema{
		Name:   schemaName,
		Source: schema.SourceREST,
		Tables: tables,
	}, nil
}

func parseDefinition(name string, def gjson.Result, schemaName string) schema.Table {
	table := schema.Table{Name: name}

	required := make(map[string]bool)
	for _, r := range def.Get("required").Array() {
		required[r.String()] = true
	}

	def.Get("properties").ForEach(func(key, prop gjson.Result) bool {
		colName := key.String()
		description := prop.Get("description").String()

		col := schema.Column{
			Name:     colName,
			Type:     openAPIColumnType(prop, schemaName),
			Nullable: !required[colName],
			Comment:  columnComment(description),
		}

		if dv := prop.Get("default"); dv.Exists() {
			value := dv.String()
			col.DefaultValue = &value
		}

		for _, v := range prop.Get("enum").Array() {
			col.EnumValues = append(col.EnumValues, v.String())
		}

		if strings.Contains(description, primaryKeyMarker) {
			table.PrimaryKey = append(table.PrimaryKey, colName)
			// primary key columns always have a value
			col.Nullable = false
		}

		for _, match := range foreignKeyPattern.FindAllStringSubmatch(description, -1) {
			table.Relations = append(table.Relations, schema.Relation{
				SourceColumn: colName,
				TargetTable:  match[1],
				TargetColumn: match[2],
				Cardinality:  cardinalityManyToOne,
			})
		}

		table.Columns = append(table.Columns, col)
		return true
	})

	return table
}

// openAPIColumnType prefers the database type in "format" over the JSON type
func openAPIColumnType(prop gjson.Result, schemaName string) string {
	format := prop.Get("format").String()
	if format == "" {
		return prop.Get("type").String()
	}

	format = strings.TrimPrefix(format, schemaName+".")

	var maxLength *int
	if ml := prop.Get("maxLength"); ml.Exists() {
		n := int(ml.Int())
		maxLength = &n
	}
	return normalizePostgresType(format, format, maxLength)
}

// columnComment strips the generated "Note:" block from a description
func columnComment(description string) string {
	if idx := strings.Index(description, "Note:"); idx >= 0 {
		description = description[:idx]
	}
	return strings.TrimSpace(description)
}
