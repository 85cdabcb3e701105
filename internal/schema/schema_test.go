package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "contacts"},
		{name: "underscore prefix", input: "_internal"},
		{name: "mixed case and digits", input: "Lead2Deal_v3"},
		{name: "max length", input: strings.Repeat("a", MaxIdentifierLength)},
		{name: "empty", input: "", wantErr: true},
		{name: "too long", input: strings.Repeat("a", MaxIdentifierLength+1), wantErr: true},
		{name: "leading digit", input: "1table", wantErr: true},
		{name: "dash", input: "my-table", wantErr: true},
		{name: "quote injection", input: `users"; drop table users; --`, wantErr: true},
		{name: "dot", input: "public.users", wantErr: true},
		{name: "space", input: "first name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidIdentifier)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateIdentifiers(t *testing.T) {
	assert.NoError(t, ValidateIdentifiers("a", "b_c"))
	err := ValidateIdentifiers("ok", "not ok", "x-y")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.Contains(t, err.Error(), "not ok")
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name       string
		include    []string
		exclude    []string
		wantTables []string
	}{
		{name: "no filters", wantTables: []string{"users", "posts", "comments"}},
		{name: "exclude single table", exclude: []string{"posts"}, wantTables: []string{"users", "comments"}},
		{name: "include only", include: []string{"comments", "users"}, wantTables: []string{"users", "comments"}},
		{name: "include then exclude", include: []string{"users", "posts"}, exclude: []string{"posts"}, wantTables: []string{"users"}},
		{name: "exclude non-existent table", exclude: []string{"products"}, wantTables: []string{"users", "posts", "comments"}},
		{name: "exclude all tables", exclude: []string{"users", "posts", "comments"}, wantTables: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Schema{Tables: []Table{{Name: "users"}, {Name: "posts"}, {Name: "comments"}}}
			s.Filter(tt.include, tt.exclude)

			got := make([]string, 0, len(s.Tables))
			for _, table := range s.Tables {
				got = append(got, table.Name)
			}
			assert.Equal(t, tt.wantTables, got)
		})
	}
}

func TestIncomingRelations(t *testing.T) {
	s := &Schema{Tables: []Table{
		{Name: "contacts"},
		{Name: "deals", Relations: []Relation{{SourceColumn: "contact_id", TargetTable: "contacts", TargetColumn: "id", Cardinality: "N:1"}}},
		{Name: "notes", Relations: []Relation{
			{SourceColumn: "contact_id", TargetTable: "contacts", TargetColumn: "id", Cardinality: "N:1"},
			{SourceColumn: "deal_id", TargetTable: "deals", TargetColumn: "id", Cardinality: "N:1"},
		}},
	}}

	incoming := s.IncomingRelations("contacts")
	require.Len(t, incoming, 2)
	assert.Equal(t, "deals", incoming[0].SourceTable)
	assert.Equal(t, "notes", incoming[1].SourceTable)
	assert.Empty(t, s.IncomingRelations("notes"))
}

func TestTableLookups(t *testing.T) {
	s := &Schema{Tables: []Table{{
		Name:       "contacts",
		PrimaryKey: []string{"id"},
		Columns:    []Column{{Name: "id"}, {Name: "email"}},
	}}}

	table, ok := s.Table("contacts")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "email"}, table.ColumnNames())
	assert.True(t, table.IsPrimaryKey("id"))
	assert.False(t, table.IsPrimaryKey("email"))

	col, ok := table.Column("email")
	require.True(t, ok)
	assert.Equal(t, "email", col.Name)

	_, ok = table.Column("phone")
	assert.False(t, ok)
	_, ok = s.Table("missing")
	assert.False(t, ok)
}
