package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tordrt/schemascope/internal/schema"
)

func newMySQLMock(t *testing.T) (*MySQLExtractor, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewMySQLExtractor(NewMySQLClientWithDB(mockDB), "crm"), mock
}

func expectMySQLTables(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("crm").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_rows"}).
			AddRow("contacts", 1520).
			AddRow("deals", nil))
}

func TestMySQLExtractSchema(t *testing.T) {
	extractor, mock := newMySQLMock(t)
	expectMySQLTables(mock)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("crm", "contacts").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_type", "data_type", "is_nullable", "column_default", "column_comment"}).
			AddRow("id", "bigint unsigned", "bigint", "NO", nil, "").
			AddRow("email", "varchar(255)", "varchar", "NO", nil, "primary address").
			AddRow("status", "enum('new','qualified','won')", "enum", "YES", "new", "").
			AddRow("org_id", "bigint unsigned", "bigint", "YES", nil, ""))

	mock.ExpectQuery("FROM information_schema.key_column_usage").
		WithArgs("crm", "contacts").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name", "referenced_table_name", "referenced_column_name"}).
			AddRow("PRIMARY", "id", nil, nil).
			AddRow("fk_contacts_org", "org_id", "orgs", "id"))

	mock.ExpectQuery("FROM information_schema.statistics").
		WithArgs("crm", "contacts").
		WillReturnRows(sqlmock.NewRows([]string{"index_name", "non_unique", "column_name"}).
			AddRow("email", 0, "email").
			AddRow("idx_org_status", 1, "org_id").
			AddRow("idx_org_status", 1, "status"))

	s, err := extractor.ExtractSchema(context.Background(), []string{"contacts"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "crm", s.Name)
	assert.Equal(t, schema.SourceMySQL, s.Source)
	require.Len(t, s.Tables, 1)

	table := s.Tables[0]
	assert.Equal(t, []string{"id"}, table.PrimaryKey)
	require.NotNil(t, table.RowEstimate)
	assert.Equal(t, int64(1520), *table.RowEstimate)
	assert.Equal(t, []schema.Relation{{SourceColumn: "org_id", TargetTable: "orgs", TargetColumn: "id", Cardinality: "N:1"}}, table.Relations)

	email, ok := table.Column("email")
	require.True(t, ok)
	assert.True(t, email.IsUnique)
	assert.Equal(t, "primary address", email.Comment)

	status, ok := table.Column("status")
	require.True(t, ok)
	assert.True(t, status.Nullable)
	assert.False(t, status.IsUnique)
	assert.Equal(t, []string{"new", "qualified", "won"}, status.EnumValues)
	require.NotNil(t, status.DefaultValue)
	assert.Equal(t, "new", *status.DefaultValue)

	assert.Equal(t, []schema.Index{
		{Name: "email", Columns: []string{"email"}, IsUnique: true},
		{Name: "idx_org_status", Columns: []string{"org_id", "status"}},
	}, table.Indexes)
}

func TestMySQLExtractSchemaAllTables(t *testing.T) {
	extractor, mock := newMySQLMock(t)
	mock.MatchExpectationsInOrder(false)
	expectMySQLTables(mock)

	for _, name := range []string{"contacts", "deals"} {
		mock.ExpectQuery("FROM information_schema.columns").
			WithArgs("crm", name).
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_type", "data_type", "is_nullable", "column_default", "column_comment"}).
				AddRow("id", "bigint", "bigint", "NO", nil, ""))
		mock.ExpectQuery("FROM information_schema.key_column_usage").
			WithArgs("crm", name).
			WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name", "referenced_table_name", "referenced_column_name"}).
				AddRow("PRIMARY", "id", nil, nil))
		mock.ExpectQuery("FROM information_schema.statistics").
			WithArgs("crm", name).
			WillReturnRows(sqlmock.NewRows([]string{"index_name", "non_unique", "column_name"}))
	}

	s, err := extractor.ExtractSchema(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, s.Tables, 2)
	assert.Equal(t, "contacts", s.Tables[0].Name)
	assert.Equal(t, "deals", s.Tables[1].Name)
	assert.NotNil(t, s.Tables[0].RowEstimate)
	assert.Nil(t, s.Tables[1].RowEstimate)
}

func TestMySQLExtractSchemaUnknownTable(t *testing.T) {
	extractor, mock := newMySQLMock(t)
	expectMySQLTables(mock)

	_, err := extractor.ExtractSchema(context.Background(), []string{"invoices"})
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestParseMySQLEnum(t *testing.T) {
	tests := []struct {
		name       string
		columnType string
		want       []string
		wantErr    bool
	}{
		{name: "labels", columnType: "enum('a','b c','d')", want: []string{"a", "b c", "d"}},
		{name: "escaped quote", columnType: "enum('it''s','x,y')", want: []string{"it's", "x,y"}},
		{name: "not an enum", columnType: "varchar(20)"},
		{name: "unterminated", columnType: "enum('a", wantErr: true},
		{name: "unterminated label", columnType: "enum('a)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMySQLEnum(tt.columnType)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDatabaseName(t *testing.T) {
	name, err := ParseDatabaseName("user:pass@tcp(localhost:3306)/crm?parseTime=true")
	require.NoError(t, err)
	assert.Equal(t, "crm", name)

	_, err = ParseDatabaseName("user:pass@tcp(localhost:3306)/")
	assert.Error(t, err)
}

func TestDSNLocation(t *testing.T) {
	assert.Equal(t, "localhost:3306/crm", DSNLocation("user:pass@tcp(localhost:3306)/crm?parseTime=true"))
	assert.Empty(t, DSNLocation("not a dsn"))
}
