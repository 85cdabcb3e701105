package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemascope/internal/analysis"
	"github.com/tordrt/schemascope/internal/formatter"
	"github.com/tordrt/schemascope/internal/schema"
)

const crmOpenAPIDoc = `{
  "swagger": "2.0",
  "definitions": {
    "contacts": {
      "required": ["id", "email"],
      "properties": {
        "id": {"description": "Note:\nThis is a Primary Key.<pk/>", "format": "uuid", "type": "string"},
        "first_name": {"format": "text", "type": "string"},
        "last_name": {"format": "text", "type": "string"},
        "email": {"format": "text", "type": "string"}
      }
    },
    "contacts_archive": {
      "required": ["id"],
      "properties": {
        "id": {"description": "Note:\nThis is a Primary Key.<pk/>", "format": "uuid", "type": "string"},
        "first_name": {"format": "text", "type": "string"},
        "last_name": {"format": "text", "type": "string"},
        "email": {"format": "text", "type": "string"}
      }
    }
  }
}`

func newCRMServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(crmOpenAPIDoc))
	}))
	t.Cleanup(srv.Close)
	return "rest+" + srv.URL
}

// execute runs the root command with fresh flag values and returns stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestParseTableList(t *testing.T) {
	tests := []struct {
		name       string
		tablesStr  string
		wantTables []string
	}{
		{"single table", "users", []string{"users"}},
		{"multiple tables", "users,posts,comments", []string{"users", "posts", "comments"}},
		{"tables with spaces", "users, posts, comments", []string{"users", "posts", "comments"}},
		{"empty string", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTables, parseTableList(tt.tablesStr))
		})
	}
}

func TestShouldSplit(t *testing.T) {
	tests := []struct {
		name   string
		flags  extractFlags
		tables int
		want   bool
	}{
		{"no directory", extractFlags{}, 40, false},
		{"directory without threshold", extractFlags{outputDir: "out"}, 1, true},
		{"below threshold", extractFlags{outputDir: "out", splitThreshold: 10}, 5, false},
		{"at threshold", extractFlags{outputDir: "out", splitThreshold: 10}, 10, false},
		{"above threshold", extractFlags{outputDir: "out", splitThreshold: 10}, 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldSplit(tt.flags, tt.tables))
		})
	}
}

func TestOutputForSingleFileInDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	s := &schema.Schema{Tables: []schema.Table{{Name: "users"}}}

	out, closeOut, err := outputFor(extractFlags{outputDir: dir, format: formatter.FormatMarkdown, splitThreshold: 5}, s, &bytes.Buffer{})
	require.NoError(t, err)
	defer closeOut()

	assert.Empty(t, out.OutputDir)
	require.NotNil(t, out.Writer)
	assert.FileExists(t, filepath.Join(dir, "schema.md"))
}

func TestWriteReport(t *testing.T) {
	report := &analysis.Report{
		Schema:  "public",
		Source:  schema.SourcePostgres,
		Healthy: true,
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReport(&buf, report, "json", true))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "public", decoded["schema"])
	})

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReport(&buf, report, formatter.FormatMarkdown, false))
		assert.Contains(t, buf.String(), "Healthy")
	})
}

func TestExtractRequiresDatabaseURL(t *testing.T) {
	_, err := execute(t, "extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection URL is required")
}

func TestExtractFlagConflicts(t *testing.T) {
	url := newCRMServer(t)

	_, err := execute(t, "extract", "--db-url", url, "-o", "schema.txt", "-d", "out")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot use both")

	_, err = execute(t, "extract", "--db-url", url, "-f", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExtractCommand(t *testing.T) {
	url := newCRMServer(t)

	out, err := execute(t, "extract", "--db-url", url, "-x", "contacts_archive")
	require.NoError(t, err)
	assert.Contains(t, out, "contacts")
	assert.NotContains(t, out, "contacts_archive")
}

func TestExtractCommandToDirectory(t *testing.T) {
	url := newCRMServer(t)
	dir := filepath.Join(t.TempDir(), "schema")

	_, err := execute(t, "extract", "--db-url", url, "-d", dir, "-f", "markdown")
	require.NoError(t, err)

	for _, name := range []string{"_overview.md", "contacts.md", "contacts_archive.md"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestHealthCommand(t *testing.T) {
	url := newCRMServer(t)

	out, err := execute(t, "health", "--db-url", url, "-f", "json")
	require.NoError(t, err)

	var report analysis.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.SimilarTables, 1)
	assert.Equal(t, 100.0, report.SimilarTables[0].Score)
	assert.False(t, report.IndexesChecked)
}

func TestHealthCommandFailOnIssues(t *testing.T) {
	url := newCRMServer(t)

	_, err := execute(t, "health", "--db-url", url, "--fail-on-issues", "--no-color")
	assert.ErrorIs(t, err, errUnhealthy)

	_, err = execute(t, "health", "--db-url", url, "--fail-on-issues", "--threshold", "100.1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errUnhealthy)
}

func TestConfigFileFlag(t *testing.T) {
	url := newCRMServer(t)
	cfgPath := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  url: \""+url+"\"\n"), 0o644))

	out, err := execute(t, "extract", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "contacts_archive")
}
