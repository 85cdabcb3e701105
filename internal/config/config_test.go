package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, ":8787", cfg.Server.Addr)
	assert.Empty(t, cfg.Database.Schema)
	assert.Equal(t, int32(8), cfg.Database.MaxConns)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "schemascope:", cfg.Cache.Prefix)
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Equal(t, 70.0, cfg.Analysis.Threshold)
	assert.Equal(t, 2, cfg.Analysis.MinColumns)
	assert.Equal(t, []string{"id", "created_at", "updated_at"}, cfg.Analysis.IgnoreColumns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := `
server:
  addr: ":9000"
database:
  url: "rest+https://project.example.co"
  api_key: "anon"
cache:
  redis_url: "redis://localhost:6379/0"
  ttl: 30s
analysis:
  threshold: 85
  ignore_columns: [id, tenant_id]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schemascope.yaml"), []byte(content), 0o644))

	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "rest+https://project.example.co", cfg.Database.URL)
	assert.Equal(t, "anon", cfg.Database.APIKey)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 85.0, cfg.Analysis.Threshold)
	assert.Equal(t, []string{"id", "tenant_id"}, cfg.Analysis.IgnoreColumns)
	assert.Empty(t, cfg.Database.Schema)
}

func TestLoadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCHEMASCOPE_DATABASE_URL", "postgres://localhost/app")
	t.Setenv("SCHEMASCOPE_ANALYSIS_MIN_COLUMNS", "4")
	t.Setenv("SCHEMASCOPE_ANALYSIS_IGNORE_COLUMNS", "id, org_id")

	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/app", cfg.Database.URL)
	assert.Equal(t, 4, cfg.Analysis.MinColumns)
	assert.Equal(t, []string{"id", "org_id"}, cfg.Analysis.IgnoreColumns)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(New(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"threshold", "SCHEMASCOPE_ANALYSIS_THRESHOLD", "150"},
		{"max conns", "SCHEMASCOPE_DATABASE_MAX_CONNS", "0"},
		{"log format", "SCHEMASCOPE_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.env, tt.val)

			_, err := Load(New(""))
			assert.Error(t, err)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b "))
}
