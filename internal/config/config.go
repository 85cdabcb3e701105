// Package config loads schemascope settings from schemascope.yaml, SCHEMASCOPE_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tordrt/schemascope/internal/analysis"
)

// EnvPrefix is prepended to every environment variable (SCHEMASCOPE_DATABASE_URL, ...)
const EnvPrefix = "SCHEMASCOPE"

// Config represents the full schemascope configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

// DatabaseConfig represents the schema source
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Schema   string `mapstructure:"schema"`
	APIKey   string `mapstructure:"api_key"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// CacheConfig represents snapshot cache configuration. An empty RedisURL disables caching.
type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// AnalysisConfig represents similarity detection defaults
type AnalysisConfig struct {
	Threshold     float64  `mapstructure:"threshold"`
	MinColumns    int      `mapstructure:"min_columns"`
	IgnoreColumns []string `mapstructure:"ignore_columns"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options converts the analysis section into analysis.Options
func (a AnalysisConfig) Options() analysis.Options {
	ignore := make([]string, len(a.IgnoreColumns))
	copy(ignore, a.IgnoreColumns)
	return analysis.Options{
		Threshold:     a.Threshold,
		MinColumns:    a.MinColumns,
		IgnoreColumns: ignore,
	}
}

// New returns a viper instance with defaults, config search paths and env binding set up.
// Callers may bind flags to it before passing it to Load.
func New(configFile string) *viper.Viper {
	v := viper.New()

	v.SetDefault("server.addr", ":8787")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("database.url", "")
	v.SetDefault("database.schema", "")
	v.SetDefault("database.api_key", "")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.prefix", "schemascope:")
	v.SetDefault("analysis.threshold", analysis.DefaultThreshold)
	v.SetDefault("analysis.min_columns", analysis.DefaultMinColumns)
	v.SetDefault("analysis.ignore_columns", analysis.DefaultIgnoreColumns)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("schemascope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file if there is one and unmarshals everything into a Config.
// A missing schemascope.yaml is not an error; a missing explicit --config file is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// env vars arrive as one comma-separated string with untrimmed parts
	cfg.Analysis.IgnoreColumns = SplitList(strings.Join(cfg.Analysis.IgnoreColumns, ","))

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SplitList splits a comma-separated list, trimming blanks
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func validate(cfg *Config) error {
	if cfg.Database.MaxConns < 1 {
		return fmt.Errorf("database.max_conns must be at least 1, got %d", cfg.Database.MaxConns)
	}
	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", cfg.Cache.TTL)
	}
	if err := cfg.Analysis.Options().Validate(); err != nil {
		return fmt.Errorf("invalid analysis config: %w", err)
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", cfg.Log.Format)
	}
	return nil
}
