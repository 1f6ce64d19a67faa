// Package config loads dataexplorer configuration from defaults, a YAML
// file, DATAEXPLORER_* environment variables and command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/dataexplorer/internal/auth"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// Config holds all configuration options.
type Config struct {
	Datasets       []string                `koanf:"datasets" yaml:"datasets"`
	ChartLibraries []string                `koanf:"chart_libraries" yaml:"chart_libraries"`
	LLM            LLMConfig               `koanf:"llm" yaml:"llm"`
	Targets        map[string]TargetConfig `koanf:"targets" yaml:"targets"`
	Cache          CacheConfig             `koanf:"cache" yaml:"cache"`
	Chart          ChartConfig             `koanf:"chart" yaml:"chart"`
	Pipeline       PipelineConfig          `koanf:"pipeline" yaml:"pipeline"`
	Server         ServerConfig            `koanf:"server" yaml:"server"`
	Auth           AuthConfig              `koanf:"auth" yaml:"auth"`
	Log            LogConfig               `koanf:"log" yaml:"log"`
}

// LLMConfig selects and tunes the text-completion provider.
type LLMConfig struct {
	Provider     string        `koanf:"provider" yaml:"provider"` // openai, gemini
	Model        string        `koanf:"model" yaml:"model,omitempty"`
	APIKey       string        `koanf:"api_key" yaml:"api_key"`
	BaseURL      string        `koanf:"base_url" yaml:"base_url,omitempty"`
	RateLimitRPS float64       `koanf:"rate_limit_rps" yaml:"rate_limit_rps"`
	MaxRetries   int           `koanf:"max_retries" yaml:"max_retries"`
	Timeout      time.Duration `koanf:"timeout" yaml:"timeout"`
}

// TargetConfig holds warehouse connection settings for one named target.
type TargetConfig struct {
	Type string `koanf:"type" yaml:"type"` // duckdb, postgres, mssql

	// File path for duckdb, database name otherwise
	Database string `koanf:"database" yaml:"database,omitempty"`

	Host     string `koanf:"host" yaml:"host,omitempty"`
	Port     int    `koanf:"port" yaml:"port,omitempty"`
	User     string `koanf:"user" yaml:"user,omitempty"`
	Password string `koanf:"password" yaml:"password,omitempty"`
	Schema   string `koanf:"schema" yaml:"schema,omitempty"`

	Options map[string]string `koanf:"options" yaml:"options,omitempty"`
	// Params holds adapter-specific settings (e.g. DuckDB extensions)
	Params map[string]any `koanf:"params" yaml:"params,omitempty"`
}

// AdapterConfig converts the target into adapter connection settings.
func (t TargetConfig) AdapterConfig() core.AdapterConfig {
	return core.AdapterConfig{
		Type:     t.Type,
		Path:     t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// CacheConfig selects the schema cache store.
type CacheConfig struct {
	Driver        string `koanf:"driver" yaml:"driver"` // file, sqlite
	Dir           string `koanf:"dir" yaml:"dir"`
	Path          string `koanf:"path" yaml:"path"`
	MemoryEntries int    `koanf:"memory_entries" yaml:"memory_entries"`
}

// ChartConfig bounds sandboxed chart rendering.
type ChartConfig struct {
	Timeout  time.Duration `koanf:"timeout" yaml:"timeout"`
	MaxSteps uint64        `koanf:"max_steps" yaml:"max_steps"`
}

// PipelineConfig controls the request pipeline.
type PipelineConfig struct {
	Pace           time.Duration `koanf:"pace" yaml:"pace"`
	ParallelIntent bool          `koanf:"parallel_intent" yaml:"parallel_intent"`
	RepairAttempts int           `koanf:"repair_attempts" yaml:"repair_attempts"`
	MaxRows        int           `koanf:"max_rows" yaml:"max_rows"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string   `koanf:"addr" yaml:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins" yaml:"allowed_origins"`
	SessionSecret  string   `koanf:"session_secret" yaml:"session_secret"`
}

// AuthConfig controls login.
type AuthConfig struct {
	Required bool        `koanf:"required" yaml:"required"`
	Users    []auth.User `koanf:"users" yaml:"users,omitempty"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // text, json
}

// Default configuration values.
const (
	DefaultConfigFile    = "dataexplorer.yaml"
	DefaultProvider      = "openai"
	DefaultTarget        = "local"
	DefaultCacheDriver   = "file"
	DefaultCacheDir      = ".dataexplorer/schemas"
	DefaultCachePath     = ".dataexplorer/cache.db"
	DefaultMemoryEntries = 128
	DefaultMaxRows       = 1000
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultSessionSecret = "dataexplorer-dev-secret-change-in-production" //nolint:gosec
)

// DefaultChartLibraries are the libraries the intent classifier may pick.
var DefaultChartLibraries = []string{"plotly", "chartjs", "matplotlib", "seaborn"}

// Defaults returns the lowest-precedence configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"datasets":              []string{DefaultTarget + ":main"},
		"chart_libraries":       DefaultChartLibraries,
		"llm.provider":          DefaultProvider,
		"llm.api_key":           "",
		"llm.rate_limit_rps":    2.0,
		"llm.max_retries":       3,
		"llm.timeout":           "60s",
		"targets.local.type":    "duckdb",
		"cache.driver":          DefaultCacheDriver,
		"cache.dir":             DefaultCacheDir,
		"cache.path":            DefaultCachePath,
		"cache.memory_entries":  DefaultMemoryEntries,
		"chart.timeout":         "10s",
		"chart.max_steps":       5_000_000,
		"pipeline.pace":         "1s",
		"pipeline.max_rows":     DefaultMaxRows,
		"server.addr":           ":3001",
		"server.session_secret": DefaultSessionSecret,
		"auth.required":         false,
		"log.level":             DefaultLogLevel,
		"log.format":            DefaultLogFormat,
	}
}

// DatasetIDs parses the configured dataset list.
func (c *Config) DatasetIDs() ([]core.DatasetID, error) {
	ids := make([]core.DatasetID, 0, len(c.Datasets))
	for _, s := range c.Datasets {
		id, err := core.ParseDatasetID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AdapterConfigs returns connection settings for every target.
func (c *Config) AdapterConfigs() map[string]core.AdapterConfig {
	out := make(map[string]core.AdapterConfig, len(c.Targets))
	for name, t := range c.Targets {
		out[name] = t.AdapterConfig()
	}
	return out
}

// Dialects maps target names to their SQL dialect.
func (c *Config) Dialects() map[string]string {
	out := make(map[string]string, len(c.Targets))
	for name, t := range c.Targets {
		out[name] = t.Type
	}
	return out
}
