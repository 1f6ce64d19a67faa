package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Register adapters and providers via init()
	_ "github.com/leapstack-labs/dataexplorer/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/dataexplorer/pkg/adapters/mssql"
	_ "github.com/leapstack-labs/dataexplorer/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/dataexplorer/pkg/llm/gemini"
	_ "github.com/leapstack-labs/dataexplorer/pkg/llm/openai"
)

// isolate runs the test from an empty directory so no stray config file is
// picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func testdataFile(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", DefaultConfigFile))
	require.NoError(t, err)
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"local:main"}, cfg.Datasets)
	assert.Equal(t, DefaultChartLibraries, cfg.ChartLibraries)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, "duckdb", cfg.Targets["local"].Type)
	assert.Equal(t, "main", cfg.Targets["local"].Schema)
	assert.Equal(t, "file", cfg.Cache.Driver)
	assert.Equal(t, DefaultCacheDir, cfg.Cache.Dir)
	assert.Equal(t, 10*time.Second, cfg.Chart.Timeout)
	assert.Equal(t, uint64(5_000_000), cfg.Chart.MaxSteps)
	assert.Equal(t, time.Second, cfg.Pipeline.Pace)
	assert.Equal(t, DefaultMaxRows, cfg.Pipeline.MaxRows)
	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.False(t, cfg.Auth.Required)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoadConfig_File(t *testing.T) {
	path := testdataFile(t)
	isolate(t)
	t.Setenv("TEST_DATAEXPLORER_KEY", "sk-test")
	t.Setenv("TEST_DATAEXPLORER_PG_PASSWORD", "pg-secret")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, GetConfigFileUsed())

	assert.Equal(t, []string{"warehouse:analytics", "local:main"}, cfg.Datasets)
	assert.Equal(t, []string{"plotly", "chartjs"}, cfg.ChartLibraries)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)

	wh := cfg.Targets["warehouse"]
	assert.Equal(t, "postgres", wh.Type)
	assert.Equal(t, "pg-secret", wh.Password)
	assert.Equal(t, 5432, wh.Port)
	assert.Equal(t, "public", wh.Schema)
	assert.Contains(t, cfg.Targets, "local", "defaults still provide the local target")

	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.Pace)
	assert.Equal(t, 2, cfg.Pipeline.RepairAttempts)
	assert.True(t, cfg.Auth.Required)
	assert.Equal(t, "analytics-session-secret-0123456789", cfg.Server.SessionSecret)
	require.Len(t, cfg.Auth.Users, 1)
	assert.Equal(t, 9, cfg.Auth.Users[0].ID)
	assert.Equal(t, "analyst", cfg.Auth.Users[0].Username)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "json", cfg.Log.Format)

	ac := cfg.AdapterConfigs()["warehouse"]
	assert.Equal(t, "reader", ac.Username)
	assert.Equal(t, "metrics", ac.Database)
	assert.Equal(t, map[string]string{"warehouse": "postgres", "local": "duckdb"}, cfg.Dialects())
}

func TestLoadConfig_UnsetVariableIsKept(t *testing.T) {
	path := testdataFile(t)
	isolate(t)
	t.Setenv("TEST_DATAEXPLORER_KEY", "")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "${TEST_DATAEXPLORER_KEY}", cfg.LLM.APIKey)
}

func TestLoadConfig_FindsFileInWorkingDir(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("llm:\n  provider: gemini\n"), 0o600))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, DefaultConfigFile, GetConfigFileUsed())
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := LoadConfig("nope.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(`
server:
  addr: ":4000"
pipeline:
  max_rows: 10
log:
  level: warn
`), 0o600))

	t.Setenv("DATAEXPLORER_SERVER__ADDR", ":5000")
	t.Setenv("DATAEXPLORER_PIPELINE__MAX_ROWS", "20")
	t.Setenv("DATAEXPLORER_DATASETS", "local:main,local:staging")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.String("log-level", "", "")
	flags.Bool("parallel-intent", false, "")
	flags.String("config", "", "")
	require.NoError(t, flags.Parse([]string{"--addr", ":6000", "--parallel-intent", "--config", "ignored.yaml"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.Server.Addr, "flag beats env")
	assert.Equal(t, 20, cfg.Pipeline.MaxRows, "env beats file")
	assert.Equal(t, "warn", cfg.Log.Level, "unset flag does not override file")
	assert.True(t, cfg.Pipeline.ParallelIntent)
	assert.Equal(t, []string{"local:main", "local:staging"}, cfg.Datasets)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Datasets: []string{"local:main"},
			LLM:      LLMConfig{Provider: "openai"},
			Targets:  map[string]TargetConfig{"local": {Type: "duckdb"}},
			Cache:    CacheConfig{Driver: "file", Dir: "cache"},
			Chart:    ChartConfig{Timeout: time.Second},
			Log:      LogConfig{Level: "info", Format: "text"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{name: "no datasets", mutate: func(c *Config) { c.Datasets = nil }, wantKey: "datasets:"},
		{name: "malformed dataset", mutate: func(c *Config) { c.Datasets = []string{"nocolon"} }, wantKey: "datasets[0]:"},
		{name: "unknown target", mutate: func(c *Config) { c.Datasets = []string{"other:main"} }, wantKey: "datasets[0]: target \"other\""},
		{name: "missing target type", mutate: func(c *Config) { c.Targets["local"] = TargetConfig{} }, wantKey: "targets.local.type:"},
		{name: "unknown adapter", mutate: func(c *Config) { c.Targets["local"] = TargetConfig{Type: "oracle"} }, wantKey: "unknown warehouse type"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "llama" }, wantKey: "llm.provider:"},
		{name: "empty provider", mutate: func(c *Config) { c.LLM.Provider = "" }, wantKey: "llm.provider:"},
		{name: "negative retries", mutate: func(c *Config) { c.LLM.MaxRetries = -1 }, wantKey: "llm.max_retries:"},
		{name: "bad cache driver", mutate: func(c *Config) { c.Cache.Driver = "redis" }, wantKey: "cache.driver:"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Cache.Driver = "sqlite" }, wantKey: "cache.path:"},
		{name: "zero chart timeout", mutate: func(c *Config) { c.Chart.Timeout = 0 }, wantKey: "chart.timeout:"},
		{name: "negative repair", mutate: func(c *Config) { c.Pipeline.RepairAttempts = -1 }, wantKey: "pipeline.repair_attempts:"},
		{name: "auth without secret", mutate: func(c *Config) { c.Auth.Required = true }, wantKey: "server.session_secret:"},
		{name: "auth with default secret", mutate: func(c *Config) {
			c.Auth.Required = true
			c.Server.SessionSecret = DefaultSessionSecret
		}, wantKey: "server.session_secret: the built-in development secret"},
		{name: "auth with unexpanded secret", mutate: func(c *Config) {
			c.Auth.Required = true
			c.Server.SessionSecret = "${DATAEXPLORER_SESSION_SECRET}"
		}, wantKey: "server.session_secret: ${DATAEXPLORER_SESSION_SECRET} is not set"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantKey: "log.level:"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantKey: "log.format:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}
}

func TestDatasetIDs(t *testing.T) {
	cfg := &Config{Datasets: []string{"local:main", "wh:sales"}}
	ids, err := cfg.DatasetIDs()
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "wh", ids[1].Target())
	assert.Equal(t, "sales", ids[1].Dataset())

	cfg.Datasets = append(cfg.Datasets, "bad")
	_, err = cfg.DatasetIDs()
	assert.Error(t, err)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	assert.Same(t, logger, GetLogger(WithLogger(context.Background(), logger)))
}
