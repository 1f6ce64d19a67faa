package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: DATAEXPLORER_LLM__API_KEY sets llm.api_key.
const EnvPrefix = "DATAEXPLORER_"

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// configFileUsed tracks the file read by the last LoadConfig call.
var configFileUsed string

// flagKeys maps command-line flag names onto config keys. Flags not listed
// here are not configuration.
var flagKeys = map[string]string{
	"addr":            "server.addr",
	"dataset":         "datasets",
	"provider":        "llm.provider",
	"model":           "llm.model",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"cache-driver":    "cache.driver",
	"pace":            "pipeline.pace",
	"parallel-intent": "pipeline.parallel_intent",
	"repair-attempts": "pipeline.repair_attempts",
	"auth-required":   "auth.required",
}

// findConfigFile finds the config file to use.
// Priority: explicit path > dataexplorer.yaml > dataexplorer.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{DefaultConfigFile, "dataexplorer.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment: DATAEXPLORER_PIPELINE__MAX_ROWS -> pipeline.max_rows
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	for name, t := range cfg.Targets {
		ApplyTargetDefaults(&t)
		expandTargetEnvVars(&t)
		cfg.Targets[name] = t
	}
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	cfg.Server.SessionSecret = expandEnvVars(cfg.Server.SessionSecret)
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Cache.Driver = strings.ToLower(strings.TrimSpace(cfg.Cache.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// WithLogger stores the logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	t.Password = expandEnvVars(t.Password)
	t.User = expandEnvVars(t.User)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
}

// ApplyTargetDefaults applies default values based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	t.Type = strings.ToLower(strings.TrimSpace(t.Type))
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Port == 0 {
		switch t.Type {
		case "postgres":
			t.Port = 5432
		case "mssql":
			t.Port = 1433
		}
	}
}

// DefaultSchemaForType returns the default schema for a warehouse type.
func DefaultSchemaForType(dbType string) string {
	switch dbType {
	case "postgres":
		return "public"
	case "mssql":
		return "dbo"
	default:
		return "main"
	}
}

type configKey struct{}

// WithConfig stores the loaded configuration in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the configuration stored by WithConfig.
func FromContext(ctx context.Context) (*Config, bool) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	return cfg, ok
}
