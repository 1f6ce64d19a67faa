package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dataexplorer/pkg/adapter"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"github.com/leapstack-labs/dataexplorer/pkg/llm"
)

// Validate checks the configuration. Every error names the offending key.
func (c *Config) Validate() error {
	var errs []error
	add := func(key, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", key, fmt.Sprintf(format, args...)))
	}

	if len(c.Datasets) == 0 {
		add("datasets", "at least one dataset is required")
	}
	for i, s := range c.Datasets {
		id, err := core.ParseDatasetID(s)
		if err != nil {
			add(fmt.Sprintf("datasets[%d]", i), "%v", err)
			continue
		}
		if _, ok := c.Targets[id.Target()]; !ok {
			add(fmt.Sprintf("datasets[%d]", i), "target %q is not configured under targets", id.Target())
		}
	}

	for name, t := range c.Targets {
		key := "targets." + name + ".type"
		if t.Type == "" {
			add(key, "target type is required")
			continue
		}
		if !adapter.IsRegistered(t.Type) {
			errs = append(errs, fmt.Errorf("%s: %w", key, &adapter.UnknownAdapterError{
				Type:      t.Type,
				Available: adapter.Types(),
			}))
		}
	}

	if c.LLM.Provider == "" {
		add("llm.provider", "a provider is required (one of %v)", llm.Providers())
	} else if !llm.IsRegistered(c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider: %w %q (available: %v)", llm.ErrUnknownProvider, c.LLM.Provider, llm.Providers()))
	}
	if c.LLM.RateLimitRPS < 0 {
		add("llm.rate_limit_rps", "must not be negative")
	}
	if c.LLM.MaxRetries < 0 {
		add("llm.max_retries", "must not be negative")
	}

	switch c.Cache.Driver {
	case "file":
		if c.Cache.Dir == "" {
			add("cache.dir", "required for the file driver")
		}
	case "sqlite":
		if c.Cache.Path == "" {
			add("cache.path", "required for the sqlite driver")
		}
	default:
		add("cache.driver", "unknown driver %q (want file or sqlite)", c.Cache.Driver)
	}

	if c.Chart.Timeout <= 0 {
		add("chart.timeout", "must be positive")
	}
	if c.Pipeline.Pace < 0 {
		add("pipeline.pace", "must not be negative")
	}
	if c.Pipeline.RepairAttempts < 0 {
		add("pipeline.repair_attempts", "must not be negative")
	}
	if c.Pipeline.MaxRows < 0 {
		add("pipeline.max_rows", "must not be negative")
	}

	if c.Auth.Required {
		switch secret := c.Server.SessionSecret; {
		case secret == "":
			add("server.session_secret", "required when auth.required is set")
		case secret == DefaultSessionSecret:
			add("server.session_secret", "the built-in development secret cannot be used when auth.required is set")
		case envVarPattern.MatchString(secret):
			add("server.session_secret", "%s is not set in the environment", secret)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		add("log.level", "unknown level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		add("log.format", "unknown format %q (want text or json)", c.Log.Format)
	}

	return errors.Join(errs...)
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
