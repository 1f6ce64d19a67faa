package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/leapstack-labs/dataexplorer/internal/cli/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var provider string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter dataexplorer.yaml",
		Long: `Write a dataexplorer.yaml with every setting at its default value,
ready to point at your warehouse.`,
		Example: `  # Initialize in current directory
  dataexplorer init

  # Use Gemini instead of OpenAI
  dataexplorer init --provider gemini

  # Force overwrite existing config
  dataexplorer init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			path, err := runInit(dir, provider, force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Wrote %s\n\n", path)
			_, _ = fmt.Fprintln(out, "Next steps:")
			_, _ = fmt.Fprintln(out, "  1. Point targets and datasets at your warehouse")
			_, _ = fmt.Fprintln(out, "  2. Export the API key referenced by llm.api_key")
			_, _ = fmt.Fprintln(out, "  3. Run 'dataexplorer schema list' to check the connection")
			_, _ = fmt.Fprintln(out, "  4. Run 'dataexplorer serve' or 'dataexplorer ask \"...\"'")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().StringVar(&provider, "provider", config.DefaultProvider, "Completion provider (openai|gemini)")

	return cmd
}

// StarterConfig returns the configuration written by init.
func StarterConfig(provider string) config.Config {
	keyVar := "OPENAI_API_KEY"
	if provider == "gemini" {
		keyVar = "GEMINI_API_KEY"
	}
	return config.Config{
		Datasets:       []string{config.DefaultTarget + ":main"},
		ChartLibraries: config.DefaultChartLibraries,
		LLM: config.LLMConfig{
			Provider:     provider,
			APIKey:       "${" + keyVar + "}",
			RateLimitRPS: 2,
			MaxRetries:   3,
			Timeout:      60 * time.Second,
		},
		Targets: map[string]config.TargetConfig{
			config.DefaultTarget: {Type: "duckdb", Database: "warehouse.duckdb"},
		},
		Cache: config.CacheConfig{
			Driver:        config.DefaultCacheDriver,
			Dir:           config.DefaultCacheDir,
			Path:          config.DefaultCachePath,
			MemoryEntries: config.DefaultMemoryEntries,
		},
		Chart:    config.ChartConfig{Timeout: 10 * time.Second, MaxSteps: 5_000_000},
		Pipeline: config.PipelineConfig{Pace: time.Second, MaxRows: config.DefaultMaxRows},
		Server: config.ServerConfig{
			Addr:          ":3001",
			SessionSecret: "${DATAEXPLORER_SESSION_SECRET}",
		},
		Log: config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat},
	}
}

func runInit(dir, provider string, force bool) (string, error) {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	path := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists. Use --force to overwrite", path)
	}

	b, err := encodeConfig(StarterConfig(provider))
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func encodeConfig(cfg config.Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, err
	}
	humanizeDurations(&doc)
	doc.HeadComment = "dataexplorer configuration.\nDATAEXPLORER_<SECTION>__<KEY> environment variables override these values."
	return yaml.Marshal(&doc)
}

// durationKeys are config keys holding a time.Duration, which yaml encodes
// as nanoseconds.
var durationKeys = map[string]bool{"timeout": true, "pace": true}

func humanizeDurations(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if !durationKeys[k.Value] || v.Tag != "!!int" {
				continue
			}
			if ns, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
				v.Tag = "!!str"
				v.Value = time.Duration(ns).String()
			}
		}
	}
	for _, c := range n.Content {
		humanizeDurations(c)
	}
}
