package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/dataexplorer/internal/chart"
	"github.com/leapstack-labs/dataexplorer/internal/cli/config"
	"github.com/leapstack-labs/dataexplorer/internal/executor"
	"github.com/leapstack-labs/dataexplorer/internal/intent"
	"github.com/leapstack-labs/dataexplorer/internal/planner"
	"github.com/leapstack-labs/dataexplorer/internal/schemacache"
	"github.com/leapstack-labs/dataexplorer/internal/stream"
	"github.com/leapstack-labs/dataexplorer/internal/warehouse"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"github.com/leapstack-labs/dataexplorer/pkg/llm"
	"github.com/spf13/cobra"
)

// App holds the components shared by commands.
type App struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Datasets  []core.DatasetID
	Warehouse *warehouse.Registry
	Schemas   *schemacache.Cache
	// Pipeline is nil when the app was built without a completion provider.
	Pipeline *stream.Pipeline

	closers []func() error
}

// Close releases warehouse connections and the cache store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// getConfig returns the configuration loaded by the root command.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg, ok := config.FromContext(cmd.Context()); ok {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

// NewApp builds the warehouse registry and schema cache. With withPipeline
// it also connects the completion provider and assembles the pipeline.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, withPipeline bool) (*App, error) {
	ids, err := cfg.DatasetIDs()
	if err != nil {
		return nil, err
	}

	app := &App{Cfg: cfg, Logger: logger, Datasets: ids}

	app.Warehouse = warehouse.New(cfg.AdapterConfigs(), logger)
	app.closers = append(app.closers, app.Warehouse.Close)

	store, err := openStore(cfg.Cache)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if c, ok := store.(interface{ Close() error }); ok {
		app.closers = append(app.closers, c.Close)
	}
	app.Schemas = schemacache.New(store, app.Warehouse,
		schemacache.WithLogger(logger),
		schemacache.WithMemoryEntries(cfg.Cache.MemoryEntries),
	)

	if !withPipeline {
		return app, nil
	}

	completer, err := llm.New(ctx, llm.Config{
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		RateLimitRPS: cfg.LLM.RateLimitRPS,
		MaxRetries:   cfg.LLM.MaxRetries,
		Timeout:      cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	renderer := chart.NewRenderer(
		chart.WithTimeout(cfg.Chart.Timeout),
		chart.WithMaxSteps(cfg.Chart.MaxSteps),
		chart.WithLogger(logger),
	)
	app.Pipeline = stream.New(stream.Config{
		Datasets:       ids,
		Pace:           cfg.Pipeline.Pace,
		ParallelIntent: cfg.Pipeline.ParallelIntent,
		RepairAttempts: cfg.Pipeline.RepairAttempts,
	}, stream.Deps{
		Classifier: intent.New(completer, cfg.ChartLibraries, logger),
		Schemas:    app.Schemas,
		Planner:    planner.New(completer, planner.WithDialects(cfg.Dialects()), planner.WithLogger(logger)),
		Executor:   executor.New(app.Warehouse, cfg.Pipeline.MaxRows, logger),
		Charts:     chart.NewBuilder(chart.NewSynthesizer(completer, logger), renderer, logger),
	}, logger)

	return app, nil
}

func openStore(cfg config.CacheConfig) (schemacache.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
		}
		return schemacache.OpenSQLite(cfg.Path)
	default:
		return schemacache.NewFileStore(cfg.Dir), nil
	}
}

// newCommandApp builds an App from the command's context.
func newCommandApp(cmd *cobra.Command, withPipeline bool) (*App, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	return NewApp(cmd.Context(), cfg, config.GetLogger(cmd.Context()), withPipeline)
}
