// Package warehouse resolves dataset IDs to connected warehouse adapters.
//
// Each configured target is connected lazily on first use and kept open for
// the life of the process.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/dataexplorer/pkg/adapter"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// ErrUnknownTarget is returned for a dataset whose target is not configured.
var ErrUnknownTarget = errors.New("unknown warehouse target")

// Registry holds the configured targets and their open connections.
type Registry struct {
	mu      sync.Mutex
	targets map[string]core.AdapterConfig
	conns   map[string]adapter.Adapter
	logger  *slog.Logger
}

// New creates a registry over the given target configurations.
func New(targets map[string]core.AdapterConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := make(map[string]core.AdapterConfig, len(targets))
	for name, cfg := range targets {
		t[name] = cfg
	}
	return &Registry{
		targets: t,
		conns:   make(map[string]adapter.Adapter),
		logger:  logger,
	}
}

// Use registers an already connected adapter under a target name. The
// registry takes ownership and closes it on Close.
func (r *Registry) Use(target string, a adapter.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[target] = a
}

// Targets returns the configured target names (sorted).
func (r *Registry) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(r.targets)+len(r.conns))
	for name := range r.targets {
		seen[name] = struct{}{}
	}
	for name := range r.conns {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Adapter returns the connected adapter for a target, connecting on first use.
func (r *Registry) Adapter(ctx context.Context, target string) (adapter.Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.conns[target]; ok {
		return a, nil
	}
	cfg, ok := r.targets[target]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTarget, target)
	}

	a, err := adapter.NewAdapter(cfg, r.logger.With(slog.String("target", target)))
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connect target %s: %w", target, err)
	}
	r.logger.Info("warehouse target connected",
		slog.String("target", target),
		slog.String("type", cfg.Type))
	r.conns[target] = a
	return a, nil
}

// ListTables describes every table of a dataset.
func (r *Registry) ListTables(ctx context.Context, id core.DatasetID) ([]core.TableSchema, error) {
	a, err := r.Adapter(ctx, id.Target())
	if err != nil {
		return nil, err
	}
	return a.ListTables(ctx, id.Dataset())
}

// Query runs a statement against the dataset's target.
func (r *Registry) Query(ctx context.Context, id core.DatasetID, sql string) (*core.Rows, error) {
	a, err := r.Adapter(ctx, id.Target())
	if err != nil {
		return nil, err
	}
	return a.Query(ctx, sql)
}

// Close closes every open connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, a := range r.conns {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close target %s: %w", name, err))
		}
		delete(r.conns, name)
	}
	return errors.Join(errs...)
}
