// Package schemacache loads and persists per-dataset table metadata so the
// planner does not query the warehouse catalog on every request.
package schemacache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// ErrNotFound is returned by a Store that has no entry for a dataset.
var ErrNotFound = errors.New("schema not cached")

// DefaultMemoryEntries is the in-process memo size when none is configured.
const DefaultMemoryEntries = 64

// Store is the durable side of the cache.
type Store interface {
	Load(ctx context.Context, id core.DatasetID) (core.SchemaSet, error)
	Save(ctx context.Context, id core.DatasetID, set core.SchemaSet) error
}

// Source describes the tables of a dataset, usually the warehouse registry.
type Source interface {
	ListTables(ctx context.Context, id core.DatasetID) ([]core.TableSchema, error)
}

// Cache combines a durable Store, an in-process memo and the Source used on
// a miss.
type Cache struct {
	store  Store
	source Source
	memo   *lru.Cache[core.DatasetID, core.SchemaSet]
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMemoryEntries sets the memo size. Zero or less disables the memo.
func WithMemoryEntries(n int) Option {
	return func(c *Cache) {
		if n <= 0 {
			c.memo = nil
			return
		}
		memo, err := lru.New[core.DatasetID, core.SchemaSet](n)
		if err == nil {
			c.memo = memo
		}
	}
}

// New creates a Cache.
func New(store Store, source Source, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		source: source,
		logger: slog.New(slog.DiscardHandler),
	}
	memo, _ := lru.New[core.DatasetID, core.SchemaSet](DefaultMemoryEntries)
	c.memo = memo
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the schema of a dataset. The store is consulted first; on a
// miss or an unreadable entry the source is queried and the result is saved
// best-effort.
func (c *Cache) Get(ctx context.Context, id core.DatasetID) (core.SchemaSet, error) {
	if c.memo != nil {
		if set, ok := c.memo.Get(id); ok {
			return set, nil
		}
	}

	set, err := c.store.Load(ctx, id)
	switch {
	case err == nil:
		c.logger.Debug("schema cache hit", slog.String("dataset", id.String()))
		c.remember(id, set)
		return set, nil
	case errors.Is(err, ErrNotFound):
		c.logger.Debug("schema cache miss", slog.String("dataset", id.String()))
	default:
		c.logger.Warn("schema cache unreadable, refetching",
			slog.String("dataset", id.String()),
			slog.String("error", err.Error()))
	}

	return c.Refresh(ctx, id)
}

// Refresh fetches the schema from the source regardless of what is cached
// and persists it.
func (c *Cache) Refresh(ctx context.Context, id core.DatasetID) (core.SchemaSet, error) {
	tables, err := c.source.ListTables(ctx, id)
	if err != nil {
		return core.SchemaSet{}, fmt.Errorf("fetch schema for %s: %w", id, err)
	}
	set, err := core.NewSchemaSet(tables...)
	if err != nil {
		return core.SchemaSet{}, fmt.Errorf("fetch schema for %s: %w", id, err)
	}

	if err := c.store.Save(ctx, id, set); err != nil {
		c.logger.Warn("failed to persist schema cache",
			slog.String("dataset", id.String()),
			slog.String("error", err.Error()))
	}
	c.remember(id, set)
	c.logger.Info("schema fetched",
		slog.String("dataset", id.String()),
		slog.Int("tables", set.Len()))
	return set, nil
}

// GetAll loads every dataset in order. The first failure aborts.
func (c *Cache) GetAll(ctx context.Context, ids []core.DatasetID) ([]core.DatasetSchema, error) {
	out := make([]core.DatasetSchema, 0, len(ids))
	for _, id := range ids {
		set, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, core.DatasetSchema{Dataset: id, Tables: set})
	}
	return out, nil
}

func (c *Cache) remember(id core.DatasetID, set core.SchemaSet) {
	if c.memo != nil {
		c.memo.Add(id, set)
	}
}
