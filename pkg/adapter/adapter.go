// Package adapter provides the warehouse adapter contract used by the query
// executor and the schema cache.
//
// This package contains the public contract that all warehouse adapters must
// implement. Concrete adapter implementations are in pkg/adapters/
// subdirectories and register themselves in their init() functions.
package adapter

import (
	"context"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Adapter defines the interface that all warehouse adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the warehouse using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*core.Rows, error)

	// ListTables describes every table of a dataset (a schema within the
	// warehouse), in name order.
	ListTables(ctx context.Context, dataset string) ([]core.TableSchema, error)
}
