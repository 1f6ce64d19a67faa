// Package mssql provides a Microsoft SQL Server warehouse adapter.
//
// This file registers the adapter under both "mssql" and "sqlserver".
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/dataexplorer/pkg/adapters/mssql"
package mssql

import (
	"log/slog"

	"github.com/leapstack-labs/dataexplorer/pkg/adapter"
)

func init() {
	factory := func(logger *slog.Logger) adapter.Adapter { return New(logger) }
	adapter.Register("mssql", factory)
	adapter.Register("sqlserver", factory)
}
