// Package duckdb provides a DuckDB warehouse adapter.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dataexplorer/pkg/adapter"
	"github.com/leapstack-labs/dataexplorer/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Logger: logger,
			Dialect: adapter.Dialect{
				Name:          "duckdb",
				DefaultSchema: "main",
				Placeholder:   adapter.QuestionPlaceholder,
				Quote:         adapter.DoubleQuote,
			},
		},
	}
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	for _, stmt := range params.setupStatements() {
		if err := a.Exec(ctx, stmt); err != nil {
			_ = a.Close()
			a.DB = nil
			return fmt.Errorf("duckdb setup: %w", err)
		}
	}
	return nil
}

// ListTables describes the tables of a schema, including COMMENT ON text.
func (a *Adapter) ListTables(ctx context.Context, dataset string) ([]core.TableSchema, error) {
	if dataset == "" {
		dataset = a.Dialect.DefaultSchema
	}
	tables, err := a.BaseSQLAdapter.ListTables(ctx, dataset)
	if err != nil {
		return nil, err
	}
	tableDesc, columnDesc, err := a.comments(ctx, dataset)
	if err != nil {
		a.Logger.Debug("duckdb comments unavailable", slog.String("error", err.Error()))
		return tables, nil
	}
	adapter.ApplyComments(tables, tableDesc, columnDesc)
	return tables, nil
}

func (a *Adapter) comments(ctx context.Context, schema string) (map[string]string, map[string]map[string]string, error) {
	tableDesc := make(map[string]string)
	rows, err := a.DB.QueryContext(ctx,
		`SELECT table_name, comment FROM duckdb_tables() WHERE schema_name = ?`, schema)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var name string
		var comment sql.NullString
		if err := rows.Scan(&name, &comment); err != nil {
			_ = rows.Close()
			return nil, nil, err
		}
		if comment.Valid {
			tableDesc[name] = comment.String
		}
	}
	_ = rows.Close()

	columnDesc := make(map[string]map[string]string)
	rows, err = a.DB.QueryContext(ctx,
		`SELECT table_name, column_name, comment FROM duckdb_columns() WHERE schema_name = ?`, schema)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var table, column string
		var comment sql.NullString
		if err := rows.Scan(&table, &column, &comment); err != nil {
			return nil, nil, err
		}
		if !comment.Valid {
			continue
		}
		if columnDesc[table] == nil {
			columnDesc[table] = make(map[string]string)
		}
		columnDesc[table][column] = comment.String
	}
	return tableDesc, columnDesc, rows.Err()
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
