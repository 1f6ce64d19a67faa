// Package postgres provides a PostgreSQL warehouse adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dataexplorer/pkg/adapter"
	"github.com/leapstack-labs/dataexplorer/pkg/core"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Logger: logger,
			Dialect: adapter.Dialect{
				Name:          "postgres",
				DefaultSchema: "public",
				Placeholder:   adapter.DollarPlaceholder,
				Quote:         adapter.DoubleQuote,
			},
		},
	}
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if app, ok := cfg.Options["application_name"]; ok {
		dsn += fmt.Sprintf(" application_name=%s", app)
	}

	return dsn
}

// ListTables describes the tables of a schema, including COMMENT ON text
// from pg_description.
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
		a.Logger.Debug("postgres comments unavailable", slog.String("error", err.Error()))
		return tables, nil
	}
	adapter.ApplyComments(tables, tableDesc, columnDesc)
	return tables, nil
}

const commentsQuery = `
	SELECT c.relname, COALESCE(a.attname, ''), d.description
	FROM pg_catalog.pg_description d
	JOIN pg_catalog.pg_class c ON c.oid = d.objoid
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	LEFT JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = d.objsubid AND d.objsubid > 0
	WHERE n.nspname = $1 AND c.relkind = 'r'
`

func (a *Adapter) comments(ctx context.Context, schema string) (map[string]string, map[string]map[string]string, error) {
	rows, err := a.DB.QueryContext(ctx, commentsQuery, schema)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	tableDesc := make(map[string]string)
	columnDesc := make(map[string]map[string]string)
	for rows.Next() {
		var table, column, desc string
		if err := rows.Scan(&table, &column, &desc); err != nil {
			return nil, nil, err
		}
		if column == "" {
			tableDesc[table] = desc
			continue
		}
		if columnDesc[table] == nil {
			columnDesc[table] = make(map[string]string)
		}
		columnDesc[table][column] = desc
	}
	return tableDesc, columnDesc, rows.Err()
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
