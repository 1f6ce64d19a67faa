package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// ErrNotConnected is returned by operations on an adapter without a connection.
var ErrNotConnected = errors.New("database connection not established")

// Dialect captures the few SQL differences the catalog queries care about.
type Dialect struct {
	Name          string
	DefaultSchema string
	// Placeholder formats the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Quote quotes an identifier.
	Quote func(ident string) string
}

// QuestionPlaceholder is the "?" bind style (duckdb).
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder is the "$1" bind style (postgres).
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// AtPPlaceholder is the "@p1" bind style (SQL Server).
func AtPPlaceholder(n int) string { return fmt.Sprintf("@p%d", n) }

// DoubleQuote quotes an identifier with ANSI double quotes.
func DoubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// BracketQuote quotes an identifier with SQL Server brackets.
func BracketQuote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Query and ListTables implementations.
type BaseSQLAdapter struct {
	DB      *sql.DB
	Cfg     core.AdapterConfig
	Logger  *slog.Logger
	Dialect Dialect
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*core.Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &core.Rows{Rows: rows}, nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// ListTables reads information_schema for every base table of the dataset,
// then its columns and an exact row count. An empty dataset means the
// dialect's default schema.
func (b *BaseSQLAdapter) ListTables(ctx context.Context, dataset string) ([]core.TableSchema, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	if dataset == "" {
		dataset = b.Dialect.DefaultSchema
	}
	ph := b.placeholder()

	//nolint:gosec // Placeholders come from the dialect
	tablesQuery := fmt.Sprintf(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = %s AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, ph(1))

	rows, err := b.DB.QueryContext(ctx, tablesQuery, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", dataset, err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	_ = rows.Close()

	tables := make([]core.TableSchema, 0, len(names))
	for _, name := range names {
		t, err := b.DescribeTable(ctx, dataset, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *t)
	}
	return tables, nil
}

// DescribeTable returns the columns and row count of one table.
func (b *BaseSQLAdapter) DescribeTable(ctx context.Context, schema, table string) (*core.TableSchema, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	ph := b.placeholder()

	//nolint:gosec // Placeholders come from the dialect
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, ph(1), ph(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.ColumnSchema
	for rows.Next() {
		var col core.ColumnSchema
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Type = strings.ToUpper(col.Type)
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schema, table)
	}

	quote := b.Dialect.Quote
	if quote == nil {
		quote = DoubleQuote
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", quote(schema), quote(table)) //nolint:gosec // Identifiers come from the catalog
	var rowCount int64
	if err := b.DB.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		// Non-fatal, the count is only an estimate for the prompt
		if b.Logger != nil {
			b.Logger.Debug("row count failed", slog.String("table", table), slog.String("error", err.Error()))
		}
		rowCount = 0
	}

	return &core.TableSchema{
		Name:     table,
		RowCount: rowCount,
		Columns:  columns,
	}, nil
}

func (b *BaseSQLAdapter) placeholder() func(int) string {
	if b.Dialect.Placeholder != nil {
		return b.Dialect.Placeholder
	}
	return QuestionPlaceholder
}

// ApplyComments copies catalog comments onto tables described by ListTables.
// Missing entries leave descriptions empty.
func ApplyComments(tables []core.TableSchema, tableDesc map[string]string, columnDesc map[string]map[string]string) {
	for i := range tables {
		t := &tables[i]
		if d, ok := tableDesc[t.Name]; ok {
			t.Description = d
		}
		cols := columnDesc[t.Name]
		for j := range t.Columns {
			if d, ok := cols[t.Columns[j].Name]; ok {
				t.Columns[j].Description = d
			}
		}
	}
}
