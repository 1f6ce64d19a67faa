// Package executor runs planned SQL against a dataset's warehouse target and
// materializes JSON-safe rows.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// Querier runs a statement against a dataset's target.
type Querier interface {
	Query(ctx context.Context, id core.DatasetID, sql string) (*core.Rows, error)
}

// Executor materializes query results.
type Executor struct {
	q       Querier
	maxRows int
	logger  *slog.Logger
}

// New creates an Executor. maxRows <= 0 means unbounded.
func New(q Querier, maxRows int, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{q: q, maxRows: maxRows, logger: logger}
}

// Execute runs sql against dataset and returns every row (up to the cap).
func (e *Executor) Execute(ctx context.Context, sql string, dataset core.DatasetID) (core.RowSet, error) {
	start := time.Now()
	rows, err := e.q.Query(ctx, dataset, sql)
	if err != nil {
		return core.RowSet{}, fmt.Errorf("execute query on %s: %w", dataset, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return core.RowSet{}, fmt.Errorf("read result columns: %w", err)
	}

	set := core.RowSet{Columns: cols}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	truncated := false
	for rows.Next() {
		if e.maxRows > 0 && len(set.Rows) >= e.maxRows {
			truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return core.RowSet{}, fmt.Errorf("scan result row: %w", err)
		}
		rec := make(core.Record, len(cols))
		for i, c := range cols {
			rec[c] = jsonSafe(values[i])
		}
		set.Rows = append(set.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return core.RowSet{}, fmt.Errorf("read result rows: %w", err)
	}

	e.logger.Info("query executed",
		slog.String("dataset", dataset.String()),
		slog.Int("rows", set.Len()),
		slog.Bool("truncated", truncated),
		slog.Duration("elapsed", time.Since(start)))
	return set, nil
}

// jsonSafe converts driver values into types encoding/json and the chart
// sandbox understand.
func jsonSafe(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case interface{ Float64() float64 }:
		// duckdb.Decimal and similar fixed-point types
		return x.Float64()
	case fmt.Stringer:
		return x.String()
	default:
		return v
	}
}
