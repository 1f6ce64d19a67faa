// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/dataexplorer/internal/testutil"
	"github.com/leapstack-labs/dataexplorer/pkg/adapters/duckdb"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"github.com/leapstack-labs/dataexplorer/pkg/llm"
	"github.com/stretchr/testify/require"
)

// Prompt markers identifying each completion stage.
const (
	IntentMarker = "Analyze the following user message"
	PlanMarker   = "You are a data analyst"
	ChartMarker  = "Chart library:"
)

// HeartRateQuestion is answered by HeartRateCompleter.
const HeartRateQuestion = "show me average heart rate by day as a bar chart"

const heartSQL = `SELECT strftime(chart_time, '%Y-%m-%d') AS day, AVG(value) AS avg_hr
FROM main.heart_rate
GROUP BY day
ORDER BY day`

// HeartRateCompleter scripts a full bar-chart answer over the project
// created by SetupTestProject.
func HeartRateCompleter() *testutil.Completer {
	return testutil.NewCompleter().
		On(IntentMarker, "LIBRARY: plotly\nCHART: bar chart").
		On(PlanMarker, "ANSWER: YES\n\nDATABASE: local:main\n\nREASONING: heart_rate has one reading per chart_time.\n\n"+
			"REQUIRED_DATA: heart_rate.chart_time, heart_rate.value\n\nSQL QUERY:\n```sql\n"+heartSQL+"\n```").
		On(ChartMarker, "```python\ndays = [r[\"day\"] for r in data]\nhr = [r[\"avg_hr\"] for r in data]\n"+
			"fig = plotly.figure(data=[plotly.bar(x=days, y=hr)])\nresult = plotly_to_dict(fig)\n```")
}

// RegisterCompleter registers c as completion provider name for the
// duration of the test.
func RegisterCompleter(t *testing.T, name string, c llm.Completer) {
	t.Helper()
	llm.Register(name, func(context.Context, llm.Config, *slog.Logger) (llm.Completer, error) {
		return c, nil
	})
}

// SetupTestProject creates a temporary project: a DuckDB warehouse holding a
// heart_rate table and a dataexplorer.yaml that uses provider. It returns
// the path of the config file.
func SetupTestProject(t *testing.T, provider string) string {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "warehouse.duckdb")

	ctx := context.Background()
	db := duckdb.New(nil)
	require.NoError(t, db.Connect(ctx, core.AdapterConfig{Path: dbPath}))
	for _, stmt := range []string{
		`CREATE TABLE heart_rate (chart_time TIMESTAMP, value INTEGER)`,
		`COMMENT ON TABLE heart_rate IS 'Heart rate readings'`,
		`INSERT INTO heart_rate VALUES
			('2024-01-01 08:00:00', 70), ('2024-01-01 20:00:00', 80),
			('2024-01-02 08:00:00', 60), ('2024-01-02 20:00:00', 64)`,
	} {
		require.NoError(t, db.Exec(ctx, stmt))
	}
	require.NoError(t, db.Close())

	cfg := fmt.Sprintf(`datasets:
  - local:main
llm:
  provider: %s
  max_retries: 0
  rate_limit_rps: 0
targets:
  local:
    type: duckdb
    database: %s
cache:
  driver: file
  dir: %s
pipeline:
  pace: 0s
log:
  level: error
`, provider, dbPath, filepath.Join(dir, "schemas"))

	cfgPath := filepath.Join(dir, "dataexplorer.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return cfgPath
}
