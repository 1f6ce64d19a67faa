package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/dataexplorer/pkg/adapter"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name: "in-memory",
			setupPath: func(_ *testing.T) string {
				return ":memory:"
			},
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "test.duckdb")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			adp := New(nil)

			dbPath := tt.setupPath(t)
			require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Path: dbPath}))
			defer func() { _ = adp.Close() }()

			if tt.verify != nil {
				tt.verify(t, dbPath)
			}
		})
	}
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	_, err := adp.Query(ctx, "SELECT 1")
	require.ErrorIs(t, err, adapter.ErrNotConnected)

	_, err = adp.ListTables(ctx, "main")
	require.ErrorIs(t, err, adapter.ErrNotConnected)
}

func TestAdapter_Registered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("duckdb"))

	adp, err := adapter.NewAdapter(core.AdapterConfig{Type: "duckdb"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Adapter{}, adp)
}

func TestAdapter_ListTables(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Path: ":memory:"}))
	defer func() { _ = adp.Close() }()

	for _, stmt := range []string{
		`CREATE SCHEMA vitals`,
		`CREATE TABLE vitals.heart_rate (chart_time TIMESTAMP, heart_rate DOUBLE, patient_id INTEGER)`,
		`INSERT INTO vitals.heart_rate VALUES ('2024-01-01 08:00:00', 72.5, 1), ('2024-01-02 08:00:00', 80, 1)`,
		`CREATE TABLE vitals.admissions (id INTEGER, ward VARCHAR)`,
		`COMMENT ON TABLE vitals.heart_rate IS 'Heart rate readings'`,
		`COMMENT ON COLUMN vitals.heart_rate.heart_rate IS 'Beats per minute'`,
	} {
		require.NoError(t, adp.Exec(ctx, stmt), stmt)
	}

	tables, err := adp.ListTables(ctx, "vitals")
	require.NoError(t, err)
	require.Len(t, tables, 2)

	// name order
	assert.Equal(t, "admissions", tables[0].Name)
	assert.Equal(t, "heart_rate", tables[1].Name)

	hr := tables[1]
	assert.Equal(t, int64(2), hr.RowCount)
	assert.Equal(t, "Heart rate readings", hr.Description)
	require.Len(t, hr.Columns, 3)
	assert.Equal(t, []string{"chart_time", "heart_rate", "patient_id"},
		[]string{hr.Columns[0].Name, hr.Columns[1].Name, hr.Columns[2].Name})
	assert.Equal(t, "TIMESTAMP", hr.Columns[0].Type)
	assert.Equal(t, "DOUBLE", hr.Columns[1].Type)
	assert.Equal(t, "Beats per minute", hr.Columns[1].Description)
	assert.NoError(t, hr.Validate())
}

func TestAdapter_Query(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Path: ":memory:"}))
	defer func() { _ = adp.Close() }()

	require.NoError(t, adp.Exec(ctx, "CREATE TABLE t (id INTEGER, name VARCHAR)"))
	require.NoError(t, adp.Exec(ctx, "INSERT INTO t VALUES (1, 'alice'), (2, 'bob')"))

	rows, err := adp.Query(ctx, "SELECT id, name FROM t ORDER BY id")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var id int
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestConnect_WithSettings(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	cfg := core.AdapterConfig{
		Path: ":memory:",
		Params: map[string]any{
			"settings": map[string]any{
				"threads": "2",
			},
		},
	}

	require.NoError(t, adp.Connect(ctx, cfg))
	defer func() { _ = adp.Close() }()

	rows, err := adp.Query(ctx, "SELECT current_setting('threads')")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())

	var threadsSetting string
	require.NoError(t, rows.Scan(&threadsSetting))
	assert.Equal(t, "2", threadsSetting)
}

func TestConnect_InvalidParams(t *testing.T) {
	adp := New(nil)
	err := adp.Connect(context.Background(), core.AdapterConfig{
		Path:   ":memory:",
		Params: map[string]any{"unknown_key": true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duckdb params")
	assert.False(t, adp.IsConnected())
}
