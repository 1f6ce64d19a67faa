package schemacache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dataexplorer/internal/testutil"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

type fakeSource struct {
	calls  atomic.Int32
	tables map[core.DatasetID][]core.TableSchema
	err    error
}

func (f *fakeSource) ListTables(_ context.Context, id core.DatasetID) ([]core.TableSchema, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.tables[id], nil
}

const vitals = core.DatasetID("local:vitals")

func vitalsTables() []core.TableSchema {
	return []core.TableSchema{
		{
			Name:        "heart_rate",
			Description: "Heart rate readings",
			RowCount:    1200,
			Columns: []core.ColumnSchema{
				{Name: "chart_time", Type: "TIMESTAMP"},
				{Name: "heart_rate", Type: "DOUBLE", Description: "Beats per minute"},
				{Name: "patient_id", Type: "INTEGER"},
			},
		},
		{
			Name:     "admissions",
			RowCount: 40,
			Columns:  []core.ColumnSchema{{Name: "id", Type: "INTEGER"}, {Name: "ward", Type: "VARCHAR"}},
		},
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"file":   NewFileStore(t.TempDir()),
		"sqlite": sqlite,
	}
}

func TestStores_RoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Load(ctx, vitals)
			require.ErrorIs(t, err, ErrNotFound)

			want, err := core.NewSchemaSet(vitalsTables()...)
			require.NoError(t, err)
			require.NoError(t, store.Save(ctx, vitals, want))

			got, err := store.Load(ctx, vitals)
			require.NoError(t, err)
			assert.Equal(t, want.Names(), got.Names())
			assert.Equal(t, want.Tables(), got.Tables())

			// overwrite
			smaller, err := core.NewSchemaSet(vitalsTables()[1])
			require.NoError(t, err)
			require.NoError(t, store.Save(ctx, vitals, smaller))
			got, err = store.Load(ctx, vitals)
			require.NoError(t, err)
			assert.Equal(t, []string{"admissions"}, got.Names())
		})
	}
}

func TestFileStore_PathAndFormat(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	assert.Equal(t, filepath.Join(dir, "local.vitals_schema.json"), store.Path(vitals))

	set, err := core.NewSchemaSet(vitalsTables()...)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), vitals, set))

	data, err := os.ReadFile(store.Path(vitals))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"num_rows": 1200`)
	assert.Less(t, strings.Index(string(data), "heart_rate"), strings.Index(string(data), "admissions"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestCache_MissFetchesAndPersists(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{tables: map[core.DatasetID][]core.TableSchema{vitals: vitalsTables()}}
	store := NewFileStore(t.TempDir())

	c := New(store, src, WithLogger(testutil.NewTestLogger(t)))
	set, err := c.Get(ctx, vitals)
	require.NoError(t, err)
	assert.Equal(t, []string{"heart_rate", "admissions"}, set.Names())
	assert.Equal(t, int32(1), src.calls.Load())

	// A fresh cache over the same store must not touch the source.
	c2 := New(store, src, WithMemoryEntries(0))
	set2, err := c2.Get(ctx, vitals)
	require.NoError(t, err)
	assert.Equal(t, set.Names(), set2.Names())
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCache_MemoAvoidsStore(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{tables: map[core.DatasetID][]core.TableSchema{vitals: vitalsTables()}}
	store := &countingStore{Store: NewFileStore(t.TempDir())}

	c := New(store, src)
	for range 3 {
		_, err := c.Get(ctx, vitals)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.loads.Load())
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCache_CorruptEntryRefetches(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, os.WriteFile(store.Path(vitals), []byte("{not json"), 0o600))

	src := &fakeSource{tables: map[core.DatasetID][]core.TableSchema{vitals: vitalsTables()}}
	c := New(store, src)

	set, err := c.Get(ctx, vitals)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, int32(1), src.calls.Load())

	// the corrupt file was replaced
	_, err = store.Load(ctx, vitals)
	require.NoError(t, err)
}

func TestCache_PersistFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{tables: map[core.DatasetID][]core.TableSchema{vitals: vitalsTables()}}
	c := New(failingStore{}, src)

	set, err := c.Get(context.Background(), vitals)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestCache_SourceFailureIsFatal(t *testing.T) {
	boom := errors.New("warehouse unreachable")
	c := New(NewFileStore(t.TempDir()), &fakeSource{err: boom})

	_, err := c.Get(context.Background(), vitals)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "local:vitals")
}

func TestCache_GetAllKeepsOrder(t *testing.T) {
	other := core.DatasetID("local:billing")
	src := &fakeSource{tables: map[core.DatasetID][]core.TableSchema{
		vitals: vitalsTables(),
		other:  {{Name: "invoices", Columns: []core.ColumnSchema{{Name: "amount", Type: "DOUBLE"}}}},
	}}
	c := New(NewFileStore(t.TempDir()), src)

	all, err := c.GetAll(context.Background(), []core.DatasetID{other, vitals})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, other, all[0].Dataset)
	assert.Equal(t, vitals, all[1].Dataset)
}

type countingStore struct {
	Store
	loads atomic.Int32
}

func (s *countingStore) Load(ctx context.Context, id core.DatasetID) (core.SchemaSet, error) {
	s.loads.Add(1)
	return s.Store.Load(ctx, id)
}

type failingStore struct{}

func (failingStore) Load(context.Context, core.DatasetID) (core.SchemaSet, error) {
	return core.SchemaSet{}, ErrNotFound
}

func (failingStore) Save(context.Context, core.DatasetID, core.SchemaSet) error {
	return errors.New("disk full")
}
