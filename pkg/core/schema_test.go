package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTables() []TableSchema {
	return []TableSchema{
		{
			Name:        "chartevents",
			Description: "Charted vital signs",
			RowCount:    432997491,
			Columns: []ColumnSchema{
				{Name: "subject_id", Type: "INTEGER", Description: "Patient identifier"},
				{Name: "charttime", Type: "TIMESTAMP", Description: "Time of charting"},
				{Name: "valuenum", Type: "FLOAT", Description: "Numeric value"},
			},
		},
		{
			Name:        "admissions",
			Description: "No description",
			RowCount:    546028,
			Columns: []ColumnSchema{
				{Name: "hadm_id", Type: "INTEGER", Description: "No description"},
			},
		},
	}
}

func TestSchemaSet_RoundTrip(t *testing.T) {
	set, err := NewSchemaSet(sampleTables()...)
	require.NoError(t, err)

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded SchemaSet
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, set, decoded)
	assert.Equal(t, []string{"chartevents", "admissions"}, decoded.Names())

	tbl, ok := decoded.Get("chartevents")
	require.True(t, ok)
	assert.Equal(t, "charttime", tbl.Columns[1].Name)
	assert.Equal(t, int64(432997491), tbl.RowCount)
}

func TestSchemaSet_PreservesOrderNotAlphabetical(t *testing.T) {
	raw := `{"zeta":{"description":"z","num_rows":1,"columns":[]},"alpha":{"description":"a","num_rows":2,"columns":[]}}`

	var set SchemaSet
	require.NoError(t, json.Unmarshal([]byte(raw), &set))

	assert.Equal(t, []string{"zeta", "alpha"}, set.Names())

	out, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
	assert.Less(t, indexOf(string(out), "zeta"), indexOf(string(out), "alpha"))
}

func TestSchemaSet_Errors(t *testing.T) {
	tests := []struct {
		name      string
		tables    []TableSchema
		errSubstr string
	}{
		{
			name:      "duplicate table",
			tables:    []TableSchema{{Name: "a"}, {Name: "a"}},
			errSubstr: "duplicate table",
		},
		{
			name: "duplicate column",
			tables: []TableSchema{{
				Name:    "a",
				Columns: []ColumnSchema{{Name: "x"}, {Name: "x"}},
			}},
			errSubstr: "duplicate column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchemaSet(tt.tables...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestSchemaSet_UnmarshalRejectsNonObject(t *testing.T) {
	var set SchemaSet
	err := json.Unmarshal([]byte(`[1,2]`), &set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected JSON object")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
