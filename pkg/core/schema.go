package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ColumnSchema describes one column of a table.
type ColumnSchema struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// TableSchema describes one table of a dataset.
// The JSON shape matches the schema cache file format; the table name is the
// key of the enclosing SchemaSet object.
type TableSchema struct {
	Name        string         `json:"-"`
	Description string         `json:"description"`
	RowCount    int64          `json:"num_rows"`
	Columns     []ColumnSchema `json:"columns"`
}

// Validate checks that column names are unique within the table.
func (t TableSchema) Validate() error {
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// SchemaSet is an ordered mapping of table name to TableSchema.
// Insertion order is preserved through JSON round-trips.
type SchemaSet struct {
	order  []string
	tables map[string]TableSchema
}

// NewSchemaSet builds a SchemaSet from tables in the given order.
func NewSchemaSet(tables ...TableSchema) (SchemaSet, error) {
	var s SchemaSet
	for _, t := range tables {
		if err := s.Add(t); err != nil {
			return SchemaSet{}, err
		}
	}
	return s, nil
}

// Add appends a table. Adding a table name twice is an error.
func (s *SchemaSet) Add(t TableSchema) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if s.tables == nil {
		s.tables = make(map[string]TableSchema)
	}
	if _, dup := s.tables[t.Name]; dup {
		return fmt.Errorf("duplicate table %q", t.Name)
	}
	s.order = append(s.order, t.Name)
	s.tables[t.Name] = t
	return nil
}

// Get returns the table with the given name.
func (s SchemaSet) Get(name string) (TableSchema, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Names returns table names in insertion order.
func (s SchemaSet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Tables returns the tables in insertion order.
func (s SchemaSet) Tables() []TableSchema {
	out := make([]TableSchema, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tables[name])
	}
	return out
}

// Len returns the number of tables.
func (s SchemaSet) Len() int {
	return len(s.order)
}

// MarshalJSON encodes the set as a JSON object keyed by table name, in order.
func (s SchemaSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.tables[name])
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keyed by table name, keeping key order.
func (s *SchemaSet) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("schema set: expected JSON object, got %v", tok)
	}

	var out SchemaSet
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("schema set: expected table name, got %v", tok)
		}
		var t TableSchema
		if err := dec.Decode(&t); err != nil {
			return fmt.Errorf("schema set: table %s: %w", name, err)
		}
		t.Name = name
		if err := out.Add(t); err != nil {
			return fmt.Errorf("schema set: %w", err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = out
	return nil
}

// DatasetSchema pairs a dataset with its tables.
type DatasetSchema struct {
	Dataset DatasetID
	Tables  SchemaSet
}
