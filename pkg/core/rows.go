package core

// Record is a single result row keyed by column name.
type Record map[string]any

// RowSet is an ordered sequence of records. Columns carries the column order
// reported by the warehouse.
type RowSet struct {
	Columns []string
	Rows    []Record
}

// Len returns the number of rows.
func (r RowSet) Len() int {
	return len(r.Rows)
}

// Empty reports whether the set has no rows.
func (r RowSet) Empty() bool {
	return len(r.Rows) == 0
}
