package vm

import (
	"fmt"

	"github.com/google/uuid"
)

// Table is a named, column-oriented grid of values. Like arrays, tables are
// shared handles; the ID identifies one underlying table across aliases.
type Table struct {
	ID      uuid.UUID
	Name    string // set when the table is stored into a named global
	Headers []string
	Rows    [][]Value

	columns map[string]int
}

// NewTable creates an empty table with the given column headers.
func NewTable(headers ...string) *Table {
	t := &Table{
		ID:      uuid.New(),
		Headers: append([]string(nil), headers...),
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.columns = make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		if _, dup := t.columns[h]; !dup {
			t.columns[h] = i
		}
	}
}

// AddRow appends a row. The row must have one value per column.
func (t *Table) AddRow(values ...Value) error {
	if len(values) != len(t.Headers) {
		return fmt.Errorf("table row has %d values, expected %d", len(values), len(t.Headers))
	}
	t.Rows = append(t.Rows, append([]Value(nil), values...))
	return nil
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return len(t.Rows) }

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.Headers) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t.columns == nil || len(t.columns) != len(t.Headers) {
		t.reindex()
	}
	if i, ok := t.columns[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column materializes the named column. Short rows contribute Null.
func (t *Table) Column(name string) ([]Value, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	col := make([]Value, len(t.Rows))
	for r, row := range t.Rows {
		if idx < len(row) {
			col[r] = row[idx]
		}
	}
	return col, true
}

// Row returns the row at index as an object keyed by column name.
func (t *Table) Row(index int) (*Object, bool) {
	if index < 0 || index >= len(t.Rows) {
		return nil, false
	}
	row := t.Rows[index]
	obj := NewObject()
	for i, h := range t.Headers {
		if i < len(row) {
			obj.Set(h, row[i])
		}
	}
	return obj, true
}

// DisplayName returns the table's variable name, or "table" if unnamed.
func (t *Table) DisplayName() string {
	if t.Name == "" {
		return "table"
	}
	return t.Name
}

// clone returns an independent deep copy with a fresh identity.
func (t *Table) clone(seen map[any]Value) *Table {
	c := &Table{
		ID:      uuid.New(),
		Name:    t.Name,
		Headers: append([]string(nil), t.Headers...),
		Rows:    make([][]Value, len(t.Rows)),
	}
	seen[t] = FromTable(c)
	for i, row := range t.Rows {
		r := make([]Value, len(row))
		for j, v := range row {
			r[j] = deepClone(v, seen)
		}
		c.Rows[i] = r
	}
	c.reindex()
	return c
}
