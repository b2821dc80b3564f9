// Package dataset provides the in-memory table every pipeline stage reads
// and produces.
//
// A Dataset is never modified after construction. Operations return a new
// Dataset; unchanged rows may be shared between versions, which is safe
// because nothing writes to them. Materialize produces a deep copy for
// stages that must not depend on earlier versions.
package dataset

import (
	"fmt"
)

// Dataset is an immutable table with an ordered, typed schema.
type Dataset struct {
	schema Schema
	rows   []Row
}

// Projection describes one output column of Project. Source is the index of
// the input column the values come from, or -1 for an all-null column.
type Projection struct {
	Column Column
	Source int
}

// New creates a dataset after checking that column names are unique and
// every row matches the schema width.
func New(schema Schema, rows []Row) (*Dataset, error) {
	seen := make(map[string]struct{}, len(schema))
	for _, c := range schema {
		if c.Name == "" {
			return nil, fmt.Errorf("dataset: empty column name")
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for i, r := range rows {
		if len(r) != len(schema) {
			return nil, fmt.Errorf("dataset: row %d has %d values, schema has %d columns", i, len(r), len(schema))
		}
	}
	s := make(Schema, len(schema))
	copy(s, schema)
	return &Dataset{schema: s, rows: rows}, nil
}

// MustNew is New for fixtures; it panics on error.
func MustNew(schema Schema, rows []Row) *Dataset {
	d, err := New(schema, rows)
	if err != nil {
		panic(err)
	}
	return d
}

// Schema returns a copy of the schema.
func (d *Dataset) Schema() Schema {
	s := make(Schema, len(d.schema))
	copy(s, d.schema)
	return s
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int {
	return len(d.rows)
}

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int {
	return len(d.schema)
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) Row {
	r := make(Row, len(d.rows[i]))
	copy(r, d.rows[i])
	return r
}

// Value returns the value of column name in row i.
func (d *Dataset) Value(i int, name string) (any, bool) {
	idx := d.schema.Index(name)
	if idx < 0 || i < 0 || i >= len(d.rows) {
		return nil, false
	}
	return d.rows[i][idx], true
}

// ColumnValues returns every value of the named column in row order.
func (d *Dataset) ColumnValues(name string) ([]any, error) {
	idx := d.schema.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("dataset: no column %q", name)
	}
	out := make([]any, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Each calls fn for every row in order. The row must not be modified.
func (d *Dataset) Each(fn func(i int, r Row) error) error {
	for i, r := range d.rows {
		if err := fn(i, r); err != nil {
			return err
		}
	}
	return nil
}

// Project builds a dataset whose columns are taken from this one by index.
func (d *Dataset) Project(cols []Projection) (*Dataset, error) {
	schema := make(Schema, len(cols))
	for i, p := range cols {
		if p.Source >= len(d.schema) {
			return nil, fmt.Errorf("dataset: projection source %d out of range", p.Source)
		}
		schema[i] = p.Column
	}

	rows := make([]Row, len(d.rows))
	for i, r := range d.rows {
		out := make(Row, len(cols))
		for j, p := range cols {
			if p.Source >= 0 {
				out[j] = r[p.Source]
			}
		}
		rows[i] = out
	}
	return New(schema, rows)
}

// Select keeps the named columns in the given order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	cols := make([]Projection, len(names))
	for i, n := range names {
		idx := d.schema.Index(n)
		if idx < 0 {
			return nil, fmt.Errorf("dataset: no column %q", n)
		}
		cols[i] = Projection{Column: d.schema[idx], Source: idx}
	}
	return d.Project(cols)
}

// Drop removes the named columns. Names not present are ignored.
func (d *Dataset) Drop(names ...string) *Dataset {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	var cols []Projection
	for i, c := range d.schema {
		if _, ok := drop[c.Name]; !ok {
			cols = append(cols, Projection{Column: c, Source: i})
		}
	}
	out, _ := d.Project(cols)
	return out
}

// Rename changes a column name.
func (d *Dataset) Rename(from, to string) (*Dataset, error) {
	idx := d.schema.Index(from)
	if idx < 0 {
		return nil, fmt.Errorf("dataset: no column %q", from)
	}
	schema := d.Schema()
	schema[idx].Name = to
	return New(schema, d.rows)
}

// WithColumn computes col from each row. An existing column with the same
// name is replaced in place; otherwise the column is appended.
func (d *Dataset) WithColumn(col Column, fn func(r Row) (any, error)) (*Dataset, error) {
	idx := d.schema.Index(col.Name)
	schema := d.Schema()
	if idx < 0 {
		schema = append(schema, col)
	} else {
		schema[idx] = col
	}

	rows := make([]Row, len(d.rows))
	for i, r := range d.rows {
		v, err := fn(r)
		if err != nil {
			return nil, fmt.Errorf("dataset: column %q row %d: %w", col.Name, i, err)
		}
		out := make(Row, len(schema))
		copy(out, r)
		if idx < 0 {
			out[len(schema)-1] = v
		} else {
			out[idx] = v
		}
		rows[i] = out
	}
	return New(schema, rows)
}

// WithLiteral sets col to v in every row.
func (d *Dataset) WithLiteral(col Column, v any) (*Dataset, error) {
	return d.WithColumn(col, func(Row) (any, error) { return v, nil })
}

// Filter keeps rows for which keep returns true.
func (d *Dataset) Filter(keep func(r Row) bool) *Dataset {
	rows := make([]Row, 0, len(d.rows))
	for _, r := range d.rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return &Dataset{schema: d.Schema(), rows: rows}
}

// Materialize returns a deep copy sharing nothing with d.
func (d *Dataset) Materialize() *Dataset {
	rows := make([]Row, len(d.rows))
	for i, r := range d.rows {
		c := make(Row, len(r))
		copy(c, r)
		rows[i] = c
	}
	return &Dataset{schema: d.Schema(), rows: rows}
}
