package partition

import (
	"github.com/arkilian/lakestage/internal/dataset"
)

// ColumnStats summarizes one column of a data file.
type ColumnStats struct {
	Name      string
	NullCount int64
	// Min and Max are rendered as text; nil when every value is null
	Min *string
	Max *string
}

// StatsTracker tracks null counts and min/max values per column during a build.
type StatsTracker struct {
	schema dataset.Schema
	nulls  []int64
	min    []any
	max    []any
}

// NewStatsTracker creates a tracker for schema.
func NewStatsTracker(schema dataset.Schema) *StatsTracker {
	return &StatsTracker{
		schema: schema,
		nulls:  make([]int64, len(schema)),
		min:    make([]any, len(schema)),
		max:    make([]any, len(schema)),
	}
}

// Update folds a row into the statistics.
func (s *StatsTracker) Update(r dataset.Row) {
	for i, v := range r {
		if v == nil {
			s.nulls[i]++
			continue
		}
		if s.min[i] == nil || dataset.Compare(v, s.min[i]) < 0 {
			s.min[i] = v
		}
		if s.max[i] == nil || dataset.Compare(v, s.max[i]) > 0 {
			s.max[i] = v
		}
	}
}

// Columns returns the statistics in schema order.
func (s *StatsTracker) Columns() []ColumnStats {
	out := make([]ColumnStats, len(s.schema))
	for i, c := range s.schema {
		out[i] = ColumnStats{Name: c.Name, NullCount: s.nulls[i]}
		if s.min[i] != nil {
			lo, hi := dataset.AsString(s.min[i]), dataset.AsString(s.max[i])
			out[i].Min, out[i].Max = &lo, &hi
		}
	}
	return out
}
