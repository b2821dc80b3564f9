// Package lineage records dataset snapshots at each pipeline stage.
package lineage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/golang/snappy"

	"github.com/arkilian/lakestage/internal/dataset"
	"github.com/arkilian/lakestage/internal/results"
)

// Stage names recorded by the pipeline. Transforms record under their own name.
const (
	StageRead         = "read"
	StageNumericAudit = "numericaudit"
	StageMapping      = "mapping"
	StageLiteral      = "literal"
)

// Snapshot summarizes a dataset at one point in the pipeline.
type Snapshot struct {
	RowCount      int                `json:"row_count"`
	Columns       []string           `json:"columns"`
	NumericTotals map[string]float64 `json:"numeric_totals,omitempty"`
}

// Snap summarizes ds. Numeric columns are totalled, ignoring nulls.
func Snap(ds *dataset.Dataset) Snapshot {
	schema := ds.Schema()
	snap := Snapshot{
		RowCount: ds.NumRows(),
		Columns:  make([]string, len(schema)),
	}
	for i, c := range schema {
		snap.Columns[i] = c.Name + ":" + c.Type.String()
		if !c.Type.IsNumeric() {
			continue
		}
		if snap.NumericTotals == nil {
			snap.NumericTotals = make(map[string]float64)
		}
		var total float64
		values, _ := ds.ColumnValues(c.Name)
		for _, v := range values {
			if f, ok := dataset.AsFloat(v); ok {
				total += f
			}
		}
		snap.NumericTotals[c.Name] = total
	}
	return snap
}

// NumericColumns returns the audited column names in sorted order.
func (s Snapshot) NumericColumns() []string {
	names := make([]string, 0, len(s.NumericTotals))
	for n := range s.NumericTotals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Event is one lineage touchpoint.
type Event struct {
	ExecutionID string
	SourceKey   string
	Stage       string
	Snapshot    Snapshot
	Params      json.RawMessage
}

// Sink receives lineage events. Sinks are append-only.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// NopSink discards events. Used when no lineage table is configured.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, Event) error { return nil }

// Writer is the subset of the results store StoreSink needs.
type Writer interface {
	RecordLineage(ctx context.Context, table string, rec results.LineageRecord) error
}

// StoreSink writes snappy-compressed JSON snapshots to a results table.
type StoreSink struct {
	writer Writer
	table  string
	logger *slog.Logger
	now    func() time.Time
}

// NewStoreSink creates a sink writing to table.
func NewStoreSink(w Writer, table string, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{writer: w, table: table, logger: logger, now: time.Now}
}

// Record implements Sink.
func (s *StoreSink) Record(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev.Snapshot)
	if err != nil {
		return fmt.Errorf("lineage: encode snapshot: %w", err)
	}

	params := "{}"
	if len(ev.Params) > 0 {
		params = string(ev.Params)
	}

	rec := results.LineageRecord{
		ExecutionID: ev.ExecutionID,
		SourceKey:   ev.SourceKey,
		Stage:       ev.Stage,
		Snapshot:    snappy.Encode(nil, raw),
		Params:      params,
		RecordedAt:  s.now(),
	}
	if err := s.writer.RecordLineage(ctx, s.table, rec); err != nil {
		return fmt.Errorf("lineage: record %s: %w", ev.Stage, err)
	}

	s.logger.Debug("lineage recorded", "stage", ev.Stage, "rows", ev.Snapshot.RowCount)
	return nil
}

// DecodeSnapshot reverses the StoreSink encoding.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("lineage: decompress snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, fmt.Errorf("lineage: decode snapshot: %w", err)
	}
	return s, nil
}

// Recorder is an in-memory Sink, useful in tests and dry runs.
type Recorder struct {
	Events []Event
}

// Record implements Sink.
func (r *Recorder) Record(_ context.Context, ev Event) error {
	r.Events = append(r.Events, ev)
	return nil
}

// Stages returns the recorded stage names in order.
func (r *Recorder) Stages() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Stage
	}
	return out
}
