package lineage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/lakestage/internal/dataset"
	"github.com/arkilian/lakestage/internal/results"
)

func TestSnapTotalsNumericColumns(t *testing.T) {
	ds := dataset.MustNew(
		dataset.Schema{{Name: "id", Type: dataset.BigInt}, {Name: "name", Type: dataset.String}, {Name: "amt", Type: dataset.Double}},
		[]dataset.Row{{int64(1), "a", 1.5}, {int64(2), "b", nil}, {int64(3), "c", 2.5}},
	)
	snap := Snap(ds)
	assert.Equal(t, 3, snap.RowCount)
	assert.Equal(t, []string{"id:bigint", "name:string", "amt:double"}, snap.Columns)
	assert.Equal(t, map[string]float64{"id": 6, "amt": 4}, snap.NumericTotals)
	assert.Equal(t, []string{"amt", "id"}, snap.NumericColumns())
}

func TestStoreSinkRoundTrip(t *testing.T) {
	store, err := results.Open(results.DriverSQLite, filepath.Join(t.TempDir(), "r.db"))
	require.NoError(t, err)
	defer store.Close()

	sink := NewStoreSink(store, "lineage_events", nil)
	ctx := context.Background()
	snap := Snapshot{RowCount: 2, Columns: []string{"a:string"}}
	require.NoError(t, sink.Record(ctx, Event{ExecutionID: "e1", SourceKey: "ins/policies", Stage: StageRead, Snapshot: snap}))

	recs, err := store.LineageRecords(ctx, "lineage_events", "e1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "{}", recs[0].Params)

	decoded, err := DecodeSnapshot(recs[0].Snapshot)
	require.NoError(t, err)
	assert.Equal(t, snap, decoded)
}
