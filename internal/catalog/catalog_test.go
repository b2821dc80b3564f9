package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/schema"
	"github.com/arkilian/lakestage/pkg/types"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func policiesDef(columns ...types.ColumnDef) *types.TableSchema {
	return &types.TableSchema{
		Database: "ins",
		Name:     "policies",
		Location: "cleanse/ins/policies",
		Columns:  columns,
	}
}

var (
	colID      = types.ColumnDef{Name: "id", Type: "string"}
	colPremium = types.ColumnDef{Name: "premium", Type: "double"}
	colState   = types.ColumnDef{Name: "state", Type: "string"}
)

func TestGetTableNotFound(t *testing.T) {
	c := newCatalog(t)
	_, err := c.GetTable(context.Background(), "ins", "missing")
	require.Error(t, err)
	assert.Equal(t, lserrors.CodeTableNotFound, lserrors.GetCode(err))

	ok, err := c.TableExists(context.Background(), "ins", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertCreatesThenNoops(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	res, err := c.UpsertTable(ctx, policiesDef(colID, colPremium), schema.Strict)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 1, res.Version)

	def, err := c.GetTable(ctx, "ins", "policies")
	require.NoError(t, err)
	assert.Equal(t, []types.ColumnDef{colID, colPremium}, def.Columns)
	assert.Equal(t, PartitionKeyColumns(), def.PartitionKeys)
	assert.Equal(t, "cleanse/ins/policies", def.Location)

	res, err = c.UpsertTable(ctx, policiesDef(colID, colPremium), schema.Strict)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.False(t, res.Changed)
	assert.Equal(t, 1, res.Version)
}

func TestUpsertAppliesPolicy(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	_, err := c.UpsertTable(ctx, policiesDef(colID, colPremium), schema.Strict)
	require.NoError(t, err)

	_, err = c.UpsertTable(ctx, policiesDef(colID, colPremium, colState), schema.Strict)
	require.Error(t, err)
	assert.Equal(t, lserrors.CodeIncompatibleSchema, lserrors.GetCode(err))

	def, err := c.GetTable(ctx, "ins", "policies")
	require.NoError(t, err)
	assert.Len(t, def.Columns, 2, "rejected change must not touch the catalog")

	res, err := c.UpsertTable(ctx, policiesDef(colState, colPremium, colID), schema.Reorder)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, res.Version)
	assert.Equal(t, []string{"state"}, res.Diff.Added)

	_, err = c.UpsertTable(ctx, policiesDef(colID), schema.Reorder)
	require.Error(t, err)

	res, err = c.UpsertTable(ctx, policiesDef(colID), schema.Permissive)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Version)

	versions, err := c.SchemaVersions(ctx, "ins", "policies")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "strict", versions[0].Policy)
	assert.Equal(t, "reorder", versions[1].Policy)
	assert.Equal(t, []types.ColumnDef{colID}, versions[2].Columns)
}

func TestColumnsLowercasesAndSkipsPartitionKeys(t *testing.T) {
	s := dataset.Schema{
		{Name: "Policy_ID", Type: dataset.String},
		{Name: "Premium", Type: dataset.DecimalType(16, 2)},
		{Name: "year", Type: dataset.Int},
		{Name: "month", Type: dataset.Int},
		{Name: "day", Type: dataset.Int},
		{Name: "execution_id", Type: dataset.String},
	}
	assert.Equal(t, []types.ColumnDef{
		{Name: "policy_id", Type: "string"},
		{Name: "premium", Type: "decimal(16,2)"},
		{Name: "execution_id", Type: "string"},
	}, Columns(s))
}

func TestCheckColumnNamesRejectsCaseCollisions(t *testing.T) {
	ok := dataset.Schema{
		{Name: "Policy_ID", Type: dataset.String},
		{Name: "day", Type: dataset.Int},
	}
	require.NoError(t, CheckColumnNames(ok))

	clash := dataset.Schema{
		{Name: "Day", Type: dataset.String},
		{Name: "policy_id", Type: dataset.String},
		{Name: "day", Type: dataset.Int},
	}
	err := CheckColumnNames(clash)
	require.Error(t, err)
	assert.Equal(t, lserrors.CodeIncompatibleSchema, lserrors.GetCode(err))
	assert.Contains(t, err.Error(), "Day/day")
}

func TestPartitionRegistry(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	day5 := types.PartitionKey{Year: 2024, Month: 1, Day: 5}
	day6 := types.PartitionKey{Year: 2024, Month: 1, Day: 6}

	n, err := c.PartitionCount(ctx, "ins", "policies")
	require.NoError(t, err)
	assert.Zero(t, n)

	for i, key := range []types.PartitionKey{day5, day5, day6} {
		require.NoError(t, c.RegisterPartition(ctx, &PartitionRecord{
			PartitionID:   []string{"p1", "p2", "p3"}[i],
			Database:      "ins",
			Table:         "policies",
			Key:           key,
			ObjectPath:    "cleanse/ins/policies/" + key.Path() + "/part.sqlite",
			RowCount:      10,
			SizeBytes:     4096,
			SchemaVersion: 1,
			ExecutionID:   "exec-1",
		}))
	}

	recs, err := c.ListPartitions(ctx, "ins", "policies", day5)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, day5, recs[0].Key)

	all, err := c.AllPartitions(ctx, "ins", "policies")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	removed, err := c.DeletePartitions(ctx, "ins", "policies", day5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err = c.PartitionCount(ctx, "ins", "policies")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = c.RegisterPartition(ctx, &PartitionRecord{PartitionID: "p3", Database: "ins", Table: "policies", Key: day6})
	require.Error(t, err, "duplicate partition id")
	assert.Equal(t, lserrors.CodeCatalogWrite, lserrors.GetCode(err))
}
