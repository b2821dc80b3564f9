package catalog

import (
	"context"
	"strings"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/schema"
	"github.com/arkilian/lakestage/pkg/types"
)

// UpsertResult reports what UpsertTable did.
type UpsertResult struct {
	Created bool
	Changed bool
	Version int
	Diff    schema.Diff
}

// PartitionKeyColumns are the partition key definitions of every table.
func PartitionKeyColumns() []types.ColumnDef {
	out := make([]types.ColumnDef, len(types.PartitionColumns))
	for i, name := range types.PartitionColumns {
		out[i] = types.ColumnDef{Name: name, Type: dataset.Int.String()}
	}
	return out
}

// Columns converts a dataset schema into catalog columns: names are
// lowercased and partition key columns are left out.
func Columns(s dataset.Schema) []types.ColumnDef {
	out := make([]types.ColumnDef, 0, len(s))
	for _, c := range s {
		name := strings.ToLower(c.Name)
		if types.IsPartitionColumn(name) {
			continue
		}
		out = append(out, types.ColumnDef{Name: name, Type: c.Type.String()})
	}
	return out
}

// CheckColumnNames rejects schemas whose column names collide once case is
// folded. Catalog columns and SQLite data files both ignore case.
func CheckColumnNames(s dataset.Schema) error {
	seen := make(map[string]string, len(s))
	var dupes []string
	for _, c := range s {
		key := strings.ToLower(c.Name)
		if first, ok := seen[key]; ok {
			dupes = append(dupes, first+"/"+c.Name)
			continue
		}
		seen[key] = c.Name
	}
	if len(dupes) == 0 {
		return nil
	}
	return lserrors.NewSchemaError(lserrors.CodeIncompatibleSchema,
		"column names collide ignoring case: "+strings.Join(dupes, ", ")).
		WithDetails(map[string]interface{}{"columns": dupes})
}

// UpsertTable creates the table when absent, leaves it alone when the
// columns are unchanged, and otherwise applies policy before updating it.
func (c *Catalog) UpsertTable(ctx context.Context, def *types.TableSchema, policy schema.Policy) (UpsertResult, error) {
	if len(def.PartitionKeys) == 0 {
		def.PartitionKeys = PartitionKeyColumns()
	}
	log := c.logger.With("database", def.Database, "table", def.Name)

	if err := c.EnsureDatabase(ctx, def.Database); err != nil {
		return UpsertResult{}, err
	}

	existing, err := c.GetTable(ctx, def.Database, def.Name)
	if lserrors.GetCode(err) == lserrors.CodeTableNotFound {
		if err := c.CreateTable(ctx, def, string(policy)); err != nil {
			return UpsertResult{}, err
		}
		log.Info("created catalog table", "columns", len(def.Columns))
		return UpsertResult{Created: true, Version: def.Version}, nil
	}
	if err != nil {
		return UpsertResult{}, err
	}

	if types.ColumnsEqual(existing.Columns, def.Columns) {
		log.Info("no schema changes detected", "version", existing.Version)
		def.Version = existing.Version
		return UpsertResult{Version: existing.Version}, nil
	}

	diff, err := schema.Check(existing.Columns, def.Columns, policy)
	if err != nil {
		log.Error("schema change rejected", "policy", string(policy), "error", err)
		return UpsertResult{Diff: diff}, err
	}

	if err := c.UpdateTable(ctx, def, string(policy)); err != nil {
		return UpsertResult{}, err
	}
	log.Info("updated catalog table schema",
		"policy", string(policy), "version", def.Version,
		"added", diff.Added, "removed", diff.Removed, "reordered", diff.Reordered)
	return UpsertResult{Changed: true, Version: def.Version, Diff: diff}, nil
}
