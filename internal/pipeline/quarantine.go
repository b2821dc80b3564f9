package pipeline

import (
	"context"
	"log/slog"

	"github.com/arkilian/lakestage/internal/catalog"
	"github.com/arkilian/lakestage/internal/dataset"
	"github.com/arkilian/lakestage/internal/partition"
	"github.com/arkilian/lakestage/internal/schema"
	"github.com/arkilian/lakestage/internal/transform"
	"github.com/arkilian/lakestage/pkg/types"
)

// quarantineSink writes rows removed by quarantine rules to <table>_quarantine
// under the run's partition key. The table always evolves permissively so
// that saving bad rows never fails on schema drift. The first batch of a run
// replaces the partition, later batches append to it.
type quarantineSink struct {
	rc      RunContext
	catalog *catalog.Catalog
	writer  *partition.Writer
	logger  *slog.Logger

	purged  bool
	written int
}

func newQuarantineSink(rc RunContext, cat *catalog.Catalog, w *partition.Writer, logger *slog.Logger) *quarantineSink {
	return &quarantineSink{rc: rc, catalog: cat, writer: w, logger: logger}
}

// Quarantine implements quality.QuarantineSink.
func (q *quarantineSink) Quarantine(ctx context.Context, rows *dataset.Dataset) error {
	tc := &transform.Context{Context: ctx, ExecutionID: q.rc.ExecutionID, SourceKey: q.rc.SourceKey, Logger: q.logger}
	rows, err := transform.InjectMandatoryFields(tc, rows, q.rc.ExecutionID, q.rc.Key)
	if err != nil {
		return err
	}
	if err := catalog.CheckColumnNames(rows.Schema()); err != nil {
		return err
	}

	def := &types.TableSchema{
		Database: q.rc.Database,
		Name:     q.rc.QuarantineTable(),
		Location: q.rc.QuarantinePath(),
		Columns:  catalog.Columns(rows.Schema()),
	}
	res, err := q.catalog.UpsertTable(ctx, def, schema.Permissive)
	if err != nil {
		return err
	}

	target := partition.Target{
		Database:      def.Database,
		Table:         def.Name,
		Location:      def.Location,
		SchemaVersion: res.Version,
	}
	if !q.purged {
		if _, err := q.writer.Purge(ctx, target, q.rc.Key); err != nil {
			return err
		}
		q.purged = true
	}
	if _, err := q.writer.Append(ctx, target, q.rc.Key, rows, q.rc.ExecutionID); err != nil {
		return err
	}
	q.written += rows.NumRows()

	q.logger.Warn("rows quarantined", "quarantine_table", def.Name, "location", def.Location, "rows", rows.NumRows())
	return nil
}
