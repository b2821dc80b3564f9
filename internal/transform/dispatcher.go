package transform

import (
	"fmt"
	"strconv"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/lineage"
	"github.com/arkilian/lakestage/internal/spec"
	"github.com/arkilian/lakestage/pkg/types"
)

// ColumnExecutionID carries the run's execution id on every written row.
const ColumnExecutionID = "execution_id"

// Outcome lists which steps ran and which were skipped.
type Outcome struct {
	Applied []string
	Skipped []string
}

// Dispatcher runs transform steps against a registry.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Run applies steps in order. Unknown names are logged and skipped; a
// failing transform aborts the run.
func (d *Dispatcher) Run(tc *Context, ds *dataset.Dataset, steps []spec.Step) (*dataset.Dataset, Outcome, error) {
	var out Outcome
	log := tc.logger()

	for _, step := range steps {
		t, ok := d.registry.Lookup(step.Name)
		if !ok {
			log.Warn("transform not implemented, skipping", "transform", step.Name)
			out.Skipped = append(out.Skipped, step.Name)
			continue
		}

		next, err := t.Apply(tc, ds, step.Params)
		if err != nil {
			return nil, out, lserrors.NewTransformError(fmt.Sprintf("transform %s", step.Name), err).
				WithDetails(map[string]interface{}{"transform": step.Name})
		}
		ds = next
		out.Applied = append(out.Applied, step.Name)

		ev := lineage.Event{
			ExecutionID: tc.ExecutionID,
			SourceKey:   tc.SourceKey,
			Stage:       step.Name,
			Snapshot:    lineage.Snap(ds),
			Params:      step.Params,
		}
		if err := tc.lineageSink().Record(tc, ev); err != nil {
			return nil, out, lserrors.NewInternalError("record lineage", err)
		}
		log.Info("performed transform", "transform", step.Name, "rows", ds.NumRows())
	}

	return ds, out, nil
}

// InjectMandatoryFields sets execution_id and the partition key columns on
// every row. Existing columns with those names are overwritten.
func InjectMandatoryFields(tc *Context, ds *dataset.Dataset, executionID string, key types.PartitionKey) (*dataset.Dataset, error) {
	fields := []literalField{
		{column: dataset.Column{Name: ColumnExecutionID, Type: dataset.String}, value: executionID},
		{column: dataset.Column{Name: types.ColumnYear, Type: dataset.Int}, value: int64(key.Year)},
		{column: dataset.Column{Name: types.ColumnMonth, Type: dataset.Int}, value: int64(key.Month)},
		{column: dataset.Column{Name: types.ColumnDay, Type: dataset.Int}, value: int64(key.Day)},
	}
	out, err := applyLiterals(ds, fields)
	if err != nil {
		return nil, lserrors.NewTransformError("add mandatory fields", err)
	}

	params := fmt.Sprintf(`{"execution_id":%s,"year":%d,"month":%d,"day":%d}`,
		strconv.Quote(executionID), key.Year, key.Month, key.Day)
	ev := lineage.Event{
		ExecutionID: tc.ExecutionID,
		SourceKey:   tc.SourceKey,
		Stage:       lineage.StageLiteral,
		Snapshot:    lineage.Snap(out),
		Params:      []byte(params),
	}
	if err := tc.lineageSink().Record(tc, ev); err != nil {
		return nil, lserrors.NewInternalError("record lineage", err)
	}
	return out, nil
}
