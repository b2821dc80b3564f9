// Package pipeline runs one collect-to-cleanse load: it reads a raw source
// file, maps and transforms it under an optional spec, gates it with data
// quality rules before and after transformation, and overwrites a single
// (year, month, day) partition of the target catalog table.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arkilian/lakestage/internal/catalog"
	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/lineage"
	"github.com/arkilian/lakestage/internal/mapping"
	"github.com/arkilian/lakestage/internal/metrics"
	"github.com/arkilian/lakestage/internal/partition"
	"github.com/arkilian/lakestage/internal/quality"
	"github.com/arkilian/lakestage/internal/reader"
	"github.com/arkilian/lakestage/internal/schema"
	"github.com/arkilian/lakestage/internal/spec"
	"github.com/arkilian/lakestage/internal/storage"
	"github.com/arkilian/lakestage/internal/transform"
	"github.com/arkilian/lakestage/pkg/types"
)

// Step names reported to metrics.
const (
	StepResolve   = "resolve"
	StepRead      = "read"
	StepMapping   = "mapping"
	StepGate      = "quality_gate"
	StepTransform = "transform"
	StepCatalog   = "catalog_upsert"
	StepPurge     = "purge"
	StepAppend    = "append"
)

// ResultStore persists quality outcomes, lineage events and tokens.
type ResultStore interface {
	quality.ResultWriter
	transform.TokenStore
	lineage.Writer
}

// Config wires a Pipeline to its collaborators.
type Config struct {
	Store    storage.ObjectStorage
	Catalog  *catalog.Catalog
	Results  ResultStore
	Registry *transform.Registry
	Metrics  metrics.Recorder

	// SpecPrefix locates specs and mappings when the run gives no spec location
	SpecPrefix string
	// DQRulesPrefix locates quality rule files
	DQRulesPrefix string
	DQTable       string
	TokenTable    string

	// ScratchDir holds partition files between build and upload
	ScratchDir       string
	PurgeConcurrency int
	Logger           *slog.Logger
}

// Pipeline executes runs. It holds no per-run state and may be reused.
type Pipeline struct {
	cfg        Config
	writer     *partition.Writer
	dispatcher *transform.Dispatcher
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// New creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, errors.New("pipeline: object storage is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("pipeline: catalog is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = transform.DefaultRegistry()
	}
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		cfg: cfg,
		writer: partition.NewWriter(partition.WriterConfig{
			Store:       cfg.Store,
			Catalog:     cfg.Catalog,
			ScratchDir:  cfg.ScratchDir,
			Concurrency: cfg.PurgeConcurrency,
			Logger:      logger,
		}),
		dispatcher: transform.NewDispatcher(cfg.Registry),
		metrics:    rec,
		logger:     logger,
	}, nil
}

// Writer returns the partition writer, for reading partitions back.
func (p *Pipeline) Writer() *partition.Writer {
	return p.writer
}

// Summary describes a completed run.
type Summary struct {
	ExecutionID       string                 `json:"execution_id"`
	Database          string                 `json:"database"`
	Table             string                 `json:"table"`
	Partition         string                 `json:"partition"`
	Policy            schema.Policy          `json:"policy"`
	RowsRead          int                    `json:"rows_read"`
	RowsWritten       int                    `json:"rows_written"`
	RowsQuarantined   int                    `json:"rows_quarantined"`
	ColumnsWritten    []string               `json:"columns_written"`
	SchemaVersion     int                    `json:"schema_version"`
	TransformsApplied []string               `json:"transforms_applied"`
	TransformsSkipped []string               `json:"transforms_skipped"`
	Artifacts         []string               `json:"artifacts,omitempty"`
	PurgeOutcome      partition.PurgeOutcome `json:"purge_outcome"`
	ObjectPath        string                 `json:"object_path"`
	Duration          time.Duration          `json:"duration"`
}

// resolved is the optional configuration found for a run.
type resolved struct {
	spec    spec.Resolution
	mapping mapping.Resolution
	rules   quality.Rules
	policy  schema.Policy
}

// Run executes one load. Missing optional configuration never fails the
// run; every fatal condition is returned as a single error.
func (p *Pipeline) Run(ctx context.Context, rc RunContext) (*Summary, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	log := p.logger.With("execution_id", rc.ExecutionID, "database", rc.Database, "table", rc.Table)
	summary := &Summary{
		ExecutionID: rc.ExecutionID,
		Database:    rc.Database,
		Table:       rc.Table,
		Partition:   rc.Key.String(),
	}

	var sink lineage.Sink = lineage.NopSink{}
	if rc.LineageTable != "" && p.cfg.Results != nil {
		sink = lineage.NewStoreSink(p.cfg.Results, rc.LineageTable, log)
	}
	audit := func(ds *dataset.Dataset, stage string, params map[string]any) error {
		ev := lineage.Event{ExecutionID: rc.ExecutionID, SourceKey: rc.SourceKey, Stage: stage, Snapshot: lineage.Snap(ds)}
		if params != nil {
			raw, err := json.Marshal(params)
			if err != nil {
				return err
			}
			ev.Params = raw
		}
		return sink.Record(ctx, ev)
	}

	var res resolved
	err := metrics.Time(p.metrics, StepResolve, func() (err error) {
		res, err = p.resolve(ctx, rc, log)
		return err
	})
	if err != nil {
		return nil, err
	}
	summary.Policy = res.policy

	var ds *dataset.Dataset
	err = metrics.Time(p.metrics, StepRead, func() (err error) {
		ds, err = p.read(ctx, rc, res, log)
		return err
	})
	if err != nil {
		return nil, err
	}
	summary.RowsRead = ds.NumRows()
	p.metrics.Rows(StepRead, ds.NumRows())

	if err := audit(ds, lineage.StageRead, map[string]any{"source": rc.SourcePath()}); err != nil {
		return nil, lserrors.NewInternalError("record lineage", err)
	}
	if err := audit(ds, lineage.StageNumericAudit, map[string]any{"checkpoint": string(quality.BeforeTransform)}); err != nil {
		return nil, lserrors.NewInternalError("record lineage", err)
	}

	if ds.NumRows() == 0 {
		return nil, lserrors.NewSourceError(lserrors.CodeEmptySource,
			fmt.Sprintf("no rows of data in source file %s", rc.SourcePath()), nil)
	}

	// Fixed-width sources were already sliced and named by the mapping.
	if !res.spec.Spec.Input.Fixed {
		err = metrics.Time(p.metrics, StepMapping, func() (err error) {
			var artifact string
			ds, artifact, err = p.mapColumns(ctx, rc, res.mapping, ds, log)
			if artifact != "" {
				summary.Artifacts = append(summary.Artifacts, artifact)
			}
			if err == nil && res.mapping.Usable() {
				err = audit(ds, lineage.StageMapping, map[string]any{"mapping": res.mapping.Key})
			}
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	ds = ds.Materialize()

	quarantine := newQuarantineSink(rc, p.cfg.Catalog, p.writer, log)
	gate := quality.NewGate(quality.GateConfig{
		ExecutionID:  rc.ExecutionID,
		Database:     rc.Database,
		Table:        rc.Table,
		Results:      p.resultWriter(),
		ResultsTable: p.cfg.DQTable,
		Quarantine:   quarantine,
		Logger:       log,
	})

	err = metrics.Time(p.metrics, StepGate, func() (err error) {
		ds, err = gate.Run(ctx, ds, res.rules, quality.BeforeTransform)
		return err
	})
	if err != nil {
		return nil, err
	}

	tc := &transform.Context{
		Context:     ctx,
		ExecutionID: rc.ExecutionID,
		SourceKey:   rc.SourceKey,
		Lineage:     sink,
		TokenTable:  p.cfg.TokenTable,
		Logger:      log,
	}
	if p.cfg.Results != nil {
		tc.Tokens = p.cfg.Results
	}

	err = metrics.Time(p.metrics, StepTransform, func() error {
		if res.spec.Found && res.spec.Spec.HasTransformSpec {
			log.Info("using transformation specification", "transforms", res.spec.Spec.StepNames())
			out, outcome, err := p.dispatcher.Run(tc, ds, res.spec.Spec.Transforms)
			if err != nil {
				return err
			}
			ds = out
			summary.TransformsApplied = outcome.Applied
			summary.TransformsSkipped = outcome.Skipped
		} else {
			artifact, err := p.writeSpecArtifact(ctx, rc, ds, log)
			if err != nil {
				return err
			}
			summary.Artifacts = append(summary.Artifacts, artifact)
		}

		var err error
		ds, err = transform.InjectMandatoryFields(tc, ds, rc.ExecutionID, rc.Key)
		return err
	})
	if err != nil {
		return nil, err
	}
	ds = ds.Materialize()
	log.Info("added partition columns and execution_id column", "schema", ds.Schema().Names())

	err = metrics.Time(p.metrics, StepGate, func() (err error) {
		ds, err = gate.Run(ctx, ds, res.rules, quality.AfterTransform)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := audit(ds, lineage.StageNumericAudit, map[string]any{"checkpoint": string(quality.AfterTransform)}); err != nil {
		return nil, lserrors.NewInternalError("record lineage", err)
	}

	if err := p.write(ctx, rc, res, ds, summary, log); err != nil {
		return nil, err
	}

	summary.RowsWritten = ds.NumRows()
	summary.RowsQuarantined = quarantine.written
	summary.ColumnsWritten = ds.Schema().Names()
	summary.Duration = time.Since(start)
	p.metrics.Rows(StepAppend, ds.NumRows())

	log.Info("run complete",
		"rows_read", summary.RowsRead,
		"rows_written", summary.RowsWritten,
		"rows_quarantined", summary.RowsQuarantined,
		"policy", string(summary.Policy),
		"purge", string(summary.PurgeOutcome),
		"duration", summary.Duration)
	return summary, nil
}

// resolve looks up the spec, mapping and rule files and settles the
// schema change policy. Absent files are logged, not errors.
func (p *Pipeline) resolve(ctx context.Context, rc RunContext, log *slog.Logger) (resolved, error) {
	var res resolved
	var err error

	specKey := rc.SpecPath(p.cfg.SpecPrefix)
	if res.spec, err = spec.Load(ctx, p.cfg.Store, specKey); err != nil {
		return res, err
	}
	if res.spec.Found {
		log.Info("using input/transformation specification", "key", specKey)
	} else {
		log.Warn("no input/transformation specification found", "key", specKey)
	}

	mapKey := rc.MappingPath(p.cfg.SpecPrefix)
	if res.mapping, err = mapping.Load(ctx, p.cfg.Store, mapKey); err != nil {
		return res, err
	}
	if res.mapping.Usable() {
		log.Info("using schema mapping", "key", mapKey, "entries", len(res.mapping.Entries))
	} else {
		log.Warn("no schema mapping found", "key", mapKey)
	}

	rulesKey := rc.RulesPath(p.cfg.DQRulesPrefix)
	if res.rules, err = quality.LoadRules(ctx, p.cfg.Store, rulesKey); err != nil {
		return res, err
	}
	if res.rules.Found {
		log.Info("using data quality rules", "key", rulesKey)
	} else {
		log.Warn("no data quality rules found", "key", rulesKey)
	}

	res.policy, err = schema.Resolve(rc.Environment, res.spec.Spec.Input.AllowSchemaChange, log)
	return res, err
}

func (p *Pipeline) read(ctx context.Context, rc RunContext, res resolved, log *slog.Logger) (*dataset.Dataset, error) {
	data, err := p.cfg.Store.Get(ctx, rc.SourcePath())
	if err != nil {
		return nil, lserrors.NewSourceError(lserrors.CodeReadFailed,
			fmt.Sprintf("read source %s", rc.SourcePath()), err)
	}
	return reader.Read(ctx, reader.Source{
		Data:    data,
		Ext:     rc.Ext(),
		Input:   res.spec.Spec.Input,
		Mapping: res.mapping.Entries,
	}, log)
}

// mapColumns applies the mapping, or cleans column names and writes a
// recommended mapping when there is none. It returns the artifact path,
// if one was written.
func (p *Pipeline) mapColumns(ctx context.Context, rc RunContext, res mapping.Resolution, ds *dataset.Dataset, log *slog.Logger) (*dataset.Dataset, string, error) {
	if res.Usable() {
		out, report, err := mapping.Apply(ds, res.Entries, log)
		if err != nil {
			return nil, "", err
		}
		log.Info("performed field mapping",
			"renamed", len(report.Renamed), "dropped", len(report.Dropped), "discarded", len(report.Discarded))
		return out, "", nil
	}

	out, recs := mapping.CleanColumnNames(ds)
	data, err := mapping.EncodeRecommendations(recs)
	if err != nil {
		return nil, "", lserrors.NewInternalError("encode recommended mapping", err)
	}
	key := rc.MappingArtifactPath()
	if err := p.cfg.Store.Put(ctx, key, data); err != nil {
		return nil, "", lserrors.NewStorageError(lserrors.CodeUploadFailed, "write recommended mapping "+key, err)
	}
	log.Info("no mapping found, generated recommended mapping", "key", key)
	return out, key, nil
}

func (p *Pipeline) writeSpecArtifact(ctx context.Context, rc RunContext, ds *dataset.Dataset, log *slog.Logger) (string, error) {
	data, err := spec.Generate(ds, rc.Ext()).Encode()
	if err != nil {
		return "", lserrors.NewInternalError("encode recommended spec", err)
	}
	key := rc.SpecArtifactPath()
	if err := p.cfg.Store.Put(ctx, key, data); err != nil {
		return "", lserrors.NewStorageError(lserrors.CodeUploadFailed, "write recommended spec "+key, err)
	}
	log.Info("no transformation specification found, generated recommended spec", "key", key)
	return key, nil
}

// write upserts the catalog table, purges the run's partition and appends
// ds. A failed append leaves the partition purged; rerunning the job for
// the same key restores it.
func (p *Pipeline) write(ctx context.Context, rc RunContext, res resolved, ds *dataset.Dataset, summary *Summary, log *slog.Logger) error {
	if err := catalog.CheckColumnNames(ds.Schema()); err != nil {
		return err
	}
	def := &types.TableSchema{
		Database:    rc.Database,
		Name:        rc.Table,
		Location:    rc.TargetPath(),
		Description: res.spec.Spec.Input.TableDescription,
		Columns:     catalog.Columns(ds.Schema()),
	}

	var upsert catalog.UpsertResult
	err := metrics.Time(p.metrics, StepCatalog, func() (err error) {
		upsert, err = p.cfg.Catalog.UpsertTable(ctx, def, res.policy)
		return err
	})
	if err != nil {
		return err
	}
	summary.SchemaVersion = upsert.Version

	target := partition.Target{
		Database:      rc.Database,
		Table:         rc.Table,
		Location:      def.Location,
		SchemaVersion: upsert.Version,
	}

	err = metrics.Time(p.metrics, StepPurge, func() error {
		purge, err := p.writer.Purge(ctx, target, rc.Key)
		if err != nil {
			return err
		}
		summary.PurgeOutcome = purge.Outcome
		if purge.Outcome == partition.PurgeNoPartitions {
			log.Info("no existing partition data to clear")
		}
		return nil
	})
	if err != nil {
		return err
	}

	return metrics.Time(p.metrics, StepAppend, func() error {
		rec, err := p.writer.Append(ctx, target, rc.Key, ds, rc.ExecutionID)
		if err != nil {
			return err
		}
		summary.ObjectPath = rec.ObjectPath
		return nil
	})
}

func (p *Pipeline) resultWriter() quality.ResultWriter {
	if p.cfg.Results == nil {
		return nil
	}
	return p.cfg.Results
}
