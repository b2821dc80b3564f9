package quality

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/results"
)

// ColumnQuarantineTimestamp is added to quarantined rows.
const ColumnQuarantineTimestamp = "quarantine_timestamp"

// ResultWriter persists rule outcomes.
type ResultWriter interface {
	RecordQuality(ctx context.Context, table string, results []results.QualityResult) error
}

// QuarantineSink receives rows removed by quarantine rules.
type QuarantineSink interface {
	Quarantine(ctx context.Context, rows *dataset.Dataset) error
}

// GateConfig configures a Gate.
type GateConfig struct {
	ExecutionID  string
	Database     string
	Table        string
	Results      ResultWriter
	ResultsTable string
	Quarantine   QuarantineSink
	Logger       *slog.Logger
}

// Gate evaluates rule sets at checkpoints.
type Gate struct {
	cfg    GateConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewGate creates a gate.
func NewGate(cfg GateConfig) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{cfg: cfg, logger: logger, now: time.Now}
}

// Run evaluates the rules tagged for cp and returns the rows that survive.
// Actions run in order halt, warn, quarantine. With no rules ds is returned
// unchanged.
func (g *Gate) Run(ctx context.Context, ds *dataset.Dataset, rules Rules, cp Checkpoint) (*dataset.Dataset, error) {
	set := rules.For(cp)
	log := g.logger.With("checkpoint", string(cp))
	if set.Empty() {
		log.Info("no data quality rules for checkpoint")
		return ds, nil
	}

	halt, err := g.evaluate(ctx, ds, cp, ActionHalt, set.Halt)
	if err != nil {
		return nil, err
	}
	if failed := failedRules(halt); len(failed) > 0 {
		return nil, lserrors.NewQualityError(lserrors.CodeQualityHalt,
			fmt.Sprintf("data quality check failed at %s", cp)).
			WithDetails(map[string]interface{}{"checkpoint": string(cp), "rules": failed})
	}

	warn, err := g.evaluate(ctx, ds, cp, ActionWarn, set.Warn)
	if err != nil {
		return nil, err
	}
	for _, ev := range warn {
		if !ev.Passed {
			log.Warn("data quality check failed: warning only", "rule", ev.Rule.Text, "reason", ev.FailureReason)
		}
	}

	quarantine, err := g.evaluate(ctx, ds, cp, ActionQuarantine, set.Quarantine)
	if err != nil {
		return nil, err
	}
	return g.quarantine(ctx, log, ds, quarantine)
}

func (g *Gate) quarantine(ctx context.Context, log *slog.Logger, ds *dataset.Dataset, evals []Evaluation) (*dataset.Dataset, error) {
	mask := make([]bool, ds.NumRows())
	var hit bool
	for _, ev := range evals {
		if ev.Passed {
			continue
		}
		if ev.FailedRows == nil {
			log.Warn("dataset-level rule failed under quarantine, no rows removed", "rule", ev.Rule.Text, "reason", ev.FailureReason)
			continue
		}
		for i, f := range ev.FailedRows {
			if f {
				mask[i] = true
				hit = true
			}
		}
	}
	if !hit {
		return ds, nil
	}

	passed := filterMask(ds, mask, false)
	failed := filterMask(ds, mask, true)

	if g.cfg.Quarantine != nil {
		rows, err := failed.WithLiteral(dataset.Column{Name: ColumnQuarantineTimestamp, Type: dataset.Timestamp}, g.now().UTC())
		if err != nil {
			return nil, lserrors.NewInternalError("prepare quarantined rows", err)
		}
		if err := g.cfg.Quarantine.Quarantine(ctx, rows); err != nil {
			return nil, err
		}
	}

	if passed.NumRows() == 0 {
		return nil, lserrors.NewQualityError(lserrors.CodeAllRowsQuarantined, "data quality check quarantined all rows")
	}
	log.Warn("data quality check failed: rows quarantined", "quarantined", failed.NumRows(), "passed", passed.NumRows())
	return passed, nil
}

func filterMask(ds *dataset.Dataset, mask []bool, want bool) *dataset.Dataset {
	i := -1
	return ds.Filter(func(dataset.Row) bool {
		i++
		return mask[i] == want
	})
}

func (g *Gate) evaluate(ctx context.Context, ds *dataset.Dataset, cp Checkpoint, action Action, rules []Rule) ([]Evaluation, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	evals := make([]Evaluation, len(rules))
	records := make([]results.QualityResult, len(rules))
	at := g.now().UTC()
	for i, r := range rules {
		evals[i] = Evaluate(r, ds)
		records[i] = results.QualityResult{
			ExecutionID:   g.cfg.ExecutionID,
			Database:      g.cfg.Database,
			Table:         g.cfg.Table,
			Checkpoint:    string(cp),
			Action:        string(action),
			Rule:          r.Text,
			Outcome:       evals[i].Outcome(),
			FailureReason: evals[i].FailureReason,
			FailedRows:    evals[i].FailedN,
			EvaluatedAt:   at,
		}
	}

	if g.cfg.Results != nil {
		if err := g.cfg.Results.RecordQuality(ctx, g.cfg.ResultsTable, records); err != nil {
			return nil, lserrors.NewInternalError("record quality results", err)
		}
	}
	g.logger.Debug("evaluated data quality rules", "checkpoint", string(cp), "action", string(action), "rules", len(rules))
	return evals, nil
}

func failedRules(evals []Evaluation) []string {
	var out []string
	for _, ev := range evals {
		if !ev.Passed {
			out = append(out, ev.Rule.Text)
		}
	}
	return out
}
