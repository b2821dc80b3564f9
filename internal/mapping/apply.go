package mapping

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
)

// Report describes what Apply did with each column.
type Report struct {
	Renamed   map[string]string
	Dropped   []string
	Discarded []string
	Missing   []string
	Fuzzy     []Entry
}

// Apply renames and drops columns according to entries.
//
// Direct entries keep dataset column order. Source columns named by an
// entry but absent from the dataset become all-null string columns. Fuzzy
// entries then match the remaining unmapped columns by similarity and are
// appended in entry order. Whatever is still unmapped is discarded.
func Apply(ds *dataset.Dataset, entries []Entry, logger *slog.Logger) (*dataset.Dataset, *Report, error) {
	if logger == nil {
		logger = slog.Default()
	}

	direct := make(map[string]Entry)
	directFold := make(map[string]Entry)
	var fuzzy []Entry
	for _, e := range entries {
		if e.Fuzzy() {
			fuzzy = append(fuzzy, e)
			continue
		}
		direct[e.SourceName] = e
		directFold[strings.ToLower(e.SourceName)] = e
	}

	report := &Report{Renamed: make(map[string]string)}
	schema := ds.Schema()
	var cols []dataset.Projection
	used := make(map[string]bool)
	var unmapped []string

	for i, c := range schema {
		e, ok := direct[c.Name]
		if !ok {
			e, ok = directFold[strings.ToLower(c.Name)]
		}
		if !ok {
			unmapped = append(unmapped, c.Name)
			continue
		}
		used[strings.ToLower(e.SourceName)] = true
		if e.Drops() {
			report.Dropped = append(report.Dropped, c.Name)
			continue
		}
		cols = append(cols, dataset.Projection{
			Column: dataset.Column{Name: e.DestName, Type: c.Type},
			Source: i,
		})
		report.Renamed[c.Name] = e.DestName
	}

	for _, e := range entries {
		if e.Fuzzy() || e.Drops() || used[strings.ToLower(e.SourceName)] {
			continue
		}
		used[strings.ToLower(e.SourceName)] = true
		report.Missing = append(report.Missing, e.SourceName)
		cols = append(cols, dataset.Projection{
			Column: dataset.Column{Name: e.DestName, Type: dataset.String},
			Source: -1,
		})
		logger.Warn("mapped source column not found, filling with nulls",
			"source", e.SourceName, "dest", e.DestName)
	}

	for _, e := range fuzzy {
		if len(unmapped) == 0 {
			break
		}
		threshold, err := strconv.Atoi(strings.TrimSpace(e.Threshold))
		if err != nil {
			logger.Warn("skipping fuzzy mapping row with invalid threshold",
				"source", e.SourceName, "threshold", e.Threshold)
			continue
		}
		scorer, ok := Scorer(e.Scorer)
		if !ok {
			logger.Warn("skipping fuzzy mapping row with unknown scorer",
				"source", e.SourceName, "scorer", e.Scorer)
			continue
		}

		match, score := bestMatch(e.SourceName, unmapped, scorer)
		logger.Info("fuzzy matched column", "source", e.SourceName, "match", match, "score", score)
		if score < float64(threshold) {
			continue
		}

		idx := ds.Schema().Index(match)
		if !e.Drops() {
			cols = append(cols, dataset.Projection{
				Column: dataset.Column{Name: e.DestName, Type: schema[idx].Type},
				Source: idx,
			})
			report.Renamed[match] = e.DestName
		} else {
			report.Dropped = append(report.Dropped, match)
		}
		e.Match = match
		report.Fuzzy = append(report.Fuzzy, e)
		unmapped = removeString(unmapped, match)
	}

	if len(unmapped) > 0 {
		report.Discarded = unmapped
		logger.Warn("discarded unmapped columns", "columns", unmapped)
	}

	out, err := ds.Project(cols)
	if err != nil {
		return nil, nil, lserrors.Wrap(lserrors.ErrCategoryValidation, lserrors.CodeInvalidMapping,
			"apply mapping", err)
	}
	return out, report, nil
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
