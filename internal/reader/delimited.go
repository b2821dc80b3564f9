package reader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/arkilian/lakestage/internal/dataset"
)

// DelimitedOptions configures ReadDelimited.
type DelimitedOptions struct {
	Comma  rune
	Header bool
}

// ReadDelimited parses delimited text. Rows shorter than the header are
// padded with nulls and longer rows are truncated. Column types are inferred.
func ReadDelimited(data []byte, opts DelimitedOptions) (*dataset.Dataset, error) {
	if opts.Comma == 0 {
		opts.Comma = ','
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\uFEFF"))))
	r.Comma = opts.Comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse delimited: %w", err)
		}
		records = append(records, rec)
	}

	return buildTable(records, opts.Header), nil
}

// buildTable converts string cells into a typed dataset. With header, the
// first record names the columns; otherwise columns are _c0, _c1, ...
func buildTable(records [][]string, header bool) *dataset.Dataset {
	var names []string
	if header && len(records) > 0 {
		names = headerNames(records[0])
		records = records[1:]
	} else {
		width := 0
		for _, rec := range records {
			width = max(width, len(rec))
		}
		names = make([]string, width)
		for i := range names {
			names[i] = fmt.Sprintf("_c%d", i)
		}
	}

	cells := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(names))
		copy(row, rec)
		cells[i] = row
	}

	schema := make(dataset.Schema, len(names))
	columns := make([][]any, len(names))
	for j, name := range names {
		raw := make([]string, len(cells))
		for i := range cells {
			raw[i] = cells[i][j]
		}
		t, values := inferColumn(raw)
		schema[j] = dataset.Column{Name: name, Type: t}
		columns[j] = values
	}

	rows := make([]dataset.Row, len(cells))
	for i := range cells {
		row := make(dataset.Row, len(names))
		for j := range names {
			row[j] = columns[j][i]
		}
		rows[i] = row
	}

	return dataset.MustNew(schema, rows)
}

// headerNames fills empty names with _c<i> and suffixes duplicates with
// their column index.
func headerNames(rec []string) []string {
	names := make([]string, len(rec))
	count := make(map[string]int)
	for i, n := range rec {
		if n == "" {
			n = fmt.Sprintf("_c%d", i)
		}
		names[i] = n
		count[n]++
	}
	for i, n := range names {
		if count[n] > 1 {
			names[i] = fmt.Sprintf("%s%d", n, i)
		}
	}
	return names
}
