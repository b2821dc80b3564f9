package mapping

import (
	"strings"

	"github.com/arkilian/lakestage/internal/dataset"
)

// Offsets returns the 0-based rune offset of each entry: the sum of the
// widths of every preceding entry, dropped entries included.
func Offsets(entries []Entry) []int {
	offsets := make([]int, len(entries))
	pos := 0
	for i, e := range entries {
		offsets[i] = pos
		pos += e.Width
	}
	return offsets
}

// SliceFixedWidth splits each line into the columns described by entries.
// Every kept column is a trimmed string. A line shorter than a column's
// offset yields an empty string, and an entry without a usable width yields
// an empty string on every line.
func SliceFixedWidth(lines []string, entries []Entry) (*dataset.Dataset, error) {
	offsets := Offsets(entries)

	var schema dataset.Schema
	var keep []int
	for i, e := range entries {
		if e.Drops() {
			continue
		}
		schema = append(schema, dataset.Column{Name: e.DestName, Type: dataset.String})
		keep = append(keep, i)
	}

	rows := make([]dataset.Row, 0, len(lines))
	for _, line := range lines {
		r := []rune(strings.TrimRight(line, "\r"))
		row := make(dataset.Row, len(keep))
		for j, i := range keep {
			start, end := offsets[i], offsets[i]+entries[i].Width
			if start >= len(r) || entries[i].Width == 0 {
				row[j] = ""
				continue
			}
			if end > len(r) {
				end = len(r)
			}
			row[j] = strings.TrimSpace(string(r[start:end]))
		}
		rows = append(rows, row)
	}

	return dataset.New(schema, rows)
}
