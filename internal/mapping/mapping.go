// Package mapping loads column mapping files and applies them to datasets.
//
// A mapping file is a CSV with a header row. Header names are matched
// case-insensitively: sourcename, destname, width, threshold, scorer.
// A destname of "null" (any case) drops the source column.
package mapping

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/storage"
)

// Entry is one row of a mapping file.
type Entry struct {
	SourceName string `json:"sourcename"`
	DestName   string `json:"destname"`
	// Width is the fixed-width column size; 0 when missing or unparsable
	Width int `json:"width,omitempty"`
	// Threshold marks a fuzzy row: the minimum score for a match
	Threshold string `json:"threshold,omitempty"`
	// Scorer names the fuzzy scoring function
	Scorer string `json:"scorer,omitempty"`
	// Match is the source column a fuzzy row resolved to, if any
	Match string `json:"match,omitempty"`
}

// Drops reports whether the entry removes its source column.
func (e Entry) Drops() bool {
	return strings.EqualFold(strings.TrimSpace(e.DestName), "null")
}

// Fuzzy reports whether the entry is matched by similarity instead of name.
func (e Entry) Fuzzy() bool {
	return strings.TrimSpace(e.Threshold) != ""
}

// Resolution is the outcome of looking up a mapping file.
// Absence is a normal outcome, not an error.
type Resolution struct {
	Key     string
	Found   bool
	Entries []Entry
}

// Usable reports whether the mapping should be applied. A file with a
// header and no rows counts as absent.
func (r Resolution) Usable() bool {
	return r.Found && len(r.Entries) > 0
}

// Load reads the mapping file at key. A missing object yields an Absent
// resolution; a file that is not a valid mapping CSV is an error.
func Load(ctx context.Context, store storage.ObjectStorage, key string) (Resolution, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Resolution{Key: key}, nil
		}
		return Resolution{}, lserrors.NewStorageError(lserrors.CodeDownloadFailed,
			fmt.Sprintf("read mapping %s", key), err)
	}

	entries, err := Parse(data)
	if err != nil {
		return Resolution{}, lserrors.Wrap(lserrors.ErrCategoryValidation, lserrors.CodeInvalidMapping,
			fmt.Sprintf("parse mapping %s", key), err)
	}
	return Resolution{Key: key, Found: true, Entries: entries}, nil
}

// Parse decodes mapping CSV data.
func Parse(data []byte) ([]Entry, error) {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	src, okSrc := idx["sourcename"]
	dst, okDst := idx["destname"]
	if !okSrc || !okDst {
		return nil, fmt.Errorf("header must contain sourcename and destname, got %v", header)
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if src >= len(rec) || dst >= len(rec) {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, max(src, dst)+1, len(rec))
		}
		e := Entry{
			SourceName: strings.TrimSpace(rec[src]),
			DestName:   strings.TrimSpace(rec[dst]),
			Threshold:  field(rec, "threshold"),
			Scorer:     field(rec, "scorer"),
		}
		// Unparsable widths count as zero and produce empty columns.
		if w, err := strconv.Atoi(field(rec, "width")); err == nil && w > 0 {
			e.Width = w
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Recommendation is one row of a generated mapping file.
type Recommendation struct {
	SourceName string
	DestName   string
}

// EncodeRecommendations renders a mapping file operators can edit and
// promote to the spec location.
func EncodeRecommendations(recs []Recommendation) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"SourceName", "DestName"}); err != nil {
		return nil, err
	}
	for _, r := range recs {
		if err := w.Write([]string{r.SourceName, r.DestName}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
