// Package reader turns raw source bytes into a dataset.
//
// Format selection: an input spec with a "fixed" key reads fixed-width
// text sliced by the mapping widths; .xlsx and .xls read a workbook table;
// .parquet is rejected; anything else is delimited text, comma separated
// unless the input spec has a "tsv" key.
package reader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/mapping"
	"github.com/arkilian/lakestage/internal/spec"
)

// Format identifies how a source is read.
type Format string

const (
	FormatFixed     Format = "fixed"
	FormatExcel     Format = "excel"
	FormatParquet   Format = "parquet"
	FormatDelimited Format = "delimited"
)

// Source is one raw input file.
type Source struct {
	Data []byte
	// Ext is the file extension including the dot
	Ext   string
	Input spec.InputSpec
	// Mapping supplies column boundaries for fixed-width sources
	Mapping []mapping.Entry
}

// DetectFormat picks the reader for a source.
func DetectFormat(ext string, input spec.InputSpec) Format {
	switch {
	case input.Fixed:
		return FormatFixed
	case spec.IsWorkbook(ext):
		return FormatExcel
	case strings.EqualFold(ext, ".parquet"):
		return FormatParquet
	}
	return FormatDelimited
}

// Read parses src into a dataset.
func Read(ctx context.Context, src Source, logger *slog.Logger) (*dataset.Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := DetectFormat(src.Ext, src.Input)
	switch format {
	case FormatFixed:
		ds, err := mapping.SliceFixedWidth(splitLines(src.Data), src.Mapping)
		if err != nil {
			return nil, lserrors.NewSourceError(lserrors.CodeReadFailed, "fixed width load", err)
		}
		logger.Info("performed fixed width load and field mapping", "columns", ds.NumColumns())
		return ds, nil

	case FormatExcel:
		return readExcel(src.Data, src.Input.Excel, logger)

	case FormatParquet:
		return nil, lserrors.NewSourceError(lserrors.CodeUnsupportedFormat,
			fmt.Sprintf("parquet sources are not supported (%s)", src.Ext), nil)
	}

	opts := DelimitedOptions{Comma: ',', Header: src.Input.CSV.HasHeader()}
	if src.Input.TSV != nil {
		opts = DelimitedOptions{Comma: '\t', Header: src.Input.TSV.HasHeader()}
	}
	ds, err := ReadDelimited(src.Data, opts)
	if err != nil {
		return nil, lserrors.NewSourceError(lserrors.CodeReadFailed, "delimited load", err)
	}
	return ds, nil
}

func splitLines(data []byte) []string {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
