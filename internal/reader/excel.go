package reader

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/spec"
)

// cellRange is a 1-based inclusive range; zero end values mean unbounded.
type cellRange struct {
	startCol, startRow int
	endCol, endRow     int
}

// parseAddress accepts A1 or A1:D10, optionally prefixed with 'Sheet'!.
func parseAddress(addr string) (cellRange, error) {
	if i := strings.LastIndex(addr, "!"); i >= 0 {
		addr = addr[i+1:]
	}
	var r cellRange
	parts := strings.SplitN(strings.TrimSpace(addr), ":", 2)

	col, row, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return r, fmt.Errorf("invalid data address %q: %w", addr, err)
	}
	r.startCol, r.startRow = col, row

	if len(parts) == 2 {
		col, row, err := excelize.CellNameToCoordinates(parts[1])
		if err != nil {
			return r, fmt.Errorf("invalid data address %q: %w", addr, err)
		}
		if col < r.startCol || row < r.startRow {
			return r, fmt.Errorf("invalid data address %q: end before start", addr)
		}
		r.endCol, r.endRow = col, row
	}
	return r, nil
}

// resolveSheet finds the first candidate present in the workbook. A numeric
// candidate that is not a sheet name selects a sheet by 0-based index.
func resolveSheet(sheets, candidates []string) (string, bool) {
	for _, c := range candidates {
		for _, s := range sheets {
			if s == c {
				return s, true
			}
		}
		if idx, err := strconv.Atoi(c); err == nil && idx >= 0 && idx < len(sheets) {
			return sheets[idx], true
		}
	}
	return "", false
}

func readExcel(data []byte, es *spec.ExcelSpec, logger *slog.Logger) (*dataset.Dataset, error) {
	if es == nil {
		logger.Info("no excel input specification, using defaults")
	} else {
		logger.Info("using excel input specification", "excel", es)
	}

	opts := excelize.Options{RawCellValue: true}
	if es != nil {
		opts.Password = es.Password
	}
	f, err := excelize.OpenReader(bytes.NewReader(data), opts)
	if err != nil {
		return nil, lserrors.NewSourceError(lserrors.CodeReadFailed, "open workbook", err)
	}
	defer f.Close()

	candidates := es.Sheets()
	sheet, ok := resolveSheet(f.GetSheetList(), candidates)
	if !ok {
		return nil, lserrors.NewSourceError(lserrors.CodeUnresolvedFormat,
			fmt.Sprintf("none of sheet names %v found in excel workbook", candidates), nil).
			WithDetails(map[string]interface{}{"candidates": candidates})
	}

	rng, err := parseAddress(es.Address())
	if err != nil {
		return nil, lserrors.NewSourceError(lserrors.CodeUnresolvedFormat, "excel data address", err)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, lserrors.NewSourceError(lserrors.CodeReadFailed, fmt.Sprintf("read sheet %q", sheet), err)
	}

	var records [][]string
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < rng.startRow {
			continue
		}
		if rng.endRow > 0 && rowNum > rng.endRow {
			break
		}
		var rec []string
		if rng.startCol-1 < len(row) {
			rec = row[rng.startCol-1:]
		}
		if rng.endCol > 0 {
			width := rng.endCol - rng.startCol + 1
			if len(rec) > width {
				rec = rec[:width]
			}
		}
		records = append(records, rec)
	}

	logger.Info("found table in workbook", "sheet", sheet, "address", es.Address())
	return buildTable(records, es.HasHeader()), nil
}
