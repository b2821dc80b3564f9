package spec

import (
	"encoding/json"
	"strings"

	"github.com/arkilian/lakestage/internal/dataset"
)

// FieldFormat is a {field, format} transform parameter.
type FieldFormat struct {
	Field  string `json:"field"`
	Format string `json:"format"`
}

// Recommended is a generated spec for operator review.
type Recommended struct {
	InputSpec     InputSpec             `json:"input_spec"`
	TransformSpec RecommendedTransforms `json:"transform_spec"`
}

// RecommendedTransforms lists suggested conversions.
type RecommendedTransforms struct {
	Date    []FieldFormat `json:"date"`
	Decimal []FieldFormat `json:"decimal"`
}

// Recommended defaults.
const (
	RecommendedDateFormat    = "MM/dd/yy"
	RecommendedDecimalFormat = "16,2"
)

// IsWorkbook reports whether ext names an Excel workbook.
func IsWorkbook(ext string) bool {
	switch strings.ToLower(ext) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

// Generate suggests a spec from the dataset's current columns: a date
// conversion for every column whose name contains "date", a decimal
// conversion for every double column, and excel defaults for workbooks.
func Generate(ds *dataset.Dataset, ext string) Recommended {
	rec := Recommended{
		TransformSpec: RecommendedTransforms{
			Date:    []FieldFormat{},
			Decimal: []FieldFormat{},
		},
	}
	if IsWorkbook(ext) {
		header := true
		rec.InputSpec.Excel = &ExcelSpec{
			SheetNames:  DefaultSheetNames,
			DataAddress: DefaultDataAddress,
			Header:      &header,
		}
	}

	for _, c := range ds.Schema() {
		if c.Type.Kind == dataset.KindDouble {
			rec.TransformSpec.Decimal = append(rec.TransformSpec.Decimal,
				FieldFormat{Field: c.Name, Format: RecommendedDecimalFormat})
		}
		if strings.Contains(strings.ToLower(c.Name), "date") {
			rec.TransformSpec.Date = append(rec.TransformSpec.Date,
				FieldFormat{Field: c.Name, Format: RecommendedDateFormat})
		}
	}
	return rec
}

// Encode renders the recommendation as indented JSON.
func (r Recommended) Encode() ([]byte, error) {
	return json.MarshalIndent(r, "", "    ")
}
