// Package spec loads input and transformation specifications.
//
// A spec file is JSON with two optional sections:
//
//	{
//	  "input_spec":     { "excel": {...}, "csv": {...}, "allow_schema_change": "reorder", ... },
//	  "transform_spec": { "date": [...], "changetype": {...}, ... }
//	}
//
// transform_spec keys run in declaration order, so it is decoded with gjson
// rather than into a Go map.
package spec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/storage"
)

// ExcelSpec selects a table inside a workbook.
type ExcelSpec struct {
	SheetNames  []string `json:"sheet_names,omitempty"`
	DataAddress string   `json:"data_address,omitempty"`
	Header      *bool    `json:"header,omitempty"`
	Password    string   `json:"password,omitempty"`
}

// Defaults used when a workbook has no excel input spec.
var (
	DefaultSheetNames  = []string{"0"}
	DefaultDataAddress = "A1"
)

// Sheets returns the candidate sheet names, defaulting to the first sheet.
func (e *ExcelSpec) Sheets() []string {
	if e == nil || len(e.SheetNames) == 0 {
		return DefaultSheetNames
	}
	return e.SheetNames
}

// Address returns the data address, defaulting to A1.
func (e *ExcelSpec) Address() string {
	if e == nil || e.DataAddress == "" {
		return DefaultDataAddress
	}
	return e.DataAddress
}

// HasHeader reports whether the first row holds column names. Default true.
func (e *ExcelSpec) HasHeader() bool {
	return e == nil || e.Header == nil || *e.Header
}

// LogValue keeps the workbook password out of logs.
func (e *ExcelSpec) LogValue() slog.Value {
	if e == nil {
		return slog.StringValue("default")
	}
	return slog.GroupValue(
		slog.Any("sheet_names", e.Sheets()),
		slog.String("data_address", e.Address()),
		slog.Bool("header", e.HasHeader()),
		slog.Bool("password_set", e.Password != ""),
	)
}

// DelimitedSpec configures csv and tsv sources.
type DelimitedSpec struct {
	Header *bool `json:"header,omitempty"`
}

// HasHeader reports whether the first row holds column names. Default true.
func (d *DelimitedSpec) HasHeader() bool {
	return d == nil || d.Header == nil || *d.Header
}

// InputSpec describes how to read the source and how the target table may evolve.
type InputSpec struct {
	// Fixed is set when the input_spec has a "fixed" key; its value is ignored
	Fixed             bool           `json:"-"`
	Excel             *ExcelSpec     `json:"excel,omitempty"`
	CSV               *DelimitedSpec `json:"csv,omitempty"`
	TSV               *DelimitedSpec `json:"tsv,omitempty"`
	TableDescription  string         `json:"table_description,omitempty"`
	AllowSchemaChange string         `json:"allow_schema_change,omitempty"`
}

// Step is one named transform with its raw parameters.
type Step struct {
	Name   string
	Params json.RawMessage
}

// Spec is a parsed spec file.
type Spec struct {
	Input InputSpec
	// Transforms is in declaration order
	Transforms []Step
	// HasTransformSpec is false when the file has no transform_spec key
	HasTransformSpec bool
}

// Resolution is the outcome of looking up a spec file.
// Absence is a normal outcome, not an error.
type Resolution struct {
	Key   string
	Found bool
	Spec  Spec
}

// Load reads the spec at key. A missing object yields an Absent resolution;
// a file that is not valid spec JSON is an error.
func Load(ctx context.Context, store storage.ObjectStorage, key string) (Resolution, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Resolution{Key: key}, nil
		}
		return Resolution{}, lserrors.NewStorageError(lserrors.CodeDownloadFailed,
			fmt.Sprintf("read spec %s", key), err)
	}

	s, err := Parse(data)
	if err != nil {
		return Resolution{}, lserrors.Wrap(lserrors.ErrCategoryValidation, lserrors.CodeInvalidSpec,
			fmt.Sprintf("parse spec %s", key), err)
	}
	return Resolution{Key: key, Found: true, Spec: s}, nil
}

// Parse decodes a spec file.
func Parse(data []byte) (Spec, error) {
	if !gjson.ValidBytes(data) {
		return Spec{}, fmt.Errorf("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Spec{}, fmt.Errorf("spec must be a JSON object")
	}

	var s Spec

	if in := root.Get("input_spec"); in.Exists() {
		if !in.IsObject() {
			return Spec{}, fmt.Errorf("input_spec must be an object")
		}
		if err := json.Unmarshal([]byte(in.Raw), &s.Input); err != nil {
			return Spec{}, fmt.Errorf("input_spec: %w", err)
		}
		s.Input.Fixed = in.Get("fixed").Exists()
	}

	if ts := root.Get("transform_spec"); ts.Exists() {
		if !ts.IsObject() {
			return Spec{}, fmt.Errorf("transform_spec must be an object")
		}
		s.HasTransformSpec = true
		ts.ForEach(func(key, value gjson.Result) bool {
			s.Transforms = append(s.Transforms, Step{
				Name:   key.String(),
				Params: json.RawMessage(value.Raw),
			})
			return true
		})
	}

	return s, nil
}

// StepNames returns the transform names in order.
func (s Spec) StepNames() []string {
	names := make([]string, len(s.Transforms))
	for i, st := range s.Transforms {
		names[i] = st.Name
	}
	return names
}
