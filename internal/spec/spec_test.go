package spec

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/storage"
)

const sampleSpec = `{
  "input_spec": {
    "excel": {"sheet_names": ["Policies", "1"], "data_address": "B2", "header": false, "password": "s3cret"},
    "table_description": "Policy master",
    "allow_schema_change": "reorder"
  },
  "transform_spec": {
    "titlecase": ["holder"],
    "date": [{"field": "effective_date", "format": "MM/dd/yy"}],
    "changetype": {"premium": "decimal(16,2)"},
    "hash": ["ssn"]
  }
}`

func TestParsePreservesOrder(t *testing.T) {
	s, err := Parse([]byte(sampleSpec))
	require.NoError(t, err)

	assert.True(t, s.HasTransformSpec)
	assert.Equal(t, []string{"titlecase", "date", "changetype", "hash"}, s.StepNames())
	assert.JSONEq(t, `{"premium": "decimal(16,2)"}`, string(s.Transforms[2].Params))

	require.NotNil(t, s.Input.Excel)
	assert.Equal(t, []string{"Policies", "1"}, s.Input.Excel.Sheets())
	assert.Equal(t, "B2", s.Input.Excel.Address())
	assert.False(t, s.Input.Excel.HasHeader())
	assert.Equal(t, "reorder", s.Input.AllowSchemaChange)
	assert.False(t, s.Input.Fixed)
}

func TestParseFixedAndDefaults(t *testing.T) {
	s, err := Parse([]byte(`{"input_spec": {"fixed": {}, "tsv": {}}}`))
	require.NoError(t, err)
	assert.True(t, s.Input.Fixed)
	assert.True(t, s.Input.TSV.HasHeader())
	assert.False(t, s.HasTransformSpec)

	var excel *ExcelSpec
	assert.Equal(t, []string{"0"}, excel.Sheets())
	assert.Equal(t, "A1", excel.Address())
	assert.True(t, excel.HasHeader())
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, bad := range []string{`{`, `[]`, `{"transform_spec": []}`, `{"input_spec": "csv"}`} {
		_, err := Parse([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestLoad(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	res, err := Load(ctx, store, "etl/transformation-spec/ins-policies.json")
	require.NoError(t, err)
	assert.False(t, res.Found)

	require.NoError(t, store.Put(ctx, "s/good.json", []byte(sampleSpec)))
	res, err = Load(ctx, store, "s/good.json")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Len(t, res.Spec.Transforms, 4)

	require.NoError(t, store.Put(ctx, "s/bad.json", []byte(`{"transform_spec":`)))
	_, err = Load(ctx, store, "s/bad.json")
	require.Error(t, err)
	assert.Equal(t, lserrors.CodeInvalidSpec, lserrors.GetCode(err))
}

func TestGenerate(t *testing.T) {
	ds := dataset.MustNew(dataset.Schema{
		{Name: "policy_id", Type: dataset.BigInt},
		{Name: "effective_date", Type: dataset.String},
		{Name: "premium", Type: dataset.Double},
	}, nil)

	rec := Generate(ds, ".XLSX")
	data, err := rec.Encode()
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"input_spec": {"excel": {"sheet_names": ["0"], "data_address": "A1", "header": true}},
		"transform_spec": {
			"date": [{"field": "effective_date", "format": "MM/dd/yy"}],
			"decimal": [{"field": "premium", "format": "16,2"}]
		}
	}`, string(data))

	// generated output is itself a loadable spec
	s, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "decimal"}, s.StepNames())

	csvRec := Generate(ds, ".csv")
	assert.Nil(t, csvRec.InputSpec.Excel)
	var raw map[string]json.RawMessage
	data, _ = csvRec.Encode()
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `{}`, string(raw["input_spec"]))
}
