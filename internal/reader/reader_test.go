package reader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/mapping"
	"github.com/arkilian/lakestage/internal/spec"
)

func TestReadDelimitedInfersTypes(t *testing.T) {
	data := "id,holder,premium,active,note\n" +
		"1,Ana,10.5,true,\n" +
		"2,Bo,7,FALSE,late\n" +
		"3,Cy\n"
	ds, err := Read(context.Background(), Source{Data: []byte(data), Ext: ".csv"}, nil)
	require.NoError(t, err)

	schema := ds.Schema()
	assert.Equal(t, []string{"id", "holder", "premium", "active", "note"}, schema.Names())
	assert.Equal(t, dataset.BigInt, schema[0].Type)
	assert.Equal(t, dataset.String, schema[1].Type)
	assert.Equal(t, dataset.Double, schema[2].Type)
	assert.Equal(t, dataset.Boolean, schema[3].Type)
	assert.Equal(t, dataset.String, schema[4].Type)

	assert.Equal(t, 3, ds.NumRows())
	assert.Equal(t, dataset.Row{int64(3), "Cy", nil, nil, nil}, ds.Row(2))
	assert.Equal(t, dataset.Row{int64(2), "Bo", 7.0, false, "late"}, ds.Row(1))
}

func TestReadTSVWithoutHeader(t *testing.T) {
	header := false
	src := Source{
		Data:  []byte("a\t1\nb\t2\textra\n"),
		Ext:   ".txt",
		Input: spec.InputSpec{TSV: &spec.DelimitedSpec{Header: &header}},
	}
	ds, err := Read(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"_c0", "_c1", "_c2"}, ds.Schema().Names())
	assert.Equal(t, 2, ds.NumRows())
}

func TestHeaderNames(t *testing.T) {
	assert.Equal(t, []string{"a0", "_c1", "a2", "b"}, headerNames([]string{"a", "", "a", "b"}))
}

func TestReadFixedWidth(t *testing.T) {
	src := Source{
		Data:  []byte("00042XXXJohn Smith\n00043YYYJane Doe  \n"),
		Ext:   ".txt",
		Input: spec.InputSpec{Fixed: true},
		Mapping: []mapping.Entry{
			{SourceName: "a", DestName: "id", Width: 5},
			{SourceName: "b", DestName: "null", Width: 3},
			{SourceName: "c", DestName: "name", Width: 10},
		},
	}
	ds, err := Read(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, ds.Schema().Names())
	assert.Equal(t, dataset.Row{"00043", "Jane Doe"}, ds.Row(1))
}

func TestReadParquetUnsupported(t *testing.T) {
	_, err := Read(context.Background(), Source{Data: []byte("PAR1"), Ext: ".parquet"}, nil)
	require.Error(t, err)
	assert.Equal(t, lserrors.CodeUnsupportedFormat, lserrors.GetCode(err))
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Cover"))
	_, err := f.NewSheet("Policies")
	require.NoError(t, err)

	require.NoError(t, f.SetCellValue("Cover", "A1", "Quarterly extract"))
	cells := map[string]any{
		"B3": "policy_id", "C3": "holder", "D3": "premium",
		"B4": 1, "C4": "Ana", "D4": 10.5,
		"B5": 2, "C5": "Bo", "D5": 7.25,
	}
	for cell, v := range cells {
		require.NoError(t, f.SetCellValue("Policies", cell, v))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadExcelBySheetName(t *testing.T) {
	src := Source{
		Data: workbook(t),
		Ext:  ".xlsx",
		Input: spec.InputSpec{Excel: &spec.ExcelSpec{
			SheetNames:  []string{"Missing", "Policies"},
			DataAddress: "B3",
		}},
	}
	ds, err := Read(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"policy_id", "holder", "premium"}, ds.Schema().Names())
	assert.Equal(t, 2, ds.NumRows())
	assert.Equal(t, dataset.BigInt, ds.Schema()[0].Type)
	assert.Equal(t, dataset.Double, ds.Schema()[2].Type)
}

func TestReadExcelByIndexAndRange(t *testing.T) {
	src := Source{
		Data: workbook(t),
		Ext:  ".xlsx",
		Input: spec.InputSpec{Excel: &spec.ExcelSpec{
			SheetNames:  []string{"1"},
			DataAddress: "B3:C4",
		}},
	}
	ds, err := Read(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"policy_id", "holder"}, ds.Schema().Names())
	assert.Equal(t, 1, ds.NumRows())
}

func TestReadExcelUnresolvedSheet(t *testing.T) {
	src := Source{
		Data:  workbook(t),
		Ext:   ".xlsx",
		Input: spec.InputSpec{Excel: &spec.ExcelSpec{SheetNames: []string{"Claims", "7"}}},
	}
	_, err := Read(context.Background(), src, nil)
	require.Error(t, err)
	assert.Equal(t, lserrors.CodeUnresolvedFormat, lserrors.GetCode(err))
	assert.Contains(t, err.Error(), "Claims")
	assert.Contains(t, err.Error(), "7")
}

func TestReadExcelDefaults(t *testing.T) {
	ds, err := Read(context.Background(), Source{Data: workbook(t), Ext: ".xlsx"}, nil)
	require.NoError(t, err)
	// sheet "0" is the first sheet, read from A1 with a header row
	assert.Equal(t, []string{"Quarterly extract"}, ds.Schema().Names())
	assert.Equal(t, 0, ds.NumRows())
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatFixed, DetectFormat(".xlsx", spec.InputSpec{Fixed: true}))
	assert.Equal(t, FormatExcel, DetectFormat(".XLS", spec.InputSpec{}))
	assert.Equal(t, FormatParquet, DetectFormat(".parquet", spec.InputSpec{}))
	assert.Equal(t, FormatDelimited, DetectFormat(".csv", spec.InputSpec{}))
}
