package dataset

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policies(t *testing.T) *Dataset {
	t.Helper()
	return MustNew(
		Schema{{"policy_id", BigInt}, {"holder", String}, {"premium", Double}},
		[]Row{
			{int64(1), "Ana", 10.5},
			{int64(2), "Bo", nil},
			{int64(3), "Cy", 7.25},
		},
	)
}

func TestNewRejectsDuplicateColumns(t *testing.T) {
	_, err := New(Schema{{"a", String}, {"a", BigInt}}, nil)
	require.Error(t, err)

	_, err = New(Schema{{"a", String}}, []Row{{"x", "y"}})
	require.Error(t, err, "row width must match schema")
}

func TestOperationsDoNotMutateInput(t *testing.T) {
	ds := policies(t)

	renamed, err := ds.Rename("holder", "name")
	require.NoError(t, err)
	assert.Equal(t, []string{"policy_id", "holder", "premium"}, ds.Schema().Names())
	assert.Equal(t, []string{"policy_id", "name", "premium"}, renamed.Schema().Names())

	withCol, err := ds.WithLiteral(Column{"year", Int}, int64(2024))
	require.NoError(t, err)
	assert.Equal(t, 3, ds.NumColumns())
	assert.Equal(t, 4, withCol.NumColumns())

	dropped := ds.Drop("premium", "not_there")
	assert.Equal(t, []string{"policy_id", "holder"}, dropped.Schema().Names())
	assert.Equal(t, 3, ds.NumColumns())
}

func TestWithColumnReplacesInPlace(t *testing.T) {
	ds := policies(t)
	out, err := ds.WithColumn(Column{"holder", String}, func(r Row) (any, error) {
		return AsString(r[1]) + "!", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"policy_id", "holder", "premium"}, out.Schema().Names())
	v, ok := out.Value(0, "holder")
	require.True(t, ok)
	assert.Equal(t, "Ana!", v)
}

func TestProjectAndSelect(t *testing.T) {
	ds := policies(t)
	out, err := ds.Project([]Projection{
		{Column: Column{"id", BigInt}, Source: 0},
		{Column: Column{"missing", String}, Source: -1},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "missing"}, out.Schema().Names())
	vals, err := out.ColumnValues("missing")
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, nil}, vals)

	sel, err := ds.Select("premium", "policy_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"premium", "policy_id"}, sel.Schema().Names())

	_, err = ds.Select("nope")
	assert.Error(t, err)
}

func TestFilterAndMaterialize(t *testing.T) {
	ds := policies(t)
	kept := ds.Filter(func(r Row) bool { return r[2] != nil })
	assert.Equal(t, 2, kept.NumRows())
	assert.Equal(t, 3, ds.NumRows())

	m := kept.Materialize()
	assert.True(t, m.Schema().Equal(kept.Schema()))
	assert.Equal(t, kept.Row(1), m.Row(1))
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"string", String},
		{"Integer", Int},
		{"long", BigInt},
		{"FLOAT", Double},
		{"bool", Boolean},
		{"date", Date},
		{"timestamp", Timestamp},
		{"decimal(16,2)", DecimalType(16, 2)},
		{"Decimal( 10 , 4 )", DecimalType(10, 4)},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "blob", "decimal(2,5)", "decimal(0,0)"} {
		_, err := ParseType(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, "decimal(16,2)", DecimalType(16, 2).String())
}

func TestDecimalRounding(t *testing.T) {
	tests := []struct {
		in    string
		scale int
		want  string
	}{
		{"1.005", 2, "1.01"},
		{"-1.005", 2, "-1.01"},
		{"2.344", 2, "2.34"},
		{"10", 2, "10.00"},
		{"0.5", 0, "1"},
	}
	for _, tt := range tests {
		d, err := ParseDecimal(tt.in, tt.scale)
		require.NoError(t, err)
		assert.Equal(t, tt.want, d.String(), tt.in)
	}

	assert.True(t, NewDecimal(big.NewRat(12345, 100), 2).FitsPrecision(5))
	assert.False(t, NewDecimal(big.NewRat(12345, 100), 2).FitsPrecision(4))
	assert.True(t, NewDecimal(big.NewRat(5, 100), 2).FitsPrecision(2))
	assert.True(t, NewDecimal(big.NewRat(-5, 100), 2).FitsPrecision(2))
}

func TestCast(t *testing.T) {
	v, err := Cast("42", BigInt)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = Cast("3.5", Double)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = Cast("yes", Boolean)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = Cast("2024-01-05", Date)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), v)

	v, err = Cast(12.345, DecimalType(16, 2))
	require.NoError(t, err)
	assert.Equal(t, "12.35", AsString(v))

	v, err = Cast(nil, BigInt)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = Cast("abc", BigInt)
	assert.Error(t, err)

	_, err = Cast("12345.6", DecimalType(4, 2))
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(int64(2), 10.0))
	assert.Equal(t, 0, Compare("5", int64(5)))
	assert.Equal(t, 1, Compare("b", "a"))
	assert.Equal(t, -1, Compare(false, true))
	d1, _ := ParseDecimal("1.10", 2)
	d2, _ := ParseDecimal("1.2", 2)
	assert.Equal(t, -1, Compare(d1, d2))
}
