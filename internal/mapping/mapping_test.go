package mapping

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/storage"
)

func sample() *dataset.Dataset {
	return dataset.MustNew(
		dataset.Schema{
			{Name: "Policy Number", Type: dataset.String},
			{Name: "Effective Date", Type: dataset.String},
			{Name: "Premium", Type: dataset.Double},
			{Name: "Internal", Type: dataset.String},
		},
		[]dataset.Row{
			{"P-1", "01/05/24", 100.0, "x"},
			{"P-2", "02/05/24", 250.5, "y"},
		},
	)
}

func TestParse(t *testing.T) {
	data := "SourceName,DestName,Width,Threshold,Scorer\n" +
		"Policy Number,policy_number,10,,\n" +
		"Internal,Null,3,,\n" +
		"Prem,premium,,80,ratio\n" +
		"Other,other,abc,,\n"
	entries, err := Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, 10, entries[0].Width)
	assert.True(t, entries[1].Drops())
	assert.True(t, entries[2].Fuzzy())
	assert.Equal(t, "ratio", entries[2].Scorer)
	assert.Equal(t, 0, entries[3].Width, "unparsable width counts as zero")
}

func TestParseRejectsMissingColumns(t *testing.T) {
	_, err := Parse([]byte("from,to\na,b\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	res, err := Load(ctx, store, "etl/transformation-spec/ins-policies.csv")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.False(t, res.Usable())

	require.NoError(t, store.Put(ctx, "spec/ok.csv", []byte("sourcename,destname\na,b\n")))
	res, err = Load(ctx, store, "spec/ok.csv")
	require.NoError(t, err)
	assert.True(t, res.Usable())

	require.NoError(t, store.Put(ctx, "spec/bad.csv", []byte("a,b\n")))
	_, err = Load(ctx, store, "spec/bad.csv")
	require.Error(t, err)
	assert.Equal(t, lserrors.CodeInvalidMapping, lserrors.GetCode(err))
}

func TestApply(t *testing.T) {
	entries := []Entry{
		{SourceName: "Premium", DestName: "premium"},
		{SourceName: "policy number", DestName: "policy_number"},
		{SourceName: "Internal", DestName: "NULL"},
		{SourceName: "Agent", DestName: "agent"},
	}

	out, report, err := Apply(sample(), entries, nil)
	require.NoError(t, err)

	// dataset order for direct entries, then missing sources
	assert.Equal(t, []string{"policy_number", "premium", "agent"}, out.Schema().Names())
	assert.Equal(t, []string{"Internal"}, report.Dropped)
	assert.Equal(t, []string{"Effective Date"}, report.Discarded)
	assert.Equal(t, []string{"Agent"}, report.Missing)

	agent, err := out.ColumnValues("agent")
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil}, agent)

	premium, _ := out.Value(1, "premium")
	assert.Equal(t, 250.5, premium)
}

func TestApplyFuzzy(t *testing.T) {
	entries := []Entry{
		{SourceName: "Policy Number", DestName: "policy_number"},
		{SourceName: "effective dt", DestName: "effective_date", Threshold: "70", Scorer: "WRatio"},
		{SourceName: "zzz", DestName: "nothing", Threshold: "90", Scorer: "ratio"},
	}
	out, report, err := Apply(sample(), entries, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"policy_number", "effective_date"}, out.Schema().Names())
	require.Len(t, report.Fuzzy, 1)
	assert.Equal(t, "Effective Date", report.Fuzzy[0].Match)
}

func TestApplyDuplicateDestination(t *testing.T) {
	entries := []Entry{
		{SourceName: "Premium", DestName: "x"},
		{SourceName: "Internal", DestName: "x"},
	}
	_, _, err := Apply(sample(), entries, nil)
	require.Error(t, err)
	assert.Equal(t, lserrors.CodeInvalidMapping, lserrors.GetCode(err))
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Policy Number ", "policy_number"},
		{"Prémium (EUR)", "premium_eur"},
		{"a.b", "a_b"},
		{"Start - End", "start-end"},
		{"x,y;z=1", "xyz1"},
		{"two  spaces", "two_spaces"},
		{strings.Repeat("a", 300), strings.Repeat("a", 255)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanName(tt.in), tt.in)
	}
}

func TestCleanColumnNamesDeduplicates(t *testing.T) {
	ds := dataset.MustNew(
		dataset.Schema{
			{Name: "Name", Type: dataset.String},
			{Name: "name ", Type: dataset.String},
			{Name: "NAME", Type: dataset.String},
			{Name: "()", Type: dataset.String},
		},
		nil,
	)
	out, recs := CleanColumnNames(ds)
	assert.Equal(t, []string{"name", "name_2", "name_3", "col_4"}, out.Schema().Names())
	require.Len(t, recs, 4)
	assert.Equal(t, Recommendation{SourceName: "name ", DestName: "name_2"}, recs[1])

	data, err := EncodeRecommendations(recs)
	require.NoError(t, err)
	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "name_3", parsed[2].DestName)
}

func TestSliceFixedWidth(t *testing.T) {
	entries := []Entry{
		{SourceName: "a", DestName: "id", Width: 5},
		{SourceName: "b", DestName: "null", Width: 3},
		{SourceName: "c", DestName: "name", Width: 10},
		{SourceName: "d", DestName: "bad", Width: 0},
	}
	lines := []string{
		"00042XXXJohn Smith",
		"00043YYYJo",
		"001",
	}
	ds, err := SliceFixedWidth(lines, entries)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "bad"}, ds.Schema().Names())
	assert.Equal(t, dataset.Row{"00042", "John Smith", ""}, ds.Row(0))
	assert.Equal(t, dataset.Row{"00043", "Jo", ""}, ds.Row(1))
	assert.Equal(t, dataset.Row{"001", "", ""}, ds.Row(2))
}

func TestFixedWidthOffsetProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	entries := []Entry{
		{SourceName: "a", DestName: "a", Width: 5},
		{SourceName: "b", DestName: "b", Width: 3},
		{SourceName: "c", DestName: "c", Width: 10},
	}

	properties.Property("third column is characters 9..18 trimmed", prop.ForAll(
		func(line string) bool {
			ds, err := SliceFixedWidth([]string{line}, entries)
			if err != nil {
				return false
			}
			r := []rune(strings.TrimRight(line, "\r"))
			want := ""
			if len(r) > 8 {
				want = strings.TrimSpace(string(r[8:min(18, len(r))]))
			}
			got, _ := ds.Value(0, "c")
			return got == want
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestMappingDropProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("null destination never appears in output", prop.ForAll(
		func(dest string) bool {
			ds := dataset.MustNew(
				dataset.Schema{{Name: "keep", Type: dataset.String}, {Name: "gone", Type: dataset.String}},
				[]dataset.Row{{"1", "2"}},
			)
			entries := []Entry{
				{SourceName: "keep", DestName: "kept"},
				{SourceName: "gone", DestName: dest},
			}
			out, _, err := Apply(ds, entries, nil)
			if err != nil {
				return false
			}
			for _, n := range out.Schema().Names() {
				if n == "gone" || strings.EqualFold(n, "null") {
					return false
				}
			}
			return out.NumColumns() == 1
		},
		gen.OneConstOf("null", "NULL", "Null", "nULL"),
	))

	properties.TestingRun(t)
}

func TestScorers(t *testing.T) {
	assert.Equal(t, 100.0, Ratio("abc", "abc"))
	assert.Equal(t, 0.0, Ratio("", "abc"))
	assert.Equal(t, 100.0, PartialRatio("date", "effective date"))
	assert.Equal(t, 100.0, TokenSortRatio("date effective", "effective date"))
	_, ok := Scorer("QRatio")
	assert.False(t, ok)
	_, ok = Scorer("token_set_ratio")
	assert.True(t, ok)
}
