package transform

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/lakestage/internal/dataset"
	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/lineage"
	"github.com/arkilian/lakestage/internal/results"
	"github.com/arkilian/lakestage/internal/spec"
	"github.com/arkilian/lakestage/pkg/types"
)

type memTokens struct {
	table  string
	tokens []results.Token
	err    error
}

func (m *memTokens) StoreTokens(_ context.Context, table string, tokens []results.Token) error {
	if m.err != nil {
		return m.err
	}
	m.table = table
	m.tokens = append(m.tokens, tokens...)
	return nil
}

func newContext() (*Context, *lineage.Recorder) {
	rec := &lineage.Recorder{}
	return &Context{
		Context:     context.Background(),
		ExecutionID: "exec-1",
		SourceKey:   "claims/2024",
		Lineage:     rec,
		TokenTable:  "token_store",
	}, rec
}

func claims() *dataset.Dataset {
	return dataset.MustNew(
		dataset.Schema{
			{Name: "claim_id", Type: dataset.String},
			{Name: "holder", Type: dataset.String},
			{Name: "loss_date", Type: dataset.String},
			{Name: "amount", Type: dataset.String},
		},
		[]dataset.Row{
			{"C1", "jOHN smith", "01/15/24", "$1,234.50"},
			{"C2", "mary ann lee", "not a date", "(12.00)"},
			{"C3", nil, nil, nil},
		},
	)
}

func step(name, params string) spec.Step {
	return spec.Step{Name: name, Params: json.RawMessage(params)}
}

func run(t *testing.T, tc *Context, ds *dataset.Dataset, steps ...spec.Step) *dataset.Dataset {
	t.Helper()
	out, _, err := NewDispatcher(DefaultRegistry()).Run(tc, ds, steps)
	require.NoError(t, err)
	return out
}

func column(t *testing.T, ds *dataset.Dataset, name string) []any {
	t.Helper()
	v, err := ds.ColumnValues(name)
	require.NoError(t, err)
	return v
}

func TestDispatcherSkipsUnknownTransforms(t *testing.T) {
	tc, rec := newContext()
	ds := claims()

	out, outcome, err := NewDispatcher(DefaultRegistry()).Run(tc, ds, []spec.Step{
		step("titlecase", `["holder"]`),
		step("uppercase_everything", `["holder"]`),
		step("hash", `["claim_id"]`),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"titlecase", "hash"}, outcome.Applied)
	assert.Equal(t, []string{"uppercase_everything"}, outcome.Skipped)
	assert.Equal(t, []string{"titlecase", "hash"}, rec.Stages())
	assert.Equal(t, ds.NumRows(), out.NumRows())
	assert.Equal(t, "jOHN smith", column(t, ds, "holder")[0], "input must not change")
}

func TestDispatcherFailureNamesTransform(t *testing.T) {
	tc, _ := newContext()
	_, outcome, err := NewDispatcher(DefaultRegistry()).Run(tc, claims(), []spec.Step{
		step("titlecase", `["holder"]`),
		step("hash", `["ssn"]`),
	})
	require.Error(t, err)
	assert.Equal(t, lserrors.CodeTransformFailed, lserrors.GetCode(err))
	assert.Contains(t, err.Error(), "hash")
	assert.Equal(t, []string{"titlecase"}, outcome.Applied)

	var le *lserrors.LakeError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "hash", le.Details["transform"])
}

func TestDispatcherAppliesInDeclarationOrder(t *testing.T) {
	tc, _ := newContext()
	out := run(t, tc, claims(),
		step("literal", `{"source_system":"legacy"}`),
		step("redact", `{"source_system":"***"}`),
	)
	assert.Equal(t, []any{"***", "***", "***"}, column(t, out, "source_system"))
}

func TestDate(t *testing.T) {
	tc, _ := newContext()
	out := run(t, tc, claims(), step("date", `[{"field":"loss_date","format":"MM/dd/yy"}]`))

	got := column(t, out, "loss_date")
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got[0])
	assert.Nil(t, got[1], "unparsable value becomes null")
	assert.Nil(t, got[2])

	idx := out.Schema().Index("loss_date")
	assert.Equal(t, dataset.Date, out.Schema()[idx].Type)
}

func TestTimestampFromSource(t *testing.T) {
	tc, _ := newContext()
	ds := dataset.MustNew(
		dataset.Schema{{Name: "raw", Type: dataset.String}},
		[]dataset.Row{{"2024-03-05 14:30:01"}},
	)
	out := run(t, tc, ds, step("timestamp", `[{"field":"loaded_at","source":"raw","format":"yyyy-MM-dd HH:mm:ss"}]`))

	assert.Equal(t, []string{"raw", "loaded_at"}, out.Schema().Names())
	assert.Equal(t, time.Date(2024, 3, 5, 14, 30, 1, 0, time.UTC), column(t, out, "loaded_at")[0])
}

func TestChangeTypeNullsFailedCasts(t *testing.T) {
	tc, _ := newContext()
	ds := dataset.MustNew(
		dataset.Schema{{Name: "qty", Type: dataset.String}, {Name: "rate", Type: dataset.String}},
		[]dataset.Row{{"12", "0.5"}, {"twelve", "x"}},
	)
	out := run(t, tc, ds, step("changetype", `{"qty":"int","rate":"decimal(5,2)"}`))

	assert.Equal(t, []any{int64(12), nil}, column(t, out, "qty"))
	rates := column(t, out, "rate")
	require.IsType(t, dataset.Decimal{}, rates[0])
	assert.Equal(t, "0.50", rates[0].(dataset.Decimal).String())
	assert.Nil(t, rates[1])
}

func TestDecimalDelegatesToChangeType(t *testing.T) {
	tc, _ := newContext()
	ds := dataset.MustNew(
		dataset.Schema{{Name: "premium", Type: dataset.String}},
		[]dataset.Row{{"10.456"}},
	)
	out := run(t, tc, ds, step("decimal", `[{"field":"premium","format":"10,2"}]`))

	idx := out.Schema().Index("premium")
	assert.Equal(t, dataset.DecimalType(10, 2), out.Schema()[idx].Type)
	assert.Equal(t, "10.46", column(t, out, "premium")[0].(dataset.Decimal).String())
}

func TestImpliedDecimal(t *testing.T) {
	tc, _ := newContext()
	ds := dataset.MustNew(
		dataset.Schema{{Name: "amt", Type: dataset.String}},
		[]dataset.Row{{"12345"}, {"-0700"}, {"7"}, {nil}},
	)
	out := run(t, tc, ds, step("implieddecimal", `[{"field":"amt","format":"10,2"}]`))

	got := column(t, out, "amt")
	assert.Equal(t, "123.45", got[0].(dataset.Decimal).String())
	assert.Equal(t, "-7.00", got[1].(dataset.Decimal).String())
	assert.Nil(t, got[2], "too few digits")
	assert.Nil(t, got[3])
}

func TestImpliedDecimalCustomDigits(t *testing.T) {
	tc, _ := newContext()
	ds := dataset.MustNew(
		dataset.Schema{{Name: "amt", Type: dataset.String}},
		[]dataset.Row{{"123456"}},
	)
	out := run(t, tc, ds, step("implieddecimal", `[{"field":"amt","format":"10,3","num_implied":3}]`))
	assert.Equal(t, "123.456", column(t, out, "amt")[0].(dataset.Decimal).String())
}

func TestCurrency(t *testing.T) {
	tc, _ := newContext()
	ds := dataset.MustNew(
		dataset.Schema{{Name: "usd", Type: dataset.String}, {Name: "eur", Type: dataset.String}},
		[]dataset.Row{{"$1,234.50", "1.234,50 €"}, {"-$3", "abc"}},
	)
	out := run(t, tc, ds, step("currency", `[{"field":"usd"},{"field":"eur","euro":true}]`))

	usd := column(t, out, "usd")
	assert.Equal(t, "1234.50", usd[0].(dataset.Decimal).String())
	assert.Equal(t, "-3.00", usd[1].(dataset.Decimal).String())

	eur := column(t, out, "eur")
	assert.Equal(t, "1234.50", eur[0].(dataset.Decimal).String())
	assert.Nil(t, eur[1])
}

func TestTitleCase(t *testing.T) {
	tc, _ := newContext()
	out := run(t, tc, claims(), step("titlecase", `["holder"]`))
	assert.Equal(t, []any{"John Smith", "Mary Ann Lee", nil}, column(t, out, "holder"))
}

func TestHash(t *testing.T) {
	tc, _ := newContext()
	ds := dataset.MustNew(
		dataset.Schema{{Name: "ssn", Type: dataset.String}},
		[]dataset.Row{{"abc"}, {nil}},
	)
	out := run(t, tc, ds, step("hash", `["ssn"]`))
	assert.Equal(t, []any{
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		nil,
	}, column(t, out, "ssn"))
}

func TestRedactRequiresColumn(t *testing.T) {
	tc, _ := newContext()
	out := run(t, tc, claims(), step("redact", `{"holder":"REDACTED"}`))
	assert.Equal(t, []any{"REDACTED", "REDACTED", "REDACTED"}, column(t, out, "holder"))

	_, _, err := NewDispatcher(DefaultRegistry()).Run(tc, claims(), []spec.Step{step("redact", `{"ssn":"x"}`)})
	require.Error(t, err)
}

func TestTokenizeStoresDistinctTokens(t *testing.T) {
	tc, _ := newContext()
	store := &memTokens{}
	tc.Tokens = store

	ds := dataset.MustNew(
		dataset.Schema{{Name: "email", Type: dataset.String}},
		[]dataset.Row{{"a@x.io"}, {"b@x.io"}, {"a@x.io"}, {nil}},
	)
	out := run(t, tc, ds, step("tokenize", `["email"]`))

	got := column(t, out, "email")
	assert.Equal(t, sha256Hex("a@x.io"), got[0])
	assert.Equal(t, got[0], got[2])
	assert.Nil(t, got[3])

	require.Len(t, store.tokens, 2)
	assert.Equal(t, "token_store", store.table)
	assert.Equal(t, results.Token{HashKey: sha256Hex("b@x.io"), RawData: "b@x.io"}, store.tokens[1])
}

func TestTokenizeFailsWithoutStore(t *testing.T) {
	tc, _ := newContext()
	_, _, err := NewDispatcher(DefaultRegistry()).Run(tc, claims(), []spec.Step{step("tokenize", `["holder"]`)})
	require.Error(t, err)

	tc.Tokens = &memTokens{err: errors.New("disk full")}
	_, _, err = NewDispatcher(DefaultRegistry()).Run(tc, claims(), []spec.Step{step("tokenize", `["holder"]`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestDedup(t *testing.T) {
	ds := dataset.MustNew(
		dataset.Schema{{Name: "id", Type: dataset.BigInt}, {Name: "v", Type: dataset.String}},
		[]dataset.Row{{int64(1), "a"}, {int64(2), "b"}, {int64(1), "c"}, {nil, "d"}, {nil, "e"}},
	)

	tests := []struct {
		name   string
		params string
		want   []any
	}{
		{"keep first by key", `{"keys":["id"]}`, []any{"a", "b", "d"}},
		{"keep last by key", `{"keys":["id"],"policy":"keep-last"}`, []any{"b", "c", "e"}},
		{"all columns", `{}`, []any{"a", "b", "c", "d", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, _ := newContext()
			out := run(t, tc, ds, step("dedup", tt.params))
			assert.Equal(t, tt.want, column(t, out, "v"))
		})
	}

	tc, _ := newContext()
	_, _, err := NewDispatcher(DefaultRegistry()).Run(tc, ds, []spec.Step{step("dedup", `{"policy":"keep-middle"}`)})
	require.Error(t, err)
}

func TestInjectMandatoryFields(t *testing.T) {
	tc, rec := newContext()
	key := types.PartitionKey{Year: 2024, Month: 2, Day: 29}

	ds := dataset.MustNew(
		dataset.Schema{{Name: "claim_id", Type: dataset.String}, {Name: "year", Type: dataset.String}},
		[]dataset.Row{{"C1", "1999"}, {"C2", nil}},
	)
	out, err := InjectMandatoryFields(tc, ds, "exec-9", key)
	require.NoError(t, err)

	assert.Equal(t, []string{"claim_id", "year", "execution_id", "month", "day"}, out.Schema().Names())
	for i := 0; i < out.NumRows(); i++ {
		r := out.Row(i)
		assert.Equal(t, dataset.Row{r[0], int64(2024), "exec-9", int64(2), int64(29)}, r)
	}
	assert.Equal(t, []string{lineage.StageLiteral}, rec.Stages())

	var params map[string]any
	require.NoError(t, json.Unmarshal(rec.Events[0].Params, &params))
	assert.Equal(t, "exec-9", params["execution_id"])
}

func TestLayoutFromPattern(t *testing.T) {
	tests := []struct {
		pattern string
		layout  string
	}{
		{"MM/dd/yy", "01/02/06"},
		{"yyyy-MM-dd", "2006-01-02"},
		{"dd-MMM-yyyy", "02-Jan-2006"},
		{"yyyy-MM-dd'T'HH:mm:ss.SSS", "2006-01-02T15:04:05.000"},
		{"M/d/yyyy h:mm a", "1/2/2006 3:04 PM"},
		{"yyyyMMdd", "20060102"},
	}
	for _, tt := range tests {
		got, err := layoutFromPattern(tt.pattern)
		require.NoError(t, err, tt.pattern)
		assert.Equal(t, tt.layout, got, tt.pattern)
	}

	_, err := layoutFromPattern("yyyy-QQ")
	assert.Error(t, err)
}

func TestRegistryNames(t *testing.T) {
	r := DefaultRegistry()
	names := r.Names()
	assert.Contains(t, names, NameTokenize)
	assert.Contains(t, names, NameLiteral)
	assert.IsIncreasing(t, names)

	_, ok := r.Lookup("nope")
	assert.False(t, ok)
}

func TestDedupIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("dedup twice equals dedup once", prop.ForAll(
		func(ids []int, keepLast bool) bool {
			rows := make([]dataset.Row, len(ids))
			for i, id := range ids {
				rows[i] = dataset.Row{int64(id), int64(i)}
			}
			ds := dataset.MustNew(dataset.Schema{{Name: "id", Type: dataset.BigInt}, {Name: "seq", Type: dataset.BigInt}}, rows)

			params := `{"keys":["id"]}`
			if keepLast {
				params = `{"keys":["id"],"policy":"keep-last"}`
			}
			tc, _ := newContext()
			once, err := dedup(tc, ds, json.RawMessage(params))
			if err != nil {
				return false
			}
			twice, err := dedup(tc, once, json.RawMessage(params))
			if err != nil {
				return false
			}
			if once.NumRows() != twice.NumRows() {
				return false
			}
			seen := map[any]bool{}
			prev := int64(-1)
			for i := 0; i < once.NumRows(); i++ {
				r := once.Row(i)
				if seen[r[0]] || r[1].(int64) <= prev {
					return false
				}
				seen[r[0]] = true
				prev = r[1].(int64)
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 6)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestUnknownStepDoesNotDisturbOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("t1, unknown, t3 equals t3(t1(input))", prop.ForAll(
		func(values []string) bool {
			rows := make([]dataset.Row, len(values))
			for i, v := range values {
				rows[i] = dataset.Row{v}
			}
			ds := dataset.MustNew(dataset.Schema{{Name: "name", Type: dataset.String}}, rows)
			t1 := step("titlecase", `["name"]`)
			t2 := step("not_a_transform", `{}`)
			t3 := step("hash", `["name"]`)

			tc, _ := newContext()
			d := NewDispatcher(DefaultRegistry())
			got, outcome, err := d.Run(tc, ds, []spec.Step{t1, t2, t3})
			if err != nil || len(outcome.Skipped) != 1 {
				return false
			}

			after1, _, err := d.Run(tc, ds, []spec.Step{t1})
			if err != nil {
				return false
			}
			want, _, err := d.Run(tc, after1, []spec.Step{t3})
			if err != nil {
				return false
			}

			gotVals, _ := got.ColumnValues("name")
			wantVals, _ := want.ColumnValues("name")
			if len(gotVals) != len(wantVals) {
				return false
			}
			for i := range gotVals {
				if gotVals[i] != wantVals[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
