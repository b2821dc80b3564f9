package transform

import (
	"encoding/json"
	"math"

	"github.com/tidwall/gjson"

	"github.com/arkilian/lakestage/internal/dataset"
)

type literalField struct {
	column dataset.Column
	value  any
}

func applyLiterals(ds *dataset.Dataset, fields []literalField) (*dataset.Dataset, error) {
	var err error
	for _, f := range fields {
		ds, err = ds.WithLiteral(f.column, f.value)
		if err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// literalValue types a JSON scalar. Whole numbers become bigint.
func literalValue(v gjson.Result) (dataset.Type, any) {
	switch v.Type {
	case gjson.Null:
		return dataset.String, nil
	case gjson.True, gjson.False:
		return dataset.Boolean, v.Bool()
	case gjson.Number:
		f := v.Float()
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return dataset.BigInt, v.Int()
		}
		return dataset.Double, f
	default:
		return dataset.String, v.String()
	}
}

// literal sets constant columns: {"column": value, ...}.
func literal(_ *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	pairs, err := decodeObject(params)
	if err != nil {
		return nil, err
	}
	fields := make([]literalField, 0, len(pairs))
	for _, p := range pairs {
		t, v := literalValue(p.Value)
		fields = append(fields, literalField{column: dataset.Column{Name: p.Key, Type: t}, value: v})
	}
	return applyLiterals(ds, fields)
}
