package transform

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// fieldParam is one entry of the list-shaped params used by the type
// conversion transforms. Source defaults to Field.
type fieldParam struct {
	Field      string `json:"field"`
	Source     string `json:"source,omitempty"`
	Format     string `json:"format,omitempty"`
	NumImplied *int   `json:"num_implied,omitempty"`
	Euro       bool   `json:"euro,omitempty"`
}

func (p fieldParam) source() string {
	if p.Source == "" {
		return p.Field
	}
	return p.Source
}

func decodeFieldParams(params json.RawMessage) ([]fieldParam, error) {
	var out []fieldParam
	if err := json.Unmarshal(params, &out); err != nil {
		return nil, fmt.Errorf("params must be a list of field objects: %w", err)
	}
	for i, p := range out {
		if p.Field == "" {
			return nil, fmt.Errorf("params[%d]: field is required", i)
		}
	}
	return out, nil
}

func decodeFieldList(params json.RawMessage) ([]string, error) {
	var out []string
	if err := json.Unmarshal(params, &out); err != nil {
		return nil, fmt.Errorf("params must be a list of field names: %w", err)
	}
	return out, nil
}

// pair is one key/value of an object param, in document order.
type pair struct {
	Key   string
	Value gjson.Result
}

// decodeObject walks an object param preserving key order.
func decodeObject(params json.RawMessage) ([]pair, error) {
	res := gjson.ParseBytes(params)
	if !res.IsObject() {
		return nil, fmt.Errorf("params must be an object")
	}
	var out []pair
	res.ForEach(func(k, v gjson.Result) bool {
		out = append(out, pair{Key: k.String(), Value: v})
		return true
	})
	return out, nil
}
