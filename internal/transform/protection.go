package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/arkilian/lakestage/internal/dataset"
	"github.com/arkilian/lakestage/internal/results"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// hash replaces values with their SHA-256 hex digest: ["field", ...].
// Nulls stay null.
func hash(_ *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	fields, err := decodeFieldList(params)
	if err != nil {
		return nil, err
	}
	for _, field := range fields {
		src, err := requireColumn(ds, field)
		if err != nil {
			return nil, err
		}
		ds, err = ds.WithColumn(dataset.Column{Name: field, Type: dataset.String}, func(r dataset.Row) (any, error) {
			if r[src] == nil {
				return nil, nil
			}
			return sha256Hex(dataset.AsString(r[src])), nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// redact overwrites columns with a fixed string: {"field": "replacement"}.
func redact(_ *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	pairs, err := decodeObject(params)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if _, err := requireColumn(ds, p.Key); err != nil {
			return nil, err
		}
		ds, err = ds.WithLiteral(dataset.Column{Name: p.Key, Type: dataset.String}, p.Value.String())
		if err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// tokenize replaces values with their SHA-256 digest and keeps the
// digest-to-value pairs in the token store: ["field", ...].
func tokenize(tc *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	fields, err := decodeFieldList(params)
	if err != nil {
		return nil, err
	}
	if tc.Tokens == nil {
		return nil, fmt.Errorf("no token store configured")
	}

	seen := make(map[string]struct{})
	var tokens []results.Token
	for _, field := range fields {
		src, err := requireColumn(ds, field)
		if err != nil {
			return nil, err
		}
		ds, err = ds.WithColumn(dataset.Column{Name: field, Type: dataset.String}, func(r dataset.Row) (any, error) {
			if r[src] == nil {
				return nil, nil
			}
			raw := dataset.AsString(r[src])
			key := sha256Hex(raw)
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				tokens = append(tokens, results.Token{HashKey: key, RawData: raw})
			}
			return key, nil
		})
		if err != nil {
			return nil, err
		}
	}

	if len(tokens) == 0 {
		return ds, nil
	}
	if err := tc.Tokens.StoreTokens(tc, tc.TokenTable, tokens); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	tc.logger().Info("stored tokens", "count", len(tokens), "table", tc.TokenTable)
	return ds, nil
}
