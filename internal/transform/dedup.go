package transform

import (
	"encoding/json"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/arkilian/lakestage/internal/dataset"
)

// Dedup keep policies.
const (
	KeepFirst = "keep-first"
	KeepLast  = "keep-last"
)

type dedupParams struct {
	Keys   []string `json:"keys"`
	Policy string   `json:"policy"`
}

// dedup removes rows with equal key values: {"keys": [...], "policy": ...}.
// With no keys every column is part of the key. Surviving rows keep their
// original relative order.
func dedup(tc *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	var p dedupParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid dedup params: %w", err)
		}
	}
	switch p.Policy {
	case "":
		p.Policy = KeepFirst
	case KeepFirst, KeepLast:
	default:
		return nil, fmt.Errorf("unknown dedup policy %q", p.Policy)
	}

	var keyIdx []int
	if len(p.Keys) == 0 {
		for i := 0; i < ds.NumColumns(); i++ {
			keyIdx = append(keyIdx, i)
		}
	} else {
		for _, k := range p.Keys {
			idx, err := requireColumn(ds, k)
			if err != nil {
				return nil, err
			}
			keyIdx = append(keyIdx, idx)
		}
	}

	n := ds.NumRows()
	buckets := make(map[[2]uint64][]int, n)
	winner := make([]int, 0, n)
	keep := make([]bool, n)

	for i := 0; i < n; i++ {
		r := ds.Row(i)
		h := rowKeyHash(r, keyIdx)

		match := -1
		for _, w := range buckets[h] {
			if sameKey(ds.Row(winner[w]), r, keyIdx) {
				match = w
				break
			}
		}
		if match < 0 {
			buckets[h] = append(buckets[h], len(winner))
			winner = append(winner, i)
			continue
		}
		if p.Policy == KeepLast {
			winner[match] = i
		}
	}
	for _, i := range winner {
		keep[i] = true
	}

	i := -1
	out := ds.Filter(func(dataset.Row) bool {
		i++
		return keep[i]
	})
	if removed := n - out.NumRows(); removed > 0 {
		tc.logger().Info("removed duplicate rows", "count", removed, "policy", p.Policy)
	}
	return out, nil
}

func rowKeyHash(r dataset.Row, keyIdx []int) [2]uint64 {
	h := murmur3.New128()
	for _, idx := range keyIdx {
		if r[idx] == nil {
			h.Write([]byte{0})
		} else {
			h.Write([]byte{1})
			h.Write([]byte(dataset.AsString(r[idx])))
		}
		h.Write([]byte{0x1f})
	}
	a, b := h.Sum128()
	return [2]uint64{a, b}
}

func sameKey(a, b dataset.Row, keyIdx []int) bool {
	for _, idx := range keyIdx {
		if (a[idx] == nil) != (b[idx] == nil) {
			return false
		}
		if a[idx] != nil && dataset.Compare(a[idx], b[idx]) != 0 {
			return false
		}
	}
	return true
}
