package partition

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arkilian/lakestage/internal/dataset"
)

// encodeValue converts a dataset value to its SQLite representation.
// Times are stored as RFC 3339 text and decimals as their exact string.
func encodeValue(v any) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case dataset.Decimal:
		return x.String()
	}
	return v
}

// decodeValue converts a scanned SQLite value back to the dataset type.
func decodeValue(raw interface{}, t dataset.Type) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch t.Kind {
	case dataset.KindBoolean:
		n, ok := raw.(int64)
		if !ok {
			return nil, fmt.Errorf("partition: boolean stored as %T", raw)
		}
		return n != 0, nil
	case dataset.KindDate, dataset.KindTimestamp:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("partition: time stored as %T", raw)
		}
		return time.Parse(time.RFC3339Nano, s)
	case dataset.KindDecimal:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("partition: decimal stored as %T", raw)
		}
		return dataset.ParseDecimal(s, t.Scale)
	case dataset.KindDouble:
		switch x := raw.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		}
	case dataset.KindInt, dataset.KindBigInt:
		if n, ok := raw.(int64); ok {
			return n, nil
		}
	case dataset.KindString:
		switch x := raw.(type) {
		case string:
			return x, nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		}
	}
	return dataset.Cast(raw, t)
}
