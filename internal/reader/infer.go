package reader

import (
	"strconv"
	"strings"

	"github.com/arkilian/lakestage/internal/dataset"
)

// inferColumn picks the narrowest type every non-empty cell parses as:
// bigint, then double, then boolean, else string. Empty cells are null.
func inferColumn(raw []string) (dataset.Type, []any) {
	isInt, isFloat, isBool := true, true, true
	nonEmpty := 0
	for _, s := range raw {
		if s == "" {
			continue
		}
		nonEmpty++
		v := strings.TrimSpace(s)
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil || strings.ContainsAny(v, "xXpP_") || isSpecialFloat(v) {
				isFloat = false
			}
		}
		if isBool {
			switch strings.ToLower(v) {
			case "true", "false":
			default:
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			break
		}
	}

	t := dataset.String
	switch {
	case nonEmpty == 0:
	case isInt:
		t = dataset.BigInt
	case isFloat:
		t = dataset.Double
	case isBool:
		t = dataset.Boolean
	}

	values := make([]any, len(raw))
	for i, s := range raw {
		if s == "" {
			continue
		}
		v := strings.TrimSpace(s)
		switch t.Kind {
		case dataset.KindBigInt:
			values[i], _ = strconv.ParseInt(v, 10, 64)
		case dataset.KindDouble:
			values[i], _ = strconv.ParseFloat(v, 64)
		case dataset.KindBoolean:
			values[i] = strings.EqualFold(v, "true")
		default:
			values[i] = s
		}
	}
	return t, values
}

func isSpecialFloat(v string) bool {
	switch strings.ToLower(strings.TrimLeft(v, "+-")) {
	case "inf", "infinity", "nan":
		return true
	}
	return false
}
