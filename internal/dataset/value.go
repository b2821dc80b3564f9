package dataset

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Decimal is a fixed-scale exact number.
type Decimal struct {
	rat   *big.Rat
	scale int
}

// NewDecimal rounds r half away from zero to scale digits.
func NewDecimal(r *big.Rat, scale int) Decimal {
	return Decimal{rat: roundRat(r, scale), scale: scale}
}

// ParseDecimal parses a plain decimal string such as "-12.345".
func ParseDecimal(s string, scale int) (Decimal, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return Decimal{}, fmt.Errorf("dataset: invalid decimal %q", s)
	}
	return NewDecimal(r, scale), nil
}

// Rat returns a copy of the exact value.
func (d Decimal) Rat() *big.Rat {
	if d.rat == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(d.rat)
}

// Scale returns the number of fractional digits.
func (d Decimal) Scale() int {
	return d.scale
}

// Float64 returns the nearest float64.
func (d Decimal) Float64() float64 {
	if d.rat == nil {
		return 0
	}
	f, _ := d.rat.Float64()
	return f
}

// String formats the value with exactly Scale fractional digits.
func (d Decimal) String() string {
	if d.rat == nil {
		return new(big.Rat).FloatString(d.scale)
	}
	return d.rat.FloatString(d.scale)
}

// FitsPrecision reports whether the value has at most precision total digits.
func (d Decimal) FitsPrecision(precision int) bool {
	s := strings.TrimPrefix(d.String(), "-")
	digits := len(strings.Replace(s, ".", "", 1))
	intPart := strings.SplitN(s, ".", 2)[0]
	if intPart == "0" {
		digits--
	}
	return digits <= precision
}

func roundRat(r *big.Rat, scale int) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(pow))

	num := new(big.Int).Set(scaled.Num())
	den := scaled.Denom()
	q, m := new(big.Int).QuoRem(num, den, new(big.Int))
	// half away from zero
	m.Abs(m).Mul(m, big.NewInt(2))
	if m.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return new(big.Rat).SetFrac(q, pow)
}

// AsString renders a value as text. Null renders as the empty string.
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case Decimal:
		return x.String()
	}
	return fmt.Sprint(v)
}

// AsFloat converts numeric values to float64. Strings are parsed.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	case Decimal:
		return x.Float64(), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Cast converts v to type t. Null stays null.
func Cast(v any, t Type) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t.Kind {
	case KindString:
		return AsString(v), nil

	case KindInt, KindBigInt:
		var n int64
		switch x := v.(type) {
		case int64:
			n = x
		case int:
			n = int64(x)
		case bool:
			if x {
				n = 1
			}
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("dataset: cannot cast %v to %s", x, t)
			}
			n = int64(x)
		case Decimal:
			n = int64(x.Float64())
		default:
			s := strings.TrimSpace(AsString(v))
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				f, ferr := strconv.ParseFloat(s, 64)
				if ferr != nil {
					return nil, fmt.Errorf("dataset: cannot cast %q to %s", s, t)
				}
				i = int64(f)
			}
			n = i
		}
		if t.Kind == KindInt && (n > math.MaxInt32 || n < math.MinInt32) {
			return nil, fmt.Errorf("dataset: %d overflows int", n)
		}
		return n, nil

	case KindDouble:
		if b, ok := v.(bool); ok {
			if b {
				return 1.0, nil
			}
			return 0.0, nil
		}
		f, ok := AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("dataset: cannot cast %q to double", AsString(v))
		}
		return f, nil

	case KindBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		}
		switch strings.ToLower(strings.TrimSpace(AsString(v))) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
		return nil, fmt.Errorf("dataset: cannot cast %q to boolean", AsString(v))

	case KindDate, KindTimestamp:
		tm, ok := v.(time.Time)
		if !ok {
			var err error
			tm, err = parseTime(AsString(v))
			if err != nil {
				return nil, err
			}
		}
		if t.Kind == KindDate {
			y, m, d := tm.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
		return tm, nil

	case KindDecimal:
		var r *big.Rat
		switch x := v.(type) {
		case Decimal:
			r = x.Rat()
		case int64:
			r = new(big.Rat).SetInt64(x)
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("dataset: cannot cast %v to %s", x, t)
			}
			r, _ = new(big.Rat).SetString(strconv.FormatFloat(x, 'f', -1, 64))
		default:
			var ok bool
			r, ok = new(big.Rat).SetString(strings.TrimSpace(AsString(v)))
			if !ok {
				return nil, fmt.Errorf("dataset: cannot cast %q to %s", AsString(v), t)
			}
		}
		d := NewDecimal(r, t.Scale)
		if t.Precision > 0 && !d.FitsPrecision(t.Precision) {
			return nil, fmt.Errorf("dataset: %s overflows %s", d, t)
		}
		return d, nil
	}

	return nil, fmt.Errorf("dataset: unsupported cast to %s", t)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("dataset: cannot parse time %q", s)
}

// Compare orders two non-null values. Numbers compare numerically, times
// chronologically, booleans false before true, everything else as text.
func Compare(a, b any) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
	}
	if da, ok := a.(Decimal); ok {
		if db, ok := b.(Decimal); ok {
			return da.Rat().Cmp(db.Rat())
		}
	}
	fa, okA := AsFloat(a)
	fb, okB := AsFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(AsString(a), AsString(b))
}
