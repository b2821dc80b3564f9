package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/arkilian/lakestage/internal/dataset"
)

// date parses string columns into dates: [{"field","source","format"}].
// Values that do not match the format become null.
func date(tc *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	return parseTimes(tc, ds, params, dataset.Date)
}

// timestamp is date with the time of day kept.
func timestamp(tc *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	return parseTimes(tc, ds, params, dataset.Timestamp)
}

func parseTimes(tc *Context, ds *dataset.Dataset, params json.RawMessage, t dataset.Type) (*dataset.Dataset, error) {
	fields, err := decodeFieldParams(params)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		src, err := requireColumn(ds, f.source())
		if err != nil {
			return nil, err
		}
		if f.Format == "" {
			return nil, fmt.Errorf("field %q: format is required", f.Field)
		}
		layout, err := layoutFromPattern(f.Format)
		if err != nil {
			return nil, err
		}

		var failed int
		ds, err = ds.WithColumn(dataset.Column{Name: f.Field, Type: t}, func(r dataset.Row) (any, error) {
			v := r[src]
			if v == nil {
				return nil, nil
			}
			if tm, ok := v.(time.Time); ok {
				return truncateTime(tm, t), nil
			}
			tm, err := time.Parse(layout, strings.TrimSpace(dataset.AsString(v)))
			if err != nil {
				failed++
				return nil, nil
			}
			return truncateTime(tm, t), nil
		})
		if err != nil {
			return nil, err
		}
		if failed > 0 {
			tc.logger().Warn("values did not match format and were set to null",
				"field", f.Field, "format", f.Format, "count", failed)
		}
	}
	return ds, nil
}

func truncateTime(tm time.Time, t dataset.Type) time.Time {
	if t.Kind == dataset.KindDate {
		y, m, d := tm.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return tm
}

// changetype casts columns in place: {"field": "type"}. Values that fail
// the cast become null.
func changetype(_ *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	pairs, err := decodeObject(params)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		t, err := dataset.ParseType(p.Value.String())
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", p.Key, err)
		}
		ds, err = castColumn(ds, p.Key, p.Key, t)
		if err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func castColumn(ds *dataset.Dataset, dest, source string, t dataset.Type) (*dataset.Dataset, error) {
	src, err := requireColumn(ds, source)
	if err != nil {
		return nil, err
	}
	return ds.WithColumn(dataset.Column{Name: dest, Type: t}, func(r dataset.Row) (any, error) {
		v, err := dataset.Cast(r[src], t)
		if err != nil {
			return nil, nil
		}
		return v, nil
	})
}

// decimal is the older spelling of changetype for decimals:
// [{"field","format":"p,s"}].
func decimal(tc *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	fields, err := decodeFieldParams(params)
	if err != nil {
		return nil, err
	}
	tc.logger().Warn("transform decimal is deprecated, use changetype")

	obj := make(map[string]string, len(fields))
	order := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := obj[f.Field]; !ok {
			order = append(order, f.Field)
		}
		obj[f.Field] = "decimal(" + f.Format + ")"
	}

	var b strings.Builder
	b.WriteByte('{')
	for i, field := range order {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(field))
		b.WriteByte(':')
		b.WriteString(strconv.Quote(obj[field]))
	}
	b.WriteByte('}')
	return changetype(tc, ds, json.RawMessage(b.String()))
}

func decimalFormat(format, fallback string) (dataset.Type, error) {
	if format == "" {
		format = fallback
	}
	return dataset.ParseType("decimal(" + format + ")")
}

// implieddecimal inserts a decimal point num_implied digits from the right:
// [{"field","source","format":"p,s","num_implied"}].
func implieddecimal(_ *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	fields, err := decodeFieldParams(params)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		src, err := requireColumn(ds, f.source())
		if err != nil {
			return nil, err
		}
		t, err := decimalFormat(f.Format, "16,2")
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Field, err)
		}
		implied := 2
		if f.NumImplied != nil {
			implied = *f.NumImplied
		}
		if implied < 1 {
			return nil, fmt.Errorf("field %q: num_implied must be positive", f.Field)
		}
		re := regexp.MustCompile(fmt.Sprintf(`([+-]?\d+)(\d{%d})$`, implied))

		ds, err = ds.WithColumn(dataset.Column{Name: f.Field, Type: t}, func(r dataset.Row) (any, error) {
			if r[src] == nil {
				return nil, nil
			}
			m := re.FindStringSubmatch(strings.TrimSpace(dataset.AsString(r[src])))
			if m == nil {
				return nil, nil
			}
			v, err := dataset.Cast(m[1]+"."+m[2], t)
			if err != nil {
				return nil, nil
			}
			return v, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ds, nil
}

var (
	nonCurrency     = regexp.MustCompile(`[^\-\d.]`)
	nonEuroCurrency = regexp.MustCompile(`[^\-\d,]`)
)

// currency strips symbols and grouping from money strings and casts to
// decimal: [{"field","source","format","euro"}]. Euro values use a comma
// as the decimal separator.
func currency(_ *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	fields, err := decodeFieldParams(params)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		src, err := requireColumn(ds, f.source())
		if err != nil {
			return nil, err
		}
		t, err := decimalFormat(f.Format, "16,2")
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Field, err)
		}
		euro := f.Euro

		ds, err = ds.WithColumn(dataset.Column{Name: f.Field, Type: t}, func(r dataset.Row) (any, error) {
			if r[src] == nil {
				return nil, nil
			}
			s := dataset.AsString(r[src])
			if euro {
				s = strings.ReplaceAll(nonEuroCurrency.ReplaceAllString(s, ""), ",", ".")
			} else {
				s = nonCurrency.ReplaceAllString(s, "")
			}
			v, err := dataset.Cast(s, t)
			if err != nil {
				return nil, nil
			}
			return v, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// titlecase capitalizes the first letter of each word: ["field", ...].
func titlecase(_ *Context, ds *dataset.Dataset, params json.RawMessage) (*dataset.Dataset, error) {
	fields, err := decodeFieldList(params)
	if err != nil {
		return nil, err
	}
	caser := cases.Title(language.Und)
	for _, field := range fields {
		src, err := requireColumn(ds, field)
		if err != nil {
			return nil, err
		}
		ds, err = ds.WithColumn(dataset.Column{Name: field, Type: dataset.String}, func(r dataset.Row) (any, error) {
			if r[src] == nil {
				return nil, nil
			}
			return caser.String(dataset.AsString(r[src])), nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ds, nil
}
