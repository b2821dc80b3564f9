package quality

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/arkilian/lakestage/internal/dataset"
)

// Outcome values as recorded in the results store.
const (
	OutcomePassed = "Passed"
	OutcomeFailed = "Failed"
)

// Evaluation is the result of one rule against one dataset.
type Evaluation struct {
	Rule          Rule
	Passed        bool
	FailureReason string
	// FailedRows marks failing rows for row-level rules; nil otherwise
	FailedRows []bool
	FailedN    int
}

// Outcome returns OutcomePassed or OutcomeFailed.
func (e Evaluation) Outcome() string {
	if e.Passed {
		return OutcomePassed
	}
	return OutcomeFailed
}

// Evaluate runs r against ds.
func Evaluate(r Rule, ds *dataset.Dataset) Evaluation {
	ev := Evaluation{Rule: r}

	switch r.Type {
	case RuleRowCount:
		n := float64(ds.NumRows())
		ev.Passed = r.Cond.numeric(n)
		if !ev.Passed {
			ev.FailureReason = fmt.Sprintf("row count %d does not satisfy %s", ds.NumRows(), r.Cond)
		}
		return ev

	case RuleColumnExists:
		ev.Passed = ds.Schema().Index(r.Column) >= 0
		if !ev.Passed {
			ev.FailureReason = fmt.Sprintf("column %q does not exist", r.Column)
		}
		return ev
	}

	values, err := ds.ColumnValues(r.Column)
	if err != nil {
		ev.FailureReason = fmt.Sprintf("column %q does not exist", r.Column)
		if r.RowLevel() {
			ev.FailedRows = make([]bool, ds.NumRows())
			for i := range ev.FailedRows {
				ev.FailedRows[i] = true
			}
			ev.FailedN = ds.NumRows()
		}
		return ev
	}

	if r.Type == RuleIsUnique {
		seen := make(map[string]int, len(values))
		for _, v := range values {
			if v == nil {
				continue
			}
			seen[dataset.AsString(v)]++
		}
		for _, n := range seen {
			if n > 1 {
				ev.FailedN += n
			}
		}
		ev.Passed = ev.FailedN == 0
		if !ev.Passed {
			ev.FailureReason = fmt.Sprintf("%d value(s) in %q are not unique", ev.FailedN, r.Column)
		}
		return ev
	}

	ev.FailedRows = make([]bool, len(values))
	for i, v := range values {
		if !r.test(v) {
			ev.FailedRows[i] = true
			ev.FailedN++
		}
	}
	ev.Passed = ev.FailedN == 0
	if !ev.Passed {
		ev.FailureReason = fmt.Sprintf("%d row(s) failed %s", ev.FailedN, r.Type)
	}
	return ev
}

func (r Rule) test(v any) bool {
	switch r.Type {
	case RuleIsComplete:
		return v != nil
	case RuleColumnLength:
		if v == nil {
			return false
		}
		return r.Cond.numeric(float64(utf8.RuneCountInString(dataset.AsString(v))))
	case RuleColumnValues:
		return r.Cond.value(v)
	}
	return false
}

func (c *Condition) String() string {
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = v.String()
	}
	switch c.Op {
	case "between":
		return fmt.Sprintf("between %s and %s", parts[0], parts[1])
	case "in":
		return "in [" + strings.Join(parts, ",") + "]"
	}
	return c.Op + " " + strings.Join(parts, " ")
}

func (c *Condition) numeric(n float64) bool {
	switch c.Op {
	case "between":
		return n >= c.Values[0].Num && n <= c.Values[1].Num
	case "in":
		for _, v := range c.Values {
			if n == v.Num {
				return true
			}
		}
		return false
	}
	return compareOp(c.Op, cmpFloat(n, c.Values[0].Num))
}

// value tests a cell. Nulls never satisfy a condition.
func (c *Condition) value(v any) bool {
	if v == nil {
		return false
	}
	switch c.Op {
	case "matches":
		return c.re.MatchString(dataset.AsString(v))
	case "in":
		for _, lit := range c.Values {
			if cmp, ok := compareLiteral(v, lit); ok && cmp == 0 {
				return true
			}
		}
		return false
	case "between":
		lo, ok1 := compareLiteral(v, c.Values[0])
		hi, ok2 := compareLiteral(v, c.Values[1])
		return ok1 && ok2 && lo >= 0 && hi <= 0
	}
	cmp, ok := compareLiteral(v, c.Values[0])
	return ok && compareOp(c.Op, cmp)
}

// compareLiteral compares numerically when the literal is a number and
// the value parses as one, and as text otherwise.
func compareLiteral(v any, lit Literal) (int, bool) {
	if lit.IsNum {
		f, ok := dataset.AsFloat(v)
		if !ok {
			return 0, false
		}
		return cmpFloat(f, lit.Num), true
	}
	return strings.Compare(dataset.AsString(v), lit.Str), true
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareOp(op string, cmp int) bool {
	switch op {
	case "=", "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}
