package quality

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// RuleType names a supported rule.
type RuleType string

const (
	RuleIsComplete   RuleType = "IsComplete"
	RuleIsUnique     RuleType = "IsUnique"
	RuleColumnExists RuleType = "ColumnExists"
	RuleRowCount     RuleType = "RowCount"
	RuleColumnValues RuleType = "ColumnValues"
	RuleColumnLength RuleType = "ColumnLength"
)

// Rule is one parsed rule.
type Rule struct {
	Text   string
	Type   RuleType
	Column string
	Cond   *Condition
}

// RowLevel reports whether the rule yields a pass/fail per row.
func (r Rule) RowLevel() bool {
	switch r.Type {
	case RuleIsComplete, RuleColumnValues, RuleColumnLength:
		return true
	}
	return false
}

func (r Rule) String() string { return r.Text }

// Literal is a number or a string in a condition.
type Literal struct {
	Num   float64
	Str   string
	IsNum bool
}

func (l Literal) String() string {
	if l.IsNum {
		return strconv.FormatFloat(l.Num, 'f', -1, 64)
	}
	return strconv.Quote(l.Str)
}

// Condition is the comparison part of a rule.
type Condition struct {
	Op     string
	Values []Literal
	re     *regexp.Regexp
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokOp
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func lex(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		c := rs[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '"' || c == '\'':
			end := i + 1
			var b strings.Builder
			for end < len(rs) && rs[end] != c {
				if rs[end] == '\\' && end+1 < len(rs) {
					end++
				}
				b.WriteRune(rs[end])
				end++
			}
			if end >= len(rs) {
				return nil, fmt.Errorf("unterminated string")
			}
			toks = append(toks, token{tokString, b.String()})
			i = end + 1
		case c == '[':
			toks = append(toks, token{tokLBracket, "["})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case strings.ContainsRune("=!<>", c):
			end := i + 1
			if end < len(rs) && rs[end] == '=' {
				end++
			}
			op := string(rs[i:end])
			if op == "!" {
				return nil, fmt.Errorf("unexpected %q", op)
			}
			toks = append(toks, token{tokOp, op})
			i = end
		case c == '-' || c == '+' || c == '.' || unicode.IsDigit(c):
			end := i + 1
			for end < len(rs) && (unicode.IsDigit(rs[end]) || rs[end] == '.' || rs[end] == 'e' || rs[end] == 'E') {
				end++
			}
			toks = append(toks, token{tokNumber, string(rs[i:end])})
			i = end
		case unicode.IsLetter(c) || c == '_':
			end := i + 1
			for end < len(rs) && (unicode.IsLetter(rs[end]) || unicode.IsDigit(rs[end]) || rs[end] == '_') {
				end++
			}
			toks = append(toks, token{tokIdent, string(rs[i:end])})
			i = end
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) next() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	t := p.toks[p.pos]
	p.pos++
	return t, true
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t, ok := p.next()
	if !ok || t.kind != kind {
		return token{}, fmt.Errorf("expected %s", what)
	}
	return t, nil
}

func (p *parser) literal() (Literal, error) {
	t, ok := p.next()
	if !ok {
		return Literal{}, fmt.Errorf("expected value")
	}
	switch t.kind {
	case tokString:
		return Literal{Str: t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Literal{}, fmt.Errorf("invalid number %q", t.text)
		}
		return Literal{Num: f, IsNum: true, Str: t.text}, nil
	}
	return Literal{}, fmt.Errorf("expected value, got %q", t.text)
}

func (p *parser) condition() (*Condition, error) {
	t, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("expected condition")
	}

	if t.kind == tokOp {
		v, err := p.literal()
		if err != nil {
			return nil, err
		}
		return &Condition{Op: t.text, Values: []Literal{v}}, nil
	}
	if t.kind != tokIdent {
		return nil, fmt.Errorf("expected condition, got %q", t.text)
	}

	switch strings.ToLower(t.text) {
	case "between":
		lo, err := p.literal()
		if err != nil {
			return nil, err
		}
		and, err := p.expect(tokIdent, "and")
		if err != nil || !strings.EqualFold(and.text, "and") {
			return nil, fmt.Errorf("expected and")
		}
		hi, err := p.literal()
		if err != nil {
			return nil, err
		}
		return &Condition{Op: "between", Values: []Literal{lo, hi}}, nil

	case "in":
		if _, err := p.expect(tokLBracket, "["); err != nil {
			return nil, err
		}
		var vals []Literal
		for {
			v, err := p.literal()
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
			sep, ok := p.next()
			if !ok {
				return nil, fmt.Errorf("expected ]")
			}
			if sep.kind == tokRBracket {
				break
			}
			if sep.kind != tokComma {
				return nil, fmt.Errorf("expected , or ]")
			}
		}
		return &Condition{Op: "in", Values: vals}, nil

	case "matches":
		s, err := p.expect(tokString, "pattern")
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile("^(?:" + s.text + ")$")
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		return &Condition{Op: "matches", Values: []Literal{{Str: s.text}}, re: re}, nil
	}
	return nil, fmt.Errorf("unknown operator %q", t.text)
}

// ParseRule parses one rule. Column names may use single or double quotes.
func ParseRule(text string) (Rule, error) {
	toks, err := lex(text)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", text, err)
	}
	p := &parser{toks: toks}
	r := Rule{Text: strings.TrimSpace(text)}

	head, err := p.expect(tokIdent, "rule type")
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", text, err)
	}
	r.Type = RuleType(head.text)

	switch r.Type {
	case RuleIsComplete, RuleIsUnique, RuleColumnExists:
		err = p.column(&r)
	case RuleRowCount:
		r.Cond, err = p.condition()
		if err == nil {
			err = numericOnly(r.Cond)
		}
	case RuleColumnValues:
		if err = p.column(&r); err == nil {
			r.Cond, err = p.condition()
		}
	case RuleColumnLength:
		if err = p.column(&r); err == nil {
			r.Cond, err = p.condition()
		}
		if err == nil {
			err = numericOnly(r.Cond)
		}
	default:
		err = fmt.Errorf("unsupported rule type %q", head.text)
	}
	if err == nil && p.pos < len(p.toks) {
		err = fmt.Errorf("unexpected %q", p.toks[p.pos].text)
	}
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", text, err)
	}
	return r, nil
}

func (p *parser) column(r *Rule) error {
	t, err := p.expect(tokString, "quoted column name")
	if err != nil {
		return err
	}
	r.Column = t.text
	return nil
}

func numericOnly(c *Condition) error {
	if c.Op == "matches" {
		return fmt.Errorf("matches needs a column value rule")
	}
	for _, v := range c.Values {
		if !v.IsNum {
			return fmt.Errorf("%s is not a number", v)
		}
	}
	return nil
}
