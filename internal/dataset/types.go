package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the physical kind of a column.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindBigInt
	KindDouble
	KindBoolean
	KindDate
	KindTimestamp
	KindDecimal
)

// Type is a column type. Precision and Scale are only meaningful for decimals.
type Type struct {
	Kind      Kind
	Precision int
	Scale     int
}

// Common types.
var (
	String    = Type{Kind: KindString}
	Int       = Type{Kind: KindInt}
	BigInt    = Type{Kind: KindBigInt}
	Double    = Type{Kind: KindDouble}
	Boolean   = Type{Kind: KindBoolean}
	Date      = Type{Kind: KindDate}
	Timestamp = Type{Kind: KindTimestamp}
)

// DecimalType returns decimal(precision,scale).
func DecimalType(precision, scale int) Type {
	return Type{Kind: KindDecimal, Precision: precision, Scale: scale}
}

var decimalPattern = regexp.MustCompile(`^decimal\s*\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)

// ParseType parses a type name. Names are case-insensitive and a few
// common aliases are accepted: integer, long, float, bool, text.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "string", "text", "varchar":
		return String, nil
	case "int", "integer":
		return Int, nil
	case "bigint", "long":
		return BigInt, nil
	case "double", "float", "real":
		return Double, nil
	case "boolean", "bool":
		return Boolean, nil
	case "date":
		return Date, nil
	case "timestamp":
		return Timestamp, nil
	case "decimal":
		return DecimalType(10, 0), nil
	}

	if m := decimalPattern.FindStringSubmatch(name); m != nil {
		p, _ := strconv.Atoi(m[1])
		sc, _ := strconv.Atoi(m[2])
		if p < 1 || p > 38 || sc > p {
			return Type{}, fmt.Errorf("dataset: invalid decimal type %q", s)
		}
		return DecimalType(p, sc), nil
	}

	return Type{}, fmt.Errorf("dataset: unknown type %q", s)
}

// String returns the canonical type name.
func (t Type) String() string {
	switch t.Kind {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindDouble:
		return "double"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindDecimal:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	}
	return "unknown"
}

// IsNumeric reports whether values of this type take part in numeric audits.
func (t Type) IsNumeric() bool {
	switch t.Kind {
	case KindInt, KindBigInt, KindDouble, KindDecimal:
		return true
	}
	return false
}

// Column is a named, typed column.
type Column struct {
	Name string
	Type Type
}

// Schema is an ordered list of columns.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether both schemas have the same columns in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Row is one row of values in schema order.
type Row []any
