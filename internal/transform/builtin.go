package transform

// Names of the built-in transforms.
const (
	NameDate           = "date"
	NameTimestamp      = "timestamp"
	NameDecimal        = "decimal"
	NameChangeType     = "changetype"
	NameImpliedDecimal = "implieddecimal"
	NameCurrency       = "currency"
	NameTitleCase      = "titlecase"
	NameHash           = "hash"
	NameRedact         = "redact"
	NameTokenize       = "tokenize"
	NameDedup          = "dedup"
	NameLiteral        = "literal"
)

// DefaultRegistry returns a registry holding every built-in transform.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NameDate, Func(date))
	r.Register(NameTimestamp, Func(timestamp))
	r.Register(NameDecimal, Func(decimal))
	r.Register(NameChangeType, Func(changetype))
	r.Register(NameImpliedDecimal, Func(implieddecimal))
	r.Register(NameCurrency, Func(currency))
	r.Register(NameTitleCase, Func(titlecase))
	r.Register(NameHash, Func(hash))
	r.Register(NameRedact, Func(redact))
	r.Register(NameTokenize, Func(tokenize))
	r.Register(NameDedup, Func(dedup))
	r.Register(NameLiteral, Func(literal))
	return r
}
