package lexer

import "github.com/fhirpath-go/fhirpath/pkg/fhirpath/diagnostics"

// Kind classifies a Token.
type Kind int

// Token kinds.
const (
	EOF Kind = iota
	Ident
	Keyword
	LiteralString
	LiteralNumber // integer or decimal; Lexeme disambiguates via presence of '.'
	LiteralDate
	LiteralDateTime
	LiteralTime
	LiteralQuantity // numeric literal immediately followed by a unit
	Delimiter       // one of: ( ) [ ] { } , .
	Operator        // + - * / & | = ~ != !~ < <= > >= and so on
	Dollar          // '$'
	Percent         // '%'
	Backtick        // delimited identifier content, Lexeme holds the unescaped name
)

// Keywords recognized by the lexer. Words outside this set lex as Ident
// even if they happen to match a function name (functions are resolved by
// the registry, not reserved by the grammar).
var Keywords = map[string]bool{
	"true": true, "false": true, "and": true, "or": true, "xor": true,
	"implies": true, "is": true, "as": true, "in": true, "contains": true,
	"div": true, "mod": true,
}

// Token is a single lexed unit with its source span.
type Token struct {
	Kind   Kind
	Lexeme string
	// Unit holds the trailing UCUM unit text for LiteralQuantity tokens.
	Unit string
	Span diagnostics.Span
}

// String renders the token for debugging/error messages.
func (t Token) String() string {
	return t.Lexeme
}
