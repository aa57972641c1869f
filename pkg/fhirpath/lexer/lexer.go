// Package lexer turns FHIRPath source text into a token stream with
// source spans, per spec.md §4.D. There is no parser-generator involved:
// this is a hand-written rune scanner, the idiomatic-Go rendition the
// teacher's ANTLR-generated lexer stood in for.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/diagnostics"
)

// pool interns frequently occurring identifier lexemes so repeated
// navigation of common FHIR element names (Patient, name, given, ...)
// shares one string header instead of allocating afresh per token.
// Grounded on the teacher's types/pool.go value-caching pattern.
type pool struct {
	entries map[string]string
}

func newPool() *pool { return &pool{entries: make(map[string]string, 64)} }

func (p *pool) intern(s string) string {
	if v, ok := p.entries[s]; ok {
		return v
	}
	p.entries[s] = s
	return s
}

// Lexer is a lazy, pull-based scanner: call Next repeatedly until it
// returns an EOF token. The parser treats interned and non-interned
// lexemes identically (spec.md §9) — interning is purely an allocation
// optimization invisible to callers.
type Lexer struct {
	src   string
	pos   int // byte offset of the next unread rune
	line  int
	col   int
	pool  *pool
	diags []*diagnostics.Diagnostic
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1, col: 1, pool: newPool()}
}

// Diagnostics returns any lexical errors accumulated so far.
func (l *Lexer) Diagnostics() []*diagnostics.Diagnostic { return l.diags }

func (l *Lexer) position() diagnostics.Position {
	return diagnostics.Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) peekRune() (rune, int) {
	if l.pos >= len(l.src) {
		return 0, 0
	}
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	return r, size
}

func (l *Lexer) peekAt(offset int) (rune, int) {
	p := l.pos
	for i := 0; i < offset; i++ {
		_, size := utf8.DecodeRuneInString(l.src[p:])
		if size == 0 {
			return 0, 0
		}
		p += size
	}
	if p >= len(l.src) {
		return 0, 0
	}
	r, size := utf8.DecodeRuneInString(l.src[p:])
	return r, size
}

func (l *Lexer) advance() rune {
	r, size := l.peekRune()
	if size == 0 {
		return 0
	}
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) span(start diagnostics.Position) diagnostics.Span {
	return diagnostics.Span{Start: start, End: l.position()}
}

func (l *Lexer) errf(code diagnostics.Code, start diagnostics.Position, format string, args ...any) {
	l.diags = append(l.diags, diagnostics.New(code, l.span(start), format, args...))
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentCont(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
func isDigit(r rune) bool      { return r >= '0' && r <= '9' }

func (l *Lexer) skipTrivia() {
	for {
		r, size := l.peekRune()
		if size == 0 {
			return
		}
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '/' && peekSecond(l) == '/':
			for {
				r, size := l.peekRune()
				if size == 0 || r == '\n' {
					break
				}
				l.advance()
			}
		case r == '/' && peekSecond(l) == '*':
			l.advance()
			l.advance()
			for {
				r, size := l.peekRune()
				if size == 0 {
					return
				}
				if r == '*' && peekSecond(l) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func peekSecond(l *Lexer) rune {
	r, _ := l.peekAt(1)
	return r
}

// Next scans and returns the next token, or an EOF token at end of input.
func (l *Lexer) Next() Token {
	l.skipTrivia()
	start := l.position()
	r, size := l.peekRune()
	if size == 0 {
		return Token{Kind: EOF, Span: l.span(start)}
	}

	switch {
	case r == '@':
		return l.scanTemporal(start)
	case r == '\'':
		return l.scanString(start)
	case r == '`':
		return l.scanBacktick(start)
	case isDigit(r):
		return l.scanNumberOrQuantity(start)
	case isIdentStart(r):
		return l.scanIdentOrKeyword(start)
	case r == '$':
		l.advance()
		return l.scanDollarVar(start)
	case r == '%':
		l.advance()
		return l.scanPercentVar(start)
	default:
		return l.scanOperatorOrDelimiter(start)
	}
}

func (l *Lexer) scanIdentOrKeyword(start diagnostics.Position) Token {
	var sb strings.Builder
	for {
		r, size := l.peekRune()
		if size == 0 || !isIdentCont(r) {
			break
		}
		sb.WriteRune(r)
		l.advance()
	}
	lex := l.pool.intern(sb.String())
	kind := Ident
	if Keywords[lex] {
		kind = Keyword
	}
	return Token{Kind: kind, Lexeme: lex, Span: l.span(start)}
}

func (l *Lexer) scanBacktick(start diagnostics.Position) Token {
	l.advance() // opening `
	var sb strings.Builder
	closed := false
	for {
		r, size := l.peekRune()
		if size == 0 {
			break
		}
		if r == '`' {
			l.advance()
			closed = true
			break
		}
		sb.WriteRune(r)
		l.advance()
	}
	if !closed {
		l.errf(diagnostics.CodeUnclosedString, start, "unclosed delimited identifier")
	}
	return Token{Kind: Ident, Lexeme: l.pool.intern(sb.String()), Span: l.span(start)}
}

func (l *Lexer) scanString(start diagnostics.Position) Token {
	l.advance() // opening '
	var sb strings.Builder
	closed := false
	for {
		r, size := l.peekRune()
		if size == 0 {
			break
		}
		if r == '\'' {
			l.advance()
			closed = true
			break
		}
		if r == '\\' {
			escStart := l.position()
			l.advance()
			esc, size := l.peekRune()
			if size == 0 {
				break
			}
			switch esc {
			case '\'', '"', '`', '\\', '/':
				sb.WriteRune(esc)
				l.advance()
			case 'n':
				sb.WriteRune('\n')
				l.advance()
			case 't':
				sb.WriteRune('\t')
				l.advance()
			case 'r':
				sb.WriteRune('\r')
				l.advance()
			case 'f':
				sb.WriteRune('\f')
				l.advance()
			case 'u':
				l.advance()
				code := 0
				valid := true
				for i := 0; i < 4; i++ {
					d, sz := l.peekRune()
					if sz == 0 || !isHexDigit(d) {
						valid = false
						break
					}
					code = code*16 + hexVal(d)
					l.advance()
				}
				if !valid {
					l.errf(diagnostics.CodeInvalidEscape, escStart, "invalid \\u escape")
				} else {
					sb.WriteRune(rune(code))
				}
			default:
				l.errf(diagnostics.CodeInvalidEscape, escStart, "invalid escape sequence \\%c", esc)
				sb.WriteRune(esc)
				l.advance()
			}
			continue
		}
		sb.WriteRune(r)
		l.advance()
	}
	if !closed {
		l.errf(diagnostics.CodeUnclosedString, start, "unclosed string literal")
	}
	return Token{Kind: LiteralString, Lexeme: sb.String(), Span: l.span(start)}
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func hexVal(r rune) int {
	switch {
	case isDigit(r):
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	default:
		return int(r-'A') + 10
	}
}

// scanTemporal scans @YYYY[-MM[-DD[Thh[:mm[:ss[.fff]]][Z|±hh:mm]]]]] or
// the time-only @Thh:mm:ss(.fff)? form. The deepest component actually
// present becomes the literal's captured precision (spec.md §4.D); the
// parser/evaluator derive precision from Raw rather than re-lexing.
func (l *Lexer) scanTemporal(start diagnostics.Position) Token {
	l.advance() // '@'
	var sb strings.Builder

	if r, _ := l.peekRune(); r == 'T' {
		l.advance()
		sb.WriteString(l.scanTimeBody())
		return Token{Kind: LiteralTime, Lexeme: sb.String(), Span: l.span(start)}
	}

	sb.WriteString(l.scanDigits(4))
	kind := LiteralDate
	if r, _ := l.peekRune(); r == '-' {
		l.advance()
		sb.WriteByte('-')
		sb.WriteString(l.scanDigits(2))
		if r, _ := l.peekRune(); r == '-' {
			l.advance()
			sb.WriteByte('-')
			sb.WriteString(l.scanDigits(2))
		}
	}
	if r, _ := l.peekRune(); r == 'T' {
		l.advance()
		sb.WriteByte('T')
		sb.WriteString(l.scanTimeBody())
		kind = LiteralDateTime
	}
	if !isValidTemporal(sb.String()) {
		l.errf(diagnostics.CodeInvalidDateTime, start, "invalid date/time literal @%s", sb.String())
	}
	return Token{Kind: kind, Lexeme: sb.String(), Span: l.span(start)}
}

func (l *Lexer) scanTimeBody() string {
	var sb strings.Builder
	sb.WriteString(l.scanDigits(2))
	if r, _ := l.peekRune(); r == ':' {
		l.advance()
		sb.WriteByte(':')
		sb.WriteString(l.scanDigits(2))
		if r, _ := l.peekRune(); r == ':' {
			l.advance()
			sb.WriteByte(':')
			sb.WriteString(l.scanDigits(2))
			if r, _ := l.peekRune(); r == '.' {
				l.advance()
				sb.WriteByte('.')
				sb.WriteString(l.scanDigitsWhile())
			}
		}
	}
	// timezone offset
	if r, _ := l.peekRune(); r == 'Z' {
		l.advance()
		sb.WriteByte('Z')
	} else if r == '+' || r == '-' {
		l.advance()
		sb.WriteRune(r)
		sb.WriteString(l.scanDigits(2))
		if r2, _ := l.peekRune(); r2 == ':' {
			l.advance()
			sb.WriteByte(':')
			sb.WriteString(l.scanDigits(2))
		}
	}
	return sb.String()
}

func (l *Lexer) scanDigits(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		r, size := l.peekRune()
		if size == 0 || !isDigit(r) {
			break
		}
		sb.WriteRune(r)
		l.advance()
	}
	return sb.String()
}

func (l *Lexer) scanDigitsWhile() string {
	var sb strings.Builder
	for {
		r, size := l.peekRune()
		if size == 0 || !isDigit(r) {
			break
		}
		sb.WriteRune(r)
		l.advance()
	}
	return sb.String()
}

// isValidTemporal performs a light structural check; full calendar
// validity (e.g. Feb 30) is left to the evaluator's conversion functions
// per spec.md's empty-propagation error policy.
func isValidTemporal(s string) bool {
	return len(s) >= 4
}

func (l *Lexer) scanNumberOrQuantity(start diagnostics.Position) Token {
	var sb strings.Builder
	sb.WriteString(l.scanDigitsWhile())
	if r, _ := l.peekRune(); r == '.' {
		if next, _ := l.peekAt(1); isDigit(next) {
			l.advance()
			sb.WriteByte('.')
			sb.WriteString(l.scanDigitsWhile())
		}
	}
	numLex := sb.String()

	// Trailing UCUM unit: 'quoted unit' or a bare keyword unit (year, years, ...).
	l.skipHorizontalSpace()
	if r, _ := l.peekRune(); r == '\'' {
		unitStart := l.position()
		unitTok := l.scanString(unitStart)
		return Token{Kind: LiteralQuantity, Lexeme: numLex, Unit: unitTok.Lexeme, Span: l.span(start)}
	}
	if unit, ok := l.tryScanUnitKeyword(); ok {
		return Token{Kind: LiteralQuantity, Lexeme: numLex, Unit: unit, Span: l.span(start)}
	}
	return Token{Kind: LiteralNumber, Lexeme: numLex, Span: l.span(start)}
}

var calendarUnitKeywords = map[string]bool{
	"year": true, "years": true, "month": true, "months": true,
	"week": true, "weeks": true, "day": true, "days": true,
	"hour": true, "hours": true, "minute": true, "minutes": true,
	"second": true, "seconds": true, "millisecond": true, "milliseconds": true,
}

func (l *Lexer) tryScanUnitKeyword() (string, bool) {
	savedPos, savedLine, savedCol := l.pos, l.line, l.col
	var sb strings.Builder
	for {
		r, size := l.peekRune()
		if size == 0 || !isIdentCont(r) {
			break
		}
		sb.WriteRune(r)
		l.advance()
	}
	word := sb.String()
	if calendarUnitKeywords[word] {
		return word, true
	}
	l.pos, l.line, l.col = savedPos, savedLine, savedCol
	return "", false
}

func (l *Lexer) skipHorizontalSpace() {
	for {
		r, size := l.peekRune()
		if size == 0 || r == '\n' || !unicode.IsSpace(r) {
			return
		}
		l.advance()
	}
}

func (l *Lexer) scanDollarVar(start diagnostics.Position) Token {
	return Token{Kind: Dollar, Lexeme: "$", Span: l.span(start)}
}

func (l *Lexer) scanPercentVar(start diagnostics.Position) Token {
	return Token{Kind: Percent, Lexeme: "%", Span: l.span(start)}
}

// twoCharOperators lists multi-character operator lexemes, checked before
// falling back to single-character punctuation.
var twoCharOperators = []string{"<=", ">=", "!=", "!~"}

func (l *Lexer) scanOperatorOrDelimiter(start diagnostics.Position) Token {
	r := l.advance()
	for _, op := range twoCharOperators {
		if rune(op[0]) == r {
			if next, _ := l.peekRune(); next == rune(op[1]) {
				l.advance()
				return Token{Kind: Operator, Lexeme: op, Span: l.span(start)}
			}
		}
	}
	switch r {
	case '(', ')', '[', ']', '{', '}', ',', '.':
		return Token{Kind: Delimiter, Lexeme: string(r), Span: l.span(start)}
	case '+', '-', '*', '/', '&', '|', '=', '~', '<', '>':
		return Token{Kind: Operator, Lexeme: string(r), Span: l.span(start)}
	default:
		return Token{Kind: Operator, Lexeme: string(r), Span: l.span(start)}
	}
}

// Tokenize scans the entire source into a slice, primarily used by tests
// and the parser's lookahead buffer construction.
func Tokenize(src string) ([]Token, []*diagnostics.Diagnostic) {
	l := New(src)
	var toks []Token
	for {
		t := l.Next()
		toks = append(toks, t)
		if t.Kind == EOF {
			break
		}
	}
	return toks, l.Diagnostics()
}
