// Package parser implements a Pratt/precedence-climbing parser that turns
// a lexer.Token stream into an ast.Node tree, per spec.md §4.E. It replaces
// the teacher's ANTLR-generated parser (whose grammar artifacts were not
// part of the retrieval pack — see SPEC_FULL.md §2) with a hand-written
// recursive-descent implementation.
package parser

import (
	"strings"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/ast"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/diagnostics"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/lexer"
)

// precedence level, low to high, matching spec.md §4.E's numbered table.
type precedence int

const (
	precLowest precedence = iota
	precImplies
	precOrXor
	precAnd
	precMembership // in, contains
	precEquality   // = ~ != !~
	precRelational // < <= > >=
	precUnion      // |
	precTypeOp     // is, as (infix form)
	precAdditive   // + - &
	precMultiplicative
	precUnary
	precPostfix
)

var binaryPrecedence = map[string]precedence{
	"implies": precImplies,
	"xor":     precOrXor,
	"or":      precOrXor,
	"and":     precAnd,
	"in":      precMembership,
	"contains": precMembership,
	"=":  precEquality,
	"~":  precEquality,
	"!=": precEquality,
	"!~": precEquality,
	"<":  precRelational,
	"<=": precRelational,
	">":  precRelational,
	">=": precRelational,
	"|":  precUnion,
	"is": precTypeOp,
	"as": precTypeOp,
	"+":  precAdditive,
	"-":  precAdditive,
	"&":  precAdditive,
	"*":  precMultiplicative,
	"/":  precMultiplicative,
	"div": precMultiplicative,
	"mod": precMultiplicative,
}

// rightAssociative lists operators that bind right-to-left; all others
// (including the arithmetic and comparison families) are left-associative.
var rightAssociative = map[string]bool{"implies": true}

// Parser is a single-use recursive-descent parser over one token stream.
type Parser struct {
	toks  []lexer.Token
	pos   int
	diags []*diagnostics.Diagnostic
	nextID ast.NodeID
}

// New creates a Parser over already-lexed tokens (EOF-terminated).
func New(toks []lexer.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse lexes and parses src in one step, returning the AST root and any
// diagnostics accumulated by the lexer and parser.
func Parse(src string) (ast.Node, []*diagnostics.Diagnostic) {
	toks, lexDiags := lexer.Tokenize(src)
	p := New(toks)
	p.diags = append(p.diags, lexDiags...)
	root := p.ParseExpression()
	if !p.atEOF() {
		p.errorf(p.cur(), diagnostics.CodeUnexpectedToken, "unexpected trailing input %q", p.cur().Lexeme)
	}
	return root, p.diags
}

// ParseExpression parses a full expression at the lowest precedence.
func (p *Parser) ParseExpression() ast.Node {
	return p.parseBinary(precLowest)
}

// Diagnostics returns parser diagnostics collected via New+ParseExpression.
func (p *Parser) Diagnostics() []*diagnostics.Diagnostic { return p.diags }

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekNext() lexer.Token {
	if p.pos+1 >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos+1]
}

func (p *Parser) atEOF() bool { return p.cur().Kind == lexer.EOF }

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) id() ast.NodeID {
	p.nextID++
	return p.nextID
}

func (p *Parser) errorf(at lexer.Token, code diagnostics.Code, format string, args ...any) {
	p.diags = append(p.diags, diagnostics.New(code, at.Span, format, args...))
}

// synchronizing tokens used for error recovery: skip forward until one of
// these is seen so later diagnostics can still be produced (spec.md §4.E).
func (p *Parser) isSynchronizing(t lexer.Token) bool {
	if t.Kind == lexer.EOF {
		return true
	}
	if t.Kind == lexer.Delimiter && (t.Lexeme == ")" || t.Lexeme == "]" || t.Lexeme == ",") {
		return true
	}
	return false
}

func (p *Parser) recover() {
	for !p.isSynchronizing(p.cur()) {
		p.advance()
	}
}

func (p *Parser) expectDelimiter(lexeme string) bool {
	if p.cur().Kind == lexer.Delimiter && p.cur().Lexeme == lexeme {
		p.advance()
		return true
	}
	p.errorf(p.cur(), diagnostics.CodeExpectedToken, "expected %q, got %q", lexeme, p.cur().Lexeme)
	p.recover()
	return false
}

// parseBinary implements precedence climbing: parse a unary/postfix term,
// then repeatedly fold in operators whose precedence is >= minPrec.
func (p *Parser) parseBinary(minPrec precedence) ast.Node {
	left := p.parseUnary()

	for {
		opTok, opName, ok := p.peekOperator()
		if !ok {
			break
		}
		prec, known := binaryPrecedence[opName]
		if !known || prec < minPrec {
			break
		}

		// `is`/`as` also have a unary-ish `expr is Type` form where Type is
		// parsed as a type specifier rather than a recursive expression.
		if opName == "is" || opName == "as" {
			p.advance()
			typeSpec := p.parseTypeSpec()
			start := left.Span()
			span := diagnostics.Span{Start: start.Start, End: typeSpec.Span().End}
			if opName == "is" {
				left = ast.NewTypeCheck(p.id(), span, left, typeSpec)
			} else {
				left = ast.NewTypeCast(p.id(), span, left, typeSpec)
			}
			continue
		}

		p.advance()
		nextMin := prec + 1
		if rightAssociative[opName] {
			nextMin = prec
		}
		right := p.parseBinary(nextMin)
		span := diagnostics.Span{Start: left.Span().Start, End: right.Span().End}

		if opName == "|" {
			left = ast.NewUnion(p.id(), span, left, right)
		} else {
			left = ast.NewBinaryOp(p.id(), span, opName, left, right)
		}
		_ = opTok
	}
	return left
}

// peekOperator returns the current token's operator name if it begins a
// binary operator (including the keyword operators lexed as Keyword/Ident).
func (p *Parser) peekOperator() (lexer.Token, string, bool) {
	t := p.cur()
	switch t.Kind {
	case lexer.Operator:
		return t, t.Lexeme, true
	case lexer.Keyword:
		switch t.Lexeme {
		case "and", "or", "xor", "implies", "in", "contains", "div", "mod", "is", "as":
			return t, t.Lexeme, true
		}
	}
	return t, "", false
}

func (p *Parser) parseUnary() ast.Node {
	t := p.cur()
	if t.Kind == lexer.Operator && (t.Lexeme == "+" || t.Lexeme == "-") {
		p.advance()
		operand := p.parseUnary()
		span := diagnostics.Span{Start: t.Span.Start, End: operand.Span().End}
		return ast.NewUnaryOp(p.id(), span, t.Lexeme, operand)
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary term followed by any chain of `.seg`,
// `(args)`, and `[index]` postfix operators (spec.md §4.E precedence 12).
func (p *Parser) parsePostfix() ast.Node {
	left := p.parsePrimary()
	for {
		t := p.cur()
		switch {
		case t.Kind == lexer.Delimiter && t.Lexeme == ".":
			p.advance()
			left = p.parseDotSegment(left)
		case t.Kind == lexer.Delimiter && t.Lexeme == "[":
			p.advance()
			idx := p.ParseExpression()
			end := p.cur()
			p.expectDelimiter("]")
			span := diagnostics.Span{Start: left.Span().Start, End: end.Span.End}
			left = ast.NewIndex(p.id(), span, left, idx)
		default:
			return left
		}
	}
}

// parseDotSegment parses the `.name` or `.name(args)` following a dot.
func (p *Parser) parseDotSegment(base ast.Node) ast.Node {
	nameTok := p.cur()
	if nameTok.Kind != lexer.Ident && nameTok.Kind != lexer.Keyword {
		p.errorf(nameTok, diagnostics.CodeUnexpectedToken, "expected identifier after '.', got %q", nameTok.Lexeme)
		p.recover()
		return base
	}
	p.advance()

	if p.cur().Kind == lexer.Delimiter && p.cur().Lexeme == "(" {
		args, end := p.parseArgList(nameTok.Lexeme)
		span := diagnostics.Span{Start: base.Span().Start, End: end}
		return ast.NewMethodCall(p.id(), span, base, nameTok.Lexeme, args)
	}

	span := diagnostics.Span{Start: base.Span().Start, End: nameTok.Span.End}
	return ast.NewPath(p.id(), span, base, nameTok.Lexeme)
}

// parseArgList parses `(a, b, c)`, returning the parsed arguments and the
// end position of the closing paren. funcName tells it whether each
// argument should be parsed as a deferred Lambda body (spec.md §4.E: only
// the fixed ast.LambdaFunctions set accepts lambda-shaped arguments).
func (p *Parser) parseArgList(funcName string) ([]ast.Node, diagnostics.Position) {
	p.expectDelimiter("(")
	var args []ast.Node
	isLambda := ast.LambdaFunctions[funcName]
	for p.cur().Kind != lexer.Delimiter || p.cur().Lexeme != ")" {
		if p.atEOF() {
			break
		}
		argStart := p.cur()
		expr := p.ParseExpression()
		if isLambda {
			span := diagnostics.Span{Start: argStart.Span.Start, End: expr.Span().End}
			expr = ast.NewLambda(p.id(), span, "", expr)
		}
		args = append(args, expr)
		if p.cur().Kind == lexer.Delimiter && p.cur().Lexeme == "," {
			p.advance()
			continue
		}
		break
	}
	endTok := p.cur()
	p.expectDelimiter(")")
	return args, endTok.Span.End
}

func (p *Parser) parsePrimary() ast.Node {
	t := p.cur()
	switch {
	case t.Kind == lexer.LiteralNumber:
		p.advance()
		kind := "integer"
		if strings.Contains(t.Lexeme, ".") {
			kind = "decimal"
		}
		return ast.NewLiteral(p.id(), t.Span, kind, t.Lexeme)
	case t.Kind == lexer.LiteralQuantity:
		p.advance()
		return ast.NewLiteral(p.id(), t.Span, "quantity", t.Lexeme+"|"+t.Unit)
	case t.Kind == lexer.LiteralString:
		p.advance()
		return ast.NewLiteral(p.id(), t.Span, "string", t.Lexeme)
	case t.Kind == lexer.LiteralDate:
		p.advance()
		return ast.NewLiteral(p.id(), t.Span, "date", t.Lexeme)
	case t.Kind == lexer.LiteralDateTime:
		p.advance()
		return ast.NewLiteral(p.id(), t.Span, "datetime", t.Lexeme)
	case t.Kind == lexer.LiteralTime:
		p.advance()
		return ast.NewLiteral(p.id(), t.Span, "time", t.Lexeme)
	case t.Kind == lexer.Keyword && (t.Lexeme == "true" || t.Lexeme == "false"):
		p.advance()
		return ast.NewLiteral(p.id(), t.Span, "boolean", t.Lexeme)
	case t.Kind == lexer.Dollar:
		return p.parseDollarVariable()
	case t.Kind == lexer.Percent:
		return p.parsePercentVariable()
	case t.Kind == lexer.Delimiter && t.Lexeme == "(":
		p.advance()
		inner := p.ParseExpression()
		p.expectDelimiter(")")
		return inner
	case t.Kind == lexer.Delimiter && t.Lexeme == "{":
		// empty collection literal `{}`
		p.advance()
		end := p.cur()
		p.expectDelimiter("}")
		span := diagnostics.Span{Start: t.Span.Start, End: end.Span.End}
		return ast.NewFunctionCall(p.id(), span, "{}", nil)
	case t.Kind == lexer.Ident || t.Kind == lexer.Keyword:
		return p.parseIdentOrCall()
	default:
		p.errorf(t, diagnostics.CodeUnexpectedToken, "unexpected token %q", t.Lexeme)
		p.advance()
		return ast.NewIdentifier(p.id(), t.Span, t.Lexeme)
	}
}

func (p *Parser) parseDollarVariable() ast.Node {
	start := p.cur()
	p.advance() // '$'
	nameTok := p.cur()
	name := ""
	end := start.Span.End
	if nameTok.Kind == lexer.Ident || nameTok.Kind == lexer.Keyword {
		name = nameTok.Lexeme
		end = nameTok.Span.End
		p.advance()
	}
	span := diagnostics.Span{Start: start.Span.Start, End: end}
	return ast.NewVariable(p.id(), span, "$", name)
}

func (p *Parser) parsePercentVariable() ast.Node {
	start := p.cur()
	p.advance() // '%'
	nameTok := p.cur()
	name := ""
	end := start.Span.End
	switch nameTok.Kind {
	case lexer.Ident, lexer.Keyword:
		name = nameTok.Lexeme
		end = nameTok.Span.End
		p.advance()
	case lexer.LiteralString:
		name = nameTok.Lexeme
		end = nameTok.Span.End
		p.advance()
	}
	// %vs-X and %ext-X contain hyphens, which the lexer does not treat as
	// identifier characters; fold `name-rest` sequences back together.
	for p.cur().Kind == lexer.Operator && p.cur().Lexeme == "-" {
		p.advance()
		if p.cur().Kind == lexer.Ident || p.cur().Kind == lexer.Keyword {
			name += "-" + p.cur().Lexeme
			end = p.cur().Span.End
			p.advance()
		}
	}
	span := diagnostics.Span{Start: start.Span.Start, End: end}
	return ast.NewVariable(p.id(), span, "%", name)
}

func (p *Parser) parseIdentOrCall() ast.Node {
	nameTok := p.advance()
	if p.cur().Kind == lexer.Delimiter && p.cur().Lexeme == "(" {
		args, end := p.parseArgList(nameTok.Lexeme)
		span := diagnostics.Span{Start: nameTok.Span.Start, End: end}
		return ast.NewFunctionCall(p.id(), span, nameTok.Lexeme, args)
	}
	return ast.NewIdentifier(p.id(), nameTok.Span, nameTok.Lexeme)
}

// parseTypeSpec parses `Identifier` or `Namespace.Identifier` following
// `is`/`as`.
func (p *Parser) parseTypeSpec() *ast.TypeSpec {
	start := p.cur()
	first := ""
	if start.Kind == lexer.Ident || start.Kind == lexer.Keyword {
		first = start.Lexeme
		p.advance()
	} else {
		p.errorf(start, diagnostics.CodeExpectedToken, "expected type name, got %q", start.Lexeme)
		return ast.NewTypeSpec(p.id(), start.Span, "", "")
	}
	end := start.Span.End
	namespace, name := "", first
	if p.cur().Kind == lexer.Delimiter && p.cur().Lexeme == "." {
		p.advance()
		second := p.cur()
		if second.Kind == lexer.Ident || second.Kind == lexer.Keyword {
			namespace = first
			name = second.Lexeme
			end = second.Span.End
			p.advance()
		}
	}
	span := diagnostics.Span{Start: start.Span.Start, End: end}
	return ast.NewTypeSpec(p.id(), span, namespace, name)
}
