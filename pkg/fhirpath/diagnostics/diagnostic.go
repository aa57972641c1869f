// Package diagnostics defines source spans and the non-fatal diagnostic
// records produced by the lexer, parser, and static analyzer.
package diagnostics

import "fmt"

// Position is a single point in source text, both as a byte offset and as
// a human-facing line/column pair (1-origin).
type Position struct {
	Offset int
	Line   int
	Column int
}

// Span is a half-open [Start, End) range over the source text.
type Span struct {
	Start Position
	End   Position
}

// String renders the span as "line:col" or "line:col-line:col".
func (s Span) String() string {
	if s.Start.Line == s.End.Line && s.Start.Column == s.End.Column {
		return fmt.Sprintf("%d:%d", s.Start.Line, s.Start.Column)
	}
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Severity classifies how serious a diagnostic is.
type Severity int

const (
	// Hint is the lowest severity, a cosmetic observation.
	Hint Severity = iota
	// Info is informational, no action required.
	Info
	// Warning flags a likely but not certain problem.
	Warning
	// Error is a hard problem; the surrounding pass could not fully resolve the node.
	Error
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case Hint:
		return "hint"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Code is a stable, namespaced diagnostic identifier (e.g. "parse/unexpected-token").
type Code string

// Stable diagnostic codes. Matches the wire error taxonomy: parse/*, type/*,
// arity/*, eval/*, plus the lexer and analyzer specific families below.
const (
	CodeUnclosedString   Code = "lex/unclosed-string"
	CodeInvalidNumber    Code = "lex/invalid-number"
	CodeInvalidDateTime  Code = "lex/invalid-date-time"
	CodeInvalidEscape    Code = "lex/invalid-escape"
	CodeUnexpectedToken  Code = "parse/unexpected-token"
	CodeExpectedToken    Code = "parse/expected-token"
	CodeUnknownIdentifier Code = "type/unknown-identifier"
	CodeUnknownFunction  Code = "unknown-function"
	CodeUnknownProperty  Code = "unknown-property"
	CodeArityMismatch    Code = "arity/mismatch"
	CodeTypeMismatch     Code = "type/mismatch"
	CodeAmbiguousChoice  Code = "type/ambiguous-choice"
	CodeRedefineVariable Code = "eval/redefine-variable"
)

// RelatedLocation points to a secondary span relevant to a diagnostic,
// e.g. the earlier definition in a "redefine-variable" report.
type RelatedLocation struct {
	Span    Span
	Message string
}

// Diagnostic is a single non-fatal problem surfaced by a pass. Passes
// collect many of these rather than failing on the first one, per the
// "diagnostics vs hard error" split.
type Diagnostic struct {
	Code       Code
	Severity   Severity
	Message    string
	Span       Span
	Suggestion string
	Related    []RelatedLocation
}

// Error implements the error interface so a Diagnostic can be returned or
// wrapped like any other Go error, even though passes normally collect a
// slice of them instead of failing outright.
func (d *Diagnostic) Error() string {
	if d.Suggestion != "" {
		return fmt.Sprintf("%s: %s [%s] (%s) — %s", d.Span, d.Message, d.Code, d.Severity, d.Suggestion)
	}
	return fmt.Sprintf("%s: %s [%s] (%s)", d.Span, d.Message, d.Code, d.Severity)
}

// New builds a Diagnostic with Error severity.
func New(code Code, span Span, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Code:     code,
		Severity: Error,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	}
}

// WithSuggestion returns a copy of the diagnostic carrying a suggestion string.
func (d *Diagnostic) WithSuggestion(suggestion string) *Diagnostic {
	clone := *d
	clone.Suggestion = suggestion
	return &clone
}

// WithSeverity returns a copy of the diagnostic with a different severity.
func (d *Diagnostic) WithSeverity(sev Severity) *Diagnostic {
	clone := *d
	clone.Severity = sev
	return &clone
}

// HasErrors reports whether any diagnostic in the slice is Error severity.
func HasErrors(diags []*Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}
