// Package analyzer implements the static analysis pass (spec.md §4.G):
// it walks a parsed AST with a type scope chain mirroring the evaluator's
// runtime scope, annotating each node with an inferred type/cardinality
// and reporting unknown identifiers, unknown functions, arity mismatches,
// type mismatches, and ambiguous choice-type navigation as diagnostics
// with edit-distance suggestions.
//
// Grounded on the teacher's ANTLR-visitor dispatch pattern
// (pkg/fhirpath/eval/evaluator.go before its rewrite) generalized to a
// read-only ast.Visitor, and on
// _examples/original_source/crates/fhirpath-analyzer/src/core/type_system.rs
// for the confidence-level shape (SPEC_FULL.md §6.G, §7).
package analyzer

import (
	"context"
	"fmt"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/ast"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/diagnostics"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/funcs"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/model"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/registry"
)

// Confidence reports how much the analyzer trusts an inferred type.
type Confidence int

const (
	// Low is attached when a base type could not be resolved at all, so
	// the inference is a guess rather than a schema-backed fact.
	Low Confidence = iota
	// Medium is attached when the type came from structural matching
	// (e.g. a known FHIRPath System type) rather than a model-provider
	// lookup.
	Medium
	// High is attached when a model.Provider confirmed the type.
	High
)

// String renders the confidence level's name.
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// TypeResult is the annotation attached to one AST node: its inferred
// type (nil if unknown), cardinality, and confidence.
type TypeResult struct {
	Type        *model.TypeInfo
	Cardinality model.Cardinality
	Confidence  Confidence
}

// unknown is the zero-confidence result used whenever inference can't
// proceed — e.g. navigating off an already-unknown focus.
var unknown = TypeResult{Confidence: Low, Cardinality: model.Cardinality{Min: 0, Max: -1}}

// AnalysisReport is the result of one Analyze call: per-node annotations
// plus every diagnostic collected along the way, per spec.md §4.G/§7.
type AnalysisReport struct {
	Annotations map[ast.NodeID]TypeResult
	Diagnostics []*diagnostics.Diagnostic
}

// HasErrors reports whether the report contains any Error-severity diagnostic.
func (r *AnalysisReport) HasErrors() bool {
	return diagnostics.HasErrors(r.Diagnostics)
}

// frame is one link in the type scope chain, mirroring eval.Context's
// runtime parent chain but carrying types instead of values.
type frame struct {
	parent *frame
	focus  TypeResult
	this   TypeResult
	total  *TypeResult
	vars   map[string]TypeResult
}

func (f *frame) child() *frame {
	return &frame{parent: f, focus: f.focus, this: f.this, total: f.total}
}

func (f *frame) lookupVar(name string) (TypeResult, bool) {
	for s := f; s != nil; s = s.parent {
		if s.vars != nil {
			if r, ok := s.vars[name]; ok {
				return r, true
			}
		}
	}
	return TypeResult{}, false
}

func (f *frame) setVar(name string, r TypeResult) {
	if f.vars == nil {
		f.vars = make(map[string]TypeResult)
	}
	f.vars[name] = r
}

// Analyzer walks an ast.Node tree, implementing ast.Visitor with TypeResult
// as its uniform return value (type-asserted out of the `any` Accept
// returns, the same pattern the evaluator uses for types.Collection).
type Analyzer struct {
	goCtx    context.Context
	provider model.Provider
	meta     *registry.Registry
	report   *AnalysisReport
	scope    *frame
}

// Analyze annotates tree with inferred types/cardinalities and collects
// diagnostics, starting from an optional root resource type. provider may
// be nil, in which case every inference that depends on schema lookups
// (property navigation, type names) collapses to Low confidence
// (spec.md §4.G "unknown base types yield Low").
func Analyze(ctx context.Context, tree ast.Node, rootType string, provider model.Provider) *AnalysisReport {
	if ctx == nil {
		ctx = context.Background()
	}
	a := &Analyzer{
		goCtx:    ctx,
		provider: provider,
		meta:     registry.Global(),
		report: &AnalysisReport{
			Annotations: make(map[ast.NodeID]TypeResult),
		},
	}
	root := unknown
	if rootType != "" {
		root = a.resolveTypeName(rootType)
	}
	a.scope = &frame{focus: root, this: root}
	a.visit(tree)
	return a.report
}

func (a *Analyzer) resolveTypeName(name string) TypeResult {
	if a.provider == nil {
		return unknown
	}
	t, err := a.provider.GetType(a.goCtx, name)
	if err != nil || t == nil {
		return unknown
	}
	return TypeResult{Type: t, Cardinality: model.Cardinality{Min: 1, Max: 1}, Confidence: High}
}

// visit dispatches n through Accept and records the resulting annotation,
// returning it for the caller's own use (e.g. a parent Path node reading
// its Base's inferred type).
func (a *Analyzer) visit(n ast.Node) TypeResult {
	if n == nil {
		return unknown
	}
	res, _ := n.Accept(a).(TypeResult)
	a.report.Annotations[n.ID()] = res
	return res
}

func (a *Analyzer) addDiag(d *diagnostics.Diagnostic) {
	a.report.Diagnostics = append(a.report.Diagnostics, d)
}

// VisitLiteral implements ast.Visitor: a literal's type is exact, never
// partial, so it's always High confidence.
func (a *Analyzer) VisitLiteral(n *ast.Literal) any {
	name := literalTypeName(n.Kind)
	return TypeResult{
		Type:        &model.TypeInfo{Namespace: "System", Name: name},
		Cardinality: model.Cardinality{Min: 1, Max: 1},
		Confidence:  High,
	}
}

func literalTypeName(kind string) string {
	switch kind {
	case "integer":
		return "Integer"
	case "decimal":
		return "Decimal"
	case "quantity":
		return "Quantity"
	case "string":
		return "String"
	case "boolean":
		return "Boolean"
	case "date":
		return "Date"
	case "datetime":
		return "DateTime"
	case "time":
		return "Time"
	default:
		return "Any"
	}
}

// VisitIdentifier implements ast.Visitor (spec.md §4.G):
// resource type at root if the model provider confirms it, else a
// property of the current focus, else an unknown-identifier diagnostic.
func (a *Analyzer) VisitIdentifier(n *ast.Identifier) any {
	focus := a.scope.focus

	if a.provider != nil {
		if ok, err := a.provider.IsResourceType(a.goCtx, n.Name); err == nil && ok {
			t, _ := a.provider.GetType(a.goCtx, n.Name)
			if t != nil {
				return TypeResult{Type: t, Cardinality: model.Cardinality{Min: 1, Max: 1}, Confidence: High}
			}
		}
	}

	if focus.Type == nil {
		// Focus itself unknown: can't confirm or refute the property, stay Low.
		return unknown
	}

	if a.provider != nil {
		propType, card, found, err := a.provider.GetPropertyType(a.goCtx, focus.Type.Name, n.Name)
		if err == nil && found {
			return TypeResult{Type: propType, Cardinality: card, Confidence: High}
		}
		if err == nil {
			// Confirmed absent: report with a "did you mean" suggestion.
			suggestion := a.suggestProperty(focus.Type.Name, n.Name)
			d := diagnostics.New(diagnostics.CodeUnknownProperty, n.Span(),
				"unknown property %q on type %s", n.Name, focus.Type.QualifiedName())
			if suggestion != "" {
				d = d.WithSuggestion("did you mean `" + suggestion + "`?")
			}
			a.addDiag(d)
			return unknown
		}
	}

	// No provider, or provider couldn't answer: can't distinguish a typo
	// from a legitimately dynamic property, so this stays a Medium-confidence
	// structural guess rather than a hard diagnostic.
	return TypeResult{Confidence: Medium, Cardinality: model.Cardinality{Min: 0, Max: -1}}
}

func (a *Analyzer) suggestProperty(parentType, typo string) string {
	enumerator, ok := a.provider.(model.PropertyEnumerator)
	if !ok {
		return ""
	}
	names, err := enumerator.PropertyNames(a.goCtx, parentType)
	if err != nil || len(names) == 0 {
		return ""
	}
	return closestMatch(typo, names)
}

// VisitVariable implements ast.Visitor: resolves $this/$index/$total,
// built-in %resource/%context, synthesized %vs-*/%ext-*, and bound
// user variables via the scope chain (spec.md §4.J).
func (a *Analyzer) VisitVariable(n *ast.Variable) any {
	if n.Sigil == "$" {
		switch n.Name {
		case "this":
			return a.scope.this
		case "index":
			return TypeResult{Type: &model.TypeInfo{Namespace: "System", Name: "Integer"}, Cardinality: model.Cardinality{Min: 1, Max: 1}, Confidence: High}
		case "total":
			if a.scope.total != nil {
				return *a.scope.total
			}
			return unknown
		}
		return unknown
	}

	switch n.Name {
	case "resource", "context":
		return a.scope.focus
	}
	if len(n.Name) > 3 && (n.Name[:3] == "vs-" || n.Name[:4] == "ext-") {
		return TypeResult{Type: &model.TypeInfo{Namespace: "System", Name: "String"}, Cardinality: model.Cardinality{Min: 1, Max: 1}, Confidence: High}
	}
	if r, ok := a.scope.lookupVar(n.Name); ok {
		return r
	}
	a.addDiag(diagnostics.New(diagnostics.CodeUnknownIdentifier, n.Span(), "undefined variable %%%s", n.Name))
	return unknown
}

// VisitPath implements ast.Visitor: property lookup via the model
// provider against Base's inferred type, resolving `value[x]` choices
// and collapsing to a union when more than one profile applies.
func (a *Analyzer) VisitPath(n *ast.Path) any {
	baseResult := a.visit(n.Base)
	if baseResult.Type == nil {
		return unknown
	}

	if a.provider != nil {
		if choice, err := a.provider.ResolveChoice(a.goCtx, baseResult.Type.Name+"."+n.Segment, n.Segment); err == nil && choice != nil {
			return TypeResult{Type: &choice.ConcreteType, Cardinality: model.Cardinality{Min: 0, Max: 1}, Confidence: High}
		}
		propType, card, found, err := a.provider.GetPropertyType(a.goCtx, baseResult.Type.Name, n.Segment)
		if err == nil && found {
			return TypeResult{Type: propType, Cardinality: card, Confidence: High}
		}
		if err == nil {
			suggestion := a.suggestProperty(baseResult.Type.Name, n.Segment)
			d := diagnostics.New(diagnostics.CodeUnknownProperty, n.Span(),
				"unknown property %q on type %s", n.Segment, baseResult.Type.QualifiedName())
			if suggestion != "" {
				d = d.WithSuggestion("did you mean `" + suggestion + "`?")
			}
			a.addDiag(d)
			return unknown
		}
	}
	return TypeResult{Confidence: Medium, Cardinality: model.Cardinality{Min: 0, Max: -1}}
}

// VisitIndex implements ast.Visitor: `base[i]` always collapses to a
// singleton of Base's element type; the index expression is checked for
// an Integer-compatible type but otherwise doesn't affect the result type.
func (a *Analyzer) VisitIndex(n *ast.Index) any {
	baseResult := a.visit(n.Base)
	idxResult := a.visit(n.Index)
	if idxResult.Type != nil && idxResult.Type.Name != "Integer" {
		a.addDiag(diagnostics.New(diagnostics.CodeTypeMismatch, n.Index.Span(),
			"index expression must be an Integer, got %s", idxResult.Type.QualifiedName()))
	}
	return TypeResult{Type: baseResult.Type, Cardinality: model.Cardinality{Min: 0, Max: 1}, Confidence: baseResult.Confidence}
}

// VisitFilter implements ast.Visitor: `base[predicate]` surface sugar
// carries the same result shape as `where` (spec.md §4.J desugaring).
func (a *Analyzer) VisitFilter(n *ast.Filter) any {
	baseResult := a.visit(n.Base)
	a.withFocus(baseResult, baseResult, func() { a.visit(n.Predicate) })
	return TypeResult{Type: baseResult.Type, Cardinality: model.Cardinality{Min: 0, Max: -1}, Confidence: baseResult.Confidence}
}

// VisitUnion implements ast.Visitor: both sides are analyzed in
// independent child scopes (no variable leakage, spec.md §8.5) and the
// result type is the union's common type when both sides agree, else
// Medium confidence with no concrete type.
func (a *Analyzer) VisitUnion(n *ast.Union) any {
	leftScope, rightScope := a.scope.child(), a.scope.child()
	saved := a.scope
	a.scope = leftScope
	left := a.visit(n.Left)
	a.scope = rightScope
	right := a.visit(n.Right)
	a.scope = saved

	card := model.Cardinality{Min: 0, Max: -1}
	if left.Type != nil && right.Type != nil && left.Type.QualifiedName() == right.Type.QualifiedName() {
		return TypeResult{Type: left.Type, Cardinality: card, Confidence: minConfidence(left.Confidence, right.Confidence)}
	}
	return TypeResult{Cardinality: card, Confidence: Medium}
}

func minConfidence(a, b Confidence) Confidence {
	if a < b {
		return a
	}
	return b
}

// VisitFunctionCall implements ast.Visitor: signature match against the
// funcs/registry packages; lambda-typed arguments are checked with a
// fresh scope where $this is the focus's element type.
func (a *Analyzer) VisitFunctionCall(n *ast.FunctionCall) any {
	return a.analyzeCall(n.Name, n.Args, n.Span(), a.scope.focus)
}

// VisitMethodCall implements ast.Visitor: `base.name(args)` — Base
// becomes the call's implicit focus.
func (a *Analyzer) VisitMethodCall(n *ast.MethodCall) any {
	baseResult := a.visit(n.Base)
	return a.analyzeCall(n.Name, n.Args, n.Span(), baseResult)
}

func (a *Analyzer) analyzeCall(name string, args []ast.Node, span diagnostics.Span, focus TypeResult) TypeResult {
	def, ok := funcs.Get(name)
	if !ok {
		suggestion := closestMatch(name, funcs.List())
		d := diagnostics.New(diagnostics.CodeUnknownFunction, span, "unknown function %q", name)
		if suggestion != "" {
			d = d.WithSuggestion("did you mean `" + suggestion + "`?")
		}
		a.addDiag(d)
		for _, arg := range args {
			a.visit(arg)
		}
		return unknown
	}

	if len(args) < def.MinArgs || (def.MaxArgs >= 0 && len(args) > def.MaxArgs) {
		a.addDiag(diagnostics.New(diagnostics.CodeArityMismatch, span,
			"function %q takes %s, got %d", name, arityDescription(def.MinArgs, def.MaxArgs), len(args)))
	}

	var argResults []TypeResult
	for i, arg := range args {
		isLambda := a.meta.IsLambda(name, i) || (ast.LambdaFunctions[name] && i == 0)
		if isLambda {
			a.withFocus(focus, focus, func() { argResults = append(argResults, a.visit(arg)) })
			continue
		}
		argResults = append(argResults, a.visit(arg))
	}

	if name == "defineVariable" {
		a.bindDefinedVariable(args, argResults, focus)
	}

	return a.resultTypeForFunction(name, focus)
}

// bindDefinedVariable records the %name introduced by defineVariable('name',
// expr?) into the current scope frame so later siblings in the enclosing
// expression resolve it (spec.md §9 "defineVariable redefinition check";
// SPEC_FULL.md §7). The evaluator binds the same way at runtime via
// Context.SetVariable on the current frame.
func (a *Analyzer) bindDefinedVariable(args []ast.Node, argResults []TypeResult, focus TypeResult) {
	if len(args) == 0 {
		return
	}
	arg0 := args[0]
	if l, isLambda := arg0.(*ast.Lambda); isLambda {
		arg0 = l.Body
	}
	lit, ok := arg0.(*ast.Literal)
	if !ok || lit.Kind != "string" {
		return
	}
	if _, redefined := a.scope.vars[lit.Raw]; redefined {
		a.addDiag(diagnostics.New(diagnostics.CodeRedefineVariable, args[0].Span(),
			"variable %q is already defined in this scope", lit.Raw))
	}
	value := focus
	if len(argResults) > 1 {
		value = argResults[1]
	}
	a.scope.setVar(lit.Raw, value)
}

func arityDescription(min, max int) string {
	if max < 0 {
		return fmt.Sprintf("at least %d argument(s)", min)
	}
	if min == max {
		return fmt.Sprintf("exactly %d argument(s)", min)
	}
	return fmt.Sprintf("between %d and %d argument(s)", min, max)
}

// resultTypeForFunction gives the handful of functions whose result type
// is statically knowable (independent of a model provider) their exact
// type; everything else degrades to a Medium-confidence "some value"
// result, since most of this library's functions are generic over
// Collection and only a schema-aware evaluation can narrow them further.
func (a *Analyzer) resultTypeForFunction(name string, focus TypeResult) TypeResult {
	boolResult := TypeResult{Type: &model.TypeInfo{Namespace: "System", Name: "Boolean"}, Cardinality: model.Cardinality{Min: 1, Max: 1}, Confidence: High}
	intResult := TypeResult{Type: &model.TypeInfo{Namespace: "System", Name: "Integer"}, Cardinality: model.Cardinality{Min: 1, Max: 1}, Confidence: High}
	stringResult := TypeResult{Type: &model.TypeInfo{Namespace: "System", Name: "String"}, Cardinality: model.Cardinality{Min: 0, Max: 1}, Confidence: High}

	switch name {
	case "empty", "exists", "all", "allTrue", "anyTrue", "allFalse", "anyFalse",
		"subsetOf", "supersetOf", "isDistinct", "is", "hasValue", "conformsTo",
		"memberOf", "subsumes", "subsumedBy":
		return boolResult
	case "count":
		return intResult
	case "toString", "convertsToString":
		return stringResult
	case "where", "select", "repeat", "distinct", "combine", "union", "exclude",
		"intersect", "tail", "skip", "take", "children", "descendants", "trace":
		return TypeResult{Type: focus.Type, Cardinality: model.Cardinality{Min: 0, Max: -1}, Confidence: focus.Confidence}
	case "first", "last", "single", "ofType", "as":
		return TypeResult{Type: focus.Type, Cardinality: model.Cardinality{Min: 0, Max: 1}, Confidence: focus.Confidence}
	default:
		return TypeResult{Confidence: Medium, Cardinality: model.Cardinality{Min: 0, Max: -1}}
	}
}

// withFocus runs fn with a child scope whose focus/$this are replaced,
// used for lambda argument bodies ($this bound to the element type) and
// Filter's predicate.
func (a *Analyzer) withFocus(focus, this TypeResult, fn func()) {
	saved := a.scope
	child := a.scope.child()
	child.focus = focus
	child.this = this
	a.scope = child
	fn()
	a.scope = saved
}

// VisitBinaryOp implements ast.Visitor: a type-compatibility table per
// operator family, with numeric promotion (Integer, Decimal both
// confirmed numeric types promote the pair's result to Decimal).
func (a *Analyzer) VisitBinaryOp(n *ast.BinaryOp) any {
	left := a.visit(n.Left)
	right := a.visit(n.Right)

	switch n.Op {
	case "and", "or", "xor", "implies", "=", "!=", "~", "!~",
		"<", "<=", ">", ">=", "in", "contains":
		return TypeResult{Type: &model.TypeInfo{Namespace: "System", Name: "Boolean"}, Cardinality: model.Cardinality{Min: 0, Max: 1}, Confidence: High}
	case "|":
		return a.VisitUnion(&ast.Union{Left: n.Left, Right: n.Right})
	case "is":
		return TypeResult{Type: &model.TypeInfo{Namespace: "System", Name: "Boolean"}, Cardinality: model.Cardinality{Min: 1, Max: 1}, Confidence: High}
	case "as":
		return TypeResult{Type: right.Type, Cardinality: model.Cardinality{Min: 0, Max: 1}, Confidence: minConfidence(left.Confidence, right.Confidence)}
	case "+", "-", "*", "/", "div", "mod", "&":
		return a.numericResult(left, right)
	default:
		return TypeResult{Confidence: Medium, Cardinality: model.Cardinality{Min: 0, Max: 1}}
	}
}

func (a *Analyzer) numericResult(left, right TypeResult) TypeResult {
	if left.Type == nil || right.Type == nil {
		return TypeResult{Confidence: Medium, Cardinality: model.Cardinality{Min: 0, Max: 1}}
	}
	name := left.Type.Name
	if left.Type.Name == "Decimal" || right.Type.Name == "Decimal" {
		name = "Decimal"
	}
	if left.Type.Name == "String" || right.Type.Name == "String" {
		name = "String"
	}
	return TypeResult{
		Type:        &model.TypeInfo{Namespace: "System", Name: name},
		Cardinality: model.Cardinality{Min: 0, Max: 1},
		Confidence:  minConfidence(left.Confidence, right.Confidence),
	}
}

// VisitUnaryOp implements ast.Visitor: unary +/- preserve the operand's type.
func (a *Analyzer) VisitUnaryOp(n *ast.UnaryOp) any {
	return a.visit(n.Operand)
}

// VisitTypeSpec implements ast.Visitor: a bare type name carries no value
// type of its own; it's only meaningful as the Type operand of
// TypeCheck/TypeCast, which resolve it themselves.
func (a *Analyzer) VisitTypeSpec(n *ast.TypeSpec) any {
	return unknown
}

// VisitTypeCheck implements ast.Visitor: `expr is Type` → Boolean.
func (a *Analyzer) VisitTypeCheck(n *ast.TypeCheck) any {
	a.visit(n.Expr)
	return TypeResult{Type: &model.TypeInfo{Namespace: "System", Name: "Boolean"}, Cardinality: model.Cardinality{Min: 1, Max: 1}, Confidence: High}
}

// VisitTypeCast implements ast.Visitor: `expr as Type` narrows to Type,
// at Medium confidence unless the model provider confirms compatibility.
func (a *Analyzer) VisitTypeCast(n *ast.TypeCast) any {
	exprResult := a.visit(n.Expr)
	target := a.resolveTypeSpec(n.Type)
	confidence := Medium
	if a.provider != nil && exprResult.Type != nil && target.Type != nil {
		if ok, err := a.provider.IsTypeCompatible(a.goCtx, exprResult.Type.Name, target.Type.Name); err == nil {
			if !ok {
				a.addDiag(diagnostics.New(diagnostics.CodeTypeMismatch, n.Span(),
					"%s is never a %s", exprResult.Type.QualifiedName(), target.Type.QualifiedName()))
			}
			confidence = High
		}
	}
	return TypeResult{Type: target.Type, Cardinality: model.Cardinality{Min: 0, Max: 1}, Confidence: confidence}
}

func (a *Analyzer) resolveTypeSpec(t *ast.TypeSpec) TypeResult {
	if t == nil {
		return unknown
	}
	return a.resolveTypeName(t.Name)
}

// VisitLambda implements ast.Visitor: a lambda body is only analyzed in
// the child scope a lambda-taking function call sets up (see
// analyzeCall/withFocus); visited directly it just forwards to its body.
func (a *Analyzer) VisitLambda(n *ast.Lambda) any {
	return a.visit(n.Body)
}

// VisitConditional implements ast.Visitor: `iif(cond, then, else?)` —
// result type is the common type of Then/Else when they agree, else
// Medium confidence.
func (a *Analyzer) VisitConditional(n *ast.Conditional) any {
	a.visit(n.Cond)
	then := a.visit(n.Then)
	if n.Else == nil {
		return TypeResult{Type: then.Type, Cardinality: model.Cardinality{Min: 0, Max: 1}, Confidence: Medium}
	}
	els := a.visit(n.Else)
	if then.Type != nil && els.Type != nil && then.Type.QualifiedName() == els.Type.QualifiedName() {
		return TypeResult{Type: then.Type, Cardinality: model.Cardinality{Min: 0, Max: 1}, Confidence: minConfidence(then.Confidence, els.Confidence)}
	}
	return TypeResult{Confidence: Medium, Cardinality: model.Cardinality{Min: 0, Max: 1}}
}

var _ ast.Visitor = (*Analyzer)(nil)
