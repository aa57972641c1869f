// Package eval provides the FHIRPath expression evaluator.
package eval

import (
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/ast"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

// FuncImpl is the signature for function implementations.
type FuncImpl func(ctx *Context, input types.Collection, args []interface{}) (types.Collection, error)

// FuncDef defines a FHIRPath function.
type FuncDef struct {
	Name    string
	MinArgs int
	MaxArgs int
	Fn      FuncImpl
}

// FuncRegistry is an interface for function lookup.
type FuncRegistry interface {
	Get(name string) (FuncDef, bool)
}

// Evaluator walks an AST against a Context, implementing ast.Visitor. Each
// Visit* method returns either a types.Collection or an error, mirroring
// the teacher's antlr-visitor dispatch but over the hand-written ast
// package instead of a generated parse tree.
type Evaluator struct {
	ctx   *Context
	funcs FuncRegistry
}

// NewEvaluator creates a new evaluator with the given context and function registry.
func NewEvaluator(ctx *Context, funcs FuncRegistry) *Evaluator {
	return &Evaluator{ctx: ctx, funcs: funcs}
}

// Evaluate evaluates an AST node and returns the resulting collection.
func (e *Evaluator) Evaluate(n ast.Node) (types.Collection, error) {
	result := e.visit(n)
	if err, ok := result.(error); ok {
		return nil, err
	}
	if col, ok := result.(types.Collection); ok {
		return col, nil
	}
	return types.Collection{}, nil
}

// visit dispatches to the appropriate Visit* method via ast.Node.Accept and
// normalizes a nil node to an empty collection.
func (e *Evaluator) visit(n ast.Node) interface{} {
	if n == nil {
		return types.Collection{}
	}
	return n.Accept(e)
}

// visitCol visits n and returns its collection, or an error.
func (e *Evaluator) visitCol(n ast.Node) (types.Collection, error) {
	result := e.visit(n)
	if err, ok := result.(error); ok {
		return nil, err
	}
	if col, ok := result.(types.Collection); ok {
		return col, nil
	}
	return types.Collection{}, nil
}

// Literal visitors

// VisitLiteral evaluates a literal term of any kind.
func (e *Evaluator) VisitLiteral(n *ast.Literal) interface{} {
	switch n.Kind {
	case "null":
		return types.Collection{}
	case "boolean":
		return types.Collection{types.NewBoolean(n.Raw == "true")}
	case "string":
		return types.Collection{types.NewString(n.Raw)}
	case "number":
		if !strings.Contains(n.Raw, ".") {
			if i, err := strconv.ParseInt(n.Raw, 10, 64); err == nil {
				return types.Collection{types.NewInteger(i)}
			}
		}
		d, err := types.NewDecimal(n.Raw)
		if err != nil {
			return ParseError("invalid number: " + n.Raw)
		}
		return types.Collection{d}
	case "date":
		d, err := types.NewDate(n.Raw)
		if err != nil {
			return ParseError("invalid date: " + n.Raw)
		}
		return types.Collection{d}
	case "datetime":
		dt, err := types.NewDateTime(n.Raw)
		if err != nil {
			return ParseError("invalid datetime: " + n.Raw)
		}
		return types.Collection{dt}
	case "time":
		t, err := types.NewTime(n.Raw)
		if err != nil {
			return ParseError("invalid time: " + n.Raw)
		}
		return types.Collection{t}
	case "quantity":
		value, unit, _ := strings.Cut(n.Raw, "|")
		text := value
		if unit != "" {
			text = value + " '" + unit + "'"
		}
		q, err := types.NewQuantity(text)
		if err != nil {
			return ParseError("invalid quantity: " + text)
		}
		return types.Collection{q}
	}
	return types.Collection{}
}

// VisitIdentifier evaluates a bare member access against $this.
func (e *Evaluator) VisitIdentifier(n *ast.Identifier) interface{} {
	return e.navigateMember(e.ctx.This(), n.Name)
}

// VisitVariable evaluates $this/$index/$total and %variables.
func (e *Evaluator) VisitVariable(n *ast.Variable) interface{} {
	switch n.Sigil {
	case "$":
		switch n.Name {
		case "this":
			return e.ctx.This()
		case "index":
			return types.Collection{types.NewInteger(int64(e.ctx.Index()))}
		case "total":
			if t := e.ctx.Total(); t != nil {
				return types.Collection{t}
			}
			return types.Collection{}
		}
		return InvalidPathError("unknown special variable: $" + n.Name)
	case "%":
		if v, ok := e.ctx.GetVariable(n.Name); ok {
			return v
		}
		return InvalidPathError("undefined variable: %" + n.Name)
	}
	return types.Collection{}
}

// VisitPath evaluates base.segment.
func (e *Evaluator) VisitPath(n *ast.Path) interface{} {
	base, err := e.visitCol(n.Base)
	if err != nil {
		return err
	}
	return e.navigateMember(base, n.Segment)
}

// VisitIndex evaluates base[index-expr]. Per spec.md §4.J, the index
// expression must evaluate to a singleton integer; any other shape (a
// non-integer, or a multi-item collection) yields empty rather than an
// error, matching FHIRPath's empty-propagation rule for the indexer.
func (e *Evaluator) VisitIndex(n *ast.Index) interface{} {
	base, err := e.visitCol(n.Base)
	if err != nil {
		return err
	}
	idxCol, err := e.visitCol(n.Index)
	if err != nil {
		return err
	}
	if len(idxCol) != 1 {
		return types.Collection{}
	}
	idx, ok := idxCol[0].(types.Integer)
	if !ok {
		return types.Collection{}
	}
	i := int(idx.Value())
	if i < 0 || i >= len(base) {
		return types.Collection{}
	}
	return types.Collection{base[i]}
}

// VisitFilter evaluates the `[predicate]` surface form. The hand-written
// parser always emits ast.Index for bracket syntax (real FHIRPath
// indexers are strictly positional), so VisitFilter exists for
// completeness and for any programmatic desugaring that constructs it
// directly: it behaves like where(Predicate) over Base.
func (e *Evaluator) VisitFilter(n *ast.Filter) interface{} {
	base, err := e.visitCol(n.Base)
	if err != nil {
		return err
	}
	return e.filterByPredicate(base, n.Predicate)
}

// VisitUnion evaluates left | right, running both sides concurrently
// since they share no mutable state (spec.md's "async" semantics rendered
// as Go concurrency, grounded on the Future/Pool pattern used in the
// retrieval pack's Tangerg-lynx/future example).
func (e *Evaluator) VisitUnion(n *ast.Union) interface{} {
	var left, right types.Collection
	group, _ := errgroup.WithContext(e.ctx.Context())
	leftEval := &Evaluator{ctx: e.ctx.WithThis(e.ctx.This()), funcs: e.funcs}
	rightEval := &Evaluator{ctx: e.ctx.WithThis(e.ctx.This()), funcs: e.funcs}
	group.Go(func() error {
		col, err := leftEval.visitCol(n.Left)
		left = col
		return err
	})
	group.Go(func() error {
		col, err := rightEval.visitCol(n.Right)
		right = col
		return err
	})
	if err := group.Wait(); err != nil {
		return err
	}
	return Union(left, right)
}

// VisitFunctionCall evaluates a bare function invocation against $this.
func (e *Evaluator) VisitFunctionCall(n *ast.FunctionCall) interface{} {
	return e.callFunction(e.ctx.This(), n.Name, n.Args)
}

// VisitMethodCall evaluates base.func(args).
func (e *Evaluator) VisitMethodCall(n *ast.MethodCall) interface{} {
	base, err := e.visitCol(n.Base)
	if err != nil {
		return err
	}
	return e.callFunction(base, n.Name, n.Args)
}

// callFunction dispatches to a registered function, special-casing the
// lambda-taking operations that need per-element AST evaluation rather
// than eager argument evaluation (grounded on the teacher's
// VisitFunctionInvocation/evaluateWhere/evaluateExists/evaluateAll/
// evaluateSelect/evaluateIif).
func (e *Evaluator) callFunction(input types.Collection, name string, argExprs []ast.Node) interface{} {
	fn, ok := e.funcs.Get(name)
	if !ok {
		return FunctionNotFoundError(name)
	}

	argCount := len(argExprs)
	if argCount < fn.MinArgs {
		return InvalidArgumentsError(name, fn.MinArgs, argCount)
	}
	if fn.MaxArgs >= 0 && argCount > fn.MaxArgs {
		return InvalidArgumentsError(name, fn.MaxArgs, argCount)
	}

	switch name {
	case "where":
		if argCount > 0 {
			return e.filterByPredicate(input, lambdaBody(argExprs[0]))
		}
	case "exists":
		if argCount > 0 {
			return e.evaluateExists(input, lambdaBody(argExprs[0]))
		}
	case "all":
		if argCount > 0 {
			return e.evaluateAll(input, lambdaBody(argExprs[0]))
		}
	case "select":
		if argCount > 0 {
			return e.evaluateSelect(input, lambdaBody(argExprs[0]))
		}
	case "repeat":
		if argCount > 0 {
			return e.evaluateRepeat(input, lambdaBody(argExprs[0]))
		}
	case "sort":
		return e.evaluateSort(input, argExprs)
	case "aggregate":
		if argCount > 0 {
			return e.evaluateAggregate(input, argExprs)
		}
	case "is":
		if argCount > 0 {
			return e.evaluateIsFunction(input, argExprs[0])
		}
	case "as":
		if argCount > 0 {
			return e.evaluateAsFunction(input, argExprs[0])
		}
	case "ofType":
		if argCount > 0 {
			return e.evaluateOfType(input, argExprs[0])
		}
	case "iif":
		if argCount >= 2 {
			return e.evaluateIif(argExprs)
		}
	case "trace":
		return e.evaluateTrace(input, argExprs)
	case "defineVariable":
		return e.evaluateDefineVariable(input, argExprs)
	}

	args := make([]interface{}, argCount)
	for i, argExpr := range argExprs {
		result, err := e.visitCol(argExpr)
		if err != nil {
			return err
		}
		args[i] = result
	}

	result, err := fn.Fn(e.ctx, input, args)
	if err != nil {
		return err
	}
	return result
}

// lambdaBody unwraps an *ast.Lambda argument to its underlying body; the
// parser wraps every argument of a lambda-taking function this way, so
// lambda-special-cased call sites only ever see a Lambda node here.
func lambdaBody(n ast.Node) ast.Node {
	if l, ok := n.(*ast.Lambda); ok {
		return l.Body
	}
	return n
}

func (e *Evaluator) filterByPredicate(input types.Collection, predicate ast.Node) interface{} {
	if err := e.ctx.CheckCollectionSize(input); err != nil {
		return err
	}
	result := types.Collection{}
	for i, item := range input {
		if err := e.checkCancelEvery(i); err != nil {
			return err
		}
		itemCtx := e.ctx.WithThisIndex(types.Collection{item}, i)
		sub := &Evaluator{ctx: itemCtx, funcs: e.funcs}
		col, err := sub.visitCol(predicate)
		if err != nil {
			return err
		}
		if truthy(col) {
			result = append(result, item)
		}
	}
	return result
}

func (e *Evaluator) evaluateExists(input types.Collection, criteria ast.Node) interface{} {
	for i, item := range input {
		if err := e.checkCancelEvery(i); err != nil {
			return err
		}
		itemCtx := e.ctx.WithThisIndex(types.Collection{item}, i)
		sub := &Evaluator{ctx: itemCtx, funcs: e.funcs}
		col, err := sub.visitCol(criteria)
		if err != nil {
			return err
		}
		if truthy(col) {
			return types.Collection{types.NewBoolean(true)}
		}
	}
	return types.Collection{types.NewBoolean(false)}
}

func (e *Evaluator) evaluateAll(input types.Collection, criteria ast.Node) interface{} {
	if input.Empty() {
		return types.Collection{types.NewBoolean(true)}
	}
	for i, item := range input {
		if err := e.checkCancelEvery(i); err != nil {
			return err
		}
		itemCtx := e.ctx.WithThisIndex(types.Collection{item}, i)
		sub := &Evaluator{ctx: itemCtx, funcs: e.funcs}
		col, err := sub.visitCol(criteria)
		if err != nil {
			return err
		}
		if !truthy(col) {
			return types.Collection{types.NewBoolean(false)}
		}
	}
	return types.Collection{types.NewBoolean(true)}
}

func (e *Evaluator) evaluateSelect(input types.Collection, projection ast.Node) interface{} {
	if err := e.ctx.CheckCollectionSize(input); err != nil {
		return err
	}
	result := types.Collection{}
	for i, item := range input {
		if err := e.checkCancelEvery(i); err != nil {
			return err
		}
		itemCtx := e.ctx.WithThisIndex(types.Collection{item}, i)
		sub := &Evaluator{ctx: itemCtx, funcs: e.funcs}
		col, err := sub.visitCol(projection)
		if err != nil {
			return err
		}
		result = append(result, col...)
		if err := e.ctx.CheckCollectionSize(result); err != nil {
			return err
		}
	}
	return result
}

// evaluateRepeat implements repeat(projection): repeatedly apply
// projection to the frontier and union the results until a fixed point,
// guarding against cycles via a maxDepth limit (spec.md §6
// context-config.max-depth).
func (e *Evaluator) evaluateRepeat(input types.Collection, projection ast.Node) interface{} {
	result := types.Collection{}
	frontier := input
	maxDepth := e.ctx.GetLimit("maxDepth")
	if maxDepth <= 0 {
		maxDepth = 1000
	}
	for depth := 0; len(frontier) > 0 && depth < maxDepth; depth++ {
		next := types.Collection{}
		for i, item := range frontier {
			if err := e.checkCancelEvery(i); err != nil {
				return err
			}
			itemCtx := e.ctx.WithThisIndex(types.Collection{item}, i)
			sub := &Evaluator{ctx: itemCtx, funcs: e.funcs}
			col, err := sub.visitCol(projection)
			if err != nil {
				return err
			}
			next = append(next, col...)
		}
		result = result.Union(next)
		frontier = next
	}
	return result
}

// evaluateAggregate implements aggregate(aggregator [, init]).
func (e *Evaluator) evaluateAggregate(input types.Collection, argExprs []ast.Node) interface{} {
	aggregator := lambdaBody(argExprs[0])
	var total types.Value
	if len(argExprs) > 1 {
		initCol, err := e.visitCol(argExprs[1])
		if err != nil {
			return err
		}
		if !initCol.Empty() {
			total = initCol[0]
		}
	}
	for i, item := range input {
		if err := e.checkCancelEvery(i); err != nil {
			return err
		}
		itemCtx := e.ctx.WithThisIndex(types.Collection{item}, i).WithTotal(total)
		sub := &Evaluator{ctx: itemCtx, funcs: e.funcs}
		col, err := sub.visitCol(aggregator)
		if err != nil {
			return err
		}
		if !col.Empty() {
			total = col[0]
		}
	}
	if total == nil {
		return types.Collection{}
	}
	return types.Collection{total}
}

// evaluateSort implements sort([criteria...]) with a stable insertion
// ordering by repeated LessThan comparisons; with no arguments it sorts
// by natural value ordering.
func (e *Evaluator) evaluateSort(input types.Collection, argExprs []ast.Node) interface{} {
	items := make(types.Collection, len(input))
	copy(items, input)
	less := func(a, b types.Value) (bool, error) {
		if len(argExprs) == 0 {
			r, err := LessThan(a, b)
			if err != nil {
				return false, nil //nolint:nilerr // incomparable values sort as equal
			}
			return truthy(r), nil
		}
		for _, critExpr := range argExprs {
			body := lambdaBody(critExpr)
			aCtx := e.ctx.WithThis(types.Collection{a})
			bCtx := e.ctx.WithThis(types.Collection{b})
			aCol, err := (&Evaluator{ctx: aCtx, funcs: e.funcs}).visitCol(body)
			if err != nil {
				return false, err
			}
			bCol, err := (&Evaluator{ctx: bCtx, funcs: e.funcs}).visitCol(body)
			if err != nil {
				return false, err
			}
			if aCol.Empty() || bCol.Empty() {
				continue
			}
			r, err := LessThan(aCol[0], bCol[0])
			if err == nil && truthy(r) {
				return true, nil
			}
		}
		return false, nil
	}
	var sortErr error
	for i := 1; i < len(items) && sortErr == nil; i++ {
		for j := i; j > 0; j-- {
			lt, err := less(items[j], items[j-1])
			if err != nil {
				sortErr = err
				break
			}
			if !lt {
				break
			}
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
	if sortErr != nil {
		return sortErr
	}
	return items
}

func (e *Evaluator) evaluateIsFunction(input types.Collection, typeExpr ast.Node) interface{} {
	if input.Empty() {
		return types.Collection{}
	}
	if len(input) != 1 {
		return SingletonError(len(input))
	}
	typeName := typeSpecName(typeExpr)
	if typeName == "" {
		return InvalidArgumentsError("is", 1, 0)
	}
	return types.Collection{types.NewBoolean(e.typeMatches(input[0].Type(), typeName))}
}

func (e *Evaluator) evaluateAsFunction(input types.Collection, typeExpr ast.Node) interface{} {
	if input.Empty() {
		return types.Collection{}
	}
	if len(input) != 1 {
		return SingletonError(len(input))
	}
	typeName := typeSpecName(typeExpr)
	if typeName == "" {
		return InvalidArgumentsError("as", 1, 0)
	}
	if e.typeMatches(input[0].Type(), typeName) {
		return input
	}
	return types.Collection{}
}

func (e *Evaluator) evaluateOfType(input types.Collection, typeExpr ast.Node) interface{} {
	if input.Empty() {
		return types.Collection{}
	}
	typeName := typeSpecName(typeExpr)
	if typeName == "" {
		return InvalidArgumentsError("ofType", 1, 0)
	}
	result := types.Collection{}
	for _, item := range input {
		if e.typeMatches(item.Type(), typeName) {
			result = append(result, item)
		}
	}
	return result
}

// typeMatches resolves is/as/ofType compatibility, preferring a configured
// model.Provider's inheritance-aware IsTypeCompatible (spec.md §6 "is/as
// resolution" — choice-type and polymorphic checks a provider actually
// knows about) and falling back to the structural TypeMatches heuristic
// when no provider is configured or the provider errors.
func (e *Evaluator) typeMatches(actualType, typeName string) bool {
	if provider := e.ctx.ModelProvider(); provider != nil {
		if ok, err := provider.IsTypeCompatible(e.ctx.Context(), actualType, typeName); err == nil {
			return ok
		}
	}
	return TypeMatches(actualType, typeName)
}

func typeSpecName(n ast.Node) string {
	if ts, ok := n.(*ast.TypeSpec); ok {
		if ts.Namespace != "" {
			return ts.Namespace + "." + ts.Name
		}
		return ts.Name
	}
	return ast.Print(n)
}

// evaluateIif implements lazy two/three-arg conditional evaluation: only
// the matching branch is evaluated, so the other may reference members
// that don't exist without raising an error.
func (e *Evaluator) evaluateIif(argExprs []ast.Node) interface{} {
	criterionCol, err := e.visitCol(argExprs[0])
	if err != nil {
		return err
	}
	if truthy(criterionCol) {
		col, err := e.visitCol(argExprs[1])
		if err != nil {
			return err
		}
		return col
	}
	if len(argExprs) > 2 {
		col, err := e.visitCol(argExprs[2])
		if err != nil {
			return err
		}
		return col
	}
	return types.Collection{}
}

// evaluateTrace implements trace(name [, projection]): logs the named
// collection to the configured TraceSink and returns input unchanged.
func (e *Evaluator) evaluateTrace(input types.Collection, argExprs []ast.Node) interface{} {
	nameCol, err := e.visitCol(argExprs[0])
	if err != nil {
		return err
	}
	name := "trace"
	if !nameCol.Empty() {
		if s, ok := nameCol[0].(types.String); ok {
			name = s.Value()
		}
	}
	traced := input
	if len(argExprs) > 1 {
		col, err := e.visitCol(lambdaBody(argExprs[1]))
		if err != nil {
			return err
		}
		traced = col
	}
	if sink := e.ctx.TraceSink(); sink != nil {
		raw := make([][]byte, len(traced))
		for i, v := range traced {
			raw[i] = []byte(v.String())
		}
		sink.Trace(e.ctx.Context(), name, raw)
	}
	return input
}

// evaluateDefineVariable implements defineVariable(name [, expr]),
// binding name in the current scope so the binding is visible to the
// rest of the enclosing expression without leaking to siblings.
func (e *Evaluator) evaluateDefineVariable(input types.Collection, argExprs []ast.Node) interface{} {
	nameCol, err := e.visitCol(argExprs[0])
	if err != nil {
		return err
	}
	if nameCol.Empty() {
		return InvalidArgumentsError("defineVariable", 1, 0)
	}
	name, ok := nameCol[0].(types.String)
	if !ok {
		return TypeError("String", nameCol[0].Type(), "defineVariable")
	}
	if e.ctx.DefinedInScope(name.Value()) {
		return RedefineVariableError(name.Value())
	}
	value := input
	if len(argExprs) > 1 {
		col, err := e.visitCol(lambdaBody(argExprs[1]))
		if err != nil {
			return err
		}
		value = col
	}
	e.ctx.SetVariable(name.Value(), value)
	return input
}

func (e *Evaluator) checkCancelEvery(i int) error {
	if i%100 == 0 {
		return e.ctx.CheckCancellation()
	}
	return nil
}

func truthy(col types.Collection) bool {
	if col.Empty() {
		return false
	}
	b, ok := col[0].(types.Boolean)
	return ok && b.Bool()
}

// VisitBinaryOp evaluates all binary operators except `is`/`as` (modeled
// as TypeCheck/TypeCast) and `|` (modeled as Union).
func (e *Evaluator) VisitBinaryOp(n *ast.BinaryOp) interface{} {
	leftCol, err := e.visitCol(n.Left)
	if err != nil {
		return err
	}

	switch n.Op {
	case "and":
		rightCol, err := e.visitCol(n.Right)
		if err != nil {
			return err
		}
		return And(leftCol, rightCol)
	case "or":
		rightCol, err := e.visitCol(n.Right)
		if err != nil {
			return err
		}
		return Or(leftCol, rightCol)
	case "xor":
		rightCol, err := e.visitCol(n.Right)
		if err != nil {
			return err
		}
		return Xor(leftCol, rightCol)
	case "implies":
		rightCol, err := e.visitCol(n.Right)
		if err != nil {
			return err
		}
		return Implies(leftCol, rightCol)
	case "&":
		rightCol, err := e.visitCol(n.Right)
		if err != nil {
			return err
		}
		return Concatenate(leftCol, rightCol)
	}

	rightCol, err := e.visitCol(n.Right)
	if err != nil {
		return err
	}

	switch n.Op {
	case "=":
		return Equal(leftCol, rightCol)
	case "!=":
		return NotEqual(leftCol, rightCol)
	case "~":
		return Equivalent(leftCol, rightCol)
	case "!~":
		return NotEquivalent(leftCol, rightCol)
	case "in":
		return In(leftCol, rightCol)
	case "contains":
		return Contains(leftCol, rightCol)
	}

	if leftCol.Empty() || rightCol.Empty() {
		return types.Collection{}
	}
	if len(leftCol) != 1 || len(rightCol) != 1 {
		return SingletonError(len(leftCol) + len(rightCol))
	}

	var result types.Value
	switch n.Op {
	case "+":
		result, err = Add(leftCol[0], rightCol[0])
	case "-":
		result, err = Subtract(leftCol[0], rightCol[0])
	case "*":
		result, err = Multiply(leftCol[0], rightCol[0])
	case "/":
		result, err = Divide(leftCol[0], rightCol[0])
	case "div":
		result, err = IntegerDivide(leftCol[0], rightCol[0])
	case "mod":
		result, err = Modulo(leftCol[0], rightCol[0])
	case "<":
		col, cmpErr := LessThan(leftCol[0], rightCol[0])
		if cmpErr != nil {
			return cmpErr
		}
		return col
	case "<=":
		col, cmpErr := LessOrEqual(leftCol[0], rightCol[0])
		if cmpErr != nil {
			return cmpErr
		}
		return col
	case ">":
		col, cmpErr := GreaterThan(leftCol[0], rightCol[0])
		if cmpErr != nil {
			return cmpErr
		}
		return col
	case ">=":
		col, cmpErr := GreaterOrEqual(leftCol[0], rightCol[0])
		if cmpErr != nil {
			return cmpErr
		}
		return col
	default:
		return types.Collection{}
	}
	if err != nil {
		return err
	}
	return types.Collection{result}
}

// VisitUnaryOp evaluates prefix +expr/-expr.
func (e *Evaluator) VisitUnaryOp(n *ast.UnaryOp) interface{} {
	col, err := e.visitCol(n.Operand)
	if err != nil {
		return err
	}
	if col.Empty() {
		return col
	}
	if len(col) != 1 {
		return SingletonError(len(col))
	}
	if n.Op == "-" {
		negated, err := Negate(col[0])
		if err != nil {
			return err
		}
		return types.Collection{negated}
	}
	return col
}

// VisitTypeSpec evaluates a bare type specifier; it is never reached as a
// standalone expression, only as the Type operand of TypeCheck/TypeCast.
func (e *Evaluator) VisitTypeSpec(_ *ast.TypeSpec) interface{} {
	return types.Collection{}
}

// VisitTypeCheck evaluates `expr is Type`.
func (e *Evaluator) VisitTypeCheck(n *ast.TypeCheck) interface{} {
	col, err := e.visitCol(n.Expr)
	if err != nil {
		return err
	}
	if col.Empty() {
		return types.Collection{}
	}
	if len(col) != 1 {
		return SingletonError(len(col))
	}
	return types.Collection{types.NewBoolean(e.typeMatches(col[0].Type(), typeSpecName(n.Type)))}
}

// VisitTypeCast evaluates `expr as Type`.
func (e *Evaluator) VisitTypeCast(n *ast.TypeCast) interface{} {
	col, err := e.visitCol(n.Expr)
	if err != nil {
		return err
	}
	if col.Empty() {
		return types.Collection{}
	}
	if len(col) != 1 {
		return SingletonError(len(col))
	}
	if e.typeMatches(col[0].Type(), typeSpecName(n.Type)) {
		return col
	}
	return types.Collection{}
}

// VisitLambda is only reached if a Lambda node is visited directly rather
// than unwrapped by lambdaBody; evaluate its body against the current
// scope as a fallback.
func (e *Evaluator) VisitLambda(n *ast.Lambda) interface{} {
	return e.visit(n.Body)
}

// VisitConditional evaluates a first-class Conditional node, used by
// tooling that builds ASTs programmatically rather than through the
// parser (the parser itself represents iif() as a FunctionCall).
func (e *Evaluator) VisitConditional(n *ast.Conditional) interface{} {
	args := []ast.Node{n.Cond, n.Then}
	if n.Else != nil {
		args = append(args, n.Else)
	}
	return e.evaluateIif(args)
}

// nonDomainResources contains FHIR resources that inherit directly from
// Resource, not from DomainResource.
var nonDomainResources = map[string]bool{
	"Bundle": true, "Binary": true, "Parameters": true,
}

// IsDomainResource reports whether resourceType inherits from
// DomainResource rather than directly from Resource.
func IsDomainResource(resourceType string) bool {
	return !nonDomainResources[resourceType]
}

// IsSubtypeOf reports whether actualType is a subtype of (or equal to)
// baseType within the FHIR Resource/DomainResource hierarchy.
func IsSubtypeOf(actualType, baseType string) bool {
	if actualType == baseType || strings.EqualFold(actualType, baseType) {
		return true
	}
	if strings.EqualFold(baseType, "Resource") {
		return isPossibleResourceType(actualType)
	}
	if strings.EqualFold(baseType, "DomainResource") {
		return isPossibleResourceType(actualType) && IsDomainResource(actualType)
	}
	return false
}

func isPossibleResourceType(typeName string) bool {
	if typeName == "" {
		return false
	}
	primitiveTypes := map[string]bool{
		"Boolean": true, "String": true, "Integer": true, "Decimal": true,
		"Date": true, "DateTime": true, "Time": true, "Quantity": true, "Object": true,
	}
	if primitiveTypes[typeName] {
		return false
	}
	return typeName[0] >= 'A' && typeName[0] <= 'Z'
}

// TypeMatches reports whether actualType satisfies a requested typeName,
// handling case-insensitivity, Resource/DomainResource inheritance, and
// the FHIR-primitive-to-FHIRPath-System-type aliasing plus System./FHIR.
// namespace prefixes.
func TypeMatches(actualType, typeName string) bool {
	if actualType == typeName {
		return true
	}
	actualLower := strings.ToLower(actualType)
	typeNameLower := strings.ToLower(typeName)
	if actualLower == typeNameLower {
		return true
	}
	if IsSubtypeOf(actualType, typeName) {
		return true
	}

	fhirToFHIRPath := map[string]string{
		"boolean": "Boolean", "string": "String", "integer": "Integer", "decimal": "Decimal",
		"date": "Date", "datetime": "DateTime", "time": "Time", "instant": "DateTime",
		"uri": "String", "url": "String", "canonical": "String", "base64binary": "String",
		"code": "String", "id": "String", "markdown": "String", "oid": "String", "uuid": "String",
		"positiveint": "Integer", "unsignedint": "Integer", "integer64": "Integer",
		"quantity": "Quantity", "simplequantity": "Quantity", "age": "Quantity", "count": "Quantity",
		"distance": "Quantity", "duration": "Quantity", "money": "Quantity",
	}
	if fhirPathType, ok := fhirToFHIRPath[typeNameLower]; ok && actualType == fhirPathType {
		return true
	}
	if fhirPathType, ok := fhirToFHIRPath[actualLower]; ok && strings.EqualFold(fhirPathType, typeName) {
		return true
	}
	if strings.HasPrefix(typeNameLower, "system.") {
		return strings.EqualFold(actualType, typeName[7:])
	}
	if strings.HasPrefix(typeNameLower, "fhir.") {
		return strings.EqualFold(actualType, typeName[5:])
	}
	return false
}

// polymorphicTypeSuffixes are the FHIR type suffixes tried, in order,
// when resolving a `value[x]`-shaped element name like "value".
var polymorphicTypeSuffixes = []string{
	"Boolean", "Integer", "Integer64", "Decimal", "String", "Code", "Id", "Uri", "Url", "Canonical",
	"Base64Binary", "Instant", "Date", "DateTime", "Time", "Oid", "Uuid", "Markdown", "PositiveInt", "UnsignedInt",
	"Quantity", "CodeableConcept", "Coding", "Range", "Period", "Ratio", "RatioRange",
	"Identifier", "Reference", "Attachment", "HumanName", "Address", "ContactPoint",
	"Timing", "Signature", "Annotation", "SampledData", "Age", "Distance", "Duration",
	"Count", "Money", "MoneyQuantity", "SimpleQuantity",
	"Meta", "Dosage", "ContactDetail", "Contributor", "DataRequirement", "Expression",
	"ParameterDefinition", "RelatedArtifact", "TriggerDefinition", "UsageContext",
}

// navigateMember navigates to a member of every Resource in input,
// resolving FHIR's value[x] polymorphic elements automatically when a
// direct field access misses.
func (e *Evaluator) navigateMember(input types.Collection, name string) types.Collection {
	result := types.Collection{}
	for _, item := range input {
		obj, ok := item.(*types.Resource)
		if !ok {
			continue
		}
		if IsSubtypeOf(obj.Type(), name) {
			result = append(result, obj)
			continue
		}
		if children := obj.GetCollection(name); len(children) > 0 {
			result = append(result, children...)
			continue
		}
		result = append(result, e.resolvePolymorphicField(obj, name)...)
	}
	return result
}

func (e *Evaluator) resolvePolymorphicField(obj *types.Resource, name string) types.Collection {
	if provider := e.ctx.ModelProvider(); provider != nil {
		basePath := name
		if obj.Type() != "" {
			basePath = obj.Type() + "." + name
		}
		for _, key := range obj.Keys() {
			if !strings.HasPrefix(key, name) || key == name {
				continue
			}
			if choice, err := provider.ResolveChoice(e.ctx.Context(), basePath, key); err == nil && choice != nil {
				return obj.GetCollection(key)
			}
		}
	}
	for _, suffix := range polymorphicTypeSuffixes {
		if children := obj.GetCollection(name + suffix); len(children) > 0 {
			return children
		}
	}
	return types.Collection{}
}
