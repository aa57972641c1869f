// Package ast defines the FHIRPath abstract syntax tree and its visitor
// protocol. The tree is immutable after parsing; the analyzer attaches
// annotations keyed by NodeID rather than mutating nodes in place.
package ast

import "github.com/fhirpath-go/fhirpath/pkg/fhirpath/diagnostics"

// NodeID uniquely identifies a node within one parsed tree, stable across
// analyzer passes so annotations can be attached out-of-band.
type NodeID int

// Node is the common interface implemented by every AST node.
type Node interface {
	// ID returns the node's stable identifier within its tree.
	ID() NodeID
	// Span returns the node's source span.
	Span() diagnostics.Span
	// Accept dispatches to the appropriate Visitor method.
	Accept(v Visitor) any
}

// base carries the fields every node needs; embedded by each concrete type.
type base struct {
	id   NodeID
	span diagnostics.Span
}

// ID returns the node's stable identifier.
func (b base) ID() NodeID { return b.id }

// Span returns the node's source span.
func (b base) Span() diagnostics.Span { return b.span }

// Literal is a literal value (string, number, date, boolean, quantity, ...).
// Kind names the lexical literal kind (see lexer.TokenKind literal kinds);
// Raw is the literal's source text, kept so the evaluator can re-parse it
// precisely (e.g. retaining temporal precision).
type Literal struct {
	base
	Kind string
	Raw  string
}

// Accept implements Node.
func (n *Literal) Accept(v Visitor) any { return v.VisitLiteral(n) }

// Identifier is a bare name: a property, a root resource type, or a type name.
type Identifier struct {
	base
	Name string
}

// Accept implements Node.
func (n *Identifier) Accept(v Visitor) any { return v.VisitIdentifier(n) }

// Variable is `$this`, `$index`, `$total`, `%context`, `%resource`, or a
// user-defined `%name`. Sigil is "$" or "%".
type Variable struct {
	base
	Sigil string
	Name  string
}

// Accept implements Node.
func (n *Variable) Accept(v Visitor) any { return v.VisitVariable(n) }

// Path is dot navigation: Base.Segment.
type Path struct {
	base
	Base    Node
	Segment string
}

// Accept implements Node.
func (n *Path) Accept(v Visitor) any { return v.VisitPath(n) }

// Index is postfix `Base[Index]`.
type Index struct {
	base
	Base  Node
	Index Node
}

// Accept implements Node.
func (n *Index) Accept(v Visitor) any { return v.VisitIndex(n) }

// FunctionCall is a bare `name(args...)` invocation with no implicit focus
// binding beyond the ambient input collection.
type FunctionCall struct {
	base
	Name string
	Args []Node
}

// Accept implements Node.
func (n *FunctionCall) Accept(v Visitor) any { return v.VisitFunctionCall(n) }

// MethodCall is `base.name(args...)`; Base is evaluated first and becomes
// the implicit focus for Name.
type MethodCall struct {
	base
	Base Node
	Name string
	Args []Node
}

// Accept implements Node.
func (n *MethodCall) Accept(v Visitor) any { return v.VisitMethodCall(n) }

// BinaryOp is any infix operator: arithmetic, comparison, equality,
// logical, `&`, `in`, `contains`, `is`/`as` written infix, or `|` union.
type BinaryOp struct {
	base
	Op    string
	Left  Node
	Right Node
}

// Accept implements Node.
func (n *BinaryOp) Accept(v Visitor) any { return v.VisitBinaryOp(n) }

// UnaryOp is prefix `+` or `-`.
type UnaryOp struct {
	base
	Op      string
	Operand Node
}

// Accept implements Node.
func (n *UnaryOp) Accept(v Visitor) any { return v.VisitUnaryOp(n) }

// Filter is surface `base[predicate]` sugar for `base.where(predicate)`.
// Kept distinct from Index so the evaluator can desugar per spec §4.J
// rather than conflating it with positional indexing.
type Filter struct {
	base
	Base      Node
	Predicate Node
}

// Accept implements Node.
func (n *Filter) Accept(v Visitor) any { return v.VisitFilter(n) }

// Union is the `|` operator, kept distinct from BinaryOp because it has
// independent-child-context evaluation semantics (spec.md §4.J, §8.5).
type Union struct {
	base
	Left  Node
	Right Node
}

// Accept implements Node.
func (n *Union) Accept(v Visitor) any { return v.VisitUnion(n) }

// TypeSpec names a type, optionally namespaced (e.g. FHIR.Patient, System.String).
type TypeSpec struct {
	base
	Namespace string
	Name      string
}

// Accept implements Node.
func (n *TypeSpec) Accept(v Visitor) any { return v.VisitTypeSpec(n) }

// TypeCheck is the `is` operator/`is(Type)` form.
type TypeCheck struct {
	base
	Expr Node
	Type *TypeSpec
}

// Accept implements Node.
func (n *TypeCheck) Accept(v Visitor) any { return v.VisitTypeCheck(n) }

// TypeCast is the `as` operator/`as(Type)` form.
type TypeCast struct {
	base
	Expr Node
	Type *TypeSpec
}

// Accept implements Node.
func (n *TypeCast) Accept(v Visitor) any { return v.VisitTypeCast(n) }

// Lambda is a deferred expression body passed to a higher-order function
// argument position. It is never evaluated directly by the evaluator's
// generic dispatch — only lambda-taking operations consume it (spec.md §9).
type Lambda struct {
	base
	Param string // optional named parameter, usually empty ($this is implicit)
	Body  Node
}

// Accept implements Node.
func (n *Lambda) Accept(v Visitor) any { return v.VisitLambda(n) }

// Conditional is `iif(cond, then, else?)` surfaced as a dedicated node
// since it short-circuits rather than evaluating both branches.
type Conditional struct {
	base
	Cond Node
	Then Node
	Else Node // nil if omitted
}

// Accept implements Node.
func (n *Conditional) Accept(v Visitor) any { return v.VisitConditional(n) }

// NewLiteral constructs a Literal node.
func NewLiteral(id NodeID, span diagnostics.Span, kind, raw string) *Literal {
	return &Literal{base: base{id, span}, Kind: kind, Raw: raw}
}

// NewIdentifier constructs an Identifier node.
func NewIdentifier(id NodeID, span diagnostics.Span, name string) *Identifier {
	return &Identifier{base: base{id, span}, Name: name}
}

// NewVariable constructs a Variable node.
func NewVariable(id NodeID, span diagnostics.Span, sigil, name string) *Variable {
	return &Variable{base: base{id, span}, Sigil: sigil, Name: name}
}

// NewPath constructs a Path node.
func NewPath(id NodeID, span diagnostics.Span, b Node, segment string) *Path {
	return &Path{base: base{id, span}, Base: b, Segment: segment}
}

// NewIndex constructs an Index node.
func NewIndex(id NodeID, span diagnostics.Span, b, idx Node) *Index {
	return &Index{base: base{id, span}, Base: b, Index: idx}
}

// NewFunctionCall constructs a FunctionCall node.
func NewFunctionCall(id NodeID, span diagnostics.Span, name string, args []Node) *FunctionCall {
	return &FunctionCall{base: base{id, span}, Name: name, Args: args}
}

// NewMethodCall constructs a MethodCall node.
func NewMethodCall(id NodeID, span diagnostics.Span, b Node, name string, args []Node) *MethodCall {
	return &MethodCall{base: base{id, span}, Base: b, Name: name, Args: args}
}

// NewBinaryOp constructs a BinaryOp node.
func NewBinaryOp(id NodeID, span diagnostics.Span, op string, l, r Node) *BinaryOp {
	return &BinaryOp{base: base{id, span}, Op: op, Left: l, Right: r}
}

// NewUnaryOp constructs a UnaryOp node.
func NewUnaryOp(id NodeID, span diagnostics.Span, op string, operand Node) *UnaryOp {
	return &UnaryOp{base: base{id, span}, Op: op, Operand: operand}
}

// NewFilter constructs a Filter node.
func NewFilter(id NodeID, span diagnostics.Span, b, pred Node) *Filter {
	return &Filter{base: base{id, span}, Base: b, Predicate: pred}
}

// NewUnion constructs a Union node.
func NewUnion(id NodeID, span diagnostics.Span, l, r Node) *Union {
	return &Union{base: base{id, span}, Left: l, Right: r}
}

// NewTypeSpec constructs a TypeSpec node.
func NewTypeSpec(id NodeID, span diagnostics.Span, namespace, name string) *TypeSpec {
	return &TypeSpec{base: base{id, span}, Namespace: namespace, Name: name}
}

// NewTypeCheck constructs a TypeCheck node.
func NewTypeCheck(id NodeID, span diagnostics.Span, expr Node, t *TypeSpec) *TypeCheck {
	return &TypeCheck{base: base{id, span}, Expr: expr, Type: t}
}

// NewTypeCast constructs a TypeCast node.
func NewTypeCast(id NodeID, span diagnostics.Span, expr Node, t *TypeSpec) *TypeCast {
	return &TypeCast{base: base{id, span}, Expr: expr, Type: t}
}

// NewLambda constructs a Lambda node.
func NewLambda(id NodeID, span diagnostics.Span, param string, body Node) *Lambda {
	return &Lambda{base: base{id, span}, Param: param, Body: body}
}

// NewConditional constructs a Conditional node.
func NewConditional(id NodeID, span diagnostics.Span, cond, then, els Node) *Conditional {
	return &Conditional{base: base{id, span}, Cond: cond, Then: then, Else: els}
}

// LambdaFunctions is the fixed set of higher-order functions whose arguments
// the parser accepts as deferred lambda bodies (spec.md §4.E).
var LambdaFunctions = map[string]bool{
	"where": true, "select": true, "all": true, "exists": true,
	"repeat": true, "aggregate": true, "sort": true, "iif": true,
	"trace": true, "defineVariable": true,
}
