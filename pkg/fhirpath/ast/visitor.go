package ast

// Visitor is implemented by anything that walks the tree: the analyzer,
// the evaluator, and the pretty-printer. Each method returns `any` so a
// single interface serves walkers with different result types; callers
// type-assert the result they expect.
type Visitor interface {
	VisitLiteral(n *Literal) any
	VisitIdentifier(n *Identifier) any
	VisitVariable(n *Variable) any
	VisitPath(n *Path) any
	VisitIndex(n *Index) any
	VisitFunctionCall(n *FunctionCall) any
	VisitMethodCall(n *MethodCall) any
	VisitBinaryOp(n *BinaryOp) any
	VisitUnaryOp(n *UnaryOp) any
	VisitFilter(n *Filter) any
	VisitUnion(n *Union) any
	VisitTypeSpec(n *TypeSpec) any
	VisitTypeCheck(n *TypeCheck) any
	VisitTypeCast(n *TypeCast) any
	VisitLambda(n *Lambda) any
	VisitConditional(n *Conditional) any
}

// BaseVisitor provides a default implementation of every Visit* method that
// passes the node to Default (or returns nil); it does not descend into
// child nodes. Embed it and override only the methods you need, mirroring the teacher's
// Base*Visitor pattern from the generated ANTLR visitor it replaces.
type BaseVisitor struct {
	// Default is called by every unoverridden Visit* method; it lets an
	// embedder intercept all nodes uniformly (e.g. to count nodes) without
	// implementing the full interface.
	Default func(n Node) any
}

func (b *BaseVisitor) fallback(n Node) any {
	if b.Default != nil {
		return b.Default(n)
	}
	return nil
}

func (b *BaseVisitor) VisitLiteral(n *Literal) any           { return b.fallback(n) }
func (b *BaseVisitor) VisitIdentifier(n *Identifier) any     { return b.fallback(n) }
func (b *BaseVisitor) VisitVariable(n *Variable) any         { return b.fallback(n) }
func (b *BaseVisitor) VisitPath(n *Path) any                 { return b.fallback(n) }
func (b *BaseVisitor) VisitIndex(n *Index) any                { return b.fallback(n) }
func (b *BaseVisitor) VisitFunctionCall(n *FunctionCall) any { return b.fallback(n) }
func (b *BaseVisitor) VisitMethodCall(n *MethodCall) any     { return b.fallback(n) }
func (b *BaseVisitor) VisitBinaryOp(n *BinaryOp) any         { return b.fallback(n) }
func (b *BaseVisitor) VisitUnaryOp(n *UnaryOp) any           { return b.fallback(n) }
func (b *BaseVisitor) VisitFilter(n *Filter) any             { return b.fallback(n) }
func (b *BaseVisitor) VisitUnion(n *Union) any               { return b.fallback(n) }
func (b *BaseVisitor) VisitTypeSpec(n *TypeSpec) any         { return b.fallback(n) }
func (b *BaseVisitor) VisitTypeCheck(n *TypeCheck) any       { return b.fallback(n) }
func (b *BaseVisitor) VisitTypeCast(n *TypeCast) any         { return b.fallback(n) }
func (b *BaseVisitor) VisitLambda(n *Lambda) any             { return b.fallback(n) }
func (b *BaseVisitor) VisitConditional(n *Conditional) any   { return b.fallback(n) }

// Walk visits every descendant of n (not n itself) with v, depth-first,
// left to right. Used by tooling that needs a generic traversal without
// writing a bespoke Visitor (e.g. node counting, NodeID lookup).
func Walk(n Node, v Visitor) {
	switch t := n.(type) {
	case *Literal, *Identifier, *Variable, *TypeSpec:
		// leaves
	case *Path:
		t.Base.Accept(v)
		Walk(t.Base, v)
	case *Index:
		t.Base.Accept(v)
		Walk(t.Base, v)
		t.Index.Accept(v)
		Walk(t.Index, v)
	case *FunctionCall:
		for _, a := range t.Args {
			a.Accept(v)
			Walk(a, v)
		}
	case *MethodCall:
		t.Base.Accept(v)
		Walk(t.Base, v)
		for _, a := range t.Args {
			a.Accept(v)
			Walk(a, v)
		}
	case *BinaryOp:
		t.Left.Accept(v)
		Walk(t.Left, v)
		t.Right.Accept(v)
		Walk(t.Right, v)
	case *UnaryOp:
		t.Operand.Accept(v)
		Walk(t.Operand, v)
	case *Filter:
		t.Base.Accept(v)
		Walk(t.Base, v)
		t.Predicate.Accept(v)
		Walk(t.Predicate, v)
	case *Union:
		t.Left.Accept(v)
		Walk(t.Left, v)
		t.Right.Accept(v)
		Walk(t.Right, v)
	case *TypeCheck:
		t.Expr.Accept(v)
		Walk(t.Expr, v)
	case *TypeCast:
		t.Expr.Accept(v)
		Walk(t.Expr, v)
	case *Lambda:
		t.Body.Accept(v)
		Walk(t.Body, v)
	case *Conditional:
		t.Cond.Accept(v)
		Walk(t.Cond, v)
		t.Then.Accept(v)
		Walk(t.Then, v)
		if t.Else != nil {
			t.Else.Accept(v)
			Walk(t.Else, v)
		}
	}
}
