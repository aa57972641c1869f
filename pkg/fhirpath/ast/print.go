package ast

import (
	"fmt"
	"strings"
)

// Print renders n back to FHIRPath surface syntax. It is used to test the
// round-trip property `parse(Print(parse(s))) ≡ parse(s)` (spec.md §8.2)
// and by tooling that wants to display a normalized form of an expression.
// It does not reproduce comments or original whitespace.
type printer struct{ BaseVisitor }

// Print renders an AST node back to FHIRPath surface syntax.
func Print(n Node) string {
	p := &printer{}
	return n.Accept(p).(string)
}

func (p *printer) VisitLiteral(n *Literal) any {
	switch n.Kind {
	case "string":
		return "'" + strings.ReplaceAll(n.Raw, "'", "\\'") + "'"
	case "date", "datetime":
		return "@" + n.Raw
	case "time":
		return "@T" + n.Raw
	case "quantity":
		value, unit, _ := strings.Cut(n.Raw, "|")
		if unit == "" {
			return value
		}
		return value + " '" + unit + "'"
	default:
		return n.Raw
	}
}

func (p *printer) VisitIdentifier(n *Identifier) any { return n.Name }

func (p *printer) VisitVariable(n *Variable) any { return n.Sigil + n.Name }

func (p *printer) VisitPath(n *Path) any {
	return fmt.Sprintf("%s.%s", Print(n.Base), n.Segment)
}

func (p *printer) VisitIndex(n *Index) any {
	return fmt.Sprintf("%s[%s]", Print(n.Base), Print(n.Index))
}

func (p *printer) VisitFunctionCall(n *FunctionCall) any {
	return fmt.Sprintf("%s(%s)", n.Name, printArgs(n.Args))
}

func (p *printer) VisitMethodCall(n *MethodCall) any {
	return fmt.Sprintf("%s.%s(%s)", Print(n.Base), n.Name, printArgs(n.Args))
}

func (p *printer) VisitBinaryOp(n *BinaryOp) any {
	return fmt.Sprintf("(%s %s %s)", Print(n.Left), n.Op, Print(n.Right))
}

func (p *printer) VisitUnaryOp(n *UnaryOp) any {
	return n.Op + Print(n.Operand)
}

func (p *printer) VisitFilter(n *Filter) any {
	return fmt.Sprintf("%s[%s]", Print(n.Base), Print(n.Predicate))
}

func (p *printer) VisitUnion(n *Union) any {
	return fmt.Sprintf("(%s | %s)", Print(n.Left), Print(n.Right))
}

func (p *printer) VisitTypeSpec(n *TypeSpec) any {
	if n.Namespace != "" {
		return n.Namespace + "." + n.Name
	}
	return n.Name
}

func (p *printer) VisitTypeCheck(n *TypeCheck) any {
	return fmt.Sprintf("(%s is %s)", Print(n.Expr), Print(n.Type))
}

func (p *printer) VisitTypeCast(n *TypeCast) any {
	return fmt.Sprintf("(%s as %s)", Print(n.Expr), Print(n.Type))
}

func (p *printer) VisitLambda(n *Lambda) any { return Print(n.Body) }

func (p *printer) VisitConditional(n *Conditional) any {
	if n.Else != nil {
		return fmt.Sprintf("iif(%s, %s, %s)", Print(n.Cond), Print(n.Then), Print(n.Else))
	}
	return fmt.Sprintf("iif(%s, %s)", Print(n.Cond), Print(n.Then))
}

func printArgs(args []Node) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Print(a)
	}
	return strings.Join(parts, ", ")
}
