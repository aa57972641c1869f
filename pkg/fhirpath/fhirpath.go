// Package fhirpath provides a FHIRPath engine for evaluating expressions on FHIR resources.
package fhirpath

import (
	"context"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/analyzer"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/model"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

// Evaluate parses and evaluates a FHIRPath expression against a JSON resource.
// This is a convenience function that compiles and evaluates in one step.
func Evaluate(resource []byte, expr string) (types.Collection, error) {
	compiled, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return compiled.Evaluate(resource)
}

// MustEvaluate is like Evaluate but panics on error.
func MustEvaluate(resource []byte, expr string) types.Collection {
	result, err := Evaluate(resource, expr)
	if err != nil {
		panic(err)
	}
	return result
}

// Compile parses a FHIRPath expression and returns a compiled Expression.
// The compiled expression can be evaluated multiple times against different resources.
func Compile(expr string) (*Expression, error) {
	return compile(expr)
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Expression {
	compiled, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return compiled
}

// Analyze runs the static analyzer over a compiled expression's AST,
// annotating it with inferred types/cardinalities and collecting
// diagnostics (unknown identifiers, unknown functions, arity mismatches,
// type mismatches). rootType names the resource type the expression is
// expected to run against, if known; provider may be nil, in which case
// every inference that depends on schema lookups degrades to Low
// confidence (spec.md §4.G, §6).
func Analyze(ctx context.Context, expr *Expression, rootType string, provider model.Provider) *analyzer.AnalysisReport {
	return analyzer.Analyze(ctx, expr.Tree(), rootType, provider)
}
