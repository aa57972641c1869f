package funcs

import (
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/registry"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

func init() {
	// Register filtering functions. where/select/repeat take an
	// unevaluated predicate/projection as argument 0 (spec.md §4.H); the
	// evaluator special-cases them directly rather than going through
	// Fn, but the metadata documents the policy for the analyzer.
	whereDef := FuncDef{
		Name:    "where",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnWhere,
	}
	Register(whereDef)
	registry.Describe(registry.Def{FuncDef: whereDef, Pure: true, LambdaArgs: []int{0}})

	selectDef := FuncDef{
		Name:    "select",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnSelect,
	}
	Register(selectDef)
	registry.Describe(registry.Def{FuncDef: selectDef, Pure: true, LambdaArgs: []int{0}})

	repeatDef := FuncDef{
		Name:    "repeat",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnRepeat,
	}
	Register(repeatDef)
	registry.Describe(registry.Def{FuncDef: repeatDef, Pure: true, LambdaArgs: []int{0}})

	ofTypeDef := FuncDef{
		Name:    "ofType",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnOfType,
	}
	Register(ofTypeDef)
	registry.Describe(registry.Def{FuncDef: ofTypeDef, Async: true})
}

// fnWhere filters the collection based on a criteria expression.
// Returns elements where the criteria evaluates to true.
func fnWhere(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if len(args) == 0 {
		return nil, eval.InvalidArgumentsError("where", 1, 0)
	}

	// The argument should be an evaluated collection for each element
	// For now, we expect args[0] to be a function that evaluates the criteria
	// This is handled specially in the evaluator

	// If we receive pre-evaluated results (collection of booleans), filter based on them
	if criteria, ok := args[0].(types.Collection); ok {
		result := types.Collection{}
		for i, item := range input {
			if i < len(criteria) {
				if b, ok := criteria[i].(types.Boolean); ok && b.Bool() {
					result = append(result, item)
				}
			}
		}
		return result, nil
	}

	// Default: return input (criteria evaluation should be handled by evaluator)
	return input, nil
}

// fnSelect projects each element using an expression.
// Returns the flattened results of evaluating the expression on each element.
func fnSelect(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if len(args) == 0 {
		return nil, eval.InvalidArgumentsError("select", 1, 0)
	}

	// The argument should be evaluated for each element
	// This is handled specially in the evaluator
	if results, ok := args[0].(types.Collection); ok {
		return results, nil
	}

	return types.Collection{}, nil
}

// fnRepeat repeatedly applies an expression until no new results are found.
func fnRepeat(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if len(args) == 0 {
		return nil, eval.InvalidArgumentsError("repeat", 1, 0)
	}

	// This requires special handling in the evaluator for recursive evaluation
	// For now, return the input
	return input, nil
}

// fnOfType filters elements by type, preferring the configured
// model.Provider's inheritance-aware check over a bare name comparison
// (spec.md §6) so e.g. ofType(Resource) matches every concrete resource type.
func fnOfType(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if len(args) == 0 {
		return nil, eval.InvalidArgumentsError("ofType", 1, 0)
	}

	// Get the type name
	typeName := ""
	switch v := args[0].(type) {
	case types.Collection:
		if len(v) > 0 {
			if s, ok := v[0].(types.String); ok {
				typeName = s.Value()
			}
		}
	case types.String:
		typeName = v.Value()
	case string:
		typeName = v
	}

	if typeName == "" {
		return types.Collection{}, nil
	}

	provider := ctx.ModelProvider()
	result := types.Collection{}
	for _, item := range input {
		matches := item.Type() == typeName
		if provider != nil {
			if ok, err := provider.IsTypeCompatible(ctx.Context(), item.Type(), typeName); err == nil {
				matches = ok
			}
		}
		if matches {
			result = append(result, item)
		}
	}

	return result, nil
}
