package eval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/funcs"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/parser"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

func evalExpr(t *testing.T, resource, expr string) (types.Collection, error) {
	t.Helper()
	tree, diags := parser.Parse(expr)
	require.Empty(t, diags, "unexpected parse diagnostics for %q", expr)
	ctx := eval.NewContext([]byte(resource))
	e := eval.NewEvaluator(ctx, funcs.GetRegistry())
	return e.Evaluate(tree)
}

func TestContextVariables(t *testing.T) {
	ctx := eval.NewContext([]byte(`{"resourceType":"Patient"}`))
	assert.False(t, ctx.Root().Empty())
	assert.False(t, ctx.This().Empty())

	ctx.SetVariable("myVar", types.Collection{types.NewString("hi")})
	v, ok := ctx.GetVariable("myVar")
	require.True(t, ok)
	assert.Equal(t, "hi", v[0].(types.String).Value())

	_, ok = ctx.GetVariable("nope")
	assert.False(t, ok)

	resourceVar, ok := ctx.GetVariable("resource")
	require.True(t, ok)
	assert.False(t, resourceVar.Empty())
}

func TestEvaluatorMemberNavigation(t *testing.T) {
	col, err := evalExpr(t, `{"resourceType":"Patient","active":true}`, "active")
	require.NoError(t, err)
	require.Len(t, col, 1)
	assert.Equal(t, true, col[0].(types.Boolean).Bool())
}

func TestEvaluatorWhere(t *testing.T) {
	resource := `{"resourceType":"Patient","name":[
		{"use":"official","family":"Smith"},
		{"use":"nickname","family":"Smitty"}
	]}`
	col, err := evalExpr(t, resource, "name.where(use = 'official').family")
	require.NoError(t, err)
	require.Len(t, col, 1)
	assert.Equal(t, "Smith", col[0].(types.String).Value())
}

func TestEvaluatorExistsAndAll(t *testing.T) {
	resource := `{"resourceType":"Patient","name":[{"use":"official"},{"use":"official"}]}`
	col, err := evalExpr(t, resource, "name.all(use = 'official')")
	require.NoError(t, err)
	require.Len(t, col, 1)
	assert.True(t, col[0].(types.Boolean).Bool())

	col, err = evalExpr(t, resource, "name.exists(use = 'nickname')")
	require.NoError(t, err)
	require.Len(t, col, 1)
	assert.False(t, col[0].(types.Boolean).Bool())
}

func TestEvaluatorArithmeticAndSingletonError(t *testing.T) {
	col, err := evalExpr(t, `{}`, "1 + 2")
	require.NoError(t, err)
	require.Len(t, col, 1)
	assert.Equal(t, int64(3), col[0].(types.Integer).Value())

	resource := `{"resourceType":"Patient","name":[{"family":"A"},{"family":"B"}]}`
	_, err = evalExpr(t, resource, "name.family + 'x'")
	assert.Error(t, err)
}

func TestEvaluatorUnion(t *testing.T) {
	col, err := evalExpr(t, `{}`, "(1 | 2 | 2).count()")
	require.NoError(t, err)
	require.Len(t, col, 1)
	assert.Equal(t, int64(2), col[0].(types.Integer).Value())
}

func TestEvaluatorIifLazyBranches(t *testing.T) {
	col, err := evalExpr(t, `{"resourceType":"Patient"}`, "iif(true, 'yes', 1/0)")
	require.NoError(t, err)
	require.Len(t, col, 1)
	assert.Equal(t, "yes", col[0].(types.String).Value())
}

func TestEvaluatorDefineVariable(t *testing.T) {
	col, err := evalExpr(t, `{}`, "true.defineVariable('flag', 42) and %flag = 42")
	require.NoError(t, err)
	require.Len(t, col, 1)
	assert.True(t, col[0].(types.Boolean).Bool())
}

func TestEvaluatorIsType(t *testing.T) {
	resource := `{"resourceType":"Patient"}`
	col, err := evalExpr(t, resource, "Patient is Patient")
	require.NoError(t, err)
	require.Len(t, col, 1)
	assert.True(t, col[0].(types.Boolean).Bool())
}
