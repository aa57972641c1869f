package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
)

func TestRegistryDescribeAndLookup(t *testing.T) {
	r := New()
	r.Register(Def{
		FuncDef: eval.FuncDef{Name: "where", MinArgs: 1, MaxArgs: 1},
		Pure:    true,
		LambdaArgs: []int{0},
	})

	d, ok := r.Get("where")
	assert.True(t, ok)
	assert.True(t, d.Pure)
	assert.True(t, r.IsLambda("where", 0))
	assert.False(t, r.IsLambda("where", 1))
	assert.False(t, r.IsAsync("where"))

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryAsync(t *testing.T) {
	r := New()
	r.Register(Def{FuncDef: eval.FuncDef{Name: "resolve"}, Async: true})
	assert.True(t, r.IsAsync("resolve"))
}
