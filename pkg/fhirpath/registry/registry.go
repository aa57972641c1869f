// Package registry holds operation metadata — arity, purity, async
// suspension, and lambda-argument positions — layered on top of the
// concrete implementations held in the funcs package's table (spec.md
// §4.H "Registry dispatch policy"). It does not hold the Fn bodies
// itself; it wraps eval.FuncDef, the teacher's existing dispatch unit
// (pkg/fhirpath/funcs/registry.go), with the metadata the analyzer and
// async evaluator need that a bare name->Fn map cannot express.
package registry

import (
	"sync"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
)

// Def is one operation's dispatch policy plus its underlying definition.
type Def struct {
	eval.FuncDef
	// Pure operations read only their explicit input and arguments: no
	// %resource, %context, or model-provider lookups. The analyzer may
	// use this for future constant folding (spec.md §4.G).
	Pure bool
	// Async is true when Fn may suspend on a model or terminology
	// provider call (spec.md §6 Model Provider capability): resolve,
	// ofType, is, as, children, descendants, conformsTo, memberOf,
	// subsumes, translate.
	Async bool
	// LambdaArgs holds the zero-based positions of arguments that are
	// unevaluated predicate/projection expressions rather than eagerly
	// evaluated collections (where, select, all, exists(criterion),
	// repeat, aggregate, sort, iif, trace, defineVariable). The
	// evaluator special-cases these by name rather than through this
	// metadata today (grounded on the teacher's evaluateWhere/
	// evaluateExists/evaluateAll/evaluateSelect/evaluateIif,
	// pkg/fhirpath/eval/evaluator.go) — LambdaArgs documents the policy
	// for the analyzer and future dispatch refactors.
	LambdaArgs []int
}

// Registry layers Def metadata over the functions registered in a
// funcs.Registry-shaped source.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Def
}

// New creates an empty Registry.
func New() *Registry { return &Registry{defs: make(map[string]Def)} }

// Register adds or replaces a Def.
func (r *Registry) Register(d Def) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[d.Name] = d
}

// Get retrieves a Def by name.
func (r *Registry) Get(name string) (Def, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// IsLambda reports whether argument position i of name is an unevaluated
// lambda expression.
func (r *Registry) IsLambda(name string, i int) bool {
	d, ok := r.Get(name)
	if !ok {
		return false
	}
	for _, p := range d.LambdaArgs {
		if p == i {
			return true
		}
	}
	return false
}

// IsAsync reports whether name may suspend on a schema/terminology call.
func (r *Registry) IsAsync(name string) bool {
	d, ok := r.Get(name)
	return ok && d.Async
}

// global is the default, process-wide metadata registry, populated by
// Describe calls in each funcs/*.go file's init() alongside its Register
// call to the underlying funcs registry.
var global = New()

// Global returns the process-wide metadata registry.
func Global() *Registry { return global }

// Describe records Def metadata for a function already registered with
// the funcs package. Called from funcs/*.go init() functions.
func Describe(d Def) { global.Register(d) }
