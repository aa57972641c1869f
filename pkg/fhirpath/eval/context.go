package eval

import (
	"context"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/model"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

// Resolver handles FHIR reference resolution. Superseded by model.Provider
// for new code but kept as the narrow interface SetResolver/GetResolver
// already expose, so resolve() can keep using either.
type Resolver interface {
	Resolve(ctx context.Context, reference string) ([]byte, error)
}

// Context holds the evaluation state threaded through every AST visit:
// the root/focus collections, $index/$total, the variable scope chain
// (for defineVariable), cancellation/limits, and the optional schema-aware
// capabilities (spec.md §6 context-config).
type Context struct {
	root      types.Collection
	this      types.Collection
	index     int
	total     types.Value
	variables map[string]types.Collection
	parent    *Context // enclosing scope, consulted when a variable isn't local
	limits    map[string]int
	goCtx     context.Context
	resolver  Resolver

	modelProvider      model.Provider
	terminologyProvider model.TerminologyProvider
	validationProvider model.ValidationProvider
	traceSink          model.TraceSink
	rootBytes          []byte
}

// NewContext creates a root evaluation context over a JSON resource.
// %resource and %context both point at the root, matching how FHIR
// invariants expect evaluation to begin.
func NewContext(resource []byte) *Context {
	//nolint:errcheck // an empty collection is an acceptable result for invalid JSON
	root, _ := types.JSONToCollection(resource)

	variables := make(map[string]types.Collection)
	variables["resource"] = root
	variables["context"] = root

	return &Context{
		root:      root,
		this:      root,
		variables: variables,
		limits:    make(map[string]int),
		goCtx:     context.Background(),
		rootBytes: resource,
	}
}

// SetLimit sets a limit value (e.g., maxDepth, maxCollectionSize).
func (c *Context) SetLimit(name string, value int) {
	if c.limits == nil {
		c.limits = make(map[string]int)
	}
	c.limits[name] = value
}

// GetLimit walks up the scope chain for a limit value, since limits are
// configured once on the root context.
func (c *Context) GetLimit(name string) int {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.limits != nil {
			if v, ok := cur.limits[name]; ok {
				return v
			}
		}
	}
	return 0
}

// SetContext sets the Go context used for cancellation and suspension.
func (c *Context) SetContext(ctx context.Context) { c.goCtx = ctx }

// Context returns the Go context for cancellation/suspension.
func (c *Context) Context() context.Context {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.goCtx != nil {
			return cur.goCtx
		}
	}
	return context.Background()
}

// SetResolver sets a bare reference resolver (superseded by ModelProvider
// when both are configured).
func (c *Context) SetResolver(r Resolver) { c.resolver = r }

// GetResolver returns the reference resolver, if any.
func (c *Context) GetResolver() Resolver {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.resolver != nil {
			return cur.resolver
		}
	}
	return nil
}

// SetModelProvider attaches a schema capability (spec.md §6).
func (c *Context) SetModelProvider(p model.Provider) { c.modelProvider = p }

// ModelProvider returns the configured model provider, if any.
func (c *Context) ModelProvider() model.Provider {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.modelProvider != nil {
			return cur.modelProvider
		}
	}
	return nil
}

// SetTerminologyProvider attaches the memberOf/subsumes/translate backend.
func (c *Context) SetTerminologyProvider(p model.TerminologyProvider) { c.terminologyProvider = p }

// TerminologyProvider returns the configured terminology provider, if any.
func (c *Context) TerminologyProvider() model.TerminologyProvider {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.terminologyProvider != nil {
			return cur.terminologyProvider
		}
	}
	return nil
}

// SetValidationProvider attaches the conformsTo() backend.
func (c *Context) SetValidationProvider(p model.ValidationProvider) { c.validationProvider = p }

// ValidationProvider returns the configured validation provider, if any.
func (c *Context) ValidationProvider() model.ValidationProvider {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.validationProvider != nil {
			return cur.validationProvider
		}
	}
	return nil
}

// SetTraceSink attaches a trace(name, value) sink.
func (c *Context) SetTraceSink(s model.TraceSink) { c.traceSink = s }

// TraceSink returns the configured trace sink, if any.
func (c *Context) TraceSink() model.TraceSink {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.traceSink != nil {
			return cur.traceSink
		}
	}
	return nil
}

// RootBytes returns the raw JSON the root context was built from, used by
// reference resolution (spec.md §9 "Reference resolution").
func (c *Context) RootBytes() []byte {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.rootBytes != nil {
			return cur.rootBytes
		}
	}
	return nil
}

// CheckCancellation reports ctx.Err() if the Go context has been canceled
// or its deadline/timeout elapsed (spec.md §6 context-config.timeout).
func (c *Context) CheckCancellation() error {
	goCtx := c.Context()
	select {
	case <-goCtx.Done():
		return goCtx.Err()
	default:
		return nil
	}
}

// CheckCollectionSize validates that a collection doesn't exceed the
// configured maxCollectionSize limit.
func (c *Context) CheckCollectionSize(col types.Collection) error {
	maxSize := c.GetLimit("maxCollectionSize")
	if maxSize > 0 && len(col) > maxSize {
		return NewEvalError(ErrInvalidExpression,
			"collection size %d exceeds maximum allowed %d", len(col), maxSize)
	}
	return nil
}

// Root returns the root collection (the original evaluation input).
func (c *Context) Root() types.Collection { return c.root }

// This returns the current $this collection (the focus).
func (c *Context) This() types.Collection { return c.this }

// Index returns the current $index.
func (c *Context) Index() int { return c.index }

// Total returns the current $total (set inside aggregate()).
func (c *Context) Total() types.Value { return c.total }

// childScope returns a new Context sharing the parent's configuration but
// with its own focus/variable frame, used when entering a lambda body so
// defineVariable()'d names don't leak to sibling iterations (spec.md §6
// "variable scoping").
func (c *Context) childScope() *Context {
	return &Context{parent: c, variables: map[string]types.Collection{}}
}

// WithThis returns a child scope with $this set to the given focus.
func (c *Context) WithThis(this types.Collection) *Context {
	child := c.childScope()
	child.this = this
	child.index = c.index
	child.total = c.total
	return child
}

// WithThisIndex returns a child scope with $this and $index both set, as
// used by where/select/all/exists(criterion)/repeat/sort per-item binding.
func (c *Context) WithThisIndex(this types.Collection, index int) *Context {
	child := c.WithThis(this)
	child.index = index
	return child
}

// WithTotal returns a child scope with $total set, used by aggregate().
func (c *Context) WithTotal(total types.Value) *Context {
	child := c.childScope()
	child.this = c.this
	child.index = c.index
	child.total = total
	return child
}

// SetVariable defines a variable in this scope frame (defineVariable(),
// or an externally supplied %var at the root).
func (c *Context) SetVariable(name string, value types.Collection) {
	if c.variables == nil {
		c.variables = map[string]types.Collection{}
	}
	c.variables[name] = value
}

// GetVariable looks up a variable by walking from this scope up to the
// root, so a defineVariable() in an inner lambda shadows an outer one
// without mutating it (spec.md §6 "variable scoping").
func (c *Context) GetVariable(name string) (types.Collection, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.variables[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// DefinedInScope reports whether name was already bound by defineVariable()
// in this exact frame (not an ancestor), used to raise redefine-variable
// rather than silently shadowing (spec.md §9, SPEC_FULL.md §7).
func (c *Context) DefinedInScope(name string) bool {
	_, ok := c.variables[name]
	return ok
}
