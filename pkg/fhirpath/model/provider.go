// Package model defines the schema-aware capabilities the evaluator and
// analyzer consume (spec.md §4.C, §6): the Model Provider, Terminology
// Provider, and Validation Provider interfaces, plus a small in-memory
// Provider implementation suitable for tests and examples. Loading real
// FHIR StructureDefinitions/CodeSystems is explicitly out of scope
// (spec.md §1 Non-goals) — that lives in an external package.
package model

import "context"

// Cardinality describes how many values a property may hold.
type Cardinality struct {
	Min int
	Max int // -1 means unbounded ("*")
}

// Unbounded reports whether the cardinality allows more than one value.
func (c Cardinality) Unbounded() bool { return c.Max < 0 || c.Max > 1 }

// TypeInfo identifies a FHIR or FHIRPath System type, namespaced the way
// type literals are (e.g. {Namespace: "FHIR", Name: "Patient"},
// {Namespace: "System", Name: "String"}).
type TypeInfo struct {
	Namespace string
	Name      string
	// BaseType is the immediate supertype name, if any, used for `is`/`as`
	// polymorphic inheritance checks.
	BaseType string
}

// QualifiedName returns "Namespace.Name", or just Name if Namespace is empty.
func (t TypeInfo) QualifiedName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// ChoiceInfo describes how a `value[x]`-shaped choice element resolves for
// one concrete JSON property name (spec.md §9 "Choice types").
type ChoiceInfo struct {
	// BasePropertyName is the unsuffixed element name, e.g. "value".
	BasePropertyName string
	// ConcreteType is the type carried by the concrete property actually
	// present in the JSON, e.g. Quantity for "valueQuantity".
	ConcreteType TypeInfo
}

// Provider is the async schema capability consumed by the analyzer and
// evaluator (spec.md §6 Model Provider capability). All methods accept a
// context.Context as the suspension point (spec.md §5).
type Provider interface {
	// GetType resolves a bare type name to its TypeInfo, if known.
	GetType(ctx context.Context, name string) (*TypeInfo, error)
	// GetPropertyType resolves the declared type and cardinality of a
	// property on parentType, if the property is known.
	GetPropertyType(ctx context.Context, parentType, property string) (*TypeInfo, Cardinality, bool, error)
	// ResolveChoice resolves a concrete property name against a `value[x]`
	// style base path, e.g. ("Observation.value", "valueQuantity").
	ResolveChoice(ctx context.Context, basePath, concreteProperty string) (*ChoiceInfo, error)
	// IsTypeCompatible reports whether actual is-a expected, following
	// inheritance (spec.md "polymorphic inheritance").
	IsTypeCompatible(ctx context.Context, actual, expected string) (bool, error)
	// ResolveReferenceInContext resolves a FHIR reference string against
	// rootValue/currentFocus, encapsulating the contained/bundle/external
	// search order (spec.md §9 "Reference resolution"). rootValue and
	// currentFocus are opaque to the provider beyond JSON structure; the
	// core forwards them without interpreting container semantics itself.
	ResolveReferenceInContext(ctx context.Context, ref string, rootValue []byte, currentFocus []byte) ([]byte, bool, error)
	// ExtractTypeName returns the FHIR type name of a raw JSON resource or
	// complex-type fragment, e.g. by reading "resourceType" or inferring
	// structurally.
	ExtractTypeName(ctx context.Context, raw []byte) (string, error)
	// IsResourceType reports whether name is a top-level FHIR resource type.
	IsResourceType(ctx context.Context, name string) (bool, error)
	// IsPrimitiveType reports whether name is a FHIR/System primitive.
	IsPrimitiveType(ctx context.Context, name string) (bool, error)
}

// TraceSink receives trace(name, value) output during evaluation
// (spec.md §6 context-config.trace-provider).
type TraceSink interface {
	Trace(ctx context.Context, name string, values [][]byte)
}

// ConceptRelation is the result of Terminology.Subsumes.
type ConceptRelation int

// ConceptRelation values.
const (
	RelationUnrelated ConceptRelation = iota
	RelationEquivalent
	RelationSubsumes
	RelationSubsumedBy
)

// Coding is a minimal system+code+display triple, enough for the
// terminology functions this module implements (memberOf, subsumes,
// translate) without depending on a full FHIR Coding type.
type Coding struct {
	System  string
	Code    string
	Display string
}

// TerminologyProvider is the optional capability behind memberOf,
// subsumes, and translate (spec.md §6 Terminology Provider capability).
// No terminology server is implemented by this module — only the
// interface and an in-memory test double (spec.md §1 Non-goals).
type TerminologyProvider interface {
	ValidateCode(ctx context.Context, system, code, valueSet string) (bool, error)
	Expand(ctx context.Context, valueSet string) ([]Coding, error)
	Translate(ctx context.Context, sourceSystem, sourceCode, targetSystem string) ([]Coding, error)
	Subsumes(ctx context.Context, system, codeA, codeB string) (ConceptRelation, error)
}

// ValidationProvider is the optional capability behind conformsTo().
type ValidationProvider interface {
	ConformsTo(ctx context.Context, raw []byte, profileURL string) (bool, error)
}

// PropertyEnumerator is an optional capability a Provider may additionally
// implement to list the known property names of a type. The analyzer uses
// it to rank edit-distance "did you mean" suggestions for an unknown
// property (spec.md §4.G); a Provider that only supports point lookups via
// GetPropertyType still satisfies the core Provider contract without it.
type PropertyEnumerator interface {
	PropertyNames(ctx context.Context, parentType string) ([]string, error)
}
