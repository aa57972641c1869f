package model

import (
	"context"
	"strings"

	"github.com/buger/jsonparser"
)

// MemoryProvider is a small in-memory Provider backed by maps the caller
// populates directly. It exists for tests and examples that need a model
// provider without pulling in a full FHIR package registry (spec.md §1
// Non-goals) — production callers supply their own Provider grounded on a
// real StructureDefinition store.
type MemoryProvider struct {
	Types      map[string]TypeInfo
	Properties map[string]propertyEntry
	Choices    map[string]ChoiceInfo
	Resources  map[string]bool
	Primitives map[string]bool
}

type propertyEntry struct {
	Type TypeInfo
	Card Cardinality
}

// NewMemoryProvider builds an empty MemoryProvider ready for registration.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		Types:      map[string]TypeInfo{},
		Properties: map[string]propertyEntry{},
		Choices:    map[string]ChoiceInfo{},
		Resources:  map[string]bool{},
		Primitives: map[string]bool{},
	}
}

// RegisterType records a type's TypeInfo under its qualified name.
func (m *MemoryProvider) RegisterType(t TypeInfo) *MemoryProvider {
	m.Types[t.QualifiedName()] = t
	m.Types[t.Name] = t
	return m
}

// RegisterProperty records the declared type of parentType.property.
func (m *MemoryProvider) RegisterProperty(parentType, property string, t TypeInfo, card Cardinality) *MemoryProvider {
	m.Properties[parentType+"."+property] = propertyEntry{Type: t, Card: card}
	return m
}

// RegisterChoice records how a concrete property resolves a choice base.
func (m *MemoryProvider) RegisterChoice(basePath, concreteProperty string, info ChoiceInfo) *MemoryProvider {
	m.Choices[basePath+"|"+concreteProperty] = info
	return m
}

// RegisterResourceType marks name as a top-level resource type.
func (m *MemoryProvider) RegisterResourceType(name string) *MemoryProvider {
	m.Resources[name] = true
	return m
}

// RegisterPrimitive marks name as a primitive type.
func (m *MemoryProvider) RegisterPrimitive(name string) *MemoryProvider {
	m.Primitives[name] = true
	return m
}

// GetType implements Provider.
func (m *MemoryProvider) GetType(_ context.Context, name string) (*TypeInfo, error) {
	if t, ok := m.Types[name]; ok {
		return &t, nil
	}
	return nil, nil
}

// GetPropertyType implements Provider.
func (m *MemoryProvider) GetPropertyType(_ context.Context, parentType, property string) (*TypeInfo, Cardinality, bool, error) {
	entry, ok := m.Properties[parentType+"."+property]
	if !ok {
		return nil, Cardinality{}, false, nil
	}
	t := entry.Type
	return &t, entry.Card, true, nil
}

// ResolveChoice implements Provider.
func (m *MemoryProvider) ResolveChoice(_ context.Context, basePath, concreteProperty string) (*ChoiceInfo, error) {
	if c, ok := m.Choices[basePath+"|"+concreteProperty]; ok {
		return &c, nil
	}
	return nil, nil
}

// IsTypeCompatible implements Provider by walking BaseType chains.
func (m *MemoryProvider) IsTypeCompatible(_ context.Context, actual, expected string) (bool, error) {
	if actual == expected {
		return true, nil
	}
	seen := map[string]bool{}
	for cur := actual; cur != "" && !seen[cur]; {
		seen[cur] = true
		t, ok := m.Types[cur]
		if !ok {
			return false, nil
		}
		if t.BaseType == expected {
			return true, nil
		}
		cur = t.BaseType
	}
	return false, nil
}

// ResolveReferenceInContext implements Provider by searching Bundle.entry
// and the focus's own "contained" array — the two resolution sources that
// don't require network access (spec.md §9 "Reference resolution").
func (m *MemoryProvider) ResolveReferenceInContext(_ context.Context, ref string, rootValue, currentFocus []byte) ([]byte, bool, error) {
	if strings.HasPrefix(ref, "#") {
		id := strings.TrimPrefix(ref, "#")
		found, ok := findContained(currentFocus, id)
		if ok {
			return found, true, nil
		}
	}
	var found []byte
	var ok bool
	_, _ = jsonparser.ArrayEach(rootValue, func(entry []byte, _ jsonparser.ValueType, _ int, _ error) {
		if ok {
			return
		}
		fullURL, _ := jsonparser.GetString(entry, "fullUrl")
		if fullURL == ref {
			if res, _, _, err := jsonparser.Get(entry, "resource"); err == nil {
				found, ok = res, true
			}
		}
	}, "entry")
	return found, ok, nil
}

func findContained(focus []byte, id string) ([]byte, bool) {
	var found []byte
	var ok bool
	_, _ = jsonparser.ArrayEach(focus, func(entry []byte, _ jsonparser.ValueType, _ int, _ error) {
		if ok {
			return
		}
		rid, _ := jsonparser.GetString(entry, "id")
		if rid == id {
			found, ok = entry, true
		}
	}, "contained")
	return found, ok
}

// ExtractTypeName implements Provider by reading "resourceType".
func (m *MemoryProvider) ExtractTypeName(_ context.Context, raw []byte) (string, error) {
	name, err := jsonparser.GetString(raw, "resourceType")
	if err != nil {
		return "", nil
	}
	return name, nil
}

// IsResourceType implements Provider.
func (m *MemoryProvider) IsResourceType(_ context.Context, name string) (bool, error) {
	return m.Resources[name], nil
}

// IsPrimitiveType implements Provider.
func (m *MemoryProvider) IsPrimitiveType(_ context.Context, name string) (bool, error) {
	return m.Primitives[name], nil
}

// PropertyNames implements PropertyEnumerator by scanning the registered
// property keys for the "parentType." prefix.
func (m *MemoryProvider) PropertyNames(_ context.Context, parentType string) ([]string, error) {
	prefix := parentType + "."
	var names []string
	for key := range m.Properties {
		if strings.HasPrefix(key, prefix) {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
	}
	return names, nil
}

var _ Provider = (*MemoryProvider)(nil)
var _ PropertyEnumerator = (*MemoryProvider)(nil)
