package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderTypeCompatibility(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider().
		RegisterType(TypeInfo{Namespace: "FHIR", Name: "Patient", BaseType: "DomainResource"}).
		RegisterType(TypeInfo{Namespace: "FHIR", Name: "DomainResource", BaseType: "Resource"}).
		RegisterType(TypeInfo{Namespace: "FHIR", Name: "Resource"})

	ok, err := p.IsTypeCompatible(ctx, "Patient", "Resource")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.IsTypeCompatible(ctx, "Patient", "Observation")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.IsTypeCompatible(ctx, "Patient", "Patient")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryProviderResolveReferenceContained(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()
	focus := []byte(`{"resourceType":"Observation","contained":[{"resourceType":"Patient","id":"p1"}]}`)

	found, ok, err := p.ResolveReferenceInContext(ctx, "#p1", nil, focus)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(found), `"id":"p1"`)
}

func TestMemoryProviderResolveReferenceBundle(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()
	root := []byte(`{"resourceType":"Bundle","entry":[
		{"fullUrl":"urn:uuid:abc","resource":{"resourceType":"Patient","id":"abc"}}
	]}`)

	found, ok, err := p.ResolveReferenceInContext(ctx, "urn:uuid:abc", root, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(found), `"id":"abc"`)

	_, ok, err = p.ResolveReferenceInContext(ctx, "urn:uuid:missing", root, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryProviderExtractTypeName(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()
	name, err := p.ExtractTypeName(ctx, []byte(`{"resourceType":"Patient"}`))
	require.NoError(t, err)
	assert.Equal(t, "Patient", name)

	name, err = p.ExtractTypeName(ctx, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "", name)
}

func TestMemoryProviderPropertyAndChoice(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider().
		RegisterProperty("Observation", "status", TypeInfo{Namespace: "FHIR", Name: "code"}, Cardinality{Min: 1, Max: 1}).
		RegisterChoice("Observation.value", "valueQuantity", ChoiceInfo{
			BasePropertyName: "value",
			ConcreteType:     TypeInfo{Namespace: "FHIR", Name: "Quantity"},
		})

	pt, card, ok, err := p.GetPropertyType(ctx, "Observation", "status")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "code", pt.Name)
	assert.False(t, card.Unbounded())

	choice, err := p.ResolveChoice(ctx, "Observation.value", "valueQuantity")
	require.NoError(t, err)
	require.NotNil(t, choice)
	assert.Equal(t, "Quantity", choice.ConcreteType.Name)

	_, _, ok, err = p.GetPropertyType(ctx, "Observation", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
