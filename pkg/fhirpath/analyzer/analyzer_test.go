package analyzer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/analyzer"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/model"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/parser"
)

func patientProvider() *model.MemoryProvider {
	return model.NewMemoryProvider().
		RegisterResourceType("Patient").
		RegisterType(model.TypeInfo{Namespace: "FHIR", Name: "Patient", BaseType: "DomainResource"}).
		RegisterType(model.TypeInfo{Namespace: "FHIR", Name: "HumanName"}).
		RegisterType(model.TypeInfo{Namespace: "System", Name: "Boolean"}).
		RegisterProperty("Patient", "active", model.TypeInfo{Namespace: "System", Name: "Boolean"}, model.Cardinality{Min: 0, Max: 1}).
		RegisterProperty("Patient", "name", model.TypeInfo{Namespace: "FHIR", Name: "HumanName"}, model.Cardinality{Min: 0, Max: -1}).
		RegisterProperty("HumanName", "given", model.TypeInfo{Namespace: "System", Name: "String"}, model.Cardinality{Min: 0, Max: -1}).
		RegisterProperty("HumanName", "family", model.TypeInfo{Namespace: "System", Name: "String"}, model.Cardinality{Min: 0, Max: 1})
}

func analyze(t *testing.T, expr, rootType string, provider model.Provider) *analyzer.AnalysisReport {
	t.Helper()
	tree, diags := parser.Parse(expr)
	require.Empty(t, diags, "unexpected parse diagnostics for %q", expr)
	return analyzer.Analyze(context.Background(), tree, rootType, provider)
}

func TestAnalyzeKnownProperty(t *testing.T) {
	report := analyze(t, "Patient.active", "Patient", patientProvider())
	require.Empty(t, report.Diagnostics)

	var found bool
	for _, res := range report.Annotations {
		if res.Type != nil && res.Type.Name == "Boolean" {
			found = true
		}
	}
	assert.True(t, found, "expected a Boolean-typed annotation in the report")
}

func TestAnalyzeUnknownPropertySuggestsClosestName(t *testing.T) {
	report := analyze(t, "Patient.name.gven", "Patient", patientProvider())
	require.NotEmpty(t, report.Diagnostics)
	assert.Contains(t, report.Diagnostics[0].Suggestion, "given")
}

func TestAnalyzeUnknownFunction(t *testing.T) {
	report := analyze(t, "Patient.active.existz()", "Patient", patientProvider())
	require.NotEmpty(t, report.Diagnostics)
	assert.Equal(t, "unknown-function", string(report.Diagnostics[0].Code))
	assert.Contains(t, report.Diagnostics[0].Suggestion, "exists")
}

func TestAnalyzeArityMismatch(t *testing.T) {
	report := analyze(t, "Patient.name.where()", "Patient", patientProvider())
	require.NotEmpty(t, report.Diagnostics)
	assert.Equal(t, "arity/mismatch", string(report.Diagnostics[0].Code))
}

func TestAnalyzeNoProviderYieldsLowConfidence(t *testing.T) {
	report := analyze(t, "Patient.active", "Patient", nil)
	for _, res := range report.Annotations {
		assert.NotEqual(t, analyzer.High, res.Confidence)
	}
}

func TestAnalyzeLambdaBindsThis(t *testing.T) {
	report := analyze(t, "Patient.name.where(family = 'Smith')", "Patient", patientProvider())
	require.Empty(t, report.Diagnostics)
}

func TestAnalyzeDefineVariableRedefinition(t *testing.T) {
	report := analyze(t, "true.defineVariable('x', 1) and true.defineVariable('x', 2)", "Patient", patientProvider())
	require.NotEmpty(t, report.Diagnostics)
	assert.Equal(t, "eval/redefine-variable", string(report.Diagnostics[0].Code))
}
