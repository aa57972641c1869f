package funcs

import (
	"context"
	"testing"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/model"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

// fakeTerminology is a minimal in-memory TerminologyProvider for tests.
type fakeTerminology struct {
	validCodes map[string]bool // "system|code|valueSet" -> valid
	relations  map[string]model.ConceptRelation
	translated map[string][]model.Coding
}

func (f *fakeTerminology) ValidateCode(_ context.Context, system, code, valueSet string) (bool, error) {
	return f.validCodes[system+"|"+code+"|"+valueSet], nil
}

func (f *fakeTerminology) Expand(_ context.Context, _ string) ([]model.Coding, error) {
	return nil, nil
}

func (f *fakeTerminology) Translate(_ context.Context, system, code, target string) ([]model.Coding, error) {
	return f.translated[system+"|"+code+"|"+target], nil
}

func (f *fakeTerminology) Subsumes(_ context.Context, system, codeA, codeB string) (model.ConceptRelation, error) {
	return f.relations[system+"|"+codeA+"|"+codeB], nil
}

// fakeValidator is a minimal in-memory ValidationProvider for tests.
type fakeValidator struct {
	conformant map[string]bool // profileURL -> conforms
}

func (f *fakeValidator) ConformsTo(_ context.Context, _ []byte, profileURL string) (bool, error) {
	return f.conformant[profileURL], nil
}

func TestMemberOf(t *testing.T) {
	fn, ok := Get("memberOf")
	if !ok {
		t.Fatal("memberOf function not registered")
	}

	ctx := eval.NewContext([]byte(`{}`))
	ctx.SetTerminologyProvider(&fakeTerminology{
		validCodes: map[string]bool{"http://loinc.org|1234-5|http://example.org/vs": true},
	})

	coding := types.NewResource([]byte(`{"system": "http://loinc.org", "code": "1234-5"}`))
	result, err := fn.Fn(ctx, types.Collection{coding}, []interface{}{"http://example.org/vs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Empty() || !result[0].(types.Boolean).Bool() {
		t.Errorf("expected true, got %v", result)
	}
}

func TestMemberOfNoProvider(t *testing.T) {
	fn, _ := Get("memberOf")
	ctx := eval.NewContext([]byte(`{}`))

	coding := types.NewResource([]byte(`{"system": "http://loinc.org", "code": "1234-5"}`))
	result, err := fn.Fn(ctx, types.Collection{coding}, []interface{}{"http://example.org/vs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Empty() {
		t.Errorf("expected empty result without a terminology provider, got %v", result)
	}
}

func TestSubsumesAndSubsumedBy(t *testing.T) {
	ctx := eval.NewContext([]byte(`{}`))
	ctx.SetTerminologyProvider(&fakeTerminology{
		relations: map[string]model.ConceptRelation{
			"http://snomed.info/sct|386661006|386661007": model.RelationSubsumes,
		},
	})

	broader := types.NewResource([]byte(`{"system": "http://snomed.info/sct", "code": "386661006"}`))
	narrower := types.NewResource([]byte(`{"system": "http://snomed.info/sct", "code": "386661007"}`))

	subsumesFn, _ := Get("subsumes")
	result, err := subsumesFn.Fn(ctx, types.Collection{broader}, []interface{}{narrower})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Empty() || !result[0].(types.Boolean).Bool() {
		t.Errorf("expected broader.subsumes(narrower) = true, got %v", result)
	}

	subsumedByFn, _ := Get("subsumedBy")
	result, err = subsumedByFn.Fn(ctx, types.Collection{narrower}, []interface{}{broader})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Empty() || !result[0].(types.Boolean).Bool() {
		t.Errorf("expected narrower.subsumedBy(broader) = true, got %v", result)
	}
}

func TestTranslate(t *testing.T) {
	fn, _ := Get("translate")
	ctx := eval.NewContext([]byte(`{}`))
	ctx.SetTerminologyProvider(&fakeTerminology{
		translated: map[string][]model.Coding{
			"http://loinc.org|1234-5|http://snomed.info/sct": {
				{System: "http://snomed.info/sct", Code: "9999-9", Display: "Translated"},
			},
		},
	})

	coding := types.NewResource([]byte(`{"system": "http://loinc.org", "code": "1234-5"}`))
	result, err := fn.Fn(ctx, types.Collection{coding}, []interface{}{"http://snomed.info/sct"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 translated coding, got %d", len(result))
	}
	res, ok := result[0].(*types.Resource)
	if !ok {
		t.Fatalf("expected *types.Resource, got %T", result[0])
	}
	system, code, ok := res.Coding()
	if !ok || system != "http://snomed.info/sct" || code != "9999-9" {
		t.Errorf("expected snomed 9999-9, got %s/%s ok=%v", system, code, ok)
	}
}

func TestConformsTo(t *testing.T) {
	fn, _ := Get("conformsTo")
	ctx := eval.NewContext([]byte(`{}`))
	ctx.SetValidationProvider(&fakeValidator{
		conformant: map[string]bool{"http://example.org/StructureDefinition/my-profile": true},
	})

	patient := types.NewResource([]byte(`{"resourceType": "Patient"}`))
	result, err := fn.Fn(ctx, types.Collection{patient}, []interface{}{"http://example.org/StructureDefinition/my-profile"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Empty() || !result[0].(types.Boolean).Bool() {
		t.Errorf("expected true, got %v", result)
	}
}
