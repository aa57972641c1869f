package funcs

import (
	"encoding/json"
	"strings"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/model"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/registry"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/types"
)

func init() {
	// Register FHIR-specific functions
	resolveDef := FuncDef{
		Name:    "resolve",
		MinArgs: 0,
		MaxArgs: 0,
		Fn:      fnResolve,
	}
	Register(resolveDef)
	registry.Describe(registry.Def{FuncDef: resolveDef, Async: true})

	extensionDef := FuncDef{
		Name:    "extension",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnExtension,
	}
	Register(extensionDef)
	registry.Describe(registry.Def{FuncDef: extensionDef, Pure: true})

	hasExtensionDef := FuncDef{
		Name:    "hasExtension",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnHasExtension,
	}
	Register(hasExtensionDef)
	registry.Describe(registry.Def{FuncDef: hasExtensionDef, Pure: true})

	getExtensionValueDef := FuncDef{
		Name:    "getExtensionValue",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnGetExtensionValue,
	}
	Register(getExtensionValueDef)
	registry.Describe(registry.Def{FuncDef: getExtensionValueDef, Pure: true})

	getReferenceKeyDef := FuncDef{
		Name:    "getReferenceKey",
		MinArgs: 0,
		MaxArgs: 1,
		Fn:      fnGetReferenceKey,
	}
	Register(getReferenceKeyDef)
	registry.Describe(registry.Def{FuncDef: getReferenceKeyDef, Pure: true})

	conformsToDef := FuncDef{
		Name:    "conformsTo",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnConformsTo,
	}
	Register(conformsToDef)
	registry.Describe(registry.Def{FuncDef: conformsToDef, Async: true})

	memberOfDef := FuncDef{
		Name:    "memberOf",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnMemberOf,
	}
	Register(memberOfDef)
	registry.Describe(registry.Def{FuncDef: memberOfDef, Async: true})

	subsumesDef := FuncDef{
		Name:    "subsumes",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnSubsumes,
	}
	Register(subsumesDef)
	registry.Describe(registry.Def{FuncDef: subsumesDef, Async: true})

	subsumedByDef := FuncDef{
		Name:    "subsumedBy",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnSubsumedBy,
	}
	Register(subsumedByDef)
	registry.Describe(registry.Def{FuncDef: subsumedByDef, Async: true})

	translateDef := FuncDef{
		Name:    "translate",
		MinArgs: 1,
		MaxArgs: 1,
		Fn:      fnTranslate,
	}
	Register(translateDef)
	registry.Describe(registry.Def{FuncDef: translateDef, Async: true})
}

// fnResolve resolves a FHIR reference to the referenced resource.
//
// When a model.Provider is configured (spec.md §6), resolution goes through
// ResolveReferenceInContext, which encapsulates the contained/bundle/
// external search order (spec.md §9 "Reference resolution") — the current
// item's own JSON is passed as currentFocus so the provider can walk up to
// a parent resource's "contained" array. The bare Resolver set via
// SetResolver is a fallback for callers that only care about external
// reference lookup and never configured a provider.
func fnResolve(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}

	provider := ctx.ModelProvider()
	resolver := ctx.GetResolver()
	result := types.Collection{}

	for _, item := range input {
		var reference string
		var focusBytes []byte

		switch v := item.(type) {
		case types.String:
			reference = v.Value()
		case *types.Resource:
			focusBytes = v.Data()
			// Try to get the 'reference' field from a Reference object
			if ref, ok := v.Get("reference"); ok {
				if refStr, ok := ref.(types.String); ok {
					reference = refStr.Value()
				}
			}
		}

		if reference == "" {
			continue
		}

		if provider != nil {
			resolved, found, err := provider.ResolveReferenceInContext(ctx.Context(), reference, ctx.RootBytes(), focusBytes)
			if err == nil && found {
				if col, err := types.JSONToCollection(resolved); err == nil {
					result = append(result, col...)
					continue
				}
			}
		}

		if resolver == nil {
			continue
		}

		resourceJSON, err := resolver.Resolve(ctx.Context(), reference)
		if err != nil {
			// Skip references that can't be resolved
			continue
		}

		col, err := types.JSONToCollection(resourceJSON)
		if err != nil {
			continue
		}

		result = append(result, col...)
	}

	return result, nil
}

// codingOf extracts the (system, code) pair from a Coding, the first
// coding of a CodeableConcept, or a bare code string, in that order.
// The object-shaped cases delegate to Resource.Coding.
func codingOf(item types.Value) (system, code string, ok bool) {
	switch v := item.(type) {
	case types.String:
		return "", v.Value(), true
	case *types.Resource:
		return v.Coding()
	}
	return "", "", false
}

func firstStringArg(args []interface{}) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	switch v := args[0].(type) {
	case types.Collection:
		if !v.Empty() {
			if s, ok := v[0].(types.String); ok {
				return s.Value(), true
			}
		}
	case types.String:
		return v.Value(), true
	case string:
		return v, true
	}
	return "", false
}

// fnConformsTo implements conformsTo(profile) against the configured
// ValidationProvider (spec.md §4.I, §6 Validation Provider capability).
func fnConformsTo(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}
	if len(input) != 1 {
		return nil, eval.SingletonError(len(input))
	}
	profile, ok := firstStringArg(args)
	if !ok || profile == "" {
		return nil, eval.InvalidArgumentsError("conformsTo", 1, len(args))
	}
	validator := ctx.ValidationProvider()
	if validator == nil {
		return types.Collection{}, nil
	}
	res, ok := input[0].(*types.Resource)
	if !ok {
		return types.Collection{types.NewBoolean(false)}, nil
	}
	conforms, err := validator.ConformsTo(ctx.Context(), res.Data(), profile)
	if err != nil {
		return types.Collection{}, nil
	}
	return types.Collection{types.NewBoolean(conforms)}, nil
}

// fnMemberOf implements memberOf(valueSet) against the configured
// TerminologyProvider (spec.md §4.I, §6 Terminology Provider capability).
func fnMemberOf(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}
	if len(input) != 1 {
		return nil, eval.SingletonError(len(input))
	}
	valueSet, ok := firstStringArg(args)
	if !ok || valueSet == "" {
		return nil, eval.InvalidArgumentsError("memberOf", 1, len(args))
	}
	terminology := ctx.TerminologyProvider()
	if terminology == nil {
		return types.Collection{}, nil
	}
	system, code, ok := codingOf(input[0])
	if !ok {
		return types.Collection{types.NewBoolean(false)}, nil
	}
	valid, err := terminology.ValidateCode(ctx.Context(), system, code, valueSet)
	if err != nil {
		return types.Collection{}, nil
	}
	return types.Collection{types.NewBoolean(valid)}, nil
}

// subsumesRelation evaluates subsumes()/subsumedBy() against the
// TerminologyProvider, swapping the (codeA, codeB) order for the latter.
func subsumesRelation(ctx *eval.Context, input types.Collection, args []interface{}, swap bool) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}
	if len(input) != 1 {
		return nil, eval.SingletonError(len(input))
	}
	terminology := ctx.TerminologyProvider()
	if terminology == nil {
		return types.Collection{}, nil
	}
	if len(args) == 0 {
		return nil, eval.InvalidArgumentsError("subsumes", 1, 0)
	}
	var other types.Value
	switch v := args[0].(type) {
	case types.Collection:
		if v.Empty() {
			return types.Collection{}, nil
		}
		other = v[0]
	case types.Value:
		other = v
	default:
		return types.Collection{}, nil
	}

	systemA, codeA, okA := codingOf(input[0])
	systemB, codeB, okB := codingOf(other)
	if !okA || !okB || systemA != systemB {
		return types.Collection{types.NewBoolean(false)}, nil
	}
	if swap {
		codeA, codeB = codeB, codeA
	}
	relation, err := terminology.Subsumes(ctx.Context(), systemA, codeA, codeB)
	if err != nil {
		return types.Collection{}, nil
	}
	result := relation == model.RelationSubsumes || relation == model.RelationEquivalent
	return types.Collection{types.NewBoolean(result)}, nil
}

// fnSubsumes implements subsumes(coding) (spec.md §4.I).
func fnSubsumes(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	return subsumesRelation(ctx, input, args, false)
}

// fnSubsumedBy implements subsumedBy(coding), the inverse direction of subsumes().
func fnSubsumedBy(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	return subsumesRelation(ctx, input, args, true)
}

// fnTranslate implements translate(targetSystem) against the configured
// TerminologyProvider (spec.md §4.I), returning the translated Codings.
func fnTranslate(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}
	if len(input) != 1 {
		return nil, eval.SingletonError(len(input))
	}
	targetSystem, ok := firstStringArg(args)
	if !ok || targetSystem == "" {
		return nil, eval.InvalidArgumentsError("translate", 1, len(args))
	}
	terminology := ctx.TerminologyProvider()
	if terminology == nil {
		return types.Collection{}, nil
	}
	system, code, ok := codingOf(input[0])
	if !ok {
		return types.Collection{}, nil
	}
	codings, err := terminology.Translate(ctx.Context(), system, code, targetSystem)
	if err != nil {
		return types.Collection{}, nil
	}
	result := make(types.Collection, 0, len(codings))
	for _, c := range codings {
		raw, err := json.Marshal(struct {
			System  string `json:"system,omitempty"`
			Code    string `json:"code,omitempty"`
			Display string `json:"display,omitempty"`
		}{c.System, c.Code, c.Display})
		if err != nil {
			continue
		}
		result = append(result, types.NewResourceWithType(raw, "Coding", ""))
	}
	return result, nil
}

// fnExtension returns extensions matching the given URL.
func fnExtension(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if input.Empty() || len(args) == 0 {
		return types.Collection{}, nil
	}

	// Get the extension URL to search for
	var url string
	if col, ok := args[0].(types.Collection); ok && !col.Empty() {
		if str, ok := col[0].(types.String); ok {
			url = str.Value()
		}
	}

	if url == "" {
		return types.Collection{}, nil
	}

	result := types.Collection{}

	for _, item := range input {
		obj, ok := item.(*types.Resource)
		if !ok {
			continue
		}

		// Get the extension array
		extensions := obj.GetCollection("extension")
		for _, ext := range extensions {
			extObj, ok := ext.(*types.Resource)
			if !ok {
				continue
			}

			// Check if the URL matches
			if extURL, ok := extObj.Get("url"); ok {
				if urlStr, ok := extURL.(types.String); ok {
					if urlStr.Value() == url {
						result = append(result, extObj)
					}
				}
			}
		}
	}

	return result, nil
}

// fnHasExtension returns true if any input element has an extension with the given URL.
func fnHasExtension(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	extensions, err := fnExtension(ctx, input, args)
	if err != nil {
		return nil, err
	}

	return types.Collection{types.NewBoolean(!extensions.Empty())}, nil
}

// fnGetExtensionValue returns the value of extensions matching the given URL.
func fnGetExtensionValue(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	extensions, err := fnExtension(ctx, input, args)
	if err != nil {
		return nil, err
	}

	result := types.Collection{}

	for _, ext := range extensions {
		extObj, ok := ext.(*types.Resource)
		if !ok {
			continue
		}

		// Look for value[x] fields
		valueFields := []string{
			"valueString", "valueBoolean", "valueInteger", "valueDecimal",
			"valueDate", "valueDateTime", "valueTime", "valueCode",
			"valueCoding", "valueCodeableConcept", "valueQuantity",
			"valueReference", "valueIdentifier", "valuePeriod",
			"valueRange", "valueRatio", "valueAttachment",
			"valueUri", "valueUrl", "valueCanonical",
		}

		for _, field := range valueFields {
			if val, ok := extObj.Get(field); ok {
				result = append(result, val)
				break
			}
		}
	}

	return result, nil
}

// fnGetReferenceKey extracts the resource type and ID from a reference.
// Returns a string in the format "ResourceType/id" or just "id" if no type prefix.
func fnGetReferenceKey(ctx *eval.Context, input types.Collection, args []interface{}) (types.Collection, error) {
	if input.Empty() {
		return types.Collection{}, nil
	}

	// Optional argument: specific part to extract ("type", "id", or default "key")
	part := "key"
	if len(args) > 0 {
		if col, ok := args[0].(types.Collection); ok && !col.Empty() {
			if str, ok := col[0].(types.String); ok {
				part = str.Value()
			}
		}
	}

	result := types.Collection{}

	for _, item := range input {
		var reference string

		switch v := item.(type) {
		case types.String:
			reference = v.Value()
		case *types.Resource:
			if ref, ok := v.Get("reference"); ok {
				if refStr, ok := ref.(types.String); ok {
					reference = refStr.Value()
				}
			}
		}

		if reference == "" {
			continue
		}

		// Parse the reference
		// Remove any URL prefix (e.g., "http://example.org/fhir/Patient/123")
		if idx := strings.LastIndex(reference, "/"); idx > 0 {
			// Check if there's a resource type prefix before this
			beforeSlash := reference[:idx]
			if lastSlashBefore := strings.LastIndex(beforeSlash, "/"); lastSlashBefore >= 0 {
				reference = beforeSlash[lastSlashBefore+1:] + "/" + reference[idx+1:]
			}
		}

		switch part {
		case "type":
			if idx := strings.Index(reference, "/"); idx > 0 {
				result = append(result, types.NewString(reference[:idx]))
			}
		case "id":
			if idx := strings.LastIndex(reference, "/"); idx >= 0 {
				result = append(result, types.NewString(reference[idx+1:]))
			} else {
				result = append(result, types.NewString(reference))
			}
		default: // "key" or any other value
			result = append(result, types.NewString(reference))
		}
	}

	return result, nil
}
