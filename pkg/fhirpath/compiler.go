package fhirpath

import (
	"fmt"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/diagnostics"
	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/parser"
)

// compile parses a FHIRPath expression into a compiled Expression using
// the hand-written lexer/parser pair, replacing the ANTLR-generated
// grammar the teacher depended on (no grammar artifacts were available
// to carry forward; see SPEC_FULL.md §2).
func compile(expr string) (*Expression, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	tree, diags := parser.Parse(expr)
	if diagnostics.HasErrors(diags) {
		return nil, fmt.Errorf("parse errors: %v", diags)
	}

	return &Expression{
		source: expr,
		tree:   tree,
	}, nil
}
