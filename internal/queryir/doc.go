// Package queryir is the declarative predicate representation for document
// queries.
//
// It is the parameterized counterpart to the raw-filter path in querysql:
// predicates name fields inside the JSON payload by dotted path and carry
// literal values that are always bound as parameters, never spliced into
// SQL text. Use it for untrusted input.
//
//	[caller predicate] → [queryir.Select] → querysql.Compiler → [querysql.Text]
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method, so backends can switch
// exhaustively over the node types defined here:
//
//	switch p := pred.(type) {
//	case Equals, Compare, IsNull:  // leaf comparisons
//	case And, Or, Not:             // combinators
//	}
//
// FIELD PATHS:
//
// A field is one or more identifier segments joined by dots
// ("Address.City"). Segments must match [A-Za-z_][A-Za-z0-9_]*; anything
// else is rejected by Validate, which is what keeps field names safe to
// render into JSON path expressions.
//
// VALUES:
//
// Literal values are strings, booleans, integers, floats, or uuid.UUID.
// A nil value in Equals means "field is null".
package queryir
