// Package tool builds schema-described tools and executes them with
// argument validation.
//
// Invariants:
// - The schema sent to the model and the schema used for validation are the same document.
// - "required" is derived from Param.Optional, sorted, and never appears inside a property.
// - Handler errors surface as *ExecutionError and are never swallowed.
//
// Usage:
//
//	t, _ := tool.New("lookup", "Look up a record", map[string]tool.Param{
//		"id": {Type: "string", Description: "Record id"},
//	}, handler)
//	out, err := t.Execute(ctx, map[string]interface{}{"id": "42"}, ec)
package tool
