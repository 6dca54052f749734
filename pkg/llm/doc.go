// Package llm defines the provider-neutral conversation types shared by the
// runner, the guardrails and the provider backends.
//
// Invariants:
// - A tool message always answers a tool call issued by an earlier assistant message.
// - Tool call arguments travel as raw JSON text and are decoded by the tool layer.
package llm
