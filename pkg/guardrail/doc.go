// Package guardrail implements the policy checks a run passes through:
// input screening before the first model call, cost ceilings before every
// model call, approval gates before every tool call and output validation
// before the final answer is returned.
//
// Invariants:
// - Guardrails never mutate their input.
// - A guardrail that errors blocks; failures are never treated as a pass.
// - Only output guardrails may redact, and a redaction replaces the final text.
package guardrail
