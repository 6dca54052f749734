// Package execlog records agent runs and provider attempts.
//
// Invariants:
// - Logging never changes the outcome of a run: Record swallows errors and panics.
// - Input and output are stored as summaries of at most 500 characters.
// - Aggregates only consider run-level records, never individual provider attempts.
package execlog
