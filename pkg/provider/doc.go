// Package provider isolates LLM vendor APIs behind a single Provider interface
// and wraps calls in an Invoker that applies per-attempt timeouts, retries with
// exponential backoff, rate limiting and a single fallback attempt.
//
// Every attempt, successful or not, is reported to the execution log and to the
// process metrics.
package provider
