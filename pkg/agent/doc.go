// Package agent defines immutable agent configurations and the Runner that
// drives one bounded conversation of model calls and tool invocations.
//
// Invariants:
// - Agents are never mutated; Clone, WithTools and WithGuardrails return new agents.
// - Tenant and user are required on every run and checked before any guardrail or provider call.
// - Each run owns a fresh execution.Context and reports exactly once to the execution log and metrics.
// - Run never panics and never returns a Go error; every outcome is a RunResult.
//
// Usage:
//
//	a, _ := agent.New("Math", "You solve arithmetic.", agent.WithTools(builtin.Calculate()))
//	runner, _ := agent.NewRunner(agent.Config{Primary: provider.NewTarget(p, provider.Settings{})})
//	res := runner.Run(ctx, a, []llm.Message{llm.UserMessage("What is 47 times 23?")},
//		agent.RunOptions{TenantID: "t1", UserID: "u1"})
//	fmt.Println(res.FinalOutput)
package agent
