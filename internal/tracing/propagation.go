package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToSubAgent derives the context for a delegated run. The trace and
// tenancy carry over, the depth grows by one and the execution id is cleared
// until the child run assigns its own.
func PropagateToSubAgent(ctx context.Context, subAgentID string) context.Context {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = NewTraceID()
	}

	child := WithTraceID(ctx, traceID)
	child = WithExecutionID(child, "")
	child = WithAgentID(child, subAgentID)
	return WithDepth(child, GetDepth(ctx)+1)
}

// LoggerFromContext returns base enriched with the run identity found on ctx.
func LoggerFromContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)
	lc := base.With()

	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.ExecutionID != "" {
		lc = lc.Str("execution_id", tc.ExecutionID)
	}
	if tc.AgentID != "" {
		lc = lc.Str("agent_id", tc.AgentID)
	}
	if tc.TenantID != "" {
		lc = lc.Str("tenant_id", tc.TenantID)
	}
	if tc.UserID != "" {
		lc = lc.Str("user_id", tc.UserID)
	}
	if tc.Depth > 0 {
		lc = lc.Int("delegation_depth", tc.Depth)
	}

	return lc.Logger()
}

// Detach copies the run identity of ctx onto a fresh background context, for
// work that must outlive the caller's cancellation such as final log writes.
func Detach(ctx context.Context) context.Context {
	return NewContext(context.Background(), FromContext(ctx))
}
