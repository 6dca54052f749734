package tracing

import (
	"context"

	"github.com/google/uuid"
)

type ContextKey string

const (
	TraceIDKey     ContextKey = "trace_id"
	ExecutionIDKey ContextKey = "execution_id"
	AgentIDKey     ContextKey = "agent_id"
	TenantIDKey    ContextKey = "tenant_id"
	UserIDKey      ContextKey = "user_id"
	// DepthKey holds the delegation depth of the current run. Root runs are depth 0.
	DepthKey ContextKey = "delegation_depth"
)

// TraceContext is the identity of the run a context belongs to.
type TraceContext struct {
	TraceID     string
	ExecutionID string
	AgentID     string
	TenantID    string
	UserID      string
	Depth       int
}

func NewTraceID() string {
	return uuid.New().String()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithExecutionID(ctx context.Context, executionID string) context.Context {
	return context.WithValue(ctx, ExecutionIDKey, executionID)
}

func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, AgentIDKey, agentID)
}

func WithTenant(ctx context.Context, tenantID, userID string) context.Context {
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	return context.WithValue(ctx, UserIDKey, userID)
}

func WithDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, DepthKey, depth)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string     { return stringValue(ctx, TraceIDKey) }
func GetExecutionID(ctx context.Context) string { return stringValue(ctx, ExecutionIDKey) }
func GetAgentID(ctx context.Context) string     { return stringValue(ctx, AgentIDKey) }
func GetTenantID(ctx context.Context) string    { return stringValue(ctx, TenantIDKey) }
func GetUserID(ctx context.Context) string      { return stringValue(ctx, UserIDKey) }

func GetDepth(ctx context.Context) int {
	if d, ok := ctx.Value(DepthKey).(int); ok {
		return d
	}
	return 0
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:     GetTraceID(ctx),
		ExecutionID: GetExecutionID(ctx),
		AgentID:     GetAgentID(ctx),
		TenantID:    GetTenantID(ctx),
		UserID:      GetUserID(ctx),
		Depth:       GetDepth(ctx),
	}
}

// NewContext stores every non-empty field of tc on ctx.
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.ExecutionID != "" {
		ctx = WithExecutionID(ctx, tc.ExecutionID)
	}
	if tc.AgentID != "" {
		ctx = WithAgentID(ctx, tc.AgentID)
	}
	if tc.TenantID != "" || tc.UserID != "" {
		ctx = WithTenant(ctx, tc.TenantID, tc.UserID)
	}
	if tc.Depth > 0 {
		ctx = WithDepth(ctx, tc.Depth)
	}
	return ctx
}

// NewRunContext tags ctx with a run's identity, starting a trace if none is active.
func NewRunContext(ctx context.Context, executionID, agentID, tenantID, userID string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	ctx = WithExecutionID(ctx, executionID)
	ctx = WithAgentID(ctx, agentID)
	return WithTenant(ctx, tenantID, userID)
}
