package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContext(t *testing.T) {
	t.Run("should tag identity and start a trace", func(t *testing.T) {
		ctx := NewRunContext(context.Background(), "exec-1", "agent-1", "tenant-1", "user-1")

		tc := FromContext(ctx)
		assert.NotEmpty(t, tc.TraceID)
		assert.Equal(t, "exec-1", tc.ExecutionID)
		assert.Equal(t, "agent-1", tc.AgentID)
		assert.Equal(t, "tenant-1", tc.TenantID)
		assert.Equal(t, "user-1", tc.UserID)
		assert.Zero(t, tc.Depth)
	})

	t.Run("should keep an existing trace id", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-1")
		ctx = NewRunContext(ctx, "exec-1", "agent-1", "t", "u")
		assert.Equal(t, "trace-1", GetTraceID(ctx))
	})

	t.Run("should return empty values on a bare context", func(t *testing.T) {
		tc := FromContext(context.Background())
		assert.Equal(t, &TraceContext{}, tc)
	})
}

func TestPropagateToSubAgent(t *testing.T) {
	parent := NewRunContext(context.Background(), "exec-1", "parent", "tenant-1", "user-1")
	child := PropagateToSubAgent(parent, "child")

	assert.Equal(t, GetTraceID(parent), GetTraceID(child))
	assert.Equal(t, "child", GetAgentID(child))
	assert.Equal(t, "tenant-1", GetTenantID(child))
	assert.Empty(t, GetExecutionID(child))
	assert.Equal(t, 1, GetDepth(child))

	grandchild := PropagateToSubAgent(child, "grandchild")
	assert.Equal(t, 2, GetDepth(grandchild))
	assert.Equal(t, "parent", GetAgentID(parent))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewRunContext(context.Background(), "exec-1", "agent-1", "tenant-1", "user-1")
	ctx = WithDepth(ctx, 2)

	logger := LoggerFromContext(ctx, zerolog.New(&buf))
	logger.Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"execution_id":"exec-1"`)
	assert.Contains(t, out, `"tenant_id":"tenant-1"`)
	assert.Contains(t, out, `"delegation_depth":2`)
}

func TestDetach(t *testing.T) {
	ctx, cancel := context.WithCancel(NewRunContext(context.Background(), "exec-1", "a", "t", "u"))
	cancel()

	detached := Detach(ctx)
	assert.NoError(t, detached.Err())
	assert.Equal(t, "exec-1", GetExecutionID(detached))
}

func TestStartSpan(t *testing.T) {
	require.NoError(t, InitOpenTelemetry(Options{ServiceName: "agentcore-test", ServiceVersion: "test"}))
	defer ShutdownOpenTelemetry(context.Background())

	ctx, span := StartSpan(context.Background(), "test", "op", RunAttributes(context.Background())...)
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, Options{}.sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, Options{SampleRatio: 1}.sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, Options{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}
