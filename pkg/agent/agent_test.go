package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/agentcore/pkg/execution"
	"github.com/harun/agentcore/pkg/guardrail"
	"github.com/harun/agentcore/pkg/tool"
	"github.com/harun/agentcore/pkg/tool/builtin"
)

func noopTool(t *testing.T, name string) *tool.Tool {
	t.Helper()
	tl, err := tool.New(name, "does nothing", nil, func(ctx context.Context, args map[string]interface{}, ec *execution.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	return tl
}

func TestNew(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		a, err := New("Helper", "You help.")
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, a.Model())
		assert.Equal(t, DefaultTemperature, a.Temperature())
		assert.Zero(t, a.MaxTokens())
		assert.NotEmpty(t, a.ID())
	})

	tests := []struct {
		name    string
		agent   string
		instr   string
		opts    []Option
		message string
	}{
		{"missing name", "", "x", nil, "Agent name is required"},
		{"missing instructions", "A", " ", nil, "Agent instructions are required"},
		{"temperature too high", "A", "x", []Option{WithTemperature(2.1)}, "Temperature must be between 0 and 2"},
		{"temperature negative", "A", "x", []Option{WithTemperature(-0.1)}, "Temperature must be between 0 and 2"},
		{"zero max tokens", "A", "x", []Option{WithMaxTokens(0)}, "maxTokens must be positive"},
		{"negative max tokens", "A", "x", []Option{WithMaxTokens(-1)}, "maxTokens must be positive"},
	}
	for _, tt := range tests {
		t.Run("should reject "+tt.name, func(t *testing.T) {
			_, err := New(tt.agent, tt.instr, tt.opts...)
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.message, cfgErr.Message)
		})
	}

	t.Run("should accept boundary temperatures", func(t *testing.T) {
		for _, temp := range []float64{0, 2} {
			_, err := New("A", "x", WithTemperature(temp), WithMaxTokens(1))
			assert.NoError(t, err)
		}
	})

	t.Run("should reject duplicate tool names", func(t *testing.T) {
		_, err := New("A", "x", WithTools(noopTool(t, "same"), noopTool(t, "same")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate tool name")
	})
}

func TestAgentImmutability(t *testing.T) {
	base, err := New("Original", "Original instructions", WithTemperature(0.8))
	require.NoError(t, err)

	t.Run("should clone with overrides", func(t *testing.T) {
		cloned, err := base.Clone(WithName("Modified"), WithTemperature(0.5))
		require.NoError(t, err)
		assert.Equal(t, "Modified", cloned.Name())
		assert.Equal(t, 0.5, cloned.Temperature())
		assert.Equal(t, "Original instructions", cloned.Instructions())
		assert.Equal(t, "Original", base.Name())
		assert.Equal(t, 0.8, base.Temperature())
	})

	t.Run("should validate clone overrides", func(t *testing.T) {
		_, err := base.Clone(WithTemperature(3))
		assert.Error(t, err)
	})

	t.Run("should add tools without touching the original", func(t *testing.T) {
		enhanced, err := base.WithTools(noopTool(t, "tool1"), noopTool(t, "tool2"))
		require.NoError(t, err)
		assert.Len(t, enhanced.Tools(), 2)
		assert.Empty(t, base.Tools())
	})

	t.Run("should add guardrails without touching the original", func(t *testing.T) {
		enhanced, err := base.WithGuardrails(guardrail.NewCostLimit(guardrail.CostLimitConfig{}))
		require.NoError(t, err)
		assert.Len(t, enhanced.Guardrails(), 1)
		assert.Empty(t, base.Guardrails())
	})

	t.Run("should hand out copies of tool slices", func(t *testing.T) {
		a, err := New("A", "x", WithTools(builtin.Calculate()))
		require.NoError(t, err)
		tools := a.Tools()
		tools[0] = nil
		assert.NotNil(t, a.Tools()[0])
	})
}

func TestSummary(t *testing.T) {
	long := "This is a very long instruction that should be truncated in the JSON output because it exceeds the maximum length allowed"
	a, err := New("Test Agent", long, WithModel("gpt-4o"), WithTemperature(0.9), WithTools(builtin.Calculate()),
		WithGuardrails(guardrail.NewCostLimit(guardrail.CostLimitConfig{})))
	require.NoError(t, err)

	s := a.Summary()
	assert.Equal(t, "Test Agent", s.Name)
	assert.Equal(t, "gpt-4o", s.Model)
	assert.Equal(t, 0.9, s.Temperature)
	assert.Equal(t, []string{"calculate"}, s.Tools)
	assert.Equal(t, []string{"cost:cost_limit"}, s.Guardrails)
	assert.LessOrEqual(t, len(s.Instructions), 103)
	assert.True(t, strings.HasSuffix(s.Instructions, "..."))
	assert.NotEqual(t, long, s.Instructions)

	short, err := New("Short", "Be brief.")
	require.NoError(t, err)
	assert.Equal(t, "Be brief....", short.Summary().Instructions)
	assert.NotEqual(t, "Be brief.", short.Summary().Instructions)

	exact, err := New("Exact", strings.Repeat("é", 100))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 100)+"...", exact.Summary().Instructions)
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "helper_agent", snakeCase("Helper Agent"))
	assert.Equal(t, "math_specialist_v2", snakeCase("Math  Specialist (v2)"))
	assert.Equal(t, "x", snakeCase("x!"))
}
