package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		key      string
		provider string
		baseURL  string
		wantErr  bool
	}{
		{"valid openai", "sk-abc", "openai", "", false},
		{"invalid openai", "abc", "openai", "", true},
		{"valid anthropic", "sk-ant-abc", "anthropic", "", false},
		{"invalid anthropic", "sk-abc", "anthropic", "", true},
		{"gemini any format", "AIzaSy", "gemini", "", false},
		{"custom base url skips format", "proxy-token", "openai", "http://localhost:8080", false},
		{"empty", "", "openai", "", true},
		{"whitespace", " sk-abc", "openai", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider, tt.baseURL)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRanges(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTemperature(0))
	assert.NoError(t, v.ValidateTemperature(2))
	assert.Error(t, v.ValidateTemperature(2.1))
	assert.Error(t, v.ValidateTemperature(-0.1))

	assert.NoError(t, v.ValidateMaxTokens(1))
	assert.Error(t, v.ValidateMaxTokens(0))
	assert.Error(t, v.ValidateMaxTokens(200001))

	assert.NoError(t, v.ValidateLogLevel("warn"))
	assert.Error(t, v.ValidateLogLevel("verbose"))
}

func TestValidateGuardrails(t *testing.T) {
	v := NewValidator()

	assert.Empty(t, v.ValidateGuardrails(DefaultConfig().Guardrails))

	g := GuardrailsConfig{
		Input:    InputGuardConfig{Mode: "paranoid"},
		Output:   OutputGuardConfig{Mode: "mask"},
		Keywords: KeywordGuardConfig{BlockedPatterns: []string{"(unclosed"}},
	}
	errs := v.ValidateGuardrails(g)
	assert.Len(t, errs, 3)
}

func TestValidateTools(t *testing.T) {
	v := NewValidator()

	agent := AgentConfig{ID: "a", Tools: []string{"calculate", "searchKnowledgeBase", "teleport"}}

	errs := v.ValidateTools(agent, false)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "requires knowledge.base_url")
	assert.Contains(t, errs[1].Error(), "unknown tool teleport")

	errs = v.ValidateTools(agent, true)
	assert.Len(t, errs, 1)
}

func TestDelegationCycle(t *testing.T) {
	v := NewValidator()

	t.Run("should accept a tree", func(t *testing.T) {
		agents := []AgentConfig{
			{ID: "lead", Delegates: []string{"math", "writer"}},
			{ID: "math"},
			{ID: "writer", Delegates: []string{"math"}},
		}
		assert.Nil(t, v.DelegationCycle(agents))
	})

	t.Run("should report the cycle path", func(t *testing.T) {
		agents := []AgentConfig{
			{ID: "lead", Delegates: []string{"a"}},
			{ID: "a", Delegates: []string{"b"}},
			{ID: "b", Delegates: []string{"a"}},
		}
		assert.Equal(t, []string{"a", "b", "a"}, v.DelegationCycle(agents))
	})
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("should accept the defaults with a key", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(validConfig()))
	})

	t.Run("should collect every problem", func(t *testing.T) {
		cfg := validConfig()
		cfg.Providers.Primary.APIKey = "not-a-key"
		cfg.Runner.MaxIterations = -1
		bad := 3.0
		cfg.Agents[0].Temperature = &bad
		cfg.Logging.Level = "loud"
		cfg.Tracing.SampleRatio = 1.5

		errs := v.ValidateConfig(cfg)
		var msgs []string
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		joined := strings.Join(msgs, "\n")

		assert.Contains(t, joined, "invalid OpenAI API key format")
		assert.Contains(t, joined, "runner.max_iterations")
		assert.Contains(t, joined, "temperature must be between 0 and 2")
		assert.Contains(t, joined, "invalid log level")
		assert.Contains(t, joined, "tracing.sample_ratio")
	})
}
