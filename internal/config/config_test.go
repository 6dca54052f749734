package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Providers.Primary.APIKeyEnv = ""
	cfg.Providers.Primary.APIKey = "sk-test123"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "openai", cfg.Providers.Primary.Provider)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Providers.Primary.APIKeyEnv)
	assert.Nil(t, cfg.Providers.Fallback)
	assert.Equal(t, 10, cfg.Runner.MaxIterations)
	assert.Equal(t, 60*time.Second, cfg.Runner.Timeout())
	assert.True(t, cfg.Guardrails.Input.Enabled)
	assert.Equal(t, "redact", cfg.Guardrails.Output.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "assistant", cfg.Agents[0].ID)
	assert.Equal(t, []string{"calculate", "current_time"}, cfg.Agents[0].Tools)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"missing provider", func(c *Config) { c.Providers.Primary.Provider = "" }, "provider is required"},
		{"unknown provider", func(c *Config) { c.Providers.Primary.Provider = "cohere" }, "invalid provider cohere"},
		{"missing key", func(c *Config) { c.Providers.Primary.APIKey = "" }, "api_key or api_key_env is required"},
		{"unset key env", func(c *Config) {
			c.Providers.Primary.APIKey = ""
			c.Providers.Primary.APIKeyEnv = "AGENTCORE_TEST_UNSET_KEY"
		}, "AGENTCORE_TEST_UNSET_KEY is not set"},
		{"invalid fallback", func(c *Config) {
			c.Providers.Fallback = &ProviderConfig{Provider: "anthropic"}
		}, "fallback provider"},
		{"no agents", func(c *Config) { c.Agents = nil }, "at least one agent"},
		{"agent missing ID", func(c *Config) { c.Agents[0].ID = "" }, "ID is required"},
		{"duplicate agent", func(c *Config) { c.Agents = append(c.Agents, c.Agents[0]) }, "duplicate ID"},
		{"agent missing instructions", func(c *Config) { c.Agents[0].Instructions = "" }, "instructions are required"},
		{"unknown delegate", func(c *Config) { c.Agents[0].Delegates = []string{"ghost"} }, "unknown delegate ghost"},
		{"self delegation", func(c *Config) { c.Agents[0].Delegates = []string{"assistant"} }, "cannot delegate to itself"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProviderConfig(t *testing.T) {
	t.Run("should prefer the inline key", func(t *testing.T) {
		t.Setenv("AGENTCORE_TEST_KEY", "from-env")
		p := ProviderConfig{APIKey: "inline", APIKeyEnv: "AGENTCORE_TEST_KEY"}
		assert.Equal(t, "inline", p.ResolveAPIKey())

		p.APIKey = ""
		assert.Equal(t, "from-env", p.ResolveAPIKey())
	})

	t.Run("should convert to profile and settings", func(t *testing.T) {
		p := ProviderConfig{
			Provider:     "anthropic",
			APIKey:       "sk-ant-x",
			BaseURL:      "http://proxy",
			TimeoutMs:    1500,
			MaxRetries:   2,
			RetryDelayMs: 250,
			RateLimit:    5,
			Burst:        2,
		}

		profile := p.Profile()
		assert.Equal(t, "anthropic", profile.Provider)
		assert.Equal(t, "sk-ant-x", profile.APIKey)
		assert.Equal(t, "http://proxy", profile.BaseURL)

		s := p.Settings()
		assert.Equal(t, 1500*time.Millisecond, s.Timeout)
		assert.Equal(t, 2, s.MaxRetries)
		assert.Equal(t, 250*time.Millisecond, s.RetryDelay)
		assert.Equal(t, 5.0, s.RateLimit)
		assert.Equal(t, 2, s.Burst)
	})
}

func TestConfigAgent(t *testing.T) {
	cfg := DefaultConfig()

	a, ok := cfg.Agent("assistant")
	assert.True(t, ok)
	assert.Equal(t, "Assistant", a.Name)

	_, ok = cfg.Agent("missing")
	assert.False(t, ok)
}

func TestConfigString(t *testing.T) {
	out := validConfig().String()
	assert.Contains(t, out, `"providers"`)
	assert.Contains(t, out, `"max_iterations": 10`)
}

func TestValidateAgentsWithoutKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers.Primary.APIKeyEnv = "AGENTCORE_TEST_UNSET_KEY"

	assert.Error(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateAgents())
}
