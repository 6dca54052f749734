package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizard(t *testing.T) {
	t.Run("should accept defaults on empty input", func(t *testing.T) {
		var out bytes.Buffer
		cfg, err := NewWizard(strings.NewReader(""), &out).Run()
		require.NoError(t, err)

		assert.Equal(t, "openai", cfg.Providers.Primary.Provider)
		assert.Equal(t, "OPENAI_API_KEY", cfg.Providers.Primary.APIKeyEnv)
		assert.Nil(t, cfg.Providers.Fallback)
		assert.Equal(t, "gpt-4o-mini", cfg.Agents[0].Model)
		assert.Empty(t, cfg.Knowledge.BaseURL)
		assert.Contains(t, out.String(), "Configuration complete!")
	})

	t.Run("should configure a fallback and knowledge search", func(t *testing.T) {
		input := strings.Join([]string{
			"cohere",    // rejected
			"anthropic", // primary
			"",          // ANTHROPIC_API_KEY
			"openai",    // fallback
			"MY_OPENAI", // env var
			"",          // default model for anthropic
			"http://kb.local",
			"verbose", // invalid level
		}, "\n") + "\n"

		var out bytes.Buffer
		cfg, err := NewWizard(strings.NewReader(input), &out).Run()
		require.NoError(t, err)

		assert.Contains(t, out.String(), `unsupported provider "cohere"`)
		assert.Equal(t, "anthropic", cfg.Providers.Primary.Provider)
		assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Providers.Primary.APIKeyEnv)
		require.NotNil(t, cfg.Providers.Fallback)
		assert.Equal(t, "MY_OPENAI", cfg.Providers.Fallback.APIKeyEnv)
		assert.Equal(t, "claude-3-5-haiku-latest", cfg.Agents[0].Model)
		assert.Equal(t, "http://kb.local", cfg.Knowledge.BaseURL)
		assert.Contains(t, cfg.Agents[0].Tools, "searchKnowledgeBase")
		assert.Equal(t, "info", cfg.Logging.Level)
	})
}
