package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSystem(t *testing.T) {
	t.Run("should extract and join system messages", func(t *testing.T) {
		system, rest := SplitSystem([]Message{
			SystemMessage("be brief"),
			UserMessage("hi"),
			SystemMessage("be kind"),
			AssistantMessage("hello"),
		})

		assert.Equal(t, "be brief\n\nbe kind", system)
		require.Len(t, rest, 2)
		assert.Equal(t, RoleUser, rest[0].Role)
		assert.Equal(t, RoleAssistant, rest[1].Role)
	})

	t.Run("should return empty system when absent", func(t *testing.T) {
		system, rest := SplitSystem([]Message{UserMessage("hi")})
		assert.Empty(t, system)
		assert.Len(t, rest, 1)
	})
}

func TestValidateTranscript(t *testing.T) {
	tests := []struct {
		name    string
		msgs    []Message
		wantErr string
	}{
		{
			name: "valid tool round trip",
			msgs: []Message{
				UserMessage("calc"),
				AssistantMessage("", ToolCall{ID: "c1", Name: "calculate", Arguments: `{}`}),
				ToolMessage("c1", "42"),
			},
		},
		{
			name:    "orphan tool result",
			msgs:    []Message{UserMessage("calc"), ToolMessage("c9", "42")},
			wantErr: "no preceding assistant call",
		},
		{
			name:    "missing tool call id",
			msgs:    []Message{ToolMessage("", "42")},
			wantErr: "without tool call id",
		},
		{
			name:    "unknown role",
			msgs:    []Message{{Role: "robot", Content: "x"}},
			wantErr: "unknown role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTranscript(tt.msgs)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}, NewUsage(3, 4))
	assert.Equal(t, "second", LastUserContent([]Message{
		UserMessage("first"),
		AssistantMessage("ok"),
		UserMessage("second"),
		AssistantMessage("done"),
	}))
	assert.Empty(t, LastUserContent(nil))
}
