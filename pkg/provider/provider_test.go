package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/harun/agentcore/pkg/execlog"
	"github.com/harun/agentcore/pkg/llm"
)

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*llm.Response)
	return resp, args.Error(1)
}

type hangingProvider struct{}

func (hangingProvider) Name() string { return "slow" }

func (hangingProvider) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type panickingProvider struct{}

func (panickingProvider) Name() string { return "broken" }

func (panickingProvider) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	panic("boom")
}

type captureLog struct {
	mu      sync.Mutex
	entries []execlog.Entry
}

func (c *captureLog) LogExecution(ctx context.Context, e execlog.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func fastSettings() Settings {
	return Settings{Timeout: time.Second, MaxRetries: 3, RetryDelay: time.Millisecond}
}

func testRequest() llm.Request {
	return llm.Request{
		Model:    "gpt-4o-mini",
		Messages: []llm.Message{llm.SystemMessage("be brief"), llm.UserMessage("hello")},
	}
}

func TestInvoker(t *testing.T) {
	ctx := context.Background()

	t.Run("should return primary response on first success", func(t *testing.T) {
		primary := &mockProvider{name: "openai"}
		primary.On("Call", mock.Anything, mock.Anything).
			Return(&llm.Response{Content: "hi"}, nil).Once()

		logs := &captureLog{}
		inv, err := NewInvoker(Options{AgentID: "a1", TenantID: "t1", UserID: "u1", Primary: NewTarget(primary, fastSettings()), ExecLog: logs})
		require.NoError(t, err)

		res, err := inv.SendRequest(ctx, testRequest())
		require.NoError(t, err)
		assert.Equal(t, "hi", res.Response.Content)
		assert.Equal(t, "openai", res.Provider)
		assert.False(t, res.FallbackUsed)
		assert.Equal(t, 1, res.Attempts)

		require.Len(t, logs.entries, 1)
		entry := logs.entries[0]
		assert.Equal(t, execlog.EventProviderAttempt, entry.Event)
		assert.True(t, entry.Success)
		assert.Equal(t, "hello", entry.InputSummary)
		assert.Equal(t, "t1", entry.TenantID)
		primary.AssertExpectations(t)
	})

	t.Run("should retry then succeed", func(t *testing.T) {
		primary := &mockProvider{name: "openai"}
		primary.On("Call", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Twice()
		primary.On("Call", mock.Anything, mock.Anything).Return(&llm.Response{Content: "ok"}, nil).Once()

		inv, err := NewInvoker(Options{Primary: NewTarget(primary, fastSettings())})
		require.NoError(t, err)

		res, err := inv.SendRequest(ctx, testRequest())
		require.NoError(t, err)
		assert.Equal(t, 3, res.Attempts)
		primary.AssertNumberOfCalls(t, "Call", 3)
	})

	t.Run("should fall back after exactly MaxRetries primary attempts", func(t *testing.T) {
		primary := &mockProvider{name: "openai"}
		primary.On("Call", mock.Anything, mock.Anything).Return(nil, errors.New("upstream down"))
		fallback := &mockProvider{name: "anthropic"}
		fallback.On("Call", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
			return r.Model == "claude-3-5-haiku-latest"
		})).Return(&llm.Response{Content: "from fallback"}, nil).Once()

		fb := NewTarget(fallback, fastSettings())
		fb.Model = "claude-3-5-haiku-latest"

		logs := &captureLog{}
		inv, err := NewInvoker(Options{Primary: NewTarget(primary, fastSettings()), Fallback: &fb, ExecLog: logs})
		require.NoError(t, err)

		res, err := inv.SendRequest(ctx, testRequest())
		require.NoError(t, err)
		assert.True(t, res.FallbackUsed)
		assert.Equal(t, "anthropic", res.Provider)
		assert.Equal(t, "from fallback", res.Response.Content)
		assert.Equal(t, 4, res.Attempts)
		primary.AssertNumberOfCalls(t, "Call", 3)
		fallback.AssertNumberOfCalls(t, "Call", 1)

		require.Len(t, logs.entries, 4)
		assert.Equal(t, true, logs.entries[3].Metadata["fallback"])
		assert.Equal(t, "upstream down", logs.entries[0].Error)
	})

	t.Run("should fail with InvocationError when everything fails", func(t *testing.T) {
		primary := &mockProvider{name: "openai"}
		primary.On("Call", mock.Anything, mock.Anything).Return(nil, errors.New("primary down"))
		fallback := &mockProvider{name: "gemini"}
		fallback.On("Call", mock.Anything, mock.Anything).Return(nil, errors.New("fallback down"))

		fb := NewTarget(fallback, fastSettings())
		inv, err := NewInvoker(Options{Primary: NewTarget(primary, fastSettings()), Fallback: &fb})
		require.NoError(t, err)

		_, err = inv.SendRequest(ctx, testRequest())
		require.Error(t, err)

		var invErr *InvocationError
		require.ErrorAs(t, err, &invErr)
		assert.Equal(t, "openai", invErr.Primary)
		assert.Equal(t, "gemini", invErr.Fallback)
		assert.Contains(t, err.Error(), "primary down")
		assert.Contains(t, err.Error(), "fallback down")
		fallback.AssertNumberOfCalls(t, "Call", 1)
	})

	t.Run("should report exhaustion without fallback", func(t *testing.T) {
		primary := &mockProvider{name: "openai"}
		primary.On("Call", mock.Anything, mock.Anything).Return(nil, errors.New("nope"))

		inv, err := NewInvoker(Options{Primary: NewTarget(primary, Settings{MaxRetries: 2, RetryDelay: time.Millisecond})})
		require.NoError(t, err)

		_, err = inv.SendRequest(ctx, testRequest())
		var invErr *InvocationError
		require.ErrorAs(t, err, &invErr)
		assert.Empty(t, invErr.Fallback)
		assert.Contains(t, err.Error(), "failed after retries")
		primary.AssertNumberOfCalls(t, "Call", 2)
	})

	t.Run("should treat a timeout as a failed attempt", func(t *testing.T) {
		inv, err := NewInvoker(Options{Primary: NewTarget(hangingProvider{}, Settings{
			Timeout: 20 * time.Millisecond, MaxRetries: 2, RetryDelay: time.Millisecond,
		})})
		require.NoError(t, err)

		_, err = inv.SendRequest(ctx, testRequest())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("should turn provider panics into errors", func(t *testing.T) {
		inv, err := NewInvoker(Options{Primary: NewTarget(panickingProvider{}, Settings{MaxRetries: 1})})
		require.NoError(t, err)

		_, err = inv.SendRequest(ctx, testRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panicked")
	})

	t.Run("should stop retrying when the caller cancels", func(t *testing.T) {
		primary := &mockProvider{name: "openai"}
		primary.On("Call", mock.Anything, mock.Anything).Return(nil, errors.New("down"))

		inv, err := NewInvoker(Options{Primary: NewTarget(primary, Settings{MaxRetries: 3, RetryDelay: time.Hour})})
		require.NoError(t, err)

		cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()

		_, err = inv.SendRequest(cctx, testRequest())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		primary.AssertNumberOfCalls(t, "Call", 1)
	})

	t.Run("should require a primary provider", func(t *testing.T) {
		_, err := NewInvoker(Options{})
		assert.Error(t, err)
	})
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}.withDefaults()
	assert.Equal(t, DefaultTimeout, s.Timeout)
	assert.Equal(t, DefaultMaxRetries, s.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, s.RetryDelay)

	target := NewTarget(&mockProvider{name: "x"}, Settings{RateLimit: 5})
	require.NotNil(t, target.Limiter)
	assert.Equal(t, 1, target.Limiter.Burst())
	assert.Nil(t, NewTarget(&mockProvider{name: "x"}, Settings{}).Limiter)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"anthropic", "gemini", "openai"}, r.Names())

	t.Run("should reject unknown providers", func(t *testing.T) {
		_, err := r.New(Profile{Provider: "mistral", APIKey: "k"})
		assert.EqualError(t, err, "unsupported provider: mistral")
	})

	t.Run("should require an api key", func(t *testing.T) {
		_, err := r.New(Profile{Provider: "openai"})
		assert.Error(t, err)
	})

	t.Run("should build registered providers", func(t *testing.T) {
		p, err := r.New(Profile{Provider: "OpenAI", APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, "openai", p.Name())

		p, err = r.New(Profile{Provider: "anthropic", APIKey: "sk-ant"})
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Name())
	})

	t.Run("should accept custom constructors", func(t *testing.T) {
		r.Register("scripted", func(p Profile) (Provider, error) { return &mockProvider{name: "scripted"}, nil })
		p, err := r.New(Profile{Provider: "scripted", APIKey: "x"})
		require.NoError(t, err)
		assert.Equal(t, "scripted", p.Name())
	})
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredFields(map[string]interface{}{"required": []string{"a"}}))
	assert.Equal(t, []string{"a", "b"}, requiredFields(map[string]interface{}{"required": []interface{}{"a", "b"}}))
	assert.Nil(t, requiredFields(map[string]interface{}{}))
}

func TestGeminiTranslation(t *testing.T) {
	t.Run("should convert JSON schema", func(t *testing.T) {
		schema := toGeminiSchema(map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"operation": map[string]interface{}{"type": "string", "enum": []string{"add", "divide"}},
				"values":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "number"}},
			},
			"required": []string{"operation"},
		})

		assert.Equal(t, genai.TypeObject, schema.Type)
		assert.Equal(t, []string{"operation"}, schema.Required)
		assert.Equal(t, []string{"add", "divide"}, schema.Properties["operation"].Enum)
		assert.Equal(t, genai.TypeNumber, schema.Properties["values"].Items.Type)
	})

	t.Run("should map roles and name function responses", func(t *testing.T) {
		contents, err := toGeminiContents([]llm.Message{
			llm.UserMessage("what is 2+2"),
			llm.AssistantMessage("", llm.ToolCall{ID: "c1", Name: "calculate", Arguments: `{"a":2,"b":2,"operation":"add"}`}),
			llm.ToolMessage("c1", `{"result":4}`),
		})
		require.NoError(t, err)
		require.Len(t, contents, 3)

		assert.Equal(t, "user", contents[0].Role)
		assert.Equal(t, "model", contents[1].Role)
		assert.Equal(t, "calculate", contents[1].Parts[0].FunctionCall.Name)
		assert.Equal(t, float64(2), contents[1].Parts[0].FunctionCall.Args["a"])
		assert.Equal(t, "calculate", contents[2].Parts[0].FunctionResponse.Name)
	})

	t.Run("should reject malformed arguments", func(t *testing.T) {
		_, err := toGeminiContents([]llm.Message{llm.AssistantMessage("", llm.ToolCall{ID: "c1", Name: "x", Arguments: "{"})})
		assert.Error(t, err)
	})

	t.Run("should synthesize missing call ids", func(t *testing.T) {
		call, err := fromGeminiCall(&genai.FunctionCall{Name: "calculate", Args: map[string]interface{}{"a": 1}})
		require.NoError(t, err)
		assert.Contains(t, call.ID, "call_")
		assert.JSONEq(t, `{"a":1}`, call.Arguments)
	})
}

func TestAnthropicMessages(t *testing.T) {
	msgs := toAnthropicMessages([]llm.Message{
		llm.UserMessage("hi"),
		llm.AssistantMessage("", llm.ToolCall{ID: "c1", Name: "a"}, llm.ToolCall{ID: "c2", Name: "b"}),
		llm.ToolMessage("c1", "one"),
		llm.ToolMessage("c2", "two"),
		llm.AssistantMessage("done"),
	})

	require.Len(t, msgs, 4)
	assert.Len(t, msgs[1].Content, 2)
	assert.Len(t, msgs[2].Content, 2)

	t.Run("should drop blank turns", func(t *testing.T) {
		msgs := toAnthropicMessages([]llm.Message{
			llm.UserMessage("hi"),
			llm.AssistantMessage(""),
			llm.UserMessage("  "),
			llm.AssistantMessage("hello"),
		})

		require.Len(t, msgs, 2)
		assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
		assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
		for _, m := range msgs {
			for _, b := range m.Content {
				if b.OfText != nil {
					assert.NotEmpty(t, strings.TrimSpace(b.OfText.Text))
				}
			}
		}
	})
}

func TestOpenAIMessages(t *testing.T) {
	msgs := toOpenAIMessages([]llm.Message{
		llm.SystemMessage("sys"),
		llm.UserMessage("hi"),
		llm.AssistantMessage("", llm.ToolCall{ID: "c1", Name: "a", Arguments: ""}),
		llm.ToolMessage("c1", "one"),
	})
	assert.Len(t, msgs, 4)
	assert.Equal(t, "{}", rawArguments(""))
}
