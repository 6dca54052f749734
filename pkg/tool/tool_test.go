package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/harun/agentcore/pkg/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, args map[string]interface{}, ec *execution.Context) (interface{}, error) {
	return args["text"], nil
}

func TestNew(t *testing.T) {
	t.Run("should create tool with valid definition", func(t *testing.T) {
		tl, err := New("echo", "Echo text back", map[string]Param{
			"text": {Type: "string", Description: "Text to echo"},
		}, echoHandler)

		require.NoError(t, err)
		assert.Equal(t, "echo", tl.Name())
		assert.Equal(t, "Echo text back", tl.Description())
	})

	tests := []struct {
		name        string
		toolName    string
		description string
		params      map[string]Param
		handler     Handler
		wantErr     string
	}{
		{"empty name", "", "desc", nil, echoHandler, "invalid tool name"},
		{"name with spaces", "my tool", "desc", nil, echoHandler, "invalid tool name"},
		{"empty description", "echo", "", nil, echoHandler, "description cannot be empty"},
		{"nil handler", "echo", "desc", nil, nil, "handler cannot be nil"},
		{"bad param type", "echo", "desc", map[string]Param{"x": {Type: "text"}}, echoHandler, "invalid parameter type"},
		{"bad item type", "echo", "desc", map[string]Param{"x": {Type: "array", Items: &Param{Type: "blob"}}}, echoHandler, "invalid parameter type"},
	}

	for _, tt := range tests {
		t.Run("should reject "+tt.name, func(t *testing.T) {
			_, err := New(tt.toolName, tt.description, tt.params, tt.handler)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildSchema(t *testing.T) {
	t.Run("should derive sorted required list independent of declaration order", func(t *testing.T) {
		first := map[string]Param{}
		first["zeta"] = Param{Type: "string"}
		first["alpha"] = Param{Type: "number"}
		first["mid"] = Param{Type: "boolean", Optional: true}

		second := map[string]Param{}
		second["mid"] = Param{Type: "boolean", Optional: true}
		second["alpha"] = Param{Type: "number"}
		second["zeta"] = Param{Type: "string"}

		a := BuildSchema(first)
		b := BuildSchema(second)

		assert.Equal(t, []string{"alpha", "zeta"}, a["required"])
		assert.Equal(t, a["required"], b["required"])

		aj, err := json.Marshal(a)
		require.NoError(t, err)
		bj, err := json.Marshal(b)
		require.NoError(t, err)
		assert.JSONEq(t, string(aj), string(bj))
	})

	t.Run("should never place required inside property schemas", func(t *testing.T) {
		schema := BuildSchema(map[string]Param{
			"query": {Type: "string", Description: "Search text"},
			"limit": {Type: "integer", Optional: true, Default: 5},
		})

		props := schema["properties"].(map[string]interface{})
		for name, p := range props {
			_, has := p.(map[string]interface{})["required"]
			assert.False(t, has, "property %s carries required", name)
		}
		assert.Equal(t, "object", schema["type"])
		assert.Equal(t, []string{"query"}, schema["required"])
	})

	t.Run("should omit required when everything is optional", func(t *testing.T) {
		schema := BuildSchema(map[string]Param{"tz": {Type: "string", Optional: true}})
		_, has := schema["required"]
		assert.False(t, has)
	})

	t.Run("should describe array items and enums", func(t *testing.T) {
		schema := BuildSchema(map[string]Param{
			"tags": {Type: "array", Items: &Param{Type: "string"}},
			"mode": {Type: "string", Enum: []string{"fast", "slow"}},
		})
		props := schema["properties"].(map[string]interface{})
		tags := props["tags"].(map[string]interface{})
		assert.Equal(t, map[string]interface{}{"type": "string"}, tags["items"])
		mode := props["mode"].(map[string]interface{})
		assert.Equal(t, []string{"fast", "slow"}, mode["enum"])
	})
}

func TestExecute(t *testing.T) {
	ec := execution.New("tenant", "user", "agent", nil)

	tl := MustNew("echo", "Echo text back", map[string]Param{
		"text":  {Type: "string", Description: "Text to echo"},
		"times": {Type: "integer", Description: "Repeat count", Optional: true},
	}, echoHandler)

	t.Run("should run handler with valid args", func(t *testing.T) {
		out, err := tl.Execute(context.Background(), map[string]interface{}{"text": "hi"}, ec)
		require.NoError(t, err)
		assert.Equal(t, "hi", out)
	})

	t.Run("should reject missing required argument", func(t *testing.T) {
		_, err := tl.Execute(context.Background(), map[string]interface{}{}, ec)
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "echo", execErr.Tool)
		assert.Contains(t, err.Error(), "invalid arguments")
	})

	t.Run("should reject wrong argument type", func(t *testing.T) {
		_, err := tl.Execute(context.Background(), map[string]interface{}{"text": 12}, ec)
		assert.Error(t, err)
	})

	t.Run("should wrap handler errors", func(t *testing.T) {
		boom := errors.New("boom")
		failing := MustNew("fail", "Always fails", nil, func(ctx context.Context, args map[string]interface{}, ec *execution.Context) (interface{}, error) {
			return nil, boom
		})

		_, err := failing.Execute(context.Background(), nil, ec)
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.ErrorIs(t, err, boom)
		assert.False(t, execErr.NotFound)
	})

	t.Run("should convert handler panics into errors", func(t *testing.T) {
		panicky := MustNew("panicky", "Panics", nil, func(ctx context.Context, args map[string]interface{}, ec *execution.Context) (interface{}, error) {
			panic("bad state")
		})

		_, err := panicky.Execute(context.Background(), nil, ec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad state")
	})
}

func TestNotFound(t *testing.T) {
	err := NotFound("missing")
	assert.True(t, err.NotFound)
	assert.Equal(t, "tool not found: missing", err.Error())
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments(`{"a": 1, "b": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), args["a"])

	args, err = ParseArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = ParseArguments("null")
	require.NoError(t, err)
	assert.NotNil(t, args)

	_, err = ParseArguments("{not json")
	assert.Error(t, err)
}

func TestFormatOutput(t *testing.T) {
	assert.Equal(t, "plain", FormatOutput("plain"))
	assert.Equal(t, `{"result":1081}`, FormatOutput(map[string]interface{}{"result": 1081}))
	assert.Equal(t, "", FormatOutput(nil))

	long := strings.Repeat("x", maxOutputSize+10)
	out := FormatOutput(long)
	assert.True(t, strings.HasSuffix(out, truncatedSuffix))
	assert.Len(t, out, maxOutputSize+len(truncatedSuffix))

	multibyte := "x" + strings.Repeat("é", maxOutputSize)
	out = FormatOutput(multibyte)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, truncatedSuffix))
	assert.LessOrEqual(t, len(out), maxOutputSize+len(truncatedSuffix))
	assert.Equal(t, maxOutputSize-1, len(strings.TrimSuffix(out, truncatedSuffix)))
}

func TestDefinition(t *testing.T) {
	tl := MustNew("echo", "Echo text back", map[string]Param{
		"text": {Type: "string", Description: "Text to echo"},
	}, echoHandler)

	def := tl.Definition()
	assert.Equal(t, "echo", def.Name)
	assert.Equal(t, []string{"text"}, def.Parameters["required"])

	def.Parameters["required"] = []string{"tampered"}
	assert.Equal(t, []string{"text"}, tl.Schema()["required"], "definition must be a copy")
}
