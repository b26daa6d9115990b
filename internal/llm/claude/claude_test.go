package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm"
)

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestGenerate(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"content":[{"type":"text","text":"Checking."},{"type":"tool_use","id":"tu_1","name":"get_portfolio","input":{}}],
			"stop_reason":"tool_use","usage":{"input_tokens":40,"output_tokens":9}}`))
	}))
	defer srv.Close()

	m, err := New(Config{APIKey: "key", Model: "claude-sonnet", Endpoint: srv.URL})
	require.NoError(t, err)

	resp, err := m.Generate(context.Background(), llm.Request{
		System: "sys",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "portfolio?"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "a", Name: "get_account_equity"}, {ID: "b", Name: "get_buying_power"}}},
			{Role: llm.RoleTool, ToolCallID: "a", Content: "$10"},
			{Role: llm.RoleTool, ToolCallID: "b", Content: "boom", IsError: true},
		},
		Tools: []llm.ToolDefinition{{Name: "get_portfolio"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Checking.", resp.Message.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "tu_1", resp.Message.ToolCalls[0].ID)
	assert.Equal(t, "tool_use", resp.StopReason)

	assert.Equal(t, "sys", got.System)
	assert.Equal(t, defaultMax, got.MaxTokens)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[2].Role)
	require.Len(t, got.Messages[2].Content, 2)
	assert.True(t, got.Messages[2].Content[1].IsError)
	assert.Equal(t, "object", got.Tools[0].InputSchema["type"])
}
