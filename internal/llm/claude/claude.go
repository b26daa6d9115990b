// Package claude adapts the Anthropic messages API to interfaces.Model.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/api"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/trace"
)

const (
	// DefaultEndpoint is the public messages endpoint. Proxies and hosted
	// variants are configured through CLAUDE_API_ENDPOINT.
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	apiVersion      = "2023-06-01"
	defaultMax      = 1024
)

var ErrMissingKey = errors.New("CLAUDE_API_KEY missing")

type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

type Model struct {
	client   *api.Client
	model    string
	endpoint string
}

var _ interfaces.Model = (*Model)(nil)

func New(cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingKey
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	opts := []api.ClientOption{
		api.WithHeader("x-api-key", cfg.APIKey),
		api.WithHeader("anthropic-version", apiVersion),
		api.WithLogging(true),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.Timeout))
	}
	return &Model{client: api.NewClient(opts...), model: cfg.Model, endpoint: cfg.Endpoint}, nil
}

type block struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Tools       []tool    `json:"tools,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

type messagesResponse struct {
	Content    []block `json:"content"`
	StopReason string  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (m *Model) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	resp, err := m.client.PostJSON(ctx, m.endpoint, m.buildRequest(req))
	if err != nil {
		return llm.Response{}, fmt.Errorf("claude: %w", err)
	}

	var out messagesResponse
	if err := resp.ParseJSON(&out); err != nil {
		return llm.Response{}, fmt.Errorf("claude: %w", err)
	}

	msg := llm.Message{Role: llm.RoleAssistant}
	var text []string
	for _, b := range out.Content {
		switch b.Type {
		case "text":
			text = append(text, b.Text)
		case "tool_use":
			args := b.Input
			if args == nil {
				args = map[string]any{}
			}
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}
	msg.Content = strings.Join(text, "\n")

	return llm.Response{
		Message:    msg,
		StopReason: out.StopReason,
		Usage:      llm.Usage{InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens},
	}, nil
}

// buildRequest folds consecutive tool results into a single user turn, as
// the API requires strictly alternating roles.
func (m *Model) buildRequest(req llm.Request) messagesRequest {
	body := messagesRequest{
		Model:       m.model,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultMax
	}

	appendBlocks := func(role string, blocks ...block) {
		if n := len(body.Messages); n > 0 && body.Messages[n-1].Role == role {
			body.Messages[n-1].Content = append(body.Messages[n-1].Content, blocks...)
			return
		}
		body.Messages = append(body.Messages, message{Role: role, Content: blocks})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleUser:
			appendBlocks("user", block{Type: "text", Text: msg.Content})
		case llm.RoleAssistant:
			var blocks []block
			if msg.Content != "" {
				blocks = append(blocks, block{Type: "text", Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				input := call.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, block{Type: "tool_use", ID: call.ID, Name: call.Name, Input: input})
			}
			if len(blocks) > 0 {
				appendBlocks("assistant", blocks...)
			}
		case llm.RoleTool:
			appendBlocks("user", block{Type: "tool_result", ToolUseID: msg.ToolCallID, Content: msg.Content, IsError: msg.IsError})
		}
	}

	for _, def := range req.Tools {
		schema := def.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		body.Tools = append(body.Tools, tool{Name: def.Name, Description: def.Description, InputSchema: schema})
	}
	return body
}
