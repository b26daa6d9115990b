// Package openai adapts the OpenAI chat completions API to interfaces.Model.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/api"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/trace"
)

const DefaultBaseURL = "https://api.openai.com/v1"

var ErrMissingKey = errors.New("OPENAI_API_KEY missing")

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Model struct {
	client *api.Client
	model  string
}

var _ interfaces.Model = (*Model)(nil)

func New(cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	opts := []api.ClientOption{
		api.WithBaseURL(cfg.BaseURL),
		api.WithHeader("Authorization", "Bearer "+cfg.APIKey),
		api.WithLogging(true),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.Timeout))
	}
	return &Model{client: api.NewClient(opts...), model: cfg.Model}, nil
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolSpec    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func strPtr(s string) *string { return &s }

func (m *Model) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	body, err := m.buildRequest(req)
	if err != nil {
		return llm.Response{}, err
	}

	resp, err := m.client.PostJSON(ctx, "/chat/completions", body)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai: %w", err)
	}

	var out chatResponse
	if err := resp.ParseJSON(&out); err != nil {
		return llm.Response{}, fmt.Errorf("openai: %w", err)
	}
	if len(out.Choices) == 0 {
		return llm.Response{}, errors.New("openai: no choices")
	}

	choice := out.Choices[0]
	msg := llm.Message{Role: llm.RoleAssistant}
	if choice.Message.Content != nil {
		msg.Content = *choice.Message.Content
	}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return llm.Response{}, fmt.Errorf("openai: tool %s arguments: %w", tc.Function.Name, err)
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	return llm.Response{
		Message:    msg,
		StopReason: choice.FinishReason,
		Usage:      llm.Usage{InputTokens: out.Usage.PromptTokens, OutputTokens: out.Usage.CompletionTokens},
	}, nil
}

func (m *Model) buildRequest(req llm.Request) (chatRequest, error) {
	body := chatRequest{
		Model:       m.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: strPtr(req.System)})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleUser:
			body.Messages = append(body.Messages, chatMessage{Role: "user", Content: strPtr(msg.Content)})
		case llm.RoleAssistant:
			cm := chatMessage{Role: "assistant"}
			if msg.Content != "" || len(msg.ToolCalls) == 0 {
				cm.Content = strPtr(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				args, err := json.Marshal(call.Arguments)
				if err != nil {
					return chatRequest{}, fmt.Errorf("openai: encode %s arguments: %w", call.Name, err)
				}
				tc := toolCall{ID: call.ID, Type: "function"}
				tc.Function.Name = call.Name
				tc.Function.Arguments = string(args)
				cm.ToolCalls = append(cm.ToolCalls, tc)
			}
			body.Messages = append(body.Messages, cm)
		case llm.RoleTool:
			body.Messages = append(body.Messages, chatMessage{Role: "tool", ToolCallID: msg.ToolCallID, Content: strPtr(msg.Content)})
		default:
			return chatRequest{}, fmt.Errorf("openai: unknown role %q", msg.Role)
		}
	}

	for _, def := range req.Tools {
		body.Tools = append(body.Tools, toolSpec{
			Type:     "function",
			Function: functionSpec{Name: def.Name, Description: def.Description, Parameters: def.InputSchema},
		})
	}
	return body, nil
}
