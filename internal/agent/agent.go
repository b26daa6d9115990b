// Package agent implements the agent port on top of a chat model with tool
// calling: model -> tool calls -> observations -> model, until the model
// answers in plain text.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/history"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm"
)

const (
	DefaultMaxToolRounds = 8
	DefaultSessionDepth  = 4
)

var (
	ErrMissingModel  = errors.New("agent: model is nil")
	ErrMaxToolRounds = errors.New("agent: tool round limit reached without a final answer")
)

// DefaultSystemPrompt is the investing assistant persona.
const DefaultSystemPrompt = `You are an investing assistant operating a brokerage account through tools.
Always use the tools to look up account state, orders, positions and prices; never guess them.
If a tool returns an error, display it to the user exactly as it is.
When a question can be answered with yes or no, start the answer with "yes" or "no".
When asked for a number, answer with the number first.`

// Toolbox executes tool calls requested by the model. Failures are part of
// the returned text; isError flags them for the model.
type Toolbox interface {
	Definitions() []llm.ToolDefinition
	Call(ctx context.Context, name string, args map[string]any) (text string, isError bool)
}

type Config struct {
	System        string
	MaxTokens     int
	Temperature   float32
	MaxToolRounds int
	// SessionDepth is how many turns of the running session are kept. Zero
	// keeps everything.
	SessionDepth int
}

// Agent is safe for sequential use by one pipeline; calls are serialized.
type Agent struct {
	model interfaces.Model
	tools Toolbox
	cfg   Config

	mu      sync.Mutex
	session history.History
}

var _ interfaces.Agent = (*Agent)(nil)

func New(model interfaces.Model, tools Toolbox, cfg Config) (*Agent, error) {
	if model == nil {
		return nil, ErrMissingModel
	}
	if cfg.System == "" {
		cfg.System = DefaultSystemPrompt
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.SessionDepth < 0 {
		cfg.SessionDepth = 0
	}
	return &Agent{model: model, tools: tools, cfg: cfg}, nil
}

// Session returns the running conversation used when Resolve gets no
// explicit history.
func (a *Agent) Session() history.History {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *Agent) Resolve(ctx context.Context, instruction string, prior *history.History) (string, history.History, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	base := a.session
	if prior != nil {
		base = *prior
	}

	var defs []llm.ToolDefinition
	if a.tools != nil {
		defs = a.tools.Definitions()
	}

	msgs := append(toMessages(base), llm.Message{Role: llm.RoleUser, Content: instruction})
	var activity []history.ToolActivity

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return "", history.History{}, err
		}
		if round >= a.cfg.MaxToolRounds {
			return "", history.History{}, fmt.Errorf("%w (%d rounds)", ErrMaxToolRounds, a.cfg.MaxToolRounds)
		}

		resp, err := a.model.Generate(ctx, llm.Request{
			System:      a.cfg.System,
			Messages:    msgs,
			Tools:       defs,
			MaxTokens:   a.cfg.MaxTokens,
			Temperature: a.cfg.Temperature,
		})
		if err != nil {
			return "", history.History{}, fmt.Errorf("model generate: %w", err)
		}

		msg := resp.Message
		msg.Role = llm.RoleAssistant
		if len(msg.ToolCalls) == 0 {
			text := strings.TrimSpace(msg.Content)
			out := base.Append(history.Instruction(instruction), history.Response(text, activity...))
			a.session = trimSession(out, a.cfg.SessionDepth)
			return text, out, nil
		}

		msgs = append(msgs, msg)
		for _, call := range msg.ToolCalls {
			text, isErr := a.call(ctx, call)
			activity = append(activity, history.ToolActivity{
				Name:      call.Name,
				Arguments: call.Arguments,
				Result:    text,
				IsError:   isErr,
			})
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    text,
				IsError:    isErr,
			})
		}
	}
}

func (a *Agent) call(ctx context.Context, call llm.ToolCall) (string, bool) {
	if a.tools == nil {
		return fmt.Sprintf("Unknown tool: %s", call.Name), true
	}
	return a.tools.Call(ctx, call.Name, call.Arguments)
}

// trimSession keeps the last depth turns and drops a leading response so
// the session always opens with an instruction.
func trimSession(h history.History, depth int) history.History {
	h = h.Tail(depth)
	for h.Len() > 0 && h.At(0).Role != history.RoleInstruction {
		h = history.New(h.Turns()[1:]...)
	}
	return h
}

// toMessages replays a history as chat messages. Tool activity of a
// response turn becomes an assistant tool-call message followed by the
// tool results, so the model sees what it observed earlier.
func toMessages(h history.History) []llm.Message {
	msgs := make([]llm.Message, 0, h.Len())
	for i, t := range h.Turns() {
		if t.Role == history.RoleInstruction {
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Text})
			continue
		}
		if len(t.Tools) > 0 {
			calls := make([]llm.ToolCall, len(t.Tools))
			results := make([]llm.Message, len(t.Tools))
			for j, tool := range t.Tools {
				id := fmt.Sprintf("hist_%d_%d", i, j)
				calls[j] = llm.ToolCall{ID: id, Name: tool.Name, Arguments: tool.Arguments}
				results[j] = llm.Message{Role: llm.RoleTool, ToolCallID: id, Name: tool.Name, Content: tool.Result, IsError: tool.IsError}
			}
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, ToolCalls: calls})
			msgs = append(msgs, results...)
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: t.Text})
	}
	return msgs
}
