// Package agenttest provides deterministic agents and models for tests.
package agenttest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/history"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm"
)

// Call is one recorded Resolve invocation.
type Call struct {
	Instruction string
	Prior       *history.History
}

// Stub is an agent whose answers come from a function. It keeps a session
// like the real agent and records every call.
type Stub struct {
	respond func(instruction string) (string, error)

	mu      sync.Mutex
	calls   []Call
	session history.History
}

var _ interfaces.Agent = (*Stub)(nil)

// Func builds a stub from an answer function.
func Func(fn func(instruction string) (string, error)) *Stub {
	return &Stub{respond: fn}
}

// Scripted answers with the given texts in order and fails once they run
// out.
func Scripted(answers ...string) *Stub {
	i := 0
	return Func(func(instruction string) (string, error) {
		if i >= len(answers) {
			return "", fmt.Errorf("script exhausted at call %d: %q", i+1, instruction)
		}
		a := answers[i]
		i++
		return a, nil
	})
}

// Rule maps an instruction substring to an answer.
type Rule struct {
	Contains string
	Answer   string
}

// Rules answers with the first rule whose substring occurs in the
// instruction. Unmatched instructions are an error.
func Rules(rules ...Rule) *Stub {
	return Func(func(instruction string) (string, error) {
		for _, r := range rules {
			if strings.Contains(instruction, r.Contains) {
				return r.Answer, nil
			}
		}
		return "", fmt.Errorf("no rule for instruction %q", instruction)
	})
}

func (s *Stub) Resolve(_ context.Context, instruction string, prior *history.History) (string, history.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recorded *history.History
	if prior != nil {
		p := *prior
		recorded = &p
	}
	s.calls = append(s.calls, Call{Instruction: instruction, Prior: recorded})

	answer, err := s.respond(instruction)
	if err != nil {
		return "", history.History{}, err
	}

	base := s.session
	if prior != nil {
		base = *prior
	}
	out := base.Append(history.Instruction(instruction), history.Response(answer))
	s.session = out
	return answer, out, nil
}

// Calls returns the recorded calls in order.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Instructions returns the recorded instructions in order.
func (s *Stub) Instructions() []string {
	calls := s.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Instruction
	}
	return out
}

// Count reports how many recorded instructions contain substr.
func (s *Stub) Count(substr string) int {
	n := 0
	for _, in := range s.Instructions() {
		if strings.Contains(in, substr) {
			n++
		}
	}
	return n
}

// ModelResponse is one scripted model turn.
type ModelResponse struct {
	Message llm.Message
	Err     error
}

// ScriptedModel replays model turns in order and records the requests.
type ScriptedModel struct {
	mu        sync.Mutex
	responses []ModelResponse
	requests  []llm.Request
}

var _ interfaces.Model = (*ScriptedModel)(nil)

func NewScriptedModel(responses ...ModelResponse) *ScriptedModel {
	cloned := make([]ModelResponse, len(responses))
	copy(cloned, responses)
	return &ScriptedModel{responses: cloned}
}

// Text is a final assistant answer.
func Text(s string) ModelResponse {
	return ModelResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: s}}
}

// ToolUse is an assistant turn requesting one tool call.
func ToolUse(id, name string, args map[string]any) ModelResponse {
	return ModelResponse{Message: llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: args}},
	}}
}

func (m *ScriptedModel) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	m.requests = append(m.requests, req)

	i := len(m.requests) - 1
	if i >= len(m.responses) {
		return llm.Response{}, fmt.Errorf("script exhausted at step %d", i+1)
	}
	current := m.responses[i]
	if current.Err != nil {
		return llm.Response{}, current.Err
	}
	return llm.Response{Message: current.Message, StopReason: "end_turn"}, nil
}

// Requests returns the recorded requests in order.
func (m *ScriptedModel) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}
