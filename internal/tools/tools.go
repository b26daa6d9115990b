// Package tools is the broker tool catalogue offered to the agent, the CLI
// and the MCP server. Handlers never surface broker failures as Go errors
// to their callers: Invoke turns them into text results so the agent can
// relay them as they are.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/metrics"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/trace"
)

// Handler executes one tool call. A returned error becomes the text of an
// error result.
type Handler func(ctx context.Context, args Args) (string, error)

type Tool struct {
	Name        string
	Description string
	// Schema is a JSON schema object describing the arguments.
	Schema  map[string]any
	Handler Handler
}

// Result is what a caller sees. IsError marks failures; Text is always
// meant for display.
type Result struct {
	Text    string
	IsError bool
}

// Registry holds tools in registration order.
type Registry struct {
	metrics *metrics.Metrics

	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{metrics: m, tools: make(map[string]Tool)}
}

// Register adds or replaces t.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns every tool in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Definitions implements agent.Toolbox.
func (r *Registry) Definitions() []llm.ToolDefinition {
	tools := r.Tools()
	out := make([]llm.ToolDefinition, len(tools))
	for i, t := range tools {
		out[i] = llm.ToolDefinition{Name: t.Name, Description: t.Description, InputSchema: t.Schema}
	}
	return out
}

// Call implements agent.Toolbox.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (string, bool) {
	res := r.Invoke(ctx, name, args)
	return res.Text, res.IsError
}

// Invoke runs the named tool.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (res Result) {
	t, ok := r.Get(name)
	if !ok {
		r.metrics.ObserveTool("unknown", true)
		return Result{Text: fmt.Sprintf("Unknown tool: %s. Available tools: %s", name, strings.Join(r.Names(), ", ")), IsError: true}
	}

	ctx, span := trace.StartSpan(ctx, "tools."+name)
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, "Tool panicked", "tool", name, "panic", fmt.Sprint(p))
			res = Result{Text: fmt.Sprintf("tool %s failed: %v", name, p), IsError: true}
		}
		r.metrics.ObserveTool(name, res.IsError)
	}()

	logger.Debug(ctx, "Calling tool", "tool", name, "args", args)
	text, err := t.Handler(ctx, Args(args))
	if err != nil {
		logger.Warn(ctx, "Tool returned error", "tool", name, "error", err.Error())
		return Result{Text: err.Error(), IsError: true}
	}
	logger.Debug(ctx, "Tool completed", "tool", name, "result", preview(text))
	return Result{Text: text}
}

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
