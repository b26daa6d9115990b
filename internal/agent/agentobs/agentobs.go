package agentobs

import (
	"context"
	"time"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/history"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/trace"
)

// observableAgent wraps an Agent with observability (logging & tracing)
type observableAgent struct {
	agent interfaces.Agent
	name  string
}

// Compile-time interface check
var _ interfaces.Agent = (*observableAgent)(nil)

// Wrap wraps an agent with observability middleware. name distinguishes
// the main agent from helper agents in logs.
func Wrap(agent interfaces.Agent, name string) interfaces.Agent {
	return &observableAgent{agent: agent, name: name}
}

// Resolve forwards the instruction with observability
func (oa *observableAgent) Resolve(ctx context.Context, instruction string, prior *history.History) (string, history.History, error) {
	ctx, span := trace.StartSpan(ctx, "agent.Resolve")
	defer span.End()

	priorTurns := -1
	if prior != nil {
		priorTurns = prior.Len()
	}

	logger.DebugSkip(ctx, 1, "Resolving instruction",
		"agent", oa.name,
		"instruction", clip(instruction),
		"prior_turns", priorTurns,
	)

	start := time.Now()
	text, h, err := oa.agent.Resolve(ctx, instruction, prior)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Agent failed to resolve instruction", err,
			"agent", oa.name,
			"instruction", clip(instruction),
		)
		return "", history.History{}, err
	}

	tools := 0
	if last, ok := h.Last(); ok {
		tools = len(last.Tools)
	}
	logger.InfoSkip(ctx, 1, "Instruction resolved",
		"agent", oa.name,
		"instruction", clip(instruction),
		"response", clip(text),
		"tool_calls", tools,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, h, nil
}

func clip(s string) string {
	const n = 200
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
