package llmobs

import (
	"context"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/trace"
)

// observableModel wraps a Model with observability (logging & tracing)
type observableModel struct {
	model    interfaces.Model
	provider string
}

var _ interfaces.Model = (*observableModel)(nil)

// Wrap wraps a model with observability middleware
func Wrap(model interfaces.Model, provider string) interfaces.Model {
	return &observableModel{model: model, provider: provider}
}

func (om *observableModel) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Generate")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting model completion",
		"provider", om.provider,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)

	resp, err := om.model.Generate(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Model completion failed", err, "provider", om.provider)
		return llm.Response{}, err
	}

	calls := make([]string, 0, len(resp.Message.ToolCalls))
	for _, c := range resp.Message.ToolCalls {
		calls = append(calls, c.Name)
	}
	logger.DebugSkip(ctx, 1, "Model completion received",
		"provider", om.provider,
		"stop_reason", resp.StopReason,
		"tool_calls", calls,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}
