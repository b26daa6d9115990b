package main

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/metrics"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/store"
)

// countingModel answers "Yes" and records every prompt it receives.
type countingModel struct {
	mu      sync.Mutex
	prompts []string
}

func (m *countingModel) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, req.Messages[len(req.Messages)-1].Content)
	return llm.Response{Message: llm.Message{Role: llm.RoleAssistant, Content: "Yes"}, StopReason: "end_turn"}, nil
}

func TestPipelineWiresConvertToBoolAgent(t *testing.T) {
	for name, tc := range map[string]struct {
		doc   string
		calls int
	}{
		"enabled":  {doc: "pipeline:\n  use_convert_to_bool_agent: true\n", calls: 2},
		"disabled": {doc: "pipeline:\n  use_convert_to_bool_agent: false\n", calls: 1},
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := store.Parse([]byte(tc.doc))
			require.NoError(t, err)
			a := &app{cfg: cfg, metrics: metrics.New()}

			model := &countingModel{}
			p, err := a.newPipeline(model, nil)
			require.NoError(t, err)

			res, err := p.BooleanStep(context.Background(), "Is the market open?")
			require.NoError(t, err)
			assert.True(t, res.Value)
			require.Len(t, model.prompts, tc.calls)
			if tc.calls == 2 {
				assert.Contains(t, model.prompts[1], "Yes", "the converter sees the raw answer")
			}
		})
	}
}
