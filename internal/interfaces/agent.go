package interfaces

import (
	"context"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/history"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/llm"
)

// Agent resolves one natural-language instruction. When prior is nil the
// agent continues its own session; otherwise prior replaces the session as
// the conversation that precedes the instruction. The returned history is
// the context followed by the instruction and response turns.
type Agent interface {
	Resolve(ctx context.Context, instruction string, prior *history.History) (string, history.History, error)
}

// Model is one chat-completion round trip with tool support.
type Model interface {
	Generate(ctx context.Context, req llm.Request) (llm.Response, error)
}
