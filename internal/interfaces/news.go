package interfaces

import (
	"context"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

type NewsSource interface {
	Headlines(ctx context.Context, symbol string, limit int) ([]types.NewsArticle, error)
}
