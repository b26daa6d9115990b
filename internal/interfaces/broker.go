package interfaces

import (
	"context"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

// Broker is a brokerage account. Implementations are bound to one
// environment (paper or live) for their whole lifetime.
type Broker interface {
	SubmitOrder(ctx context.Context, req types.OrderRequest) (types.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (types.Order, error)
	ListOrders(ctx context.Context, filter types.OrderFilter) ([]types.Order, error)
	Positions(ctx context.Context) ([]types.Position, error)
	Account(ctx context.Context) (types.Account, error)
}

type MarketData interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
	RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error)
	// OptionContracts lists contracts matching q, earliest expiration first.
	OptionContracts(ctx context.Context, q types.OptionContractQuery) ([]types.OptionContract, error)
	// LatestCryptoPrice takes a pair such as ETH/USD.
	LatestCryptoPrice(ctx context.Context, pair string) (float64, error)
}
