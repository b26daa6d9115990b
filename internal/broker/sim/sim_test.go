package sim

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

func newBroker() *Broker {
	return New(Params{
		Environment: broker.Paper,
		Cash:        decimal.NewFromInt(10000),
		Prices:      map[string]float64{"AAPL": 100},
	})
}

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestMarketBuyFills(t *testing.T) {
	ctx := context.Background()
	b := newBroker()

	o, err := b.SubmitOrder(ctx, types.OrderRequest{Symbol: "aapl", Side: types.SideBuy, Type: types.OrderTypeMarket, Qty: d(2)})
	require.NoError(t, err)
	assert.Equal(t, "filled", o.Status)
	assert.Equal(t, "AAPL", o.Symbol)

	pos, err := b.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.True(t, pos[0].Qty.Equal(d(2)))

	acct, err := b.Account(ctx)
	require.NoError(t, err)
	assert.True(t, acct.BuyingPower.Equal(d(9800)), acct.BuyingPower.String())
	assert.True(t, acct.Equity.Equal(d(10000)))
}

func TestLimitOrderRestsUntilCrossed(t *testing.T) {
	ctx := context.Background()
	b := newBroker()

	o, err := b.SubmitOrder(ctx, types.OrderRequest{Symbol: "AAPL", Side: types.SideBuy, Type: types.OrderTypeLimit, Qty: d(1), LimitPrice: d(97)})
	require.NoError(t, err)
	assert.Equal(t, "new", o.Status)

	open, err := b.ListOrders(ctx, types.OrderFilter{Status: types.StatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)

	b.SetPrice("AAPL", 96)
	got, err := b.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "filled", got.Status)
	assert.True(t, got.FilledAvgPrice.Equal(d(97)))
}

func TestSellNeedsShares(t *testing.T) {
	ctx := context.Background()
	b := newBroker()
	_, err := b.SubmitOrder(ctx, types.OrderRequest{Symbol: "AAPL", Side: types.SideSell, Type: types.OrderTypeMarket, Qty: d(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient qty")
}

func TestOCOReservesShares(t *testing.T) {
	ctx := context.Background()
	b := newBroker()
	b.Hold("AAPL", 1, 90)

	_, err := b.SubmitOrder(ctx, types.OrderRequest{
		Symbol: "AAPL", Side: types.SideSell, Type: types.OrderTypeLimit, Class: types.OrderClassOCO,
		Qty: d(1), LimitPrice: d(105), StopPrice: d(97),
	})
	require.NoError(t, err)

	_, err = b.SubmitOrder(ctx, types.OrderRequest{Symbol: "AAPL", Side: types.SideSell, Type: types.OrderTypeMarket, Qty: d(1)})
	assert.Error(t, err)

	b.SetPrice("AAPL", 96)
	pos, err := b.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, pos)
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	b := newBroker()
	o, err := b.SubmitOrder(ctx, types.OrderRequest{Symbol: "AAPL", Side: types.SideBuy, Type: types.OrderTypeLimit, Qty: d(1), LimitPrice: d(50)})
	require.NoError(t, err)

	require.NoError(t, b.CancelOrder(ctx, o.ID))
	assert.Error(t, b.CancelOrder(ctx, o.ID))
	assert.ErrorIs(t, b.CancelOrder(ctx, "missing"), ErrOrderNotFound)

	closed, err := b.ListOrders(ctx, types.OrderFilter{Status: types.StatusClosed})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "canceled", closed[0].Status)
}

func TestRecentCandlesDeterministic(t *testing.T) {
	ctx := context.Background()
	b := newBroker()
	a, err := b.RecentCandles(ctx, "AAPL", 30)
	require.NoError(t, err)
	c, err := b.RecentCandles(ctx, "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, a, 30)
	assert.Equal(t, a, c)
	assert.InDelta(t, 100.0, a[29].Close, 1e-9)

	_, err = b.RecentCandles(ctx, "MSFT", 5)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestBlockedAccount(t *testing.T) {
	b := New(Params{Cash: d(100), Prices: map[string]float64{"AAPL": 1}, Blocked: true})
	_, err := b.SubmitOrder(context.Background(), types.OrderRequest{Symbol: "AAPL", Side: types.SideBuy, Type: types.OrderTypeMarket, Qty: d(1)})
	assert.Error(t, err)
}

func TestOptionContracts(t *testing.T) {
	day := func(s string) time.Time {
		tm, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return tm
	}
	contract := func(sym, typ, exp string, strike float64) types.OptionContract {
		return types.OptionContract{Symbol: sym, Underlying: "AAPL", Type: typ, Expiration: day(exp), Strike: d(strike)}
	}
	b := New(Params{Contracts: []types.OptionContract{
		contract("AAPL250117C00200000", "C", "2025-01-17", 200),
		contract("AAPL241220C00195000", "C", "2024-12-20", 195),
		contract("AAPL241220C00190000", "C", "2024-12-20", 190),
		contract("AAPL241220P00190000", "P", "2024-12-20", 190),
		contract("AAPL241129C00190000", "C", "2024-11-29", 190),
	}})
	ctx := context.Background()

	got, err := b.OptionContracts(ctx, types.OptionContractQuery{Underlying: "aapl", Type: "C", From: day("2024-12-02")})
	require.NoError(t, err)
	var symbols []string
	for _, c := range got {
		symbols = append(symbols, c.Symbol)
	}
	assert.Equal(t, []string{"AAPL241220C00190000", "AAPL241220C00195000", "AAPL250117C00200000"}, symbols)

	got, err = b.OptionContracts(ctx, types.OptionContractQuery{Underlying: "AAPL", Type: "C", Expiration: day("2025-01-17")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL250117C00200000", got[0].Symbol)

	got, err = b.OptionContracts(ctx, types.OptionContractQuery{Underlying: "AAPL", Type: "P", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL241220P00190000", got[0].Symbol)

	got, err = b.OptionContracts(ctx, types.OptionContractQuery{Underlying: "MSFT", Type: "C"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLatestCryptoPrice(t *testing.T) {
	b := New(Params{Prices: map[string]float64{"ETH/USD": 3412.5}})
	px, err := b.LatestCryptoPrice(context.Background(), "eth/usd")
	require.NoError(t, err)
	assert.Equal(t, 3412.5, px)

	_, err = b.LatestCryptoPrice(context.Background(), "DOGE/USD")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}
