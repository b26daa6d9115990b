package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker/sim"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/metrics"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/occ"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/tradelog"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

const callTicker = "AAPL241220C00195000"

type fixture struct {
	paper   *sim.Broker
	live    *sim.Broker
	session *broker.Session
	metrics *metrics.Metrics
	journal *tradelog.Journal
	tools   *Registry
}

type stubNews struct {
	articles []types.NewsArticle
	err      error
}

func (s stubNews) Headlines(_ context.Context, symbol string, limit int) ([]types.NewsArticle, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.articles) {
		return s.articles[:limit], nil
	}
	return s.articles, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2024, 12, 2, 15, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	f := &fixture{
		paper: sim.New(sim.Params{
			Environment: broker.Paper,
			Cash:        decimal.NewFromInt(100000),
			Prices:      map[string]float64{"AAPL": 190, callTicker: 4.5, "ETH/USD": 3412.5},
			Contracts:   listedContracts(),
			Now:         clock,
		}),
		live: sim.New(sim.Params{
			Environment: broker.Live,
			Cash:        decimal.NewFromInt(5000),
			Prices:      map[string]float64{"AAPL": 190},
			Now:         clock,
		}),
		metrics: metrics.New(),
		journal: tradelog.New(t.TempDir()),
	}
	f.session = broker.NewSession(func(env broker.Environment) (broker.Client, error) {
		switch env {
		case broker.Paper:
			return f.paper, nil
		case broker.Live:
			return f.live, nil
		}
		return nil, broker.ErrUnknownEnvironment
	}, broker.Paper)

	f.tools = Catalogue(Deps{
		Session: f.session,
		News: stubNews{articles: []types.NewsArticle{
			{Title: "Apple beats estimates", Source: "Finviz", URL: "https://example.com/a"},
			{Title: "Apple unveils new chip", Source: "Yahoo Finance"},
		}},
		Metrics: f.metrics,
		Journal: f.journal,
		Now:     clock,
	})
	return f
}

func listedContracts() []types.OptionContract {
	contract := func(symbol string, oi int64, closePrice float64) types.OptionContract {
		c, err := occ.Parse(symbol)
		if err != nil {
			panic(err)
		}
		return types.OptionContract{
			Symbol:       symbol,
			Underlying:   c.Underlying,
			Type:         c.Type,
			Expiration:   c.Expiration,
			Strike:       c.Strike,
			OpenInterest: decimal.NewFromInt(oi),
			ClosePrice:   decimal.NewFromFloat(closePrice),
		}
	}
	return []types.OptionContract{
		contract("AAPL241129C00190000", 5000, 0.2),
		contract("AAPL241220C00185000", 800, 7.1),
		contract("AAPL241220C00190000", 50, 4.5),
		contract("AAPL241220C00195000", 1520, 2.3),
		contract("AAPL250117C00190000", 3000, 9),
		contract("AAPL241220P00190000", 900, 3.85),
	}
}

func (f *fixture) call(t *testing.T, name string, args map[string]any) Result {
	t.Helper()
	return f.tools.Invoke(context.Background(), name, args)
}

func (f *fixture) ok(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	res := f.call(t, name, args)
	require.False(t, res.IsError, "%s failed: %s", name, res.Text)
	return res.Text
}

func TestCatalogueDefinitions(t *testing.T) {
	f := newFixture(t)
	defs := f.tools.Definitions()

	names := make(map[string]bool, len(defs))
	for _, d := range defs {
		names[d.Name] = true
		assert.Equal(t, "object", d.InputSchema["type"], d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
	}
	for _, want := range []string{
		"buy_stock_by_market_price", "sell_stock_by_market_price",
		"submit_stock_limit_buy_order", "submit_stock_limit_sell_order", "set_stock_exit_strategy",
		"buy_option_by_market_price", "sell_option_by_market_price",
		"buy_option_by_limit_price", "sell_option_by_limit_price", "set_option_exit_strategy",
		"cancel_order_by_id", "get_order_by_id", "get_open_orders",
		"get_closed_orders_between_dates", "get_last_closed_orders",
		"get_portfolio", "get_account_equity", "get_buying_power", "get_non_marginable_buying_power",
		"check_if_trading_is_blocked", "get_current_date", "get_stock_price",
		"get_technical_indicators", "get_stock_news",
		"is_paper_account", "switch_to_paper_account", "switch_to_live_account",
		"get_option_contract", "get_crypto_price",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}

	buy, ok := f.tools.Get("buy_stock_by_market_price")
	require.True(t, ok)
	assert.Equal(t, []string{"symbol", "qty"}, buy.Schema["required"])
}

func TestBuyStockByMarketPrice(t *testing.T) {
	f := newFixture(t)

	id := f.ok(t, "buy_stock_by_market_price", map[string]any{"symbol": "aapl", "qty": 2.5})
	require.NotEmpty(t, id)

	o, err := f.paper.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", o.Symbol)
	assert.Equal(t, "filled", o.Status)
	assert.True(t, o.Qty.Equal(decimal.RequireFromString("2.5")))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Orders.WithLabelValues("buy", "us_equity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ToolCalls.WithLabelValues("buy_stock_by_market_price", "success")))

	files, err := filepath.Glob(filepath.Join(f.journal.Dir(), "orders", "*.txt"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), id)
	assert.Contains(t, string(data), `"env":"paper"`)
}

func TestBrokerErrorsComeBackAsText(t *testing.T) {
	f := newFixture(t)

	res := f.call(t, "sell_stock_by_market_price", map[string]any{"symbol": "AAPL", "qty": 5})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "insufficient qty available for order")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ToolCalls.WithLabelValues("sell_stock_by_market_price", "error")))

	files, err := filepath.Glob(filepath.Join(f.journal.Dir(), "orders", "*.txt"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error":"insufficient qty`)
}

func TestArgumentErrors(t *testing.T) {
	f := newFixture(t)

	res := f.call(t, "buy_stock_by_market_price", map[string]any{"qty": 1})
	assert.True(t, res.IsError)
	assert.Equal(t, "Missing required argument: symbol", res.Text)

	res = f.call(t, "submit_stock_limit_buy_order", map[string]any{"symbol": "AAPL", "qty": 1, "limit_price": -3})
	assert.True(t, res.IsError)
	assert.Equal(t, "Invalid limit_price: should be a positive number", res.Text)

	res = f.call(t, "get_open_orders", map[string]any{"side": "short"})
	assert.True(t, res.IsError)
	assert.Equal(t, "Invalid side: should be buy or sell", res.Text)
}

func TestUnknownTool(t *testing.T) {
	f := newFixture(t)
	text, isErr := f.tools.Call(context.Background(), "launch_rocket", nil)
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(text, "Unknown tool: launch_rocket. Available tools: "))
	assert.Contains(t, text, "buy_stock_by_market_price, ")

	r := NewRegistry(nil)
	r.Register(Tool{Name: "b"})
	r.Register(Tool{Name: "a"})
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, "Unknown tool: c. Available tools: a, b", r.Invoke(context.Background(), "c", nil).Text)
}

func TestLimitOrdersAndCancel(t *testing.T) {
	f := newFixture(t)

	id := f.ok(t, "submit_stock_limit_buy_order", map[string]any{"symbol": "AAPL", "qty": "3", "limit_price": "180"})

	open := f.ok(t, "get_open_orders", nil)
	assert.Contains(t, open, id)
	assert.Contains(t, open, "limit $180.00")

	assert.Equal(t, "No open orders.", f.ok(t, "get_open_orders", map[string]any{"side": "sell"}))

	assert.Equal(t, "Order "+id+" canceled.", f.ok(t, "cancel_order_by_id", map[string]any{"order_id": id}))
	assert.Equal(t, "No open orders.", f.ok(t, "get_open_orders", map[string]any{"symbol": "AAPL"}))
	assert.Contains(t, f.ok(t, "get_order_by_id", map[string]any{"order_id": id}), "status canceled")

	res := f.call(t, "cancel_order_by_id", map[string]any{"order_id": "nope"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "order not found")
}

func TestStockExitStrategy(t *testing.T) {
	f := newFixture(t)
	f.paper.Hold("AAPL", 10, 150)

	id := f.ok(t, "set_stock_exit_strategy", map[string]any{
		"symbol": "AAPL", "qty": 10, "limit_price": 200, "stop_loss_price": 180,
	})
	assert.Contains(t, f.ok(t, "get_open_orders", nil), "(one-cancels-other)")

	f.paper.SetPrice("AAPL", 201)
	assert.Contains(t, f.ok(t, "get_order_by_id", map[string]any{"order_id": id}), "status filled")

	res := f.call(t, "set_stock_exit_strategy", map[string]any{
		"symbol": "AAPL", "qty": 1, "limit_price": 180, "stop_loss_price": 200,
	})
	assert.True(t, res.IsError)
	assert.Equal(t, "Invalid stop_loss_price: should be below limit_price", res.Text)
}

func TestOptionOrders(t *testing.T) {
	f := newFixture(t)
	contract := map[string]any{"underlying": "aapl", "expiration": "2024-12-20", "option_type": "c", "strike": 195, "qty": 1}

	id := f.ok(t, "buy_option_by_market_price", contract)
	o, err := f.paper.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, callTicker, o.Symbol)
	assert.Equal(t, types.AssetOption, o.Asset)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Orders.WithLabelValues("buy", "us_option")))

	assert.Equal(t, callTicker, f.ok(t, "get_option_ticker", contract))
}

func TestOptionValidationErrorsAreText(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "option type",
			args: map[string]any{"underlying": "AAPL", "expiration": "2024-12-20", "option_type": "X", "strike": 195, "qty": 1},
			want: "Invalid option type: should be 'C' (Call) or 'P' (Put)",
		},
		{
			name: "expired",
			args: map[string]any{"underlying": "AAPL", "expiration": "2024-11-29", "option_type": "C", "strike": 195, "qty": 1},
			want: "Invalid expiration date: should not be in the past",
		},
		{
			name: "symbol",
			args: map[string]any{"underlying": "TOOLONG", "expiration": "2024-12-20", "option_type": "P", "strike": 195, "qty": 1},
			want: "Invalid underlying symbol: should be 1-5 alphabetic characters",
		},
		{
			name: "fractional contracts",
			args: map[string]any{"underlying": "AAPL", "expiration": "2024-12-20", "option_type": "C", "strike": 195, "qty": 0.5},
			want: "Invalid qty: should be a whole number of contracts",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.call(t, "buy_option_by_market_price", tt.args)
			assert.True(t, res.IsError)
			assert.Equal(t, tt.want, res.Text)
		})
	}
}

func TestClosedOrderQueries(t *testing.T) {
	f := newFixture(t)

	stock := f.ok(t, "buy_stock_by_market_price", map[string]any{"symbol": "AAPL", "qty": 1})
	option := f.ok(t, "buy_option_by_market_price", map[string]any{
		"underlying": "AAPL", "expiration": "2024-12-20", "option_type": "C", "strike": 195, "qty": 2,
	})
	msft := f.ok(t, "submit_stock_limit_buy_order", map[string]any{"symbol": "MSFT", "qty": 1, "limit_price": 300})
	f.ok(t, "cancel_order_by_id", map[string]any{"order_id": msft})

	all := f.ok(t, "get_last_closed_orders", nil)
	assert.Equal(t, 3, strings.Count(all, "Order "))

	aapl := f.ok(t, "get_last_closed_orders", map[string]any{"symbol": "aapl"})
	assert.Contains(t, aapl, stock)
	assert.Contains(t, aapl, option)
	assert.NotContains(t, aapl, msft)

	newest := f.ok(t, "get_last_closed_orders", map[string]any{"symbol": "AAPL", "limit": 1})
	assert.Contains(t, newest, option)
	assert.NotContains(t, newest, stock)

	between := f.ok(t, "get_closed_orders_between_dates", map[string]any{"date_from": "2024-12-02", "date_to": "2024-12-02", "symbol": "MSFT"})
	assert.Contains(t, between, msft)
	assert.Equal(t, "No closed orders in that period.",
		f.ok(t, "get_closed_orders_between_dates", map[string]any{"date_from": "2024-12-03", "date_to": "2024-12-04"}))

	res := f.call(t, "get_closed_orders_between_dates", map[string]any{"date_from": "12/01/2024", "date_to": "2024-12-04"})
	assert.True(t, res.IsError)
	assert.Equal(t, "Invalid date_from: should be a date in YYYY-MM-DD format", res.Text)
}

func TestPortfolio(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "No open positions in your portfolio.", f.ok(t, "get_portfolio", nil))

	f.paper.Hold("AAPL", 10, 150)
	table := f.ok(t, "get_portfolio", nil)
	for _, col := range portfolioHeader {
		assert.Contains(t, table, col)
	}
	assert.Contains(t, table, "$1500.00")
	assert.Contains(t, table, "$400.00 (26.67%)")
	assert.Contains(t, table, "$1900.00")
}

func TestAccountTools(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "$100000.00", f.ok(t, "get_account_equity", nil))
	assert.Equal(t, "$100000.00", f.ok(t, "get_buying_power", nil))
	assert.Equal(t, "$100000.00", f.ok(t, "get_non_marginable_buying_power", nil))
	assert.Equal(t, "false", f.ok(t, "check_if_trading_is_blocked", nil))
	assert.Equal(t, "2024-12-02", f.ok(t, "get_current_date", nil))
}

func TestSwitchAccounts(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "true", f.ok(t, "is_paper_account", nil))
	assert.Equal(t, "Switched to live account.", f.ok(t, "switch_to_live_account", nil))
	assert.Equal(t, "false", f.ok(t, "is_paper_account", nil))
	assert.Equal(t, "$5000.00", f.ok(t, "get_account_equity", nil))

	assert.Equal(t, "Switched to paper account.", f.ok(t, "switch_to_paper_account", nil))
	assert.Equal(t, "$100000.00", f.ok(t, "get_account_equity", nil))
}

func TestSwitchFailureKeepsEnvironment(t *testing.T) {
	paper := sim.New(sim.Params{Environment: broker.Paper, Cash: decimal.NewFromInt(1000)})
	session := broker.NewSession(func(env broker.Environment) (broker.Client, error) {
		if env == broker.Live {
			return nil, errors.New("missing live credentials")
		}
		return paper, nil
	}, broker.Paper)
	reg := Catalogue(Deps{Session: session})

	res := reg.Invoke(context.Background(), "switch_to_live_account", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "missing live credentials")
	assert.Equal(t, Result{Text: "true"}, reg.Invoke(context.Background(), "is_paper_account", nil))
}

func TestMarketTools(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "190", f.ok(t, "get_stock_price", map[string]any{"symbol": "aapl"}))

	res := f.call(t, "get_stock_price", map[string]any{"symbol": "ZZZZ"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "unknown symbol")

	ind := f.ok(t, "get_technical_indicators", map[string]any{"symbol": "AAPL"})
	for _, label := range []string{"RSI(14)", "MACD(12,26,9)", "Stochastic(14,3)", "ATR(14)", "SMA(20)", "SMA(50)", "Bollinger(20,2)"} {
		assert.Contains(t, ind, label)
	}
	assert.Contains(t, ind, "last close 190.00")
}

func TestOptionContractLookup(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "nearest expiration and strike closest to the stock",
			args: map[string]any{"underlying": "aapl", "option_type": "c"},
			want: "AAPL241220C00190000: AAPL call, expires 2024-12-20, strike $190.00, open interest 50, last close $4.50",
		},
		{
			name: "open interest floor and target strike",
			args: map[string]any{"underlying": "AAPL", "option_type": "C", "strike": 194, "min_open_interest": 100},
			want: "AAPL241220C00195000: AAPL call, expires 2024-12-20, strike $195.00, open interest 1520, last close $2.30",
		},
		{
			name: "exact expiration",
			args: map[string]any{"underlying": "AAPL", "option_type": "C", "expiration": "2025-01-17"},
			want: "AAPL250117C00190000: AAPL call, expires 2025-01-17, strike $190.00, open interest 3000, last close $9.00",
		},
		{
			name: "put",
			args: map[string]any{"underlying": "AAPL", "option_type": "P", "strike": "190"},
			want: "AAPL241220P00190000: AAPL put, expires 2024-12-20, strike $190.00, open interest 900, last close $3.85",
		},
		{
			name: "nothing liquid enough",
			args: map[string]any{"underlying": "AAPL", "option_type": "C", "min_open_interest": 10000},
			want: "No call option contract of AAPL found with open interest of at least 10000.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ok(t, "get_option_contract", tt.args))
		})
	}

	res := f.call(t, "get_option_contract", map[string]any{"underlying": "AAPL", "option_type": "X"})
	assert.Equal(t, Result{Text: "Invalid option type: should be 'C' (Call) or 'P' (Put)", IsError: true}, res)

	res = f.call(t, "get_option_contract", map[string]any{"underlying": "AAPL", "option_type": "C", "expiration": "Dec 20"})
	assert.Equal(t, Result{Text: "Invalid expiration date format: should be YYYY-MM-DD", IsError: true}, res)
}

func TestPickContractWithoutTarget(t *testing.T) {
	listed := listedContracts()[1:4]
	c, ok := pickContract(listed, decimal.Zero, decimal.Zero)
	require.True(t, ok)
	assert.Equal(t, "AAPL241220C00185000", c.Symbol)

	_, ok = pickContract(nil, decimal.Zero, decimal.Zero)
	assert.False(t, ok)
}

func TestCryptoPrice(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "3412.5", f.ok(t, "get_crypto_price", nil))
	assert.Equal(t, "3412.5", f.ok(t, "get_crypto_price", map[string]any{"symbol": "eth/usd"}))

	res := f.call(t, "get_crypto_price", map[string]any{"symbol": "DOGE"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text, "unknown symbol")
}

func TestNewsTool(t *testing.T) {
	f := newFixture(t)

	text := f.ok(t, "get_stock_news", map[string]any{"symbol": "AAPL", "limit": 1})
	assert.Equal(t, "- Apple beats estimates (Finviz) https://example.com/a", text)

	empty := Catalogue(Deps{Session: f.session, News: stubNews{}})
	assert.Equal(t, Result{Text: "No recent news found for TSLA."},
		empty.Invoke(context.Background(), "get_stock_news", map[string]any{"symbol": "tsla"}))

	none := Catalogue(Deps{Session: f.session})
	res := none.Invoke(context.Background(), "get_stock_news", map[string]any{"symbol": "AAPL"})
	assert.True(t, res.IsError)
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs([]string{"symbol=AAPL", "qty=1.5", "limit_price=$190"})
	require.NoError(t, err)

	qty, err := args.Decimal("qty")
	require.NoError(t, err)
	assert.Equal(t, "1.5", qty.String())

	limit, err := args.Float("limit_price")
	require.NoError(t, err)
	assert.InDelta(t, 190, limit, 1e-9)

	_, err = ParseArgs([]string{"oops"})
	assert.Error(t, err)

	n, err := Args{"limit": 3.0}.OptInt("limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = Args{"limit": 2.5}.OptInt("limit", 10)
	var argErr *ArgError
	assert.ErrorAs(t, err, &argErr)
}
