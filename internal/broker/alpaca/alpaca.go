// Package alpaca is the Alpaca Markets backend for US stocks and options.
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

const (
	PaperURL = "https://paper-api.alpaca.markets"
	LiveURL  = "https://api.alpaca.markets"
)

var ErrMissingCredentials = errors.New("missing Alpaca API key id/secret")

type Params struct {
	Environment broker.Environment
	APIKey      string
	APISecret   string
	// BaseURL overrides the trading endpoint chosen by Environment.
	BaseURL string
	DataURL string
}

type Client struct {
	env    broker.Environment
	trade  *alpaca.Client
	market *marketdata.Client
}

var _ broker.Client = (*Client)(nil)

func New(p Params) (*Client, error) {
	if p.APIKey == "" || p.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	base := p.BaseURL
	if base == "" {
		switch p.Environment {
		case broker.Paper:
			base = PaperURL
		case broker.Live:
			base = LiveURL
		default:
			return nil, fmt.Errorf("%w: %q", broker.ErrUnknownEnvironment, p.Environment)
		}
	}

	return &Client{
		env: p.Environment,
		trade: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    p.APIKey,
			APISecret: p.APISecret,
			BaseURL:   base,
		}),
		market: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    p.APIKey,
			APISecret: p.APISecret,
			BaseURL:   p.DataURL,
		}),
	}, nil
}

func (c *Client) Environment() broker.Environment {
	return c.env
}

func (c *Client) SubmitOrder(_ context.Context, req types.OrderRequest) (types.Order, error) {
	qty := req.Qty
	r := alpaca.PlaceOrderRequest{
		Symbol:      req.Symbol,
		Qty:         &qty,
		Side:        alpaca.Buy,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	}
	if req.Side == types.SideSell {
		r.Side = alpaca.Sell
	}

	switch {
	case req.Class == types.OrderClassOCO:
		tp, sl := req.LimitPrice, req.StopPrice
		r.Type = alpaca.Limit
		r.TimeInForce = alpaca.GTC
		r.OrderClass = alpaca.OCO
		r.TakeProfit = &alpaca.TakeProfit{LimitPrice: &tp}
		r.StopLoss = &alpaca.StopLoss{StopPrice: &sl}
	case req.Type == types.OrderTypeLimit:
		limit := req.LimitPrice
		r.Type = alpaca.Limit
		r.LimitPrice = &limit
	}
	if req.Tag != "" {
		r.ClientOrderID = req.Tag
	}

	o, err := c.trade.PlaceOrder(r)
	if err != nil {
		return types.Order{}, err
	}
	return toOrder(*o), nil
}

func (c *Client) CancelOrder(_ context.Context, orderID string) error {
	return c.trade.CancelOrder(orderID)
}

func (c *Client) GetOrder(_ context.Context, orderID string) (types.Order, error) {
	o, err := c.trade.GetOrder(orderID)
	if err != nil {
		return types.Order{}, err
	}
	return toOrder(*o), nil
}

func (c *Client) ListOrders(_ context.Context, f types.OrderFilter) ([]types.Order, error) {
	status := string(f.Status)
	if status == "" {
		status = string(types.StatusOpen)
	}
	req := alpaca.GetOrdersRequest{
		Status:    status,
		Limit:     f.Limit,
		Nested:    f.Nested,
		Symbols:   f.Symbols,
		Direction: "desc",
		After:     f.After,
		Until:     f.Until,
	}

	orders, err := c.trade.GetOrders(req)
	if err != nil {
		return nil, err
	}
	out := make([]types.Order, 0, len(orders))
	for _, o := range orders {
		converted := toOrder(o)
		if f.Side != "" && converted.Side != f.Side {
			continue
		}
		out = append(out, converted)
	}
	return out, nil
}

func (c *Client) Positions(_ context.Context) ([]types.Position, error) {
	positions, err := c.trade.GetPositions()
	if err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, types.Position{
			Symbol:               p.Symbol,
			Qty:                  dec(p.Qty),
			CostBasis:            dec(p.CostBasis),
			CurrentPrice:         dec(p.CurrentPrice),
			MarketValue:          dec(p.MarketValue),
			UnrealizedPL:         dec(p.UnrealizedPL),
			UnrealizedPLPct:      dec(p.UnrealizedPLPC),
			UnrealizedIntradayPL: dec(p.UnrealizedIntradayPL),
		})
	}
	return out, nil
}

func (c *Client) Account(_ context.Context) (types.Account, error) {
	a, err := c.trade.GetAccount()
	if err != nil {
		return types.Account{}, err
	}
	return types.Account{
		ID:                       a.ID,
		Currency:                 a.Currency,
		Equity:                   dec(a.Equity),
		BuyingPower:              dec(a.BuyingPower),
		NonMarginableBuyingPower: dec(a.NonMarginBuyingPower),
		TradingBlocked:           a.TradingBlocked,
	}, nil
}

func (c *Client) LatestPrice(_ context.Context, symbol string) (float64, error) {
	t, err := c.market.GetLatestTrade(strings.ToUpper(symbol), marketdata.GetLatestTradeRequest{})
	if err != nil {
		return 0, err
	}
	if t == nil {
		return 0, fmt.Errorf("no trades for %s", symbol)
	}
	return t.Price, nil
}

// RecentCandles returns up to n daily bars ending today.
func (c *Client) RecentCandles(_ context.Context, symbol string, n int) ([]types.Candle, error) {
	end := time.Now()
	// Calendar days cover weekends and holidays with room to spare.
	start := end.AddDate(0, 0, -(n*7/5 + 10))
	bars, err := c.market.GetBars(strings.ToUpper(symbol), marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, err
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	out := make([]types.Candle, 0, len(bars))
	for _, b := range bars {
		out = append(out, types.Candle{
			Ts:    b.Timestamp.Unix(),
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
			Vol:   float64(b.Volume),
		})
	}
	return out, nil
}

// LatestCryptoPrice reads the last trade of pair, e.g. ETH/USD.
func (c *Client) LatestCryptoPrice(_ context.Context, pair string) (float64, error) {
	t, err := c.market.GetLatestCryptoTrade(strings.ToUpper(pair), marketdata.GetLatestCryptoTradeRequest{})
	if err != nil {
		return 0, err
	}
	if t == nil {
		return 0, fmt.Errorf("no trades for %s", pair)
	}
	return t.Price, nil
}

// OptionContracts lists active contracts. Alpaca returns them by
// expiration, so the order is kept as received.
func (c *Client) OptionContracts(_ context.Context, q types.OptionContractQuery) ([]types.OptionContract, error) {
	req := alpaca.GetOptionContractsRequest{
		UnderlyingSymbols: strings.ToUpper(q.Underlying),
		Status:            alpaca.OptionStatus("active"),
		Type:              alpaca.OptionType("call"),
		TotalLimit:        q.Limit,
	}
	if strings.EqualFold(q.Type, "P") {
		req.Type = alpaca.OptionType("put")
	}
	if !q.From.IsZero() {
		req.ExpirationDateGTE = civil.DateOf(q.From)
	}
	if !q.Expiration.IsZero() {
		req.ExpirationDate = civil.DateOf(q.Expiration)
	}

	contracts, err := c.trade.GetOptionContracts(req)
	if err != nil {
		return nil, err
	}
	out := make([]types.OptionContract, 0, len(contracts))
	for _, oc := range contracts {
		exp, err := time.Parse("2006-01-02", fmt.Sprint(oc.ExpirationDate))
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", oc.Symbol, err)
		}
		typ := "C"
		if strings.EqualFold(string(oc.Type), "put") {
			typ = "P"
		}
		out = append(out, types.OptionContract{
			Symbol:       oc.Symbol,
			Underlying:   oc.UnderlyingSymbol,
			Type:         typ,
			Expiration:   exp,
			Strike:       dec(oc.StrikePrice),
			OpenInterest: dec(oc.OpenInterest),
			ClosePrice:   dec(oc.ClosePrice),
		})
	}
	return out, nil
}

func toOrder(o alpaca.Order) types.Order {
	out := types.Order{
		ID:             o.ID,
		Symbol:         o.Symbol,
		Asset:          types.AssetClass(fmt.Sprint(o.AssetClass)),
		Side:           types.Side(fmt.Sprint(o.Side)),
		Type:           types.OrderType(fmt.Sprint(o.Type)),
		Class:          types.OrderClass(fmt.Sprint(o.OrderClass)),
		Status:         fmt.Sprint(o.Status),
		Qty:            dec(o.Qty),
		FilledQty:      dec(o.FilledQty),
		FilledAvgPrice: dec(o.FilledAvgPrice),
		LimitPrice:     dec(o.LimitPrice),
		StopPrice:      dec(o.StopPrice),
		CreatedAt:      o.CreatedAt,
	}
	if out.Class == "" {
		out.Class = types.OrderClassSimple
	}
	for _, leg := range o.Legs {
		out.Legs = append(out.Legs, toOrder(leg))
	}
	return out
}

// dec reads a decimal field whether the SDK models it as a value or an
// optional pointer.
func dec(v any) decimal.Decimal {
	switch d := v.(type) {
	case decimal.Decimal:
		return d
	case *decimal.Decimal:
		if d != nil {
			return *d
		}
	}
	return decimal.Zero
}
