// Package kite is the Zerodha Kite Connect backend for Indian equities.
//
// Kite has no paper trading, so the paper environment is served by the live
// API for reads with simulated writes.
package kite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/shopspring/decimal"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

const (
	varietyRegular = "regular"
	productCNC     = "CNC"
	validityDay    = "DAY"
)

var (
	ErrMissingCredentials = errors.New("missing API key/access token")
	ErrUnsupported        = errors.New("not supported by Kite")
)

type Params struct {
	Environment broker.Environment
	APIKey      string
	AccessToken string
	Exchange    string
	// BaseURI overrides the Kite API root.
	BaseURI string
}

type Client struct {
	kc       *kiteconnect.Client
	exchange string
	tokens   *instrumentMapper
}

var _ broker.Client = (*Client)(nil)

// New builds the backend for p.Environment. Paper wraps the live client in
// a dry-run decorator.
func New(p Params) (broker.Client, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, ErrMissingCredentials
	}
	exchange := strings.ToUpper(p.Exchange)
	if exchange == "" {
		exchange = "NSE"
	}

	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	if p.BaseURI != "" {
		kc.SetBaseURI(p.BaseURI)
	}
	c := &Client{kc: kc, exchange: exchange, tokens: newInstrumentMapper()}

	switch p.Environment {
	case broker.Live:
		return c, nil
	case broker.Paper:
		logger.Info(context.Background(), "Kite has no paper account, simulating writes", "exchange", exchange)
		return broker.NewDryRun(c), nil
	}
	return nil, fmt.Errorf("%w: %q", broker.ErrUnknownEnvironment, p.Environment)
}

func (c *Client) instrument(symbol string) string {
	return c.exchange + ":" + strings.ToUpper(symbol)
}

func (c *Client) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	if req.Asset == types.AssetOption {
		return types.Order{}, fmt.Errorf("options: %w", ErrUnsupported)
	}
	if req.Class == types.OrderClassOCO {
		return types.Order{}, fmt.Errorf("OCO exit orders: %w", ErrUnsupported)
	}
	if !req.Qty.Equal(req.Qty.Truncate(0)) {
		return types.Order{}, fmt.Errorf("fractional quantity %s: %w", req.Qty, ErrUnsupported)
	}

	params := kiteconnect.OrderParams{
		Exchange:        c.exchange,
		Tradingsymbol:   strings.ToUpper(req.Symbol),
		Validity:        validityDay,
		Product:         productCNC,
		OrderType:       "MARKET",
		TransactionType: strings.ToUpper(string(req.Side)),
		Quantity:        int(req.Qty.IntPart()),
		Tag:             req.Tag,
	}
	if req.Type == types.OrderTypeLimit {
		params.OrderType = "LIMIT"
		params.Price = req.LimitPrice.InexactFloat64()
	}

	resp, err := c.kc.PlaceOrder(varietyRegular, params)
	if err != nil {
		return types.Order{}, err
	}
	logger.Order(ctx, req.Symbol, string(req.Side), req.Qty.String(), resp.OrderID, "exchange", c.exchange)
	return c.GetOrder(ctx, resp.OrderID)
}

func (c *Client) CancelOrder(_ context.Context, orderID string) error {
	_, err := c.kc.CancelOrder(varietyRegular, orderID, nil)
	return err
}

func (c *Client) GetOrder(_ context.Context, orderID string) (types.Order, error) {
	history, err := c.kc.GetOrderHistory(orderID)
	if err != nil {
		return types.Order{}, err
	}
	if len(history) == 0 {
		return types.Order{}, fmt.Errorf("order %s not found", orderID)
	}
	return toOrder(history[len(history)-1]), nil
}

// ListOrders filters the day's order book; Kite keeps no older orders.
func (c *Client) ListOrders(_ context.Context, f types.OrderFilter) ([]types.Order, error) {
	orders, err := c.kc.GetOrders()
	if err != nil {
		return nil, err
	}

	var out []types.Order
	for i := len(orders) - 1; i >= 0; i-- {
		o := toOrder(orders[i])
		if !keep(o, f) {
			continue
		}
		out = append(out, o)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func keep(o types.Order, f types.OrderFilter) bool {
	open := isOpen(o.Status)
	switch f.Status {
	case types.StatusOpen, "":
		if !open {
			return false
		}
	case types.StatusClosed:
		if open {
			return false
		}
	}
	if f.Side != "" && o.Side != f.Side {
		return false
	}
	if !f.After.IsZero() && o.CreatedAt.Before(f.After) {
		return false
	}
	if !f.Until.IsZero() && o.CreatedAt.After(f.Until) {
		return false
	}
	if len(f.Symbols) == 0 {
		return true
	}
	for _, s := range f.Symbols {
		if strings.EqualFold(s, o.Symbol) {
			return true
		}
	}
	return false
}

func isOpen(status string) bool {
	switch strings.ToUpper(status) {
	case "COMPLETE", "CANCELLED", "REJECTED":
		return false
	}
	return true
}

// Positions merges settled holdings with today's net positions.
func (c *Client) Positions(_ context.Context) ([]types.Position, error) {
	holdings, err := c.kc.GetHoldings()
	if err != nil {
		return nil, err
	}
	positions, err := c.kc.GetPositions()
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string]*types.Position)
	add := func(symbol string, qty, avg, last, prevClose decimal.Decimal) {
		if qty.IsZero() {
			return
		}
		p := bySymbol[symbol]
		if p == nil {
			p = &types.Position{Symbol: symbol, CurrentPrice: last}
			bySymbol[symbol] = p
		}
		p.Qty = p.Qty.Add(qty)
		p.CostBasis = p.CostBasis.Add(qty.Mul(avg))
		p.MarketValue = p.Qty.Mul(last)
		p.UnrealizedPL = p.MarketValue.Sub(p.CostBasis)
		if p.CostBasis.IsPositive() {
			p.UnrealizedPLPct = p.UnrealizedPL.Div(p.CostBasis)
		}
		if prevClose.IsPositive() {
			p.UnrealizedIntradayPL = p.UnrealizedIntradayPL.Add(last.Sub(prevClose).Mul(qty))
		}
	}
	for _, h := range holdings {
		add(h.Tradingsymbol, num(h.Quantity), num(h.AveragePrice), num(h.LastPrice), num(h.ClosePrice))
	}
	for _, p := range positions.Net {
		add(p.Tradingsymbol, num(p.Quantity), num(p.AveragePrice), num(p.LastPrice), num(p.ClosePrice))
	}

	out := make([]types.Position, 0, len(bySymbol))
	for _, p := range bySymbol {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (c *Client) Account(_ context.Context) (types.Account, error) {
	m, err := c.kc.GetUserMargins()
	if err != nil {
		return types.Account{}, err
	}
	cash := num(m.Equity.Available.Cash)
	return types.Account{
		ID:                       "kite-" + c.exchange,
		Currency:                 "INR",
		Equity:                   num(m.Equity.Net),
		BuyingPower:              num(m.Equity.Net),
		NonMarginableBuyingPower: cash,
		TradingBlocked:           !m.Equity.Enabled,
	}, nil
}

func (c *Client) LatestPrice(_ context.Context, symbol string) (float64, error) {
	key := c.instrument(symbol)
	ltp, err := c.kc.GetLTP(key)
	if err != nil {
		return 0, err
	}
	q, ok := ltp[key]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", key)
	}
	c.tokens.addMapping(strings.ToUpper(symbol), uint32(q.InstrumentToken))
	return q.LastPrice, nil
}

func (c *Client) OptionContracts(context.Context, types.OptionContractQuery) ([]types.OptionContract, error) {
	return nil, fmt.Errorf("options: %w", ErrUnsupported)
}

func (c *Client) LatestCryptoPrice(_ context.Context, pair string) (float64, error) {
	return 0, fmt.Errorf("crypto %s: %w", pair, ErrUnsupported)
}

// RecentCandles returns up to n daily candles from the historical API.
func (c *Client) RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	token, ok := c.tokens.getToken(strings.ToUpper(symbol))
	if !ok {
		if _, err := c.LatestPrice(ctx, symbol); err != nil {
			return nil, fmt.Errorf("resolve instrument token: %w", err)
		}
		token, _ = c.tokens.getToken(strings.ToUpper(symbol))
	}

	to := time.Now()
	from := to.AddDate(0, 0, -(n*7/5 + 10))
	data, err := c.kc.GetHistoricalData(int(token), "day", from, to, false, false)
	if err != nil {
		return nil, err
	}
	if len(data) > n {
		data = data[len(data)-n:]
	}
	out := make([]types.Candle, 0, len(data))
	for _, d := range data {
		out = append(out, types.Candle{
			Ts:    d.Date.Unix(),
			Open:  d.Open,
			High:  d.High,
			Low:   d.Low,
			Close: d.Close,
			Vol:   float64(d.Volume),
		})
	}
	return out, nil
}

func toOrder(o kiteconnect.Order) types.Order {
	out := types.Order{
		ID:             o.OrderID,
		Symbol:         o.TradingSymbol,
		Asset:          types.AssetEquity,
		Side:           types.Side(strings.ToLower(o.TransactionType)),
		Type:           types.OrderType(strings.ToLower(o.OrderType)),
		Class:          types.OrderClassSimple,
		Status:         strings.ToLower(o.Status),
		Qty:            num(o.Quantity),
		FilledQty:      num(o.FilledQuantity),
		FilledAvgPrice: num(o.AveragePrice),
		LimitPrice:     num(o.Price),
		StopPrice:      num(o.TriggerPrice),
		CreatedAt:      o.OrderTimestamp.Time,
	}
	return out
}

type number interface {
	~int | ~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func num[T number](v T) decimal.Decimal {
	return decimal.NewFromFloat(float64(v))
}
