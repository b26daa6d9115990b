// Package sim is an in-memory brokerage. Market orders fill at the current
// price; limit orders rest until SetPrice crosses them.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

var (
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrOrderNotFound = errors.New("order not found")
)

const (
	statusNew      = "new"
	statusFilled   = "filled"
	statusCanceled = "canceled"
)

type Params struct {
	Environment broker.Environment
	Cash        decimal.Decimal
	Prices      map[string]float64
	Blocked     bool
	// Contracts are the listed option contracts OptionContracts searches.
	Contracts []types.OptionContract
	// Now stamps orders; time.Now when nil.
	Now func() time.Time
}

type position struct {
	qty       decimal.Decimal
	costBasis decimal.Decimal
	openPrice decimal.Decimal
}

type Broker struct {
	env       broker.Environment
	now       func() time.Time
	blocked   bool
	contracts []types.OptionContract

	mu        sync.Mutex
	cash      decimal.Decimal
	prices    map[string]decimal.Decimal
	positions map[string]*position
	orders    map[string]*types.Order
	sequence  []string
}

var _ broker.Client = (*Broker)(nil)

func New(p Params) *Broker {
	b := &Broker{
		env:       p.Environment,
		now:       p.Now,
		blocked:   p.Blocked,
		contracts: append([]types.OptionContract(nil), p.Contracts...),
		cash:      p.Cash,
		prices:    make(map[string]decimal.Decimal, len(p.Prices)),
		positions: make(map[string]*position),
		orders:    make(map[string]*types.Order),
	}
	if b.now == nil {
		b.now = time.Now
	}
	for sym, px := range p.Prices {
		b.prices[strings.ToUpper(sym)] = decimal.NewFromFloat(px)
	}
	return b
}

// Environment reports the environment the broker was built for.
func (b *Broker) Environment() broker.Environment {
	return b.env
}

// SetPrice moves the market and fills resting limit orders it crosses.
func (b *Broker) SetPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sym := strings.ToUpper(symbol)
	px := decimal.NewFromFloat(price)
	b.prices[sym] = px

	for _, id := range b.sequence {
		o := b.orders[id]
		if o.Status != statusNew || o.Symbol != sym {
			continue
		}
		if crosses(o, px) {
			b.fillLocked(o, fillPrice(o, px))
		}
	}
}

// Hold seeds a position without touching cash.
func (b *Broker) Hold(symbol string, qty, avgPrice float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := decimal.NewFromFloat(qty)
	b.positions[strings.ToUpper(symbol)] = &position{
		qty:       q,
		costBasis: q.Mul(decimal.NewFromFloat(avgPrice)),
		openPrice: b.prices[strings.ToUpper(symbol)],
	}
}

func crosses(o *types.Order, px decimal.Decimal) bool {
	if o.Class == types.OrderClassOCO {
		return px.GreaterThanOrEqual(o.LimitPrice) || px.LessThanOrEqual(o.StopPrice)
	}
	if o.Type != types.OrderTypeLimit {
		return true
	}
	if o.Side == types.SideBuy {
		return px.LessThanOrEqual(o.LimitPrice)
	}
	return px.GreaterThanOrEqual(o.LimitPrice)
}

func fillPrice(o *types.Order, px decimal.Decimal) decimal.Decimal {
	if o.Type == types.OrderTypeLimit && o.Class != types.OrderClassOCO {
		return o.LimitPrice
	}
	return px
}

func (b *Broker) SubmitOrder(_ context.Context, req types.OrderRequest) (types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.blocked {
		return types.Order{}, errors.New("account is restricted from trading")
	}
	if !req.Qty.IsPositive() {
		return types.Order{}, fmt.Errorf("qty must be > 0, got %s", req.Qty)
	}
	sym := strings.ToUpper(req.Symbol)
	px, ok := b.prices[sym]
	if !ok && req.Type == types.OrderTypeMarket {
		return types.Order{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, req.Symbol)
	}
	if req.Type == types.OrderTypeLimit && !req.LimitPrice.IsPositive() {
		return types.Order{}, errors.New("limit price must be > 0")
	}
	if req.Side == types.SideSell {
		held := decimal.Zero
		if p := b.positions[sym]; p != nil {
			held = p.qty
		}
		if held.LessThan(req.Qty.Add(b.reservedLocked(sym))) {
			return types.Order{}, fmt.Errorf("insufficient qty available for order (requested: %s, available: %s)",
				req.Qty, held.Sub(b.reservedLocked(sym)))
		}
	}
	if req.Side == types.SideBuy {
		cost := req.Qty.Mul(px)
		if req.Type == types.OrderTypeLimit {
			cost = req.Qty.Mul(req.LimitPrice)
		}
		if cost.GreaterThan(b.buyingPowerLocked()) {
			return types.Order{}, errors.New("insufficient buying power")
		}
	}

	class := req.Class
	if class == "" {
		class = types.OrderClassSimple
	}
	o := &types.Order{
		ID:         uuid.NewString(),
		Symbol:     sym,
		Asset:      req.Asset,
		Side:       req.Side,
		Type:       req.Type,
		Class:      class,
		Status:     statusNew,
		Qty:        req.Qty,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
		CreatedAt:  b.now().UTC(),
	}
	b.orders[o.ID] = o
	b.sequence = append(b.sequence, o.ID)

	if ok && crosses(o, px) {
		b.fillLocked(o, fillPrice(o, px))
	}
	return *o, nil
}

func (b *Broker) reservedLocked(sym string) decimal.Decimal {
	total := decimal.Zero
	for _, o := range b.orders {
		if o.Status == statusNew && o.Symbol == sym && o.Side == types.SideSell {
			total = total.Add(o.Qty)
		}
	}
	return total
}

func (b *Broker) buyingPowerLocked() decimal.Decimal {
	bp := b.cash
	for _, o := range b.orders {
		if o.Status == statusNew && o.Side == types.SideBuy {
			bp = bp.Sub(o.Qty.Mul(o.LimitPrice))
		}
	}
	return bp
}

func (b *Broker) fillLocked(o *types.Order, px decimal.Decimal) {
	notional := o.Qty.Mul(px)
	p := b.positions[o.Symbol]
	if p == nil {
		p = &position{openPrice: px}
		b.positions[o.Symbol] = p
	}

	switch o.Side {
	case types.SideBuy:
		b.cash = b.cash.Sub(notional)
		p.qty = p.qty.Add(o.Qty)
		p.costBasis = p.costBasis.Add(notional)
	case types.SideSell:
		b.cash = b.cash.Add(notional)
		if p.qty.IsPositive() {
			p.costBasis = p.costBasis.Mul(p.qty.Sub(o.Qty)).Div(p.qty)
		}
		p.qty = p.qty.Sub(o.Qty)
		if p.qty.IsZero() {
			delete(b.positions, o.Symbol)
		}
	}

	o.Status = statusFilled
	o.FilledQty = o.Qty
	o.FilledAvgPrice = px
}

func (b *Broker) CancelOrder(_ context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if o.Status != statusNew {
		return fmt.Errorf("order %s is already %s", orderID, o.Status)
	}
	o.Status = statusCanceled
	return nil
}

func (b *Broker) GetOrder(_ context.Context, orderID string) (types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return types.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return *o, nil
}

// ListOrders returns matching orders, newest first.
func (b *Broker) ListOrders(_ context.Context, f types.OrderFilter) ([]types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.Order
	for i := len(b.sequence) - 1; i >= 0; i-- {
		o := b.orders[b.sequence[i]]
		if !b.matches(o, f) {
			continue
		}
		out = append(out, *o)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (b *Broker) matches(o *types.Order, f types.OrderFilter) bool {
	switch f.Status {
	case types.StatusOpen, "":
		if o.Status != statusNew {
			return false
		}
	case types.StatusClosed:
		if o.Status == statusNew {
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
	if len(f.Symbols) > 0 {
		found := false
		for _, s := range f.Symbols {
			if strings.EqualFold(s, o.Symbol) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (b *Broker) Positions(_ context.Context) ([]types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	syms := make([]string, 0, len(b.positions))
	for s := range b.positions {
		syms = append(syms, s)
	}
	sort.Strings(syms)

	out := make([]types.Position, 0, len(syms))
	for _, s := range syms {
		p := b.positions[s]
		px := b.prices[s]
		mv := p.qty.Mul(px)
		pl := mv.Sub(p.costBasis)
		plPct := decimal.Zero
		if p.costBasis.IsPositive() {
			plPct = pl.Div(p.costBasis)
		}
		out = append(out, types.Position{
			Symbol:               s,
			Qty:                  p.qty,
			CostBasis:            p.costBasis,
			CurrentPrice:         px,
			MarketValue:          mv,
			UnrealizedPL:         pl,
			UnrealizedPLPct:      plPct,
			UnrealizedIntradayPL: px.Sub(p.openPrice).Mul(p.qty),
		})
	}
	return out, nil
}

func (b *Broker) Account(_ context.Context) (types.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for s, p := range b.positions {
		equity = equity.Add(p.qty.Mul(b.prices[s]))
	}
	bp := b.buyingPowerLocked()
	return types.Account{
		ID:                       "sim-" + string(b.env),
		Currency:                 "USD",
		Equity:                   equity,
		BuyingPower:              bp,
		NonMarginableBuyingPower: bp,
		TradingBlocked:           b.blocked,
	}, nil
}

func (b *Broker) LatestPrice(_ context.Context, symbol string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	px, ok := b.prices[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return px.InexactFloat64(), nil
}

// RecentCandles returns n daily candles ending at the current price. The
// walk is seeded by the symbol so repeated calls agree.
func (b *Broker) RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	last, err := b.LatestPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var seed int64
	for _, r := range strings.ToUpper(symbol) {
		seed = seed*31 + int64(r)
	}
	rng := rand.New(rand.NewSource(seed))

	closes := make([]float64, n)
	c := last
	for i := n - 1; i >= 0; i-- {
		closes[i] = c
		c *= 1 + (rng.Float64()-0.5)*0.02
	}

	end := b.now().Truncate(24 * time.Hour)
	cs := make([]types.Candle, 0, n)
	for i, c := range closes {
		h := c * (1 + rng.Float64()*0.01)
		l := c * (1 - rng.Float64()*0.01)
		cs = append(cs, types.Candle{
			Ts:    end.AddDate(0, 0, i-n+1).Unix(),
			Open:  (h + l) / 2,
			High:  h,
			Low:   l,
			Close: c,
			Vol:   1e5 + rng.Float64()*1e5,
		})
	}
	return cs, nil
}

// LatestCryptoPrice reads pair, e.g. ETH/USD, from the price table.
func (b *Broker) LatestCryptoPrice(ctx context.Context, pair string) (float64, error) {
	return b.LatestPrice(ctx, pair)
}

// OptionContracts filters the listed contracts, earliest expiration first
// and then by strike.
func (b *Broker) OptionContracts(_ context.Context, q types.OptionContractQuery) ([]types.OptionContract, error) {
	const day = "2006-01-02"
	underlying := strings.ToUpper(q.Underlying)
	var out []types.OptionContract
	for _, c := range b.contracts {
		exp := c.Expiration.Format(day)
		switch {
		case !strings.EqualFold(c.Underlying, underlying):
		case q.Type != "" && !strings.EqualFold(c.Type, q.Type):
		case !q.From.IsZero() && exp < q.From.Format(day):
		case !q.Expiration.IsZero() && exp != q.Expiration.Format(day):
		default:
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Expiration.Equal(out[j].Expiration) {
			return out[i].Expiration.Before(out[j].Expiration)
		}
		return out[i].Strike.LessThan(out[j].Strike)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
