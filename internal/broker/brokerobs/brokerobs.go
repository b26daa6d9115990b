package brokerobs

import (
	"context"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/trace"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

// observableBroker wraps a broker client with logging and tracing
type observableBroker struct {
	broker broker.Client
	env    broker.Environment
}

var _ broker.Client = (*observableBroker)(nil)

// Wrap wraps a broker client with observability middleware
func Wrap(c broker.Client, env broker.Environment) broker.Client {
	return &observableBroker{broker: c, env: env}
}

func (ob *observableBroker) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Submitting order",
		"env", string(ob.env),
		"symbol", req.Symbol,
		"side", string(req.Side),
		"type", string(req.Type),
		"class", string(req.Class),
		"qty", req.Qty.String(),
	)

	o, err := ob.broker.SubmitOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to submit order", err,
			"env", string(ob.env),
			"symbol", req.Symbol,
			"side", string(req.Side),
			"qty", req.Qty.String(),
		)
		return types.Order{}, err
	}

	logger.Order(ctx, o.Symbol, string(o.Side), o.Qty.String(), o.ID, "status", o.Status, "env", string(ob.env))
	return o, nil
}

func (ob *observableBroker) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := trace.StartSpan(ctx, "broker.CancelOrder")
	defer span.End()

	if err := ob.broker.CancelOrder(ctx, orderID); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel order", err, "order_id", orderID)
		return err
	}
	logger.InfoSkip(ctx, 1, "Order canceled", "order_id", orderID, "env", string(ob.env))
	return nil
}

func (ob *observableBroker) GetOrder(ctx context.Context, orderID string) (types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetOrder")
	defer span.End()

	o, err := ob.broker.GetOrder(ctx, orderID)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch order", err, "order_id", orderID)
		return types.Order{}, err
	}
	logger.DebugSkip(ctx, 1, "Order fetched", "order_id", orderID, "status", o.Status)
	return o, nil
}

func (ob *observableBroker) ListOrders(ctx context.Context, f types.OrderFilter) ([]types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ListOrders")
	defer span.End()

	orders, err := ob.broker.ListOrders(ctx, f)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list orders", err, "status", string(f.Status), "symbols", f.Symbols)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Orders listed", "status", string(f.Status), "count", len(orders))
	return orders, nil
}

func (ob *observableBroker) Positions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Positions")
	defer span.End()

	positions, err := ob.broker.Positions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch positions", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Positions fetched", "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) Account(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Account")
	defer span.End()

	a, err := ob.broker.Account(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return types.Account{}, err
	}
	logger.DebugSkip(ctx, 1, "Account fetched", "equity", a.Equity.String(), "blocked", a.TradingBlocked)
	return a, nil
}

func (ob *observableBroker) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.LatestPrice")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching latest price", "symbol", symbol)

	price, err := ob.broker.LatestPrice(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch latest price", err, "symbol", symbol)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Latest price fetched", "symbol", symbol, "price", price)
	return price, nil
}

func (ob *observableBroker) RecentCandles(ctx context.Context, symbol string, n int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "broker.RecentCandles")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching recent candles", "symbol", symbol, "count", n)

	candles, err := ob.broker.RecentCandles(ctx, symbol, n)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err, "symbol", symbol, "count", n)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Candles fetched successfully", "symbol", symbol, "count", len(candles))
	return candles, nil
}

func (ob *observableBroker) OptionContracts(ctx context.Context, q types.OptionContractQuery) ([]types.OptionContract, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OptionContracts")
	defer span.End()

	contracts, err := ob.broker.OptionContracts(ctx, q)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list option contracts", err, "underlying", q.Underlying, "type", q.Type)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Option contracts listed", "underlying", q.Underlying, "type", q.Type, "count", len(contracts))
	return contracts, nil
}

func (ob *observableBroker) LatestCryptoPrice(ctx context.Context, pair string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.LatestCryptoPrice")
	defer span.End()

	price, err := ob.broker.LatestCryptoPrice(ctx, pair)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch crypto price", err, "pair", pair)
		return 0, err
	}
	logger.DebugSkip(ctx, 1, "Crypto price fetched", "pair", pair, "price", price)
	return price, nil
}
