package tools

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/occ"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/tradelog"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

func (t *toolset) orderTools() []Tool {
	return []Tool{
		{
			Name:        "buy_stock_by_market_price",
			Description: "Buy a stock at the market price. Returns the order id.",
			Schema:      object(map[string]property{"symbol": symbolProp, "qty": qtyProp}, "symbol", "qty"),
			Handler:     t.marketOrder("buy_stock_by_market_price", types.SideBuy),
		},
		{
			Name:        "sell_stock_by_market_price",
			Description: "Sell a stock at the market price. Returns the order id.",
			Schema:      object(map[string]property{"symbol": symbolProp, "qty": qtyProp}, "symbol", "qty"),
			Handler:     t.marketOrder("sell_stock_by_market_price", types.SideSell),
		},
		{
			Name:        "submit_stock_limit_buy_order",
			Description: "Place a good-till-canceled limit buy order for a stock. Returns the order id.",
			Schema: object(map[string]property{
				"symbol": symbolProp, "qty": qtyProp, "limit_price": limitPriceProp,
			}, "symbol", "qty", "limit_price"),
			Handler: t.limitOrder("submit_stock_limit_buy_order", types.SideBuy),
		},
		{
			Name:        "submit_stock_limit_sell_order",
			Description: "Place a good-till-canceled limit sell order for a stock. Returns the order id.",
			Schema: object(map[string]property{
				"symbol": symbolProp, "qty": qtyProp, "limit_price": limitPriceProp,
			}, "symbol", "qty", "limit_price"),
			Handler: t.limitOrder("submit_stock_limit_sell_order", types.SideSell),
		},
		{
			Name: "set_stock_exit_strategy",
			Description: "Protect a stock position with a one-cancels-other sell: a take-profit limit " +
				"at limit_price and a stop loss at stop_loss_price. Returns the order id.",
			Schema: object(map[string]property{
				"symbol": symbolProp, "qty": qtyProp, "limit_price": limitPriceProp, "stop_loss_price": stopLossProp,
			}, "symbol", "qty", "limit_price", "stop_loss_price"),
			Handler: t.exitStrategy("set_stock_exit_strategy", false),
		},
	}
}

func (t *toolset) optionTools() []Tool {
	withLimit := map[string]property{"limit_price": limitPriceProp}
	withExit := map[string]property{"limit_price": limitPriceProp, "stop_loss_price": stopLossProp}
	return []Tool{
		{
			Name:        "buy_option_by_market_price",
			Description: "Buy option contracts at the market price for the day. Returns the order id.",
			Schema:      object(optionProps(nil), optionRequired...),
			Handler:     t.optionOrder("buy_option_by_market_price", types.SideBuy, types.OrderTypeMarket),
		},
		{
			Name:        "sell_option_by_market_price",
			Description: "Sell option contracts at the market price for the day. Returns the order id.",
			Schema:      object(optionProps(nil), optionRequired...),
			Handler:     t.optionOrder("sell_option_by_market_price", types.SideSell, types.OrderTypeMarket),
		},
		{
			Name:        "buy_option_by_limit_price",
			Description: "Buy option contracts with a limit price. Returns the order id.",
			Schema:      object(optionProps(withLimit), append(optionRequired, "limit_price")...),
			Handler:     t.optionOrder("buy_option_by_limit_price", types.SideBuy, types.OrderTypeLimit),
		},
		{
			Name:        "sell_option_by_limit_price",
			Description: "Sell option contracts with a limit price. Returns the order id.",
			Schema:      object(optionProps(withLimit), append(optionRequired, "limit_price")...),
			Handler:     t.optionOrder("sell_option_by_limit_price", types.SideSell, types.OrderTypeLimit),
		},
		{
			Name:        "set_option_exit_strategy",
			Description: "Protect an option position with a one-cancels-other sell of take profit and stop loss. Returns the order id.",
			Schema:      object(optionProps(withExit), append(optionRequired, "limit_price", "stop_loss_price")...),
			Handler:     t.exitStrategy("set_option_exit_strategy", true),
		},
		{
			Name:        "get_option_ticker",
			Description: "Build the OCC option symbol for a contract, e.g. AAPL241220C00195000.",
			Schema: object(map[string]property{
				"underlying": underlyingProp, "expiration": expirationProp, "option_type": optionTypeProp, "strike": strikeProp,
			}, "underlying", "expiration", "option_type", "strike"),
			Handler: func(_ context.Context, args Args) (string, error) {
				return t.optionTicker(args)
			},
		},
	}
}

func (t *toolset) marketOrder(tool string, side types.Side) Handler {
	return func(ctx context.Context, args Args) (string, error) {
		symbol, err := args.String("symbol")
		if err != nil {
			return "", err
		}
		qty, err := args.Positive("qty")
		if err != nil {
			return "", err
		}
		return t.submit(ctx, tool, types.OrderRequest{
			Symbol: strings.ToUpper(symbol),
			Asset:  types.AssetEquity,
			Side:   side,
			Type:   types.OrderTypeMarket,
			Qty:    qty,
		})
	}
}

func (t *toolset) limitOrder(tool string, side types.Side) Handler {
	return func(ctx context.Context, args Args) (string, error) {
		symbol, err := args.String("symbol")
		if err != nil {
			return "", err
		}
		qty, err := args.Positive("qty")
		if err != nil {
			return "", err
		}
		limit, err := args.Positive("limit_price")
		if err != nil {
			return "", err
		}
		return t.submit(ctx, tool, types.OrderRequest{
			Symbol:     strings.ToUpper(symbol),
			Asset:      types.AssetEquity,
			Side:       side,
			Type:       types.OrderTypeLimit,
			Qty:        qty,
			LimitPrice: limit,
		})
	}
}

func (t *toolset) exitStrategy(tool string, option bool) Handler {
	return func(ctx context.Context, args Args) (string, error) {
		req := types.OrderRequest{
			Asset: types.AssetEquity,
			Side:  types.SideSell,
			Type:  types.OrderTypeLimit,
			Class: types.OrderClassOCO,
		}
		var err error
		if option {
			req.Asset = types.AssetOption
			if req.Symbol, err = t.optionTicker(args); err != nil {
				return "", err
			}
			if req.Qty, err = contracts(args); err != nil {
				return "", err
			}
		} else {
			symbol, err := args.String("symbol")
			if err != nil {
				return "", err
			}
			req.Symbol = strings.ToUpper(symbol)
			if req.Qty, err = args.Positive("qty"); err != nil {
				return "", err
			}
		}
		if req.LimitPrice, err = args.Positive("limit_price"); err != nil {
			return "", err
		}
		if req.StopPrice, err = args.Positive("stop_loss_price"); err != nil {
			return "", err
		}
		if !req.StopPrice.LessThan(req.LimitPrice) {
			return "", invalid("stop_loss_price", "below limit_price")
		}
		return t.submit(ctx, tool, req)
	}
}

func (t *toolset) optionOrder(tool string, side types.Side, typ types.OrderType) Handler {
	return func(ctx context.Context, args Args) (string, error) {
		ticker, err := t.optionTicker(args)
		if err != nil {
			return "", err
		}
		qty, err := contracts(args)
		if err != nil {
			return "", err
		}
		req := types.OrderRequest{
			Symbol: ticker,
			Asset:  types.AssetOption,
			Side:   side,
			Type:   typ,
			Qty:    qty,
		}
		if typ == types.OrderTypeLimit {
			if req.LimitPrice, err = args.Positive("limit_price"); err != nil {
				return "", err
			}
		}
		return t.submit(ctx, tool, req)
	}
}

// optionTicker validates the contract arguments and rejects expired dates.
func (t *toolset) optionTicker(args Args) (string, error) {
	underlying, err := args.String("underlying")
	if err != nil {
		return "", err
	}
	expiration, err := args.String("expiration")
	if err != nil {
		return "", err
	}
	optionType, err := args.String("option_type")
	if err != nil {
		return "", err
	}
	strike, err := args.Float("strike")
	if err != nil {
		return "", err
	}
	return occ.StrictTicker(underlying, expiration, optionType, strike, t.now())
}

func contracts(args Args) (decimal.Decimal, error) {
	qty, err := args.Positive("qty")
	if err != nil {
		return qty, err
	}
	if !qty.IsInteger() {
		return decimal.Zero, invalid("qty", "a whole number of contracts")
	}
	return qty, nil
}

// submit places req on the session and journals the attempt either way.
func (t *toolset) submit(ctx context.Context, tool string, req types.OrderRequest) (string, error) {
	entry := tradelog.OrderEntry{
		Env:    string(t.Session.Environment()),
		Tool:   tool,
		Symbol: req.Symbol,
		Asset:  string(req.Asset),
		Side:   string(req.Side),
		Type:   string(req.Type),
		Class:  string(req.Class),
		Qty:    req.Qty.String(),
	}
	if !req.LimitPrice.IsZero() {
		entry.LimitPrice = req.LimitPrice.String()
	}
	if !req.StopPrice.IsZero() {
		entry.StopPrice = req.StopPrice.String()
	}

	order, err := t.Session.SubmitOrder(ctx, req)
	if err != nil {
		entry.Error = err.Error()
		t.journal(ctx, entry)
		return "", err
	}

	entry.OrderID = order.ID
	entry.Status = order.Status
	t.journal(ctx, entry)
	t.Metrics.ObserveOrder(string(req.Side), string(req.Asset))
	logger.Order(ctx, req.Symbol, string(req.Side), req.Qty.String(), order.ID,
		"type", string(req.Type),
		"env", entry.Env,
		"status", order.Status,
	)
	return order.ID, nil
}

func (t *toolset) journal(ctx context.Context, e tradelog.OrderEntry) {
	if err := t.Journal.AppendOrder(e); err != nil {
		logger.ErrorWithErr(ctx, "Failed to journal order", err, "symbol", e.Symbol)
	}
}
