package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/occ"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

const (
	openOrdersLimit   = 100
	closedOrdersLimit = 30
	lastClosedLimit   = 10
	// lastClosedScan is how many closed orders are scanned when filtering
	// by symbol.
	lastClosedScan = 100
)

func (t *toolset) queryTools() []Tool {
	return []Tool{
		{
			Name:        "cancel_order_by_id",
			Description: "Cancel an open order by its id.",
			Schema:      object(map[string]property{"order_id": orderIDProp}, "order_id"),
			Handler:     t.cancelOrder,
		},
		{
			Name:        "get_order_by_id",
			Description: "Look up one order by its id.",
			Schema:      object(map[string]property{"order_id": orderIDProp}, "order_id"),
			Handler:     t.getOrder,
		},
		{
			Name:        "get_open_orders",
			Description: "List open orders, newest first, with their legs.",
			Schema: object(map[string]property{
				"symbol": str("Only orders for this symbol."),
				"side":   enum("Only buy or only sell orders.", "buy", "sell"),
				"limit":  integer("Maximum number of orders, 100 by default."),
			}),
			Handler: t.openOrders,
		},
		{
			Name:        "get_closed_orders_between_dates",
			Description: "List closed orders submitted between two dates (inclusive, New York time).",
			Schema: object(map[string]property{
				"date_from": str("First day, YYYY-MM-DD."),
				"date_to":   str("Last day, YYYY-MM-DD."),
				"symbol":    str("Only orders for this symbol."),
				"limit":     integer("Maximum number of orders, 30 by default."),
			}, "date_from", "date_to"),
			Handler: t.closedBetween,
		},
		{
			Name:        "get_last_closed_orders",
			Description: "List the most recent closed orders. symbol matches any part of the order symbol, so an underlying finds its options too.",
			Schema: object(map[string]property{
				"limit":  integer("Maximum number of orders, 10 by default."),
				"symbol": str("Symbol or part of a symbol to match."),
			}),
			Handler: t.lastClosed,
		},
	}
}

func (t *toolset) cancelOrder(ctx context.Context, args Args) (string, error) {
	id, err := args.String("order_id")
	if err != nil {
		return "", err
	}
	if err := t.Session.CancelOrder(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Order %s canceled.", id), nil
}

func (t *toolset) getOrder(ctx context.Context, args Args) (string, error) {
	id, err := args.String("order_id")
	if err != nil {
		return "", err
	}
	o, err := t.Session.GetOrder(ctx, id)
	if err != nil {
		return "", err
	}
	return formatOrder(o), nil
}

func (t *toolset) openOrders(ctx context.Context, args Args) (string, error) {
	limit, err := args.OptInt("limit", openOrdersLimit)
	if err != nil {
		return "", err
	}
	f := types.OrderFilter{Status: types.StatusOpen, Limit: limit, Nested: true}
	if s := args.OptString("symbol", ""); s != "" {
		f.Symbols = []string{strings.ToUpper(s)}
	}
	switch side := strings.ToLower(args.OptString("side", "")); side {
	case "":
	case string(types.SideBuy), string(types.SideSell):
		f.Side = types.Side(side)
	default:
		return "", invalid("side", "buy or sell")
	}

	orders, err := t.Session.ListOrders(ctx, f)
	if err != nil {
		return "", err
	}
	return formatOrders(orders, "No open orders."), nil
}

func (t *toolset) closedBetween(ctx context.Context, args Args) (string, error) {
	from, err := dateArg(args, "date_from")
	if err != nil {
		return "", err
	}
	to, err := dateArg(args, "date_to")
	if err != nil {
		return "", err
	}
	if to.Before(from) {
		return "", invalid("date_to", "on or after date_from")
	}
	limit, err := args.OptInt("limit", closedOrdersLimit)
	if err != nil {
		return "", err
	}

	f := types.OrderFilter{
		Status: types.StatusClosed,
		Limit:  limit,
		After:  from,
		Until:  to.AddDate(0, 0, 1).Add(-time.Nanosecond),
	}
	if s := args.OptString("symbol", ""); s != "" {
		f.Symbols = []string{strings.ToUpper(s)}
	}
	orders, err := t.Session.ListOrders(ctx, f)
	if err != nil {
		return "", err
	}
	return formatOrders(orders, "No closed orders in that period."), nil
}

func (t *toolset) lastClosed(ctx context.Context, args Args) (string, error) {
	limit, err := args.OptInt("limit", lastClosedLimit)
	if err != nil {
		return "", err
	}
	symbol := strings.ToUpper(args.OptString("symbol", ""))

	f := types.OrderFilter{Status: types.StatusClosed, Limit: limit}
	if symbol != "" && f.Limit < lastClosedScan {
		f.Limit = lastClosedScan
	}
	orders, err := t.Session.ListOrders(ctx, f)
	if err != nil {
		return "", err
	}
	if symbol != "" {
		kept := orders[:0]
		for _, o := range orders {
			if strings.Contains(strings.ToUpper(o.Symbol), symbol) {
				kept = append(kept, o)
			}
		}
		orders = kept
	}
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return formatOrders(orders, "No closed orders."), nil
}

// dateArg parses a YYYY-MM-DD argument as midnight in New York.
func dateArg(args Args, key string) (time.Time, error) {
	s, err := args.String(key)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.ParseInLocation("2006-01-02", s, occ.NewYork())
	if err != nil {
		return time.Time{}, invalid(key, "a date in YYYY-MM-DD format")
	}
	return d, nil
}
