package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

const ModeDryRun = "DRY_RUN"

// DryRun forwards reads to the wrapped backend and simulates writes. Orders
// it accepts get SIM-<nanos> ids and are answered from memory afterwards.
type DryRun struct {
	Client

	mu       sync.Mutex
	orders   map[string]types.Order
	sequence []string
}

func NewDryRun(c Client) *DryRun {
	return &DryRun{Client: c, orders: make(map[string]types.Order)}
}

func (d *DryRun) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	o := types.Order{
		ID:         fmt.Sprintf("SIM-%d", time.Now().UnixNano()),
		Symbol:     req.Symbol,
		Asset:      req.Asset,
		Side:       req.Side,
		Type:       req.Type,
		Class:      req.Class,
		Status:     "accepted",
		Qty:        req.Qty,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
		CreatedAt:  time.Now().UTC(),
	}

	d.mu.Lock()
	d.orders[o.ID] = o
	d.sequence = append(d.sequence, o.ID)
	d.mu.Unlock()

	logger.Info(ctx, "Simulated order placed",
		"symbol", req.Symbol,
		"side", string(req.Side),
		"qty", req.Qty.String(),
		"order_id", o.ID,
	)
	return o, nil
}

func (d *DryRun) CancelOrder(ctx context.Context, orderID string) error {
	if !strings.HasPrefix(orderID, "SIM-") {
		logger.Info(ctx, "Simulated cancel of broker order", "order_id", orderID)
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	o.Status = "canceled"
	d.orders[orderID] = o
	return nil
}

func (d *DryRun) GetOrder(ctx context.Context, orderID string) (types.Order, error) {
	if strings.HasPrefix(orderID, "SIM-") {
		d.mu.Lock()
		defer d.mu.Unlock()
		o, ok := d.orders[orderID]
		if !ok {
			return types.Order{}, fmt.Errorf("order %s not found", orderID)
		}
		return o, nil
	}
	return d.Client.GetOrder(ctx, orderID)
}

// ListOrders adds simulated open orders to the backend's open orders.
func (d *DryRun) ListOrders(ctx context.Context, filter types.OrderFilter) ([]types.Order, error) {
	orders, err := d.Client.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	if filter.Status != types.StatusOpen && filter.Status != "" {
		return orders, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range d.sequence {
		o := d.orders[id]
		if o.Status != "accepted" || !matches(o, filter) {
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func matches(o types.Order, f types.OrderFilter) bool {
	if f.Side != "" && o.Side != f.Side {
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
