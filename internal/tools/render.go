package tools

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/occ"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

var hundred = decimal.NewFromInt(100)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

var portfolioHeader = []string{
	"Symbol", "Quantity", "Cost Basis", "Unrealized P/L (%)",
	"Unrealized P/L Today", "Current Price", "Market Value",
}

func portfolioTable(positions []types.Position) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader(portfolioHeader)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, p := range positions {
		table.Append([]string{
			p.Symbol,
			p.Qty.String(),
			money(p.CostBasis),
			fmt.Sprintf("%s (%s%%)", money(p.UnrealizedPL), p.UnrealizedPLPct.Mul(hundred).StringFixed(2)),
			money(p.UnrealizedIntradayPL),
			money(p.CurrentPrice),
			money(p.MarketValue),
		})
	}
	table.Render()
	return strings.TrimRight(b.String(), "\n")
}

func formatOrders(orders []types.Order, empty string) string {
	if len(orders) == 0 {
		return empty
	}
	var b strings.Builder
	for _, o := range orders {
		writeOrder(&b, o, "")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatOrder(o types.Order) string {
	var b strings.Builder
	writeOrder(&b, o, "")
	return strings.TrimRight(b.String(), "\n")
}

func writeOrder(b *strings.Builder, o types.Order, indent string) {
	fmt.Fprintf(b, "%sOrder %s: %s %s %s %s", indent, o.ID, o.Side, o.Qty, o.Symbol, o.Type)
	if o.Class == types.OrderClassOCO {
		b.WriteString(" (one-cancels-other)")
	}
	if !o.LimitPrice.IsZero() {
		fmt.Fprintf(b, ", limit %s", money(o.LimitPrice))
	}
	if !o.StopPrice.IsZero() {
		fmt.Fprintf(b, ", stop %s", money(o.StopPrice))
	}
	fmt.Fprintf(b, ", status %s", o.Status)
	if o.FilledQty.IsPositive() {
		fmt.Fprintf(b, ", filled %s at %s", o.FilledQty, money(o.FilledAvgPrice))
	}
	if !o.CreatedAt.IsZero() {
		fmt.Fprintf(b, ", submitted %s", o.CreatedAt.In(occ.NewYork()).Format("2006-01-02 15:04:05 MST"))
	}
	b.WriteByte('\n')
	for _, leg := range o.Legs {
		writeOrder(b, leg, indent+"  ")
	}
}
