package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/occ"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/ta"
)

const (
	// indicatorCandles covers SMA(50) and the MACD signal warm-up.
	indicatorCandles = 100
	defaultNewsLimit = 5
)

var errNoNews = errors.New("news is not configured")

func (t *toolset) marketTools() []Tool {
	return []Tool{
		{
			Name:        "get_current_date",
			Description: "Today's date in New York, YYYY-MM-DD.",
			Schema:      noArgs(),
			Handler: func(context.Context, Args) (string, error) {
				return t.now().In(occ.NewYork()).Format("2006-01-02"), nil
			},
		},
		{
			Name:        "get_stock_price",
			Description: "Latest trade price of a stock in dollars.",
			Schema:      object(map[string]property{"symbol": symbolProp}, "symbol"),
			Handler:     t.stockPrice,
		},
		{
			Name:        "get_technical_indicators",
			Description: "Daily technical indicators of a stock: RSI, MACD, stochastic, ATR, SMA and Bollinger bands.",
			Schema:      object(map[string]property{"symbol": symbolProp}, "symbol"),
			Handler:     t.indicators,
		},
		{
			Name:        "get_stock_news",
			Description: "Recent news headlines about a stock.",
			Schema: object(map[string]property{
				"symbol": symbolProp,
				"limit":  integer("Maximum number of headlines, 5 by default."),
			}, "symbol"),
			Handler: t.news,
		},
	}
}

func (t *toolset) stockPrice(ctx context.Context, args Args) (string, error) {
	symbol, err := args.String("symbol")
	if err != nil {
		return "", err
	}
	px, err := t.Session.LatestPrice(ctx, strings.ToUpper(symbol))
	if err != nil {
		return "", err
	}
	return decimal.NewFromFloat(px).String(), nil
}

func (t *toolset) indicators(ctx context.Context, args Args) (string, error) {
	symbol, err := args.String("symbol")
	if err != nil {
		return "", err
	}
	symbol = strings.ToUpper(symbol)
	candles, err := t.Session.RecentCandles(ctx, symbol, indicatorCandles)
	if err != nil {
		return "", err
	}
	if len(candles) == 0 {
		return "", fmt.Errorf("no price history for %s", symbol)
	}

	ind := ta.Compute(candles)
	var b strings.Builder
	fmt.Fprintf(&b, "%s technical indicators (%d daily candles, last close %.2f)\n", symbol, len(candles), candles[len(candles)-1].Close)
	fmt.Fprintf(&b, "RSI(14): %.2f\n", ind.RSI)
	fmt.Fprintf(&b, "MACD(12,26,9): line %.4f, signal %.4f, histogram %.4f\n", ind.MACD.Line, ind.MACD.Signal, ind.MACD.Histogram)
	fmt.Fprintf(&b, "Stochastic(14,3): %%K %.2f, %%D %.2f\n", ind.Stochastic.K, ind.Stochastic.D)
	fmt.Fprintf(&b, "ATR(14): %.4f\n", ind.ATR)
	fmt.Fprintf(&b, "SMA(20): %.2f\n", ind.SMA[20])
	fmt.Fprintf(&b, "SMA(50): %.2f\n", ind.SMA[50])
	fmt.Fprintf(&b, "Bollinger(20,2): middle %.2f, upper %.2f, lower %.2f", ind.BB.Middle, ind.BB.Upper, ind.BB.Lower)
	return b.String(), nil
}

func (t *toolset) news(ctx context.Context, args Args) (string, error) {
	if t.News == nil {
		return "", errNoNews
	}
	symbol, err := args.String("symbol")
	if err != nil {
		return "", err
	}
	limit, err := args.OptInt("limit", defaultNewsLimit)
	if err != nil {
		return "", err
	}
	symbol = strings.ToUpper(symbol)

	articles, err := t.News.Headlines(ctx, symbol, limit)
	if err != nil {
		return "", err
	}
	if len(articles) == 0 {
		return fmt.Sprintf("No recent news found for %s.", symbol), nil
	}
	var b strings.Builder
	for i, a := range articles {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s", a.Title)
		if a.Source != "" {
			fmt.Fprintf(&b, " (%s)", a.Source)
		}
		if a.PublishedAt != "" {
			fmt.Fprintf(&b, " %s", a.PublishedAt)
		}
		if a.URL != "" {
			fmt.Fprintf(&b, " %s", a.URL)
		}
	}
	return b.String(), nil
}
