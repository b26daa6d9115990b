package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/occ"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

// contractScan is how many listed contracts a lookup considers.
const contractScan = 100

const defaultCryptoSymbol = "ETH"

func (t *toolset) lookupTools() []Tool {
	return []Tool{
		{
			Name: "get_option_contract",
			Description: "Find a listed option contract of an underlying. Without an expiration the nearest one is used; " +
				"without a strike the one closest to the stock price is chosen. Returns the contract symbol and details.",
			Schema: object(map[string]property{
				"underlying":        underlyingProp,
				"option_type":       optionTypeProp,
				"expiration":        str("Option expiration date, YYYY-MM-DD. The nearest expiration when omitted."),
				"strike":            num("Target strike price in dollars. The closest listed strike is chosen."),
				"min_open_interest": integer("Minimum open interest, 0 by default."),
			}, "underlying", "option_type"),
			Handler: t.optionContract,
		},
		{
			Name:        "get_crypto_price",
			Description: "Latest trade price of a cryptocurrency in US dollars.",
			Schema: object(map[string]property{
				"symbol": str("Crypto symbol such as ETH, or a pair such as ETH/USD. ETH by default."),
			}),
			Handler: t.cryptoPrice,
		},
	}
}

func (t *toolset) optionContract(ctx context.Context, args Args) (string, error) {
	raw, err := args.String("underlying")
	if err != nil {
		return "", err
	}
	underlying, err := occ.Underlying(raw)
	if err != nil {
		return "", err
	}
	raw, err = args.String("option_type")
	if err != nil {
		return "", err
	}
	typ, err := occ.Type(raw)
	if err != nil {
		return "", err
	}
	minOI, err := args.OptInt("min_open_interest", 0)
	if err != nil {
		return "", err
	}
	if minOI < 0 {
		return "", invalid("min_open_interest", "zero or a positive whole number")
	}

	today, _ := occ.Expiration(t.now().In(occ.NewYork()).Format("2006-01-02"))
	q := types.OptionContractQuery{Underlying: underlying, Type: typ, From: today, Limit: contractScan}
	if s := args.OptString("expiration", ""); s != "" {
		exp, err := occ.Expiration(s)
		if err != nil {
			return "", err
		}
		q.From, q.Expiration = exp, exp
	}

	var target decimal.Decimal
	if _, ok := args.raw("strike"); ok {
		if target, err = args.Positive("strike"); err != nil {
			return "", err
		}
	} else if px, err := t.Session.LatestPrice(ctx, underlying); err == nil {
		target = decimal.NewFromFloat(px)
	} else {
		logger.Debug(ctx, "No underlying price for strike selection", "underlying", underlying, "error", err.Error())
	}

	listed, err := t.Session.OptionContracts(ctx, q)
	if err != nil {
		return "", err
	}
	c, ok := pickContract(listed, decimal.NewFromInt(int64(minOI)), target)
	if !ok {
		return fmt.Sprintf("No %s option contract of %s found with open interest of at least %d.", kindName(typ), underlying, minOI), nil
	}
	return formatContract(c), nil
}

// pickContract drops contracts below minOI, keeps the earliest expiration
// left and takes the strike closest to target. With a zero target the
// first listed contract of that expiration wins.
func pickContract(listed []types.OptionContract, minOI, target decimal.Decimal) (types.OptionContract, bool) {
	var (
		best  types.OptionContract
		found bool
	)
	for _, c := range listed {
		if c.OpenInterest.LessThan(minOI) {
			continue
		}
		if !found {
			best, found = c, true
			continue
		}
		day, bestDay := c.Expiration.Format("2006-01-02"), best.Expiration.Format("2006-01-02")
		switch {
		case day < bestDay:
			best = c
		case day == bestDay && !target.IsZero() &&
			c.Strike.Sub(target).Abs().LessThan(best.Strike.Sub(target).Abs()):
			best = c
		}
	}
	return best, found
}

func kindName(typ string) string {
	if typ == occ.Put {
		return "put"
	}
	return "call"
}

func formatContract(c types.OptionContract) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s %s, expires %s, strike %s, open interest %s",
		c.Symbol, c.Underlying, kindName(c.Type), c.Expiration.Format("2006-01-02"), money(c.Strike), c.OpenInterest.String())
	if c.ClosePrice.IsPositive() {
		fmt.Fprintf(&b, ", last close %s", money(c.ClosePrice))
	}
	return b.String()
}

func (t *toolset) cryptoPrice(ctx context.Context, args Args) (string, error) {
	pair := strings.ToUpper(args.OptString("symbol", defaultCryptoSymbol))
	if !strings.Contains(pair, "/") {
		pair += "/USD"
	}
	px, err := t.Session.LatestCryptoPrice(ctx, pair)
	if err != nil {
		return "", err
	}
	return decimal.NewFromFloat(px).String(), nil
}
