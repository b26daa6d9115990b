package tools

import (
	"context"
	"strconv"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

func (t *toolset) accountTools() []Tool {
	return []Tool{
		{
			Name:        "get_portfolio",
			Description: "Show the open positions of the account as a table.",
			Schema:      noArgs(),
			Handler:     t.portfolio,
		},
		{
			Name:        "get_account_equity",
			Description: "Total account equity in dollars.",
			Schema:      noArgs(),
			Handler: t.accountField(func(a types.Account) string {
				return money(a.Equity)
			}),
		},
		{
			Name:        "get_buying_power",
			Description: "Buying power of the account in dollars.",
			Schema:      noArgs(),
			Handler: t.accountField(func(a types.Account) string {
				return money(a.BuyingPower)
			}),
		},
		{
			Name:        "get_non_marginable_buying_power",
			Description: "Buying power usable for non-marginable securities such as options, in dollars.",
			Schema:      noArgs(),
			Handler: t.accountField(func(a types.Account) string {
				return money(a.NonMarginableBuyingPower)
			}),
		},
		{
			Name:        "check_if_trading_is_blocked",
			Description: "Whether the account is currently blocked from trading. Answers true or false.",
			Schema:      noArgs(),
			Handler: t.accountField(func(a types.Account) string {
				return strconv.FormatBool(a.TradingBlocked)
			}),
		},
	}
}

func (t *toolset) sessionTools() []Tool {
	return []Tool{
		{
			Name:        "is_paper_account",
			Description: "Whether the session currently trades on the paper account. Answers true or false.",
			Schema:      noArgs(),
			Handler: func(context.Context, Args) (string, error) {
				return strconv.FormatBool(t.Session.Environment() == broker.Paper), nil
			},
		},
		{
			Name:        "switch_to_paper_account",
			Description: "Trade on the paper account for the rest of this session.",
			Schema:      noArgs(),
			Handler:     t.switchTo(broker.Paper, "Switched to paper account."),
		},
		{
			Name:        "switch_to_live_account",
			Description: "Trade on the live account for the rest of this session. Real money is at stake.",
			Schema:      noArgs(),
			Handler:     t.switchTo(broker.Live, "Switched to live account."),
		},
	}
}

func (t *toolset) portfolio(ctx context.Context, _ Args) (string, error) {
	positions, err := t.Session.Positions(ctx)
	if err != nil {
		return "", err
	}
	if len(positions) == 0 {
		return "No open positions in your portfolio.", nil
	}
	return portfolioTable(positions), nil
}

func (t *toolset) accountField(field func(types.Account) string) Handler {
	return func(ctx context.Context, _ Args) (string, error) {
		a, err := t.Session.Account(ctx)
		if err != nil {
			return "", err
		}
		return field(a), nil
	}
}

func (t *toolset) switchTo(env broker.Environment, done string) Handler {
	return func(ctx context.Context, _ Args) (string, error) {
		if err := t.Session.Switch(ctx, env); err != nil {
			return "", err
		}
		return done, nil
	}
}
