// Package strategy holds the trading strategies driven through a pipeline.
//
// The ladder keeps one position in a single symbol: it buys below the
// market with a limit order, sells the position above the market once it is
// held, and re-prices a stale buy when the market has run away from it.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/history"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/pipeline"
)

type Style string

const (
	// StyleEager runs each step as soon as it is reached and branches in
	// Go on the typed answer.
	StyleEager Style = "eager"
	// StyleBatched builds the decision tree up front and hands it to the
	// pipeline interpreter in one go.
	StyleBatched Style = "batched"
)

var ErrUnknownStyle = errors.New("unknown strategy style")

func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleEager, "":
		return StyleEager, nil
	case StyleBatched:
		return StyleBatched, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStyle, s)
}

type LadderConfig struct {
	Symbol string `yaml:"symbol"`
	Qty    int    `yaml:"qty"`
	// TakeProfit, BuyAt and RepriceBelow are multiples of the current price.
	TakeProfit   float64 `yaml:"take_profit"`
	BuyAt        float64 `yaml:"buy_at"`
	RepriceBelow float64 `yaml:"reprice_below"`
	// StopLoss, when set, turns the sell into a one-cancels-other exit with
	// a stop at price*StopLoss.
	StopLoss    float64 `yaml:"stop_loss"`
	EnsurePaper bool    `yaml:"ensure_paper"`
	Style       Style   `yaml:"style"`
}

func DefaultLadderConfig() LadderConfig {
	return LadderConfig{
		Symbol:       "TQQQ",
		Qty:          100,
		TakeProfit:   1.05,
		BuyAt:        0.97,
		RepriceBelow: 0.95,
		EnsurePaper:  true,
		Style:        StyleEager,
	}
}

func (c LadderConfig) Validate() error {
	if c.Symbol == "" {
		return errors.New("strategy symbol is required")
	}
	if c.Qty <= 0 {
		return fmt.Errorf("strategy qty must be > 0, got %d", c.Qty)
	}
	if c.TakeProfit <= 1 {
		return fmt.Errorf("take_profit must be > 1, got %v", c.TakeProfit)
	}
	if c.BuyAt <= 0 || c.BuyAt >= 1 {
		return fmt.Errorf("buy_at must be in (0, 1), got %v", c.BuyAt)
	}
	if c.RepriceBelow <= 0 || c.RepriceBelow >= 1 {
		return fmt.Errorf("reprice_below must be in (0, 1), got %v", c.RepriceBelow)
	}
	if c.StopLoss < 0 || c.StopLoss >= 1 {
		return fmt.Errorf("stop_loss must be in [0, 1), got %v", c.StopLoss)
	}
	if _, err := ParseStyle(string(c.Style)); err != nil {
		return err
	}
	return nil
}

// Levels are the prices derived from one price reading.
type Levels struct {
	Price        float64
	TakeProfit   float64
	StopLoss     float64
	Buy          float64
	RepriceBelow float64
}

type Ladder struct {
	cfg LadderConfig
}

func NewLadder(cfg LadderConfig) (*Ladder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Symbol = strings.ToUpper(cfg.Symbol)
	cfg.Style, _ = ParseStyle(string(cfg.Style))
	return &Ladder{cfg: cfg}, nil
}

func (l *Ladder) Config() LadderConfig {
	return l.cfg
}

func (l *Ladder) Levels(price float64) Levels {
	lv := Levels{
		Price:        price,
		TakeProfit:   price * l.cfg.TakeProfit,
		Buy:          price * l.cfg.BuyAt,
		RepriceBelow: price * l.cfg.RepriceBelow,
	}
	if l.cfg.StopLoss > 0 {
		lv.StopLoss = price * l.cfg.StopLoss
	}
	return lv
}

// Outcome is what a run of the ladder produced.
type Outcome struct {
	Levels  Levels
	Summary string
	Steps   int
}

// Run executes the ladder in the configured style and closes with a
// summary of the whole run.
func (l *Ladder) Run(ctx context.Context, p *pipeline.Pipeline) (Outcome, error) {
	logger.Info(ctx, "Running ladder strategy",
		"symbol", l.cfg.Symbol,
		"qty", l.cfg.Qty,
		"style", string(l.cfg.Style),
	)

	if l.cfg.EnsurePaper {
		if err := p.Run(ctx, l.Prelude()); err != nil {
			return Outcome{}, fmt.Errorf("ensure paper account: %w", err)
		}
	}

	price, err := p.FloatStep(ctx, l.priceQuestion())
	if err != nil {
		return Outcome{}, fmt.Errorf("read price: %w", err)
	}
	if price.Value <= 0 {
		return Outcome{}, fmt.Errorf("read price: got %v for %s", price.Value, l.cfg.Symbol)
	}
	lv := l.Levels(price.Value)
	logger.Info(ctx, "Ladder levels",
		"price", lv.Price,
		"take_profit", lv.TakeProfit,
		"buy", lv.Buy,
		"reprice_below", lv.RepriceBelow,
	)

	if l.cfg.Style == StyleBatched {
		err = p.Run(ctx, l.Plan(lv))
	} else {
		err = l.eager(ctx, p, lv)
	}
	if err != nil {
		return Outcome{Levels: lv, Steps: p.Executed()}, err
	}

	summary, _, err := p.SummarizeFullHistory(ctx)
	if err != nil {
		return Outcome{Levels: lv, Steps: p.Executed()}, fmt.Errorf("summarize: %w", err)
	}
	return Outcome{Levels: lv, Summary: summary, Steps: p.Executed()}, nil
}

// Prelude moves the session off the live account.
func (l *Ladder) Prelude() pipeline.Node {
	return pipeline.If(l.liveQuestion(), pipeline.Do("Switch to paper account"), nil)
}

// Plan is the batched decision tree for one price reading.
func (l *Ladder) Plan(lv Levels) pipeline.Node {
	return pipeline.If(l.ownQuestion(),
		pipeline.Sequence{
			pipeline.If(l.sellExistsQuestion(), nil, pipeline.Do(l.sellInstruction(lv))),
			pipeline.If(l.buyOpenQuestion(), pipeline.Do(l.cancelBuyInstruction()), nil),
		},
		pipeline.If(l.buyOpenQuestion(),
			pipeline.If(l.repriceQuestion(lv),
				pipeline.Sequence{
					pipeline.Do(l.cancelBuyInstruction()),
					pipeline.Do(l.buyInstruction(lv)),
				},
				nil,
			),
			pipeline.Do(l.buyInstruction(lv)),
		),
	)
}

func (l *Ladder) eager(ctx context.Context, p *pipeline.Pipeline, lv Levels) error {
	own, err := p.BooleanStep(ctx, l.ownQuestion())
	if err != nil {
		return err
	}
	if own.Value {
		exists, err := p.BooleanStep(ctx, l.sellExistsQuestion())
		if err != nil {
			return err
		}
		if !exists.Value {
			if _, _, err := p.Step(ctx, l.sellInstruction(lv)); err != nil {
				return err
			}
		}
	}

	buyOpen, err := p.BooleanStep(ctx, l.buyOpenQuestion())
	if err != nil {
		return err
	}
	switch {
	case buyOpen.Value && own.Value:
		_, _, err = p.Step(ctx, l.cancelBuyInstruction(), pipeline.WithHistory(history.Merge(own.History, buyOpen.History)))
		return err
	case buyOpen.Value:
		_, orders, err := p.Step(ctx, l.listBuysInstruction(), pipeline.WithHistory(buyOpen.History))
		if err != nil {
			return err
		}
		limit, err := p.FloatStep(ctx, l.buyLimitQuestion(), pipeline.WithHistory(orders))
		if err != nil {
			return err
		}
		if limit.Value >= lv.RepriceBelow {
			logger.Info(ctx, "Limit buy is close enough to the market", "limit", limit.Value, "reprice_below", lv.RepriceBelow)
			return nil
		}
		if _, _, err := p.Step(ctx, l.cancelBuyInstruction(), pipeline.WithHistory(limit.History)); err != nil {
			return err
		}
		_, _, err = p.Step(ctx, l.buyInstruction(lv))
		return err
	case !own.Value:
		_, _, err = p.Step(ctx, l.buyInstruction(lv))
		return err
	}
	return nil
}

func (l *Ladder) liveQuestion() string {
	return "Is the current account a live account (not a paper account)?"
}

func (l *Ladder) priceQuestion() string {
	return fmt.Sprintf("Get the current %s price", l.cfg.Symbol)
}

func (l *Ladder) ownQuestion() string {
	return fmt.Sprintf("Do I currently own %d or more shares of %s?", l.cfg.Qty, l.cfg.Symbol)
}

func (l *Ladder) sellExistsQuestion() string {
	return fmt.Sprintf("Does a limit sell order for %s already exist?", l.cfg.Symbol)
}

func (l *Ladder) sellInstruction(lv Levels) string {
	if lv.StopLoss > 0 {
		return fmt.Sprintf("Set an exit strategy for %d shares of %s with take profit at %.2f and stop loss at %.2f",
			l.cfg.Qty, l.cfg.Symbol, lv.TakeProfit, lv.StopLoss)
	}
	return fmt.Sprintf("Place a limit sell order for %d shares of %s at %.2f", l.cfg.Qty, l.cfg.Symbol, lv.TakeProfit)
}

func (l *Ladder) buyOpenQuestion() string {
	return fmt.Sprintf("Is there an active (non-canceled, not pending cancel) limit buy order for %s?", l.cfg.Symbol)
}

func (l *Ladder) cancelBuyInstruction() string {
	return fmt.Sprintf("Cancel the active limit buy order for %s", l.cfg.Symbol)
}

func (l *Ladder) listBuysInstruction() string {
	return fmt.Sprintf("Retrieve the latest active limit buy orders for %s", l.cfg.Symbol)
}

func (l *Ladder) buyLimitQuestion() string {
	return fmt.Sprintf("Get the limit price of the latest active limit buy order for %s", l.cfg.Symbol)
}

func (l *Ladder) repriceQuestion(lv Levels) string {
	return fmt.Sprintf("Is the limit price of the latest active limit buy order for %s strictly lower than %.2f?",
		l.cfg.Symbol, lv.RepriceBelow)
}

func (l *Ladder) buyInstruction(lv Levels) string {
	return fmt.Sprintf("Place a limit buy order for %d shares of %s at %.2f", l.cfg.Qty, l.cfg.Symbol, lv.Buy)
}
