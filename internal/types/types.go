package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

type Indicators struct {
	SMA        map[int]float64
	RSI        float64
	MACD       struct{ Line, Signal, Histogram float64 }
	Stochastic struct{ K, D float64 }
	BB         struct{ Middle, Upper, Lower float64 }
	ATR        float64
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

type OrderClass string

const (
	OrderClassSimple OrderClass = "simple"
	// OrderClassOCO pairs a take-profit limit with a stop-loss; filling one
	// cancels the other.
	OrderClassOCO OrderClass = "oco"
)

type AssetClass string

const (
	AssetEquity AssetClass = "us_equity"
	AssetOption AssetClass = "us_option"
)

// OrderRequest is what tools submit to a broker. Qty may be fractional for
// equities. StopPrice is only read for OCO exits.
type OrderRequest struct {
	Symbol     string
	Asset      AssetClass
	Side       Side
	Type       OrderType
	Class      OrderClass
	Qty        decimal.Decimal
	LimitPrice decimal.Decimal
	StopPrice  decimal.Decimal
	Tag        string
}

type Order struct {
	ID             string
	Symbol         string
	Asset          AssetClass
	Side           Side
	Type           OrderType
	Class          OrderClass
	Status         string
	Qty            decimal.Decimal
	FilledQty      decimal.Decimal
	FilledAvgPrice decimal.Decimal
	LimitPrice     decimal.Decimal
	StopPrice      decimal.Decimal
	CreatedAt      time.Time
	Legs           []Order
}

type OrderStatus string

const (
	StatusOpen   OrderStatus = "open"
	StatusClosed OrderStatus = "closed"
	StatusAll    OrderStatus = "all"
)

// OrderFilter narrows ListOrders. Zero values mean "no constraint".
type OrderFilter struct {
	Status  OrderStatus
	Symbols []string
	Side    Side
	Limit   int
	After   time.Time
	Until   time.Time
	Nested  bool
}

type Position struct {
	Symbol               string
	Qty                  decimal.Decimal
	CostBasis            decimal.Decimal
	CurrentPrice         decimal.Decimal
	MarketValue          decimal.Decimal
	UnrealizedPL         decimal.Decimal
	UnrealizedPLPct      decimal.Decimal
	UnrealizedIntradayPL decimal.Decimal
}

type Account struct {
	ID                       string
	Currency                 string
	Equity                   decimal.Decimal
	BuyingPower              decimal.Decimal
	NonMarginableBuyingPower decimal.Decimal
	TradingBlocked           bool
}

type NewsArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Symbol      string `json:"symbol"`
}

// OptionContractQuery selects listed option contracts of one underlying.
// Type is "C" or "P". From is the earliest expiration; a non-zero
// Expiration narrows the query to that date.
type OptionContractQuery struct {
	Underlying string
	Type       string
	From       time.Time
	Expiration time.Time
	Limit      int
}

type OptionContract struct {
	Symbol       string
	Underlying   string
	Type         string
	Expiration   time.Time
	Strike       decimal.Decimal
	OpenInterest decimal.Decimal
	ClosePrice   decimal.Decimal
}
