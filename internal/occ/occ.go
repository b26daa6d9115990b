// Package occ builds OCC-style option symbols:
//
//	SYMBOL + YYMMDD + C|P + strike*1000 (8 digits, zero padded)
//
// e.g. AAPL241220C00195000 for the AAPL 2024-12-20 195 call.
package occ

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Call = "C"
	Put  = "P"
)

const dateLayout = "2006-01-02"

var (
	thousand  = decimal.NewFromInt(1000)
	maxStrike = decimal.NewFromInt(100000)
)

// ValidationError carries a human-readable reason meant to be shown as-is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Contract is a parsed option symbol.
type Contract struct {
	Underlying string
	Expiration time.Time
	Type       string
	Strike     decimal.Decimal
}

// Ticker validates its inputs and formats the option symbol. expiration is
// YYYY-MM-DD and optionType is C or P in any case.
func Ticker(symbol, expiration, optionType string, strike float64) (string, error) {
	c, err := validate(symbol, expiration, optionType, strike)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// StrictTicker is Ticker that also rejects expirations before now's date in
// New York.
func StrictTicker(symbol, expiration, optionType string, strike float64, now time.Time) (string, error) {
	c, err := validate(symbol, expiration, optionType, strike)
	if err != nil {
		return "", err
	}
	today := now.In(NewYork()).Format(dateLayout)
	if c.Expiration.Format(dateLayout) < today {
		return "", &ValidationError{Field: "expiration", Reason: "Invalid expiration date: should not be in the past"}
	}
	return c.String(), nil
}

// Underlying checks an underlying symbol and returns it upper-cased.
func Underlying(symbol string) (string, error) {
	if !isAlpha(symbol) || len(symbol) > 5 {
		return "", &ValidationError{Field: "symbol", Reason: "Invalid underlying symbol: should be 1-5 alphabetic characters"}
	}
	return strings.ToUpper(symbol), nil
}

// Expiration parses a YYYY-MM-DD expiration date.
func Expiration(s string) (time.Time, error) {
	exp, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "expiration", Reason: "Invalid expiration date format: should be YYYY-MM-DD"}
	}
	return exp, nil
}

// Type normalizes an option type to Call or Put.
func Type(optionType string) (string, error) {
	typ := strings.ToUpper(optionType)
	if typ != Call && typ != Put {
		return "", &ValidationError{Field: "option_type", Reason: "Invalid option type: should be 'C' (Call) or 'P' (Put)"}
	}
	return typ, nil
}

func validate(symbol, expiration, optionType string, strike float64) (Contract, error) {
	underlying, err := Underlying(symbol)
	if err != nil {
		return Contract{}, err
	}
	exp, err := Expiration(expiration)
	if err != nil {
		return Contract{}, err
	}
	typ, err := Type(optionType)
	if err != nil {
		return Contract{}, err
	}
	k := decimal.NewFromFloat(strike)
	if !k.IsPositive() {
		return Contract{}, &ValidationError{Field: "strike", Reason: "Invalid strike price: should be a positive number"}
	}
	if k.GreaterThanOrEqual(maxStrike) {
		return Contract{}, &ValidationError{Field: "strike", Reason: "Invalid strike price: should be below 100000"}
	}
	return Contract{
		Underlying: underlying,
		Expiration: exp,
		Type:       typ,
		Strike:     k,
	}, nil
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

// String formats the contract. The strike is truncated to three decimals.
func (c Contract) String() string {
	return fmt.Sprintf("%s%s%s%08d", c.Underlying, c.Expiration.Format("060102"), c.Type, c.Strike.Mul(thousand).IntPart())
}

// Parse splits an option symbol back into its parts.
func Parse(ticker string) (Contract, error) {
	n := len(ticker)
	if n < 16 || n > 20 {
		return Contract{}, &ValidationError{Field: "ticker", Reason: fmt.Sprintf("Invalid option ticker %q", ticker)}
	}
	root, date, typ, strike := ticker[:n-15], ticker[n-15:n-9], ticker[n-9:n-8], ticker[n-8:]
	if !isAlpha(root) {
		return Contract{}, &ValidationError{Field: "symbol", Reason: "Invalid underlying symbol: should be 1-5 alphabetic characters"}
	}
	exp, err := time.Parse("060102", date)
	if err != nil {
		return Contract{}, &ValidationError{Field: "expiration", Reason: fmt.Sprintf("Invalid option ticker %q", ticker)}
	}
	if typ != Call && typ != Put {
		return Contract{}, &ValidationError{Field: "option_type", Reason: "Invalid option type: should be 'C' (Call) or 'P' (Put)"}
	}
	k, err := decimal.NewFromString(strike)
	if err != nil || strings.ContainsAny(strike, "+-.") {
		return Contract{}, &ValidationError{Field: "strike", Reason: fmt.Sprintf("Invalid option ticker %q", ticker)}
	}
	return Contract{Underlying: root, Expiration: exp, Type: typ, Strike: k.Div(thousand)}, nil
}

// IsOptionTicker reports whether s looks like an option symbol rather than
// an equity symbol.
func IsOptionTicker(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// NewYork is the exchange time zone. It falls back to a fixed EST offset
// when the tz database is unavailable.
func NewYork() *time.Location {
	if loc, err := time.LoadLocation("America/New_York"); err == nil {
		return loc
	}
	return time.FixedZone("EST", -5*3600)
}
