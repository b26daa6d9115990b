package occ

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerExample(t *testing.T) {
	got, err := Ticker("AAPL", "2024-12-20", "c", 195.0)
	require.NoError(t, err)
	assert.Equal(t, "AAPL241220C00195000", got)
}

func TestTickerShapeAndRoundTrip(t *testing.T) {
	// The strike segment is the strike's shortest decimal form times 1000,
	// truncated, so 1.005 stays 1005 even though the float is below it.
	cases := []struct {
		symbol  string
		strike  float64
		typ     string
		segment string
	}{
		{"A", 0.5, "p", "00000500"},
		{"SPY", 450, "C", "00450000"},
		{"TQQQ", 12.345, "P", "00012345"},
		{"GOOGL", 1.005, "c", "00001005"},
		{"BRKB", 99999.999, "p", "99999999"},
		{"F", 2.5, "C", "00002500"},
		{"KO", 0.0015, "P", "00000001"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s-%v", tc.symbol, tc.strike), func(t *testing.T) {
			got, err := Ticker(tc.symbol, "2025-01-17", tc.typ, tc.strike)
			require.NoError(t, err)

			require.Len(t, got, len(tc.symbol)+6+1+8)
			segment := got[len(got)-8:]
			assert.Equal(t, tc.segment, segment)

			c, err := Parse(got)
			require.NoError(t, err)
			strike, _ := c.Strike.Float64()
			assert.InDelta(t, tc.strike, strike, 0.001)
			assert.Equal(t, "2025-01-17", c.Expiration.Format("2006-01-02"))
		})
	}
}

func TestTickerTruncatesBeyondThreeDecimals(t *testing.T) {
	got, err := Ticker("SPY", "2025-01-17", "C", 195.12345)
	require.NoError(t, err)
	assert.Equal(t, "SPY250117C00195123", got)
}

func TestTickerValidation(t *testing.T) {
	cases := []struct {
		name                  string
		symbol, date, optType string
		strike                float64
		reason                string
	}{
		{"digits in symbol", "AAP1", "2024-12-20", "C", 195, "Invalid underlying symbol: should be 1-5 alphabetic characters"},
		{"symbol too long", "ABCDEF", "2024-12-20", "C", 195, "Invalid underlying symbol: should be 1-5 alphabetic characters"},
		{"empty symbol", "", "2024-12-20", "C", 195, "Invalid underlying symbol: should be 1-5 alphabetic characters"},
		{"bad date", "AAPL", "12/20/2024", "C", 195, "Invalid expiration date format: should be YYYY-MM-DD"},
		{"bad type", "AAPL", "2024-12-20", "X", 195, "Invalid option type: should be 'C' (Call) or 'P' (Put)"},
		{"word type", "AAPL", "2024-12-20", "call", 195, "Invalid option type: should be 'C' (Call) or 'P' (Put)"},
		{"zero strike", "AAPL", "2024-12-20", "C", 0, "Invalid strike price: should be a positive number"},
		{"negative strike", "AAPL", "2024-12-20", "P", -1, "Invalid strike price: should be a positive number"},
		{"huge strike", "AAPL", "2024-12-20", "P", 100000, "Invalid strike price: should be below 100000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Ticker(tc.symbol, tc.date, tc.optType, tc.strike)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.reason, err.Error())
		})
	}
}

func TestStrictTickerRejectsPast(t *testing.T) {
	now := time.Date(2024, 12, 21, 15, 0, 0, 0, NewYork())

	_, err := StrictTicker("AAPL", "2024-12-20", "C", 195, now)
	require.Error(t, err)
	assert.Equal(t, "Invalid expiration date: should not be in the past", err.Error())

	got, err := StrictTicker("AAPL", "2024-12-21", "C", 195, now)
	require.NoError(t, err)
	assert.Equal(t, "AAPL241221C00195000", got)
}

func TestIsOptionTicker(t *testing.T) {
	assert.True(t, IsOptionTicker("AAPL241220C00195000"))
	assert.False(t, IsOptionTicker("AAPL"))
	assert.False(t, IsOptionTicker("AAPL241320C00195000"))
}
