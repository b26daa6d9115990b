package ta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestSMA(t *testing.T) {
	assert.Equal(t, 4.0, SMA([]float64{1, 2, 3, 4, 5}, 3))
	assert.True(t, math.IsNaN(SMA([]float64{1}, 3)))
}

func TestEMAOfConstantIsConstant(t *testing.T) {
	vals := []float64{5, 5, 5, 5, 5, 5}
	assert.InDelta(t, 5.0, EMA(vals, 3), 1e-12)
	assert.Len(t, EMASeries(vals, 3), 4)
}

func TestEMAWeightsRecentValues(t *testing.T) {
	// seed SMA(1,2,3)=2, then 4*0.5+2*0.5=3
	assert.InDelta(t, 3.0, EMA([]float64{1, 2, 3, 4}, 3), 1e-12)
}

func TestRSI(t *testing.T) {
	assert.Equal(t, 100.0, RSI(ramp(20), 14))
	assert.InDelta(t, 50.0, RSI([]float64{1, 2, 1, 2, 1}, 4), 1e-9)
}

func TestMACDOnLinearSeries(t *testing.T) {
	line, sig, hist := MACD(ramp(60), 12, 26, 9)
	// A straight line settles to a constant positive spread.
	assert.Greater(t, line, 0.0)
	assert.InDelta(t, line, sig, 1e-6)
	assert.InDelta(t, 0.0, hist, 1e-6)

	l, _, _ := MACD(ramp(10), 12, 26, 9)
	assert.True(t, math.IsNaN(l))
}

func TestStochastic(t *testing.T) {
	c := ramp(20)
	h := make([]float64, len(c))
	l := make([]float64, len(c))
	for i, v := range c {
		h[i], l[i] = v+0.5, v-0.5
	}
	k, d := Stochastic(h, l, c, 14, 3)
	assert.InDelta(t, 100*(13.5/14.0), k, 1e-9)
	assert.InDelta(t, k, d, 1e-9)
}

func TestBollingerAndATR(t *testing.T) {
	mid, up, low := Bollinger([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8, 2)
	assert.Equal(t, 5.0, mid)
	assert.Equal(t, 9.0, up)
	assert.Equal(t, 1.0, low)

	assert.Equal(t, 2.0, ATR([]float64{3, 4, 5}, []float64{1, 2, 3}, []float64{2, 3, 4}, 2))
}

func TestCompute(t *testing.T) {
	candles := make([]types.Candle, 60)
	for i := range candles {
		v := float64(100 + i)
		candles[i] = types.Candle{High: v + 1, Low: v - 1, Close: v}
	}
	ind := Compute(candles)
	assert.InDelta(t, 149.5, ind.SMA[20], 1e-9)
	assert.InDelta(t, 134.5, ind.SMA[50], 1e-9)
	assert.Equal(t, 100.0, ind.RSI)
	assert.InDelta(t, 2.0, ind.ATR, 1e-9)
	assert.False(t, math.IsNaN(ind.MACD.Line))
}
