// Package ta computes technical indicators over closing-price series. Every
// function reads the tail of its input and returns NaN when the series is
// too short.
package ta

import (
	"math"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/types"
)

func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

// EMASeries seeds with the SMA of the first n values. The result has one
// entry per input from index n-1 on.
func EMASeries(vals []float64, n int) []float64 {
	if len(vals) < n || n <= 0 {
		return nil
	}
	k := 2.0 / float64(n+1)
	out := make([]float64, 0, len(vals)-n+1)
	e := SMA(vals[:n], n)
	out = append(out, e)
	for _, v := range vals[n:] {
		e = v*k + e*(1-k)
		out = append(out, e)
	}
	return out
}

func EMA(vals []float64, n int) float64 {
	s := EMASeries(vals, n)
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// RSI uses simple averages of the last period changes.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

// MACD returns the fast-slow EMA spread, its signal EMA and the histogram.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist float64) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal-1 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	f := EMASeries(closes, fast)
	s := EMASeries(closes, slow)
	// Align: s[i] and f[i+slow-fast] describe the same bar.
	spread := make([]float64, len(s))
	for i := range s {
		spread[i] = f[i+slow-fast] - s[i]
	}
	line = spread[len(spread)-1]
	sig = EMA(spread, signal)
	return line, sig, line - sig
}

// Stochastic returns %K over period and %D as the smooth-bar SMA of %K.
func Stochastic(highs, lows, closes []float64, period, smooth int) (k, d float64) {
	if len(highs) != len(lows) || len(lows) != len(closes) || period <= 0 || smooth <= 0 {
		return math.NaN(), math.NaN()
	}
	if len(closes) < period+smooth-1 {
		return math.NaN(), math.NaN()
	}
	ks := make([]float64, 0, smooth)
	for end := len(closes) - smooth + 1; end <= len(closes); end++ {
		hi, lo := math.Inf(-1), math.Inf(1)
		for i := end - period; i < end; i++ {
			hi = math.Max(hi, highs[i])
			lo = math.Min(lo, lows[i])
		}
		v := 50.0
		if hi > lo {
			v = 100 * (closes[end-1] - lo) / (hi - lo)
		}
		ks = append(ks, v)
	}
	return ks[len(ks)-1], SMA(ks, smooth)
}

func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

func Bollinger(closes []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = mid + k*sd
	low = mid - k*sd
	return
}

func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return math.NaN()
	}
	n := period
	if n <= 0 || len(closes) < n+1 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		sum += math.Max(tr1, math.Max(tr2, tr3))
	}
	return sum / float64(n)
}

// Compute fills the standard set: SMA(20/50), RSI(14), MACD(12,26,9),
// stochastic(14,3), Bollinger(20,2) and ATR(14).
func Compute(candles []types.Candle) types.Indicators {
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}

	var ind types.Indicators
	ind.SMA = map[int]float64{20: SMA(closes, 20), 50: SMA(closes, 50)}
	ind.RSI = RSI(closes, 14)
	ind.MACD.Line, ind.MACD.Signal, ind.MACD.Histogram = MACD(closes, 12, 26, 9)
	ind.Stochastic.K, ind.Stochastic.D = Stochastic(highs, lows, closes, 14, 3)
	ind.BB.Middle, ind.BB.Upper, ind.BB.Lower = Bollinger(closes, 20, 2)
	ind.ATR = ATR(highs, lows, closes, 14)
	return ind
}
