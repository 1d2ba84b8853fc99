package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	result := SMA(data, 3)
	require.Len(t, result, len(data))
	require.True(t, math.IsNaN(result[0]))
	require.True(t, math.IsNaN(result[1]))
	require.InDelta(t, 2.0, result[2], 1e-9)
	require.InDelta(t, 3.0, result[3], 1e-9)
	require.InDelta(t, 5.0, result[5], 1e-9)
}

func TestEMA(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	result := EMA(data, 3)
	require.Len(t, result, len(data))
	require.True(t, math.IsNaN(result[0]))
	require.True(t, math.IsNaN(result[1]))
	require.InDelta(t, 2.0, result[2], 1e-9)
	require.InDelta(t, 3.0, result[3], 1e-9)
	require.InDelta(t, 4.0, result[4], 1e-9)
	require.InDelta(t, 5.0, result[5], 1e-9)
}

func TestRSIInsufficientHistory(t *testing.T) {
	rsi := RSI([]float64{100, 101, 102}, 14)
	require.Len(t, rsi, 3)
	for _, v := range rsi {
		require.True(t, math.IsNaN(v))
	}
}

func TestRSIDirection(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}
	rsiUp := RSI(up, 14)
	rsiDown := RSI(down, 14)
	require.InDelta(t, 100.0, rsiUp[len(rsiUp)-1], 1e-9)
	require.InDelta(t, 0.0, rsiDown[len(rsiDown)-1], 1e-9)
}

func TestStoch(t *testing.T) {
	data := []float64{10, 20, 30, 40, 50}
	result := Stoch(data, 3)
	require.Len(t, result, len(data))
	require.True(t, math.IsNaN(result[0]))
	require.True(t, math.IsNaN(result[1]))
	// Each value is the max of its trailing window on a rising series.
	require.InDelta(t, 100.0, result[2], 1e-9)
	require.InDelta(t, 100.0, result[4], 1e-9)

	flat := Stoch([]float64{5, 5, 5, 5}, 3)
	require.InDelta(t, 50.0, flat[3], 1e-9)
}

func TestStochRSIBounds(t *testing.T) {
	closes := make([]float64, 80)
	px := 100.0
	for i := range closes {
		if i%3 == 0 {
			px -= 1.2
		} else {
			px += 0.9
		}
		closes[i] = px
	}
	osc := StochRSI(closes, 14, 14)
	require.Len(t, osc, len(closes))
	seen := false
	for _, v := range osc {
		if math.IsNaN(v) {
			continue
		}
		seen = true
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 100.0)
	}
	require.True(t, seen, "expected at least one computed oscillator value")
}

func TestATR(t *testing.T) {
	closes := []float64{100, 101, 102, 104, 103, 105, 107, 106, 108, 110, 112, 111, 113, 115, 114, 116, 118, 117, 119, 121}
	klines := make([]Kline, len(closes))
	for i, close := range closes {
		klines[i] = Kline{
			High:  close + 1.5,
			Low:   close - 1.5,
			Close: close,
		}
	}

	atr := ATR(klines, 14)
	require.Len(t, atr, len(klines))
	require.InDelta(t, 3.326525, atr[len(atr)-1], 1e-6)
}
