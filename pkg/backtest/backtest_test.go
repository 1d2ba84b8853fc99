package backtest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradewind/pkg/market"
	"tradewind/pkg/strategy"
)

func fastStrategy(t *testing.T) *strategy.Config {
	t.Helper()
	cfg, err := strategy.LoadConfigFromReader(strings.NewReader(`
rsi_period: 2
stoch_period: 2
atr_period: 2
atr_avg_period: 2
volume_period: 3
volume_threshold: 1.5
consensus_intervals: ["15m"]
consensus_quorum: 1
`))
	require.NoError(t, err)
	return cfg
}

func bounceBars(t *testing.T) []market.Bar {
	t.Helper()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 101, 100, 98.5, 96.5, 103, 104, 105, 106, 107.2}
	bars := make([]market.Bar, len(closes))
	for i, close := range closes {
		volume := 10.0
		if i == 5 {
			volume = 20
		}
		bars[i] = market.Bar{
			Symbol:   "BTC",
			Interval: market.Interval5m,
			OpenTime: t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:     close, High: close + 1, Low: close - 1, Close: close,
			Volume: volume,
		}
	}
	return bars
}

func TestBacktestRoundTrip(t *testing.T) {
	e := &Engine{
		Symbol:   "BTC",
		Interval: market.Interval5m,
		Bars:     bounceBars(t),
		Strategy: fastStrategy(t),
	}
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(e.Bars), res.Steps)
	require.Equal(t, 1, res.Signals)
	require.Equal(t, 1, res.Entries)
	// The run ends with a flatten, so every entry round-trips.
	require.Equal(t, 1, res.Trades)
	require.Greater(t, res.RealizedPnL, 0.0, "long from 103 flattened above entry")
	require.Equal(t, 1.0, res.WinRate)
	require.Len(t, res.EquityCurve, len(e.Bars))
	require.Greater(t, res.FinalEquity, 100000.0)
}

func TestBacktestWritesReport(t *testing.T) {
	path := t.TempDir() + "/report.json"
	e := &Engine{
		Symbol:     "BTC",
		Interval:   market.Interval5m,
		Bars:       bounceBars(t),
		Strategy:   fastStrategy(t),
		OutputPath: path,
	}
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "final_equity")
}

func TestBacktestRequiresBars(t *testing.T) {
	_, err := (&Engine{Symbol: "BTC"}).Run(context.Background())
	require.Error(t, err)
}
