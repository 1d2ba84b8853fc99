package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradewind/pkg/market"
)

func priceBar(i int, close, volume float64) market.Bar {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return market.Bar{
		Symbol:   "BTC",
		Interval: market.Interval5m,
		OpenTime: t0.Add(time.Duration(i) * 5 * time.Minute),
		Open:     close,
		High:     close + 1,
		Low:      close - 1,
		Close:    close,
		Volume:   volume,
	}
}

func TestEngineInsufficientHistory(t *testing.T) {
	cfg := DefaultConfig()
	eng := NewEngine(cfg)
	s := market.NewSeries("BTC", market.Interval5m, cfg.MinBars())
	for i := 0; i < cfg.MinBars()-1; i++ {
		require.NoError(t, s.Append(priceBar(i, 100, 10)))
	}
	_, err := eng.Snapshot(s)
	require.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestEngineBandInvariants(t *testing.T) {
	cfg := DefaultConfig()
	eng := NewEngine(cfg)
	s := market.NewSeries("BTC", market.Interval5m, 2*cfg.MinBars())

	// Deterministic wavy walk so both the oscillator and the volatility
	// ratio actually move.
	for i := 0; i < 2*cfg.MinBars(); i++ {
		close := 100 + 8*math.Sin(float64(i)*0.55) + 0.07*float64(i)
		require.NoError(t, s.Append(priceBar(i, close, 10)))

		snap, err := eng.Snapshot(s)
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientHistory)
			continue
		}
		require.Less(t, snap.LowerBand, snap.UpperBand)
		require.GreaterOrEqual(t, snap.LowerBand, 50-cfg.MaxHalfWidth)
		require.LessOrEqual(t, snap.UpperBand, 50+cfg.MaxHalfWidth)
		require.InDelta(t, 100, snap.LowerBand+snap.UpperBand, 1e-9, "bands sit symmetrically around the midpoint")
		require.GreaterOrEqual(t, snap.Oscillator, 0.0)
		require.LessOrEqual(t, snap.Oscillator, 100.0)
		require.Greater(t, snap.ATR, 0.0)
		require.Greater(t, snap.VolRatio, 0.0)
	}
}

func TestEngineFlatSeriesNoCrossover(t *testing.T) {
	cfg := DefaultConfig()
	eng := NewEngine(cfg)
	s := market.NewSeries("BTC", market.Interval5m, 2*cfg.MinBars())
	for i := 0; i < 2*cfg.MinBars(); i++ {
		require.NoError(t, s.Append(priceBar(i, 100, 10)))
	}

	dir, snap, err := eng.Crossover(s)
	require.NoError(t, err)
	require.Empty(t, dir)
	// A flat market pins the oscillator to its midpoint.
	require.InDelta(t, 50, snap.Oscillator, 1e-9)
	require.InDelta(t, 50, snap.PrevOscillator, 1e-9)
}

func TestEngineGapResetsReadiness(t *testing.T) {
	cfg := DefaultConfig()
	eng := NewEngine(cfg)
	s := market.NewSeries("BTC", market.Interval5m, 2*cfg.MinBars())
	for i := 0; i < cfg.MinBars(); i++ {
		require.NoError(t, s.Append(priceBar(i, 100, 10)))
	}
	// Skip several bars; the contiguous tail restarts after the gap.
	require.NoError(t, s.Append(priceBar(cfg.MinBars()+5, 100, 10)))

	_, err := eng.Snapshot(s)
	require.ErrorIs(t, err, ErrInsufficientHistory)
}
