package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAggregatorClosesOnBoundary(t *testing.T) {
	agg, err := NewAggregator("BTC", Interval1m)
	require.NoError(t, err)

	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ticks := []Tick{
		{Symbol: "BTC", Price: 100, Volume: 1, At: t0},
		{Symbol: "BTC", Price: 103, Volume: 2, At: t0.Add(20 * time.Second)},
		{Symbol: "BTC", Price: 99, Volume: 1, At: t0.Add(40 * time.Second)},
	}
	for _, tk := range ticks {
		closed, err := agg.Add(tk)
		require.NoError(t, err)
		require.Nil(t, closed)
	}

	closed, err := agg.Add(Tick{Symbol: "BTC", Price: 101, Volume: 3, At: t0.Add(61 * time.Second)})
	require.NoError(t, err)
	require.NotNil(t, closed)
	require.Equal(t, t0, closed.OpenTime)
	require.Equal(t, 100.0, closed.Open)
	require.Equal(t, 103.0, closed.High)
	require.Equal(t, 99.0, closed.Low)
	require.Equal(t, 99.0, closed.Close)
	require.Equal(t, 4.0, closed.Volume)
	require.NoError(t, closed.Validate())
}

func TestAggregatorRejectsBackwardsTick(t *testing.T) {
	agg, err := NewAggregator("BTC", Interval1m)
	require.NoError(t, err)

	t0 := time.Date(2025, 6, 1, 10, 0, 30, 0, time.UTC)
	_, err = agg.Add(Tick{Symbol: "BTC", Price: 100, Volume: 1, At: t0})
	require.NoError(t, err)
	_, err = agg.Add(Tick{Symbol: "BTC", Price: 100, Volume: 1, At: t0.Add(-time.Second)})
	require.ErrorIs(t, err, ErrOutOfOrder)
}

func TestAggregatorFlush(t *testing.T) {
	agg, err := NewAggregator("ETH", Interval1m)
	require.NoError(t, err)
	require.Nil(t, agg.Flush())

	_, err = agg.Add(Tick{Symbol: "ETH", Price: 2000, Volume: 5, At: time.Date(2025, 6, 1, 0, 0, 10, 0, time.UTC)})
	require.NoError(t, err)

	closed := agg.Flush()
	require.NotNil(t, closed)
	require.Equal(t, 2000.0, closed.Close)
	require.Nil(t, agg.Flush())
}

func TestResample(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var fine []Bar
	for i := 0; i < 6; i++ {
		fine = append(fine, mkBar(t0, i, Interval5m))
	}
	coarse, err := Resample(fine, Interval15m)
	require.NoError(t, err)
	require.Len(t, coarse, 2)

	first := coarse[0]
	require.Equal(t, Interval15m, first.Interval)
	require.Equal(t, t0, first.OpenTime)
	require.Equal(t, fine[0].Open, first.Open)
	require.Equal(t, fine[2].Close, first.Close)
	require.Equal(t, fine[2].High, first.High)
	require.Equal(t, fine[0].Low, first.Low)
	require.Equal(t, 30.0, first.Volume)
}

func TestResamplePartialWindowDropped(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var fine []Bar
	for i := 0; i < 5; i++ {
		fine = append(fine, mkBar(t0, i, Interval5m))
	}
	coarse, err := Resample(fine, Interval15m)
	require.NoError(t, err)
	// Second window has only two of three source bars.
	require.Len(t, coarse, 1)
}

func TestResampleRejectsMismatchedIntervals(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fine := []Bar{mkBar(t0, 0, Interval5m)}
	_, err := Resample(fine, Interval(7*time.Minute))
	require.Error(t, err)
	_, err = Resample(fine, Interval1m)
	require.Error(t, err)
}
