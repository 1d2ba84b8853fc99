package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mkBar(t0 time.Time, i int, interval Interval) Bar {
	open := 100.0 + float64(i)
	return Bar{
		Symbol:   "BTC",
		Interval: interval,
		OpenTime: t0.Add(time.Duration(i) * interval.Duration()),
		Open:     open,
		High:     open + 1,
		Low:      open - 1,
		Close:    open + 0.5,
		Volume:   10,
	}
}

func TestSeriesAppendOrdering(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewSeries("BTC", Interval5m, 16)

	require.NoError(t, s.Append(mkBar(t0, 0, Interval5m)))
	require.NoError(t, s.Append(mkBar(t0, 1, Interval5m)))

	err := s.Append(mkBar(t0, 1, Interval5m))
	require.ErrorIs(t, err, ErrDuplicateBar)

	err = s.Append(mkBar(t0, 0, Interval5m))
	require.ErrorIs(t, err, ErrOutOfOrder)

	require.Equal(t, 2, s.Len())
}

func TestSeriesEviction(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewSeries("BTC", Interval5m, 3)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(mkBar(t0, i, Interval5m)))
	}
	require.Equal(t, 3, s.Len())
	bars := s.Bars()
	require.Equal(t, t0.Add(2*5*time.Minute), bars[0].OpenTime)
}

func TestSeriesContiguousTailSpansGap(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewSeries("BTC", Interval5m, 16)
	require.NoError(t, s.Append(mkBar(t0, 0, Interval5m)))
	require.NoError(t, s.Append(mkBar(t0, 1, Interval5m)))
	// Bars 2 and 3 are missing from the feed.
	require.NoError(t, s.Append(mkBar(t0, 4, Interval5m)))
	require.NoError(t, s.Append(mkBar(t0, 5, Interval5m)))

	tail := s.ContiguousTail()
	require.Len(t, tail, 2)
	require.Equal(t, t0.Add(4*5*time.Minute), tail[0].OpenTime)
}

func TestSeriesRejectsMalformedBar(t *testing.T) {
	s := NewSeries("BTC", Interval5m, 16)
	bad := mkBar(time.Now().UTC(), 0, Interval5m)
	bad.High = bad.Low - 5
	require.Error(t, s.Append(bad))
	require.Equal(t, 0, s.Len())
}
