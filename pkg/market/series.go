package market

import (
	"errors"
	"fmt"

	"tradewind/pkg/market/indicators"
)

// Series append errors. Both are recoverable: the caller logs and drops the
// offending bar rather than propagating a failure upstream.
var (
	ErrOutOfOrder   = errors.New("market: bar out of order")
	ErrDuplicateBar = errors.New("market: duplicate bar open time")
)

// Series is an ordered, append-only window of closed bars for one
// (symbol, interval) pair. The window is bounded: once capacity is exceeded
// the oldest bar is evicted.
type Series struct {
	symbol   string
	interval Interval
	capacity int
	bars     []Bar
}

// NewSeries constructs a bounded series. Capacity must cover the longest
// indicator lookback the caller intends to run.
func NewSeries(symbol string, interval Interval, capacity int) *Series {
	if capacity <= 0 {
		capacity = 512
	}
	return &Series{
		symbol:   symbol,
		interval: interval,
		capacity: capacity,
		bars:     make([]Bar, 0, capacity),
	}
}

// Append adds a closed bar to the series, enforcing ordering and uniqueness
// by open time.
func (s *Series) Append(bar Bar) error {
	if err := bar.Validate(); err != nil {
		return err
	}
	if bar.Symbol != s.symbol || bar.Interval != s.interval {
		return fmt.Errorf("market: bar %s/%s does not belong to series %s/%s",
			bar.Symbol, bar.Interval, s.symbol, s.interval)
	}
	if n := len(s.bars); n > 0 {
		last := s.bars[n-1].OpenTime
		if bar.OpenTime.Equal(last) {
			return ErrDuplicateBar
		}
		if bar.OpenTime.Before(last) {
			return ErrOutOfOrder
		}
	}
	s.bars = append(s.bars, bar)
	if len(s.bars) > s.capacity {
		s.bars = s.bars[len(s.bars)-s.capacity:]
	}
	return nil
}

// Len returns the number of retained bars.
func (s *Series) Len() int { return len(s.bars) }

// Symbol returns the series symbol.
func (s *Series) Symbol() string { return s.symbol }

// Interval returns the series interval.
func (s *Series) Interval() Interval { return s.interval }

// Last returns the most recent bar, or false when the series is empty.
func (s *Series) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Bars returns a copy of the retained window, oldest first.
func (s *Series) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// ContiguousTail returns the longest suffix of the window with no missing
// intervals. A feed gap truncates indicator history: any lookback spanning
// the gap must treat the series as not ready.
func (s *Series) ContiguousTail() []Bar {
	n := len(s.bars)
	if n == 0 {
		return nil
	}
	start := 0
	step := s.interval.Duration()
	for i := n - 1; i > 0; i-- {
		if !s.bars[i].OpenTime.Equal(s.bars[i-1].OpenTime.Add(step)) {
			start = i
			break
		}
	}
	out := make([]Bar, n-start)
	copy(out, s.bars[start:])
	return out
}

// Closes extracts the close prices of the contiguous tail, oldest first.
func (s *Series) Closes() []float64 {
	tail := s.ContiguousTail()
	out := make([]float64, len(tail))
	for i, b := range tail {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the traded volumes of the contiguous tail, oldest first.
func (s *Series) Volumes() []float64 {
	tail := s.ContiguousTail()
	out := make([]float64, len(tail))
	for i, b := range tail {
		out[i] = b.Volume
	}
	return out
}

// Klines converts the contiguous tail into indicator inputs.
func (s *Series) Klines() []indicators.Kline {
	tail := s.ContiguousTail()
	out := make([]indicators.Kline, len(tail))
	for i, b := range tail {
		out[i] = indicators.Kline{High: b.High, Low: b.Low, Close: b.Close}
	}
	return out
}
