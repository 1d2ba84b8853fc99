package market

import (
	"fmt"
	"sort"
	"time"
)

// Aggregator buffers raw ticks into fixed-interval bars for a single symbol.
// A bar closes when a tick arrives at or beyond the bar's window end; the
// closed bar is returned to the caller and a fresh forming bar is started.
// The forming bar is never exposed, only closed bars leave the aggregator.
type Aggregator struct {
	symbol   string
	interval Interval

	forming  *Bar
	lastTick time.Time
}

// NewAggregator constructs a tick aggregator for one (symbol, interval).
func NewAggregator(symbol string, interval Interval) (*Aggregator, error) {
	if symbol == "" {
		return nil, fmt.Errorf("market: aggregator requires a symbol")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("market: aggregator requires a positive interval")
	}
	return &Aggregator{symbol: symbol, interval: interval}, nil
}

// Add folds a tick into the forming bar. When the tick opens a new window the
// previous bar is closed and returned. Out-of-order ticks are rejected.
func (a *Aggregator) Add(tick Tick) (*Bar, error) {
	if tick.Symbol != a.symbol {
		return nil, fmt.Errorf("market: tick symbol %s does not match aggregator %s", tick.Symbol, a.symbol)
	}
	if tick.Price <= 0 {
		return nil, fmt.Errorf("market: tick for %s has non-positive price", tick.Symbol)
	}
	if tick.Volume < 0 {
		return nil, fmt.Errorf("market: tick for %s has negative volume", tick.Symbol)
	}
	if !a.lastTick.IsZero() && tick.At.Before(a.lastTick) {
		return nil, fmt.Errorf("market: tick for %s at %s precedes last tick: %w",
			tick.Symbol, tick.At.Format(time.RFC3339), ErrOutOfOrder)
	}
	a.lastTick = tick.At

	windowStart := tick.At.Truncate(a.interval.Duration())

	var closed *Bar
	if a.forming != nil && !windowStart.Equal(a.forming.OpenTime) {
		done := *a.forming
		closed = &done
		a.forming = nil
	}

	if a.forming == nil {
		a.forming = &Bar{
			Symbol:   a.symbol,
			Interval: a.interval,
			OpenTime: windowStart,
			Open:     tick.Price,
			High:     tick.Price,
			Low:      tick.Price,
			Close:    tick.Price,
			Volume:   tick.Volume,
		}
		return closed, nil
	}

	if tick.Price > a.forming.High {
		a.forming.High = tick.Price
	}
	if tick.Price < a.forming.Low {
		a.forming.Low = tick.Price
	}
	a.forming.Close = tick.Price
	a.forming.Volume += tick.Volume
	return closed, nil
}

// Flush closes and returns the forming bar, if any. Used at shutdown and at
// the end of a replay.
func (a *Aggregator) Flush() *Bar {
	if a.forming == nil {
		return nil
	}
	done := *a.forming
	a.forming = nil
	return &done
}

// Resample folds closed bars of a finer interval into a coarser one. The
// coarser interval must be a whole multiple of the source interval. Only
// complete target windows are emitted, partial trailing windows are dropped
// so consumers never see a half-formed coarse bar.
func Resample(bars []Bar, target Interval) ([]Bar, error) {
	if len(bars) == 0 {
		return nil, nil
	}
	src := bars[0].Interval
	if target <= src {
		return nil, fmt.Errorf("market: resample target %s must be coarser than source %s", target, src)
	}
	if target.Duration()%src.Duration() != 0 {
		return nil, fmt.Errorf("market: resample target %s is not a multiple of source %s", target, src)
	}
	perWindow := int(target.Duration() / src.Duration())

	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OpenTime.Before(sorted[j].OpenTime) })

	grouped := make(map[time.Time][]Bar)
	for _, b := range sorted {
		ws := b.OpenTime.Truncate(target.Duration())
		grouped[ws] = append(grouped[ws], b)
	}

	starts := make([]time.Time, 0, len(grouped))
	for ws := range grouped {
		starts = append(starts, ws)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := make([]Bar, 0, len(starts))
	for _, ws := range starts {
		group := grouped[ws]
		if len(group) < perWindow {
			continue
		}
		agg := Bar{
			Symbol:   group[0].Symbol,
			Interval: target,
			OpenTime: ws,
			Open:     group[0].Open,
			High:     group[0].High,
			Low:      group[0].Low,
			Close:    group[len(group)-1].Close,
		}
		for _, b := range group {
			if b.High > agg.High {
				agg.High = b.High
			}
			if b.Low < agg.Low {
				agg.Low = b.Low
			}
			agg.Volume += b.Volume
		}
		out = append(out, agg)
	}
	return out, nil
}
