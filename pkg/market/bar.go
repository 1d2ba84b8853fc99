package market

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the fixed aggregation width of a bar.
type Interval time.Duration

// Common bar intervals.
const (
	Interval1m  = Interval(time.Minute)
	Interval5m  = Interval(5 * time.Minute)
	Interval15m = Interval(15 * time.Minute)
	Interval1h  = Interval(time.Hour)
	Interval4h  = Interval(4 * time.Hour)
	Interval1d  = Interval(24 * time.Hour)
)

// Duration returns the interval as a time.Duration.
func (i Interval) Duration() time.Duration { return time.Duration(i) }

func (i Interval) String() string {
	d := time.Duration(i)
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	default:
		return fmt.Sprintf("%dm", d/time.Minute)
	}
}

// ParseInterval parses interval strings such as "1m", "15m", "1h", "1d".
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("market: interval cannot be empty")
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		// time.ParseDuration rejects "1d"; handle day suffix ourselves.
		if strings.HasSuffix(s, "d") {
			var days int
			if _, scanErr := fmt.Sscanf(s, "%dd", &days); scanErr == nil && days > 0 {
				return Interval(time.Duration(days) * 24 * time.Hour), nil
			}
		}
		return 0, fmt.Errorf("market: invalid interval %q: %w", s, err)
	}
	if d < time.Minute {
		return 0, fmt.Errorf("market: interval %q below one minute", s)
	}
	return Interval(d), nil
}

// Bar is one closed OHLCV aggregation for a (symbol, interval) pair.
// Bars are immutable once closed.
type Bar struct {
	Symbol   string
	Interval Interval
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// CloseTime returns the exclusive end of the bar's aggregation window.
func (b Bar) CloseTime() time.Time { return b.OpenTime.Add(b.Interval.Duration()) }

// Validate rejects malformed bars before they enter a series.
func (b Bar) Validate() error {
	if strings.TrimSpace(b.Symbol) == "" {
		return fmt.Errorf("market: bar missing symbol")
	}
	if b.Interval <= 0 {
		return fmt.Errorf("market: bar %s has non-positive interval", b.Symbol)
	}
	if b.OpenTime.IsZero() {
		return fmt.Errorf("market: bar %s has zero open time", b.Symbol)
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("market: bar %s@%s has non-positive price", b.Symbol, b.OpenTime.Format(time.RFC3339))
	}
	if b.High < b.Low {
		return fmt.Errorf("market: bar %s@%s has high below low", b.Symbol, b.OpenTime.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("market: bar %s@%s has negative volume", b.Symbol, b.OpenTime.Format(time.RFC3339))
	}
	return nil
}

// Tick is a single un-aggregated price/volume sample.
type Tick struct {
	Symbol string
	Price  float64
	Volume float64
	At     time.Time
}
