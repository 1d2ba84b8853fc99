package strategy

import (
	"math"

	"tradewind/pkg/market"
	"tradewind/pkg/market/indicators"
)

// Engine computes the adaptive-band momentum oscillator for one bar series.
// The oscillator is the stochastic transform of RSI; its overbought/oversold
// bands stretch with realized volatility (ATR against its own rolling
// average) instead of sitting at fixed constants.
type Engine struct {
	cfg *Config
}

// NewEngine constructs an indicator engine bound to a configuration.
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// Snapshot computes the latest IndicatorSnapshot for the series. It returns
// ErrInsufficientHistory until the contiguous window covers every lookback;
// it never emits a zero-filled snapshot.
func (e *Engine) Snapshot(s *market.Series) (*IndicatorSnapshot, error) {
	return e.compute(s)
}

// Crossover evaluates the latest bar for a band crossover. It returns the
// candidate direction (empty when no crossover fired) together with the
// snapshot the decision was made on.
func (e *Engine) Crossover(s *market.Series) (Direction, *IndicatorSnapshot, error) {
	snap, err := e.compute(s)
	if err != nil {
		return "", nil, err
	}
	if math.IsNaN(snap.PrevOscillator) {
		return "", snap, nil
	}
	// The crossover is judged against the current bar's adapted bands: the
	// band pair moves per bar, and the latest pair is the engine's live
	// opinion of overbought/oversold.
	switch {
	case snap.PrevOscillator < snap.LowerBand && snap.Oscillator >= snap.LowerBand:
		return DirectionBuy, snap, nil
	case snap.PrevOscillator > snap.UpperBand && snap.Oscillator <= snap.UpperBand:
		return DirectionSell, snap, nil
	}
	return "", snap, nil
}

func (e *Engine) compute(s *market.Series) (*IndicatorSnapshot, error) {
	tail := s.ContiguousTail()
	if len(tail) < e.cfg.MinBars() {
		return nil, ErrInsufficientHistory
	}

	closes := make([]float64, len(tail))
	klines := make([]indicators.Kline, len(tail))
	for i, b := range tail {
		closes[i] = b.Close
		klines[i] = indicators.Kline{High: b.High, Low: b.Low, Close: b.Close}
	}

	osc := indicators.StochRSI(closes, e.cfg.RSIPeriod, e.cfg.StochPeriod)
	atrSeries := indicators.ATR(klines, e.cfg.ATRPeriod)

	// ATR carries NaN padding during warmup; average only its valid tail.
	atrStart := 0
	for atrStart < len(atrSeries) && math.IsNaN(atrSeries[atrStart]) {
		atrStart++
	}
	atrAvg := indicators.SMA(atrSeries[atrStart:], e.cfg.ATRAvgPeriod)

	last := len(tail) - 1
	curOsc := osc[last]
	curATR := atrSeries[last]
	curATRAvg := math.NaN()
	if n := len(atrAvg); n > 0 {
		curATRAvg = atrAvg[n-1]
	}
	if math.IsNaN(curOsc) || math.IsNaN(curATR) || math.IsNaN(curATRAvg) {
		return nil, ErrInsufficientHistory
	}

	volRatio := 1.0
	if curATRAvg > 0 {
		volRatio = curATR / curATRAvg
	}

	halfWidth := e.cfg.BaseHalfWidth * (1 + e.cfg.BandScale*(volRatio-1))
	halfWidth = clamp(halfWidth, e.cfg.MinHalfWidth, e.cfg.MaxHalfWidth)

	prevOsc := math.NaN()
	if last > 0 {
		prevOsc = osc[last-1]
	}

	lastBar := tail[last]
	return &IndicatorSnapshot{
		Symbol:         s.Symbol(),
		Interval:       s.Interval(),
		Timestamp:      lastBar.CloseTime(),
		Oscillator:     curOsc,
		PrevOscillator: prevOsc,
		LowerBand:      50 - halfWidth,
		UpperBand:      50 + halfWidth,
		ATR:            curATR,
		VolRatio:       volRatio,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
