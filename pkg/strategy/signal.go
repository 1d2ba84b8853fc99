package strategy

import (
	"errors"
	"time"

	"tradewind/pkg/market"
)

// ErrInsufficientHistory means an indicator or consensus input is not yet
// computable. It is not a failure: the signal is simply withheld for this bar.
var ErrInsufficientHistory = errors.New("strategy: insufficient history")

// Direction is the side a signal points at.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// IndicatorSnapshot is the per-bar output of the indicator engine. Bands are
// recomputed from the volatility ratio on every bar; they are not constants.
type IndicatorSnapshot struct {
	Symbol    string
	Interval  market.Interval
	Timestamp time.Time

	Oscillator float64 // stochastic RSI in [0,100]
	// PrevOscillator is the prior bar's value, NaN when there is none. Kept
	// on the snapshot so crossover and extremity read the same pair.
	PrevOscillator float64
	LowerBand      float64
	UpperBand      float64
	ATR            float64
	// VolRatio is current ATR over its rolling average; drives band width.
	VolRatio float64
}

// Bullish reports whether the oscillator sits above its midpoint.
func (s *IndicatorSnapshot) Bullish() bool { return s.Oscillator > 50 }

// VolumeContext carries the volume confirmation inputs for one bar.
type VolumeContext struct {
	Symbol         string
	Timestamp      time.Time
	CurrentVolume  float64
	RollingAverage float64
	Ratio          float64
}

// ConsensusResult records timeframe agreement for a candidate direction.
// Timeframes without a ready snapshot are excluded from both the agreeing
// set and the total.
type ConsensusResult struct {
	Symbol            string
	PrimaryDirection  Direction
	AgreeingIntervals []market.Interval
	TotalIntervals    int
}

// Met reports whether the configured quorum is satisfied. The quorum is
// capped at the number of ready timeframes so missing history never counts
// as disagreement.
func (c *ConsensusResult) Met(quorum int) bool {
	effective := quorum
	if c.TotalIntervals < effective {
		effective = c.TotalIntervals
	}
	return len(c.AgreeingIntervals) >= effective
}

// Fraction returns agreeing/total for scoring. With no ready timeframes
// there is no evidence either way; the fraction is neutral 1.0 so the quorum
// decision, not the score, carries the veto.
func (c *ConsensusResult) Fraction() float64 {
	if c.TotalIntervals == 0 {
		return 1.0
	}
	return float64(len(c.AgreeingIntervals)) / float64(c.TotalIntervals)
}

// Contributing carries the sub-scores that produced a signal's confidence.
type Contributing struct {
	Oscillator  float64 // extremity sub-score in [0,1]
	VolumeRatio float64 // raw volume ratio
	Consensus   float64 // agreeing/total fraction
}

// Signal is a point-in-time value object. It is never mutated after
// creation; superseded signals are discarded, not edited.
type Signal struct {
	Symbol       string
	Direction    Direction
	Confidence   float64 // [0,1]
	GeneratedAt  time.Time
	Contributing Contributing
}

// Outcome classifies one pipeline pass over a closed bar.
type Outcome string

const (
	OutcomeNotReady          Outcome = "not_ready"
	OutcomeNoCrossover       Outcome = "no_crossover"
	OutcomeVolumeRejected    Outcome = "volume_rejected"
	OutcomeConsensusRejected Outcome = "consensus_rejected"
	OutcomeSignal            Outcome = "signal"
)

// Evaluation is the full audit record of one pipeline pass: what the
// indicators said, where the candidate stopped, and the signal if one was
// promoted. Rejected candidates keep their stage outputs for observability.
type Evaluation struct {
	Symbol    string
	At        time.Time
	Outcome   Outcome
	Direction Direction // set from the crossover stage onward

	Snapshot  *IndicatorSnapshot
	Volume    *VolumeContext
	Consensus *ConsensusResult
	Signal    *Signal
}
