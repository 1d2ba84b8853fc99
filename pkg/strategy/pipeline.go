package strategy

import (
	"errors"
	"fmt"

	"tradewind/pkg/market"
)

// Pipeline runs the full signal path for one symbol on its primary
// timeframe: bar intake, crossover detection, volume confirmation, coarser
// timeframe consensus and quality scoring. Coarser views are resampled from
// the primary window rather than fed separately, so the three stages always
// see the same underlying data.
//
// A Pipeline is not safe for concurrent use; the engine runs one pipeline
// per symbol on a single goroutine.
type Pipeline struct {
	cfg     *Config
	engine  *Engine
	primary *market.Series
}

// NewPipeline builds the pipeline for one symbol. Every consensus interval
// must be a whole coarser multiple of the primary interval so it can be
// derived by resampling.
func NewPipeline(cfg *Config, symbol string, interval market.Interval) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	capacity := cfg.MinBars() + cfg.VolumePeriod + 1
	for _, iv := range cfg.ConsensusIntervals {
		if iv <= interval || iv%interval != 0 {
			return nil, fmt.Errorf("strategy: consensus interval %s is not a coarser multiple of %s", iv, interval)
		}
		// The window must hold enough fine bars to warm up the coarsest view.
		need := (cfg.MinBars() + 1) * int(iv/interval)
		if need > capacity {
			capacity = need
		}
	}

	return &Pipeline{
		cfg:     cfg,
		engine:  NewEngine(cfg),
		primary: market.NewSeries(symbol, interval, capacity),
	}, nil
}

// Symbol returns the symbol this pipeline evaluates.
func (p *Pipeline) Symbol() string { return p.primary.Symbol() }

// Series exposes the primary bar window, mainly for tests and backtests.
func (p *Pipeline) Series() *market.Series { return p.primary }

// OnBar ingests one closed bar and runs the stages in order. Every accepted
// bar yields exactly one Evaluation recording where the candidate stopped.
// Out-of-order and duplicate bars surface the series sentinels unchanged so
// the caller can decide whether to log or drop them.
func (p *Pipeline) OnBar(bar market.Bar) (*Evaluation, error) {
	if err := p.primary.Append(bar); err != nil {
		return nil, err
	}

	eval := &Evaluation{Symbol: p.primary.Symbol(), At: bar.CloseTime()}

	direction, snap, err := p.engine.Crossover(p.primary)
	if err != nil {
		if errors.Is(err, ErrInsufficientHistory) {
			eval.Outcome = OutcomeNotReady
			return eval, nil
		}
		return nil, err
	}
	eval.Snapshot = snap
	if direction == "" {
		eval.Outcome = OutcomeNoCrossover
		return eval, nil
	}
	eval.Direction = direction

	vc, err := BuildVolumeContext(p.primary, p.cfg.VolumePeriod)
	if err != nil {
		if errors.Is(err, ErrInsufficientHistory) {
			eval.Outcome = OutcomeNotReady
			return eval, nil
		}
		return nil, err
	}
	eval.Volume = vc
	if !ConfirmVolume(vc, p.cfg.VolumeThreshold) {
		eval.Outcome = OutcomeVolumeRejected
		return eval, nil
	}

	snapshots := make(map[market.Interval]*IndicatorSnapshot, len(p.cfg.ConsensusIntervals))
	for _, iv := range p.cfg.ConsensusIntervals {
		cs, err := p.coarseSnapshot(iv)
		if err != nil && !errors.Is(err, ErrInsufficientHistory) {
			return nil, err
		}
		snapshots[iv] = cs
	}
	consensus := EvaluateConsensus(eval.Symbol, direction, snapshots)
	eval.Consensus = consensus
	if !consensus.Met(p.cfg.ConsensusQuorum) {
		eval.Outcome = OutcomeConsensusRejected
		return eval, nil
	}

	extremity := Extremity(direction, snap.PrevOscillator, snap.LowerBand, snap.UpperBand)
	volScore := VolumeScore(vc.Ratio, p.cfg.VolumeThreshold, p.cfg.VolumeCapRatio)
	eval.Signal = &Signal{
		Symbol:      eval.Symbol,
		Direction:   direction,
		Confidence:  Score(extremity, volScore, consensus.Fraction(), p.cfg.Weights),
		GeneratedAt: bar.CloseTime(),
		Contributing: Contributing{
			Oscillator:  extremity,
			VolumeRatio: vc.Ratio,
			Consensus:   consensus.Fraction(),
		},
	}
	eval.Outcome = OutcomeSignal
	return eval, nil
}

// coarseSnapshot resamples the primary window into a coarser interval and
// runs the indicator engine over it. Partial trailing windows are dropped by
// the resampler, so the coarse view only ever contains closed coarse bars.
func (p *Pipeline) coarseSnapshot(iv market.Interval) (*IndicatorSnapshot, error) {
	bars, err := market.Resample(p.primary.ContiguousTail(), iv)
	if err != nil {
		return nil, err
	}
	if len(bars) < p.cfg.MinBars() {
		return nil, ErrInsufficientHistory
	}
	coarse := market.NewSeries(p.primary.Symbol(), iv, len(bars))
	for _, b := range bars {
		if err := coarse.Append(b); err != nil {
			return nil, err
		}
	}
	return p.engine.Snapshot(coarse)
}
