package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tradewind/pkg/market"
)

// fastConfig shrinks every lookback so a handful of bars can warm the
// pipeline up.
func fastConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		RSIPeriod:             2,
		StochPeriod:           2,
		ATRPeriod:             2,
		ATRAvgPeriod:          2,
		VolumePeriod:          3,
		VolumeThreshold:       1.5,
		VolumeCapRatio:        3,
		ConsensusIntervalsRaw: []string{"15m"},
		ConsensusQuorum:       1,
	}
	cfg.applyDefaults()
	require.NoError(t, cfg.parseIntervals())
	require.NoError(t, cfg.Validate())
	return cfg
}

// oversoldBounce is a price path whose oscillator grinds to its floor and
// then snaps back up through the lower band on the final bar.
var oversoldBounce = []float64{100, 101, 100, 98.5, 96.5, 103}

func feedBounce(t *testing.T, p *Pipeline, lastVolume float64) *Evaluation {
	t.Helper()
	var last *Evaluation
	for i, close := range oversoldBounce {
		volume := 10.0
		if i == len(oversoldBounce)-1 {
			volume = lastVolume
		}
		eval, err := p.OnBar(priceBar(i, close, volume))
		require.NoError(t, err)
		require.NotNil(t, eval)
		last = eval
	}
	return last
}

func TestPipelinePromotesConfirmedCrossover(t *testing.T) {
	cfg := fastConfig(t)
	p, err := NewPipeline(cfg, "BTC", market.Interval5m)
	require.NoError(t, err)

	eval := feedBounce(t, p, 20) // double the baseline volume
	require.Equal(t, OutcomeSignal, eval.Outcome)
	require.Equal(t, DirectionBuy, eval.Direction)

	sig := eval.Signal
	require.NotNil(t, sig)
	require.Equal(t, "BTC", sig.Symbol)
	require.InDelta(t, 2.0, sig.Contributing.VolumeRatio, 1e-9)
	require.InDelta(t, 1.0, sig.Contributing.Oscillator, 1e-9)
	// No coarse timeframe is warm yet, so consensus is neutral.
	require.Equal(t, 1.0, sig.Contributing.Consensus)
	require.InDelta(t, 0.8, sig.Confidence, 1e-9)
	require.Equal(t, eval.At, sig.GeneratedAt)
}

func TestPipelineRejectsThinVolume(t *testing.T) {
	cfg := fastConfig(t)
	p, err := NewPipeline(cfg, "BTC", market.Interval5m)
	require.NoError(t, err)

	eval := feedBounce(t, p, 10) // baseline volume, ratio 1.0
	require.Equal(t, OutcomeVolumeRejected, eval.Outcome)
	require.Equal(t, DirectionBuy, eval.Direction, "the rejected candidate keeps its direction for auditing")
	require.NotNil(t, eval.Volume)
	require.Nil(t, eval.Signal)
}

func TestPipelineOutcomeProgression(t *testing.T) {
	cfg := fastConfig(t)
	p, err := NewPipeline(cfg, "BTC", market.Interval5m)
	require.NoError(t, err)

	// Warmup bars report not_ready, then quiet bars report no_crossover.
	eval, err := p.OnBar(priceBar(0, 100, 10))
	require.NoError(t, err)
	require.Equal(t, OutcomeNotReady, eval.Outcome)
	require.Nil(t, eval.Signal)

	for i := 1; i < 5; i++ {
		eval, err = p.OnBar(priceBar(i, 100, 10))
		require.NoError(t, err)
	}
	require.Equal(t, OutcomeNoCrossover, eval.Outcome)
	require.NotNil(t, eval.Snapshot)
}

func TestPipelineSurfacesSeriesSentinels(t *testing.T) {
	cfg := fastConfig(t)
	p, err := NewPipeline(cfg, "BTC", market.Interval5m)
	require.NoError(t, err)

	_, err = p.OnBar(priceBar(1, 100, 10))
	require.NoError(t, err)

	_, err = p.OnBar(priceBar(1, 100, 10))
	require.ErrorIs(t, err, market.ErrDuplicateBar)

	_, err = p.OnBar(priceBar(0, 100, 10))
	require.ErrorIs(t, err, market.ErrOutOfOrder)
}

func TestNewPipelineRejectsMisalignedConsensusInterval(t *testing.T) {
	cfg := fastConfig(t)
	cfg.ConsensusIntervalsRaw = []string{"7m"}
	require.NoError(t, cfg.parseIntervals())

	_, err := NewPipeline(cfg, "BTC", market.Interval5m)
	require.Error(t, err)

	cfg.ConsensusIntervalsRaw = []string{"1m"}
	require.NoError(t, cfg.parseIntervals())
	_, err = NewPipeline(cfg, "BTC", market.Interval5m)
	require.Error(t, err)
}
