package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtremityBuyDepth(t *testing.T) {
	// Oscillator bottomed at 5 before crossing a lower band of 20.
	require.InDelta(t, 0.75, Extremity(DirectionBuy, 5, 20, 80), 1e-9)
	// Never dipped below the band at all.
	require.Equal(t, 0.0, Extremity(DirectionBuy, 25, 20, 80))
	// Bottomed at zero: maximal extremity.
	require.Equal(t, 1.0, Extremity(DirectionBuy, 0, 20, 80))
}

func TestExtremitySellDepth(t *testing.T) {
	require.InDelta(t, 0.75, Extremity(DirectionSell, 95, 20, 80), 1e-9)
	require.Equal(t, 0.0, Extremity(DirectionSell, 70, 20, 80))
	require.Equal(t, 1.0, Extremity(DirectionSell, 100, 20, 80))
}

func TestVolumeScoreMapping(t *testing.T) {
	require.Equal(t, 0.0, VolumeScore(1.5, 1.5, 3.0))
	require.Equal(t, 1.0, VolumeScore(3.0, 1.5, 3.0))
	require.Equal(t, 1.0, VolumeScore(5.0, 1.5, 3.0))
	require.InDelta(t, 1.0/3.0, VolumeScore(2.0, 1.5, 3.0), 1e-9)
	// Degenerate cap configuration scores zero rather than dividing by zero.
	require.Equal(t, 0.0, VolumeScore(2.0, 1.5, 1.5))
}

func TestScoreIsDeterministicWeightedAverage(t *testing.T) {
	w := ScoreWeights{Oscillator: 0.4, Volume: 0.3, Consensus: 0.3}
	got := Score(1.0, 1.0/3.0, 1.0, w)
	require.InDelta(t, 0.8, got, 1e-9)
	// Same inputs, same confidence.
	require.Equal(t, got, Score(1.0, 1.0/3.0, 1.0, w))
}

func TestScoreNormalizesWeightScale(t *testing.T) {
	a := Score(0.5, 0.25, 1.0, ScoreWeights{Oscillator: 0.4, Volume: 0.3, Consensus: 0.3})
	b := Score(0.5, 0.25, 1.0, ScoreWeights{Oscillator: 4, Volume: 3, Consensus: 3})
	require.InDelta(t, a, b, 1e-9)

	require.Equal(t, 0.0, Score(1, 1, 1, ScoreWeights{}))
}

func TestScoreStaysInUnitInterval(t *testing.T) {
	w := ScoreWeights{Oscillator: 1, Volume: 1, Consensus: 1}
	require.Equal(t, 1.0, Score(5, 5, 5, w))
	require.Equal(t, 0.0, Score(-1, -1, -1, w))
}
