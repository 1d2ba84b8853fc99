package strategy

// The scorer is a pure function of its inputs and weights: same inputs,
// same confidence, no hidden state.

// Extremity normalizes how deep the oscillator reached beyond its band
// before crossing back. For a buy the depth below the lower band counts,
// for a sell the depth above the upper band. The result is clipped to [0,1].
func Extremity(direction Direction, prevOscillator, lowerBand, upperBand float64) float64 {
	switch direction {
	case DirectionBuy:
		if lowerBand <= 0 {
			return 0
		}
		return clamp((lowerBand-prevOscillator)/lowerBand, 0, 1)
	case DirectionSell:
		span := 100 - upperBand
		if span <= 0 {
			return 0
		}
		return clamp((prevOscillator-upperBand)/span, 0, 1)
	}
	return 0
}

// VolumeScore normalizes the volume ratio into [0,1]: the threshold maps to
// zero and the cap ratio to one.
func VolumeScore(ratio, threshold, cap float64) float64 {
	if cap <= threshold {
		return 0
	}
	return clamp((ratio-threshold)/(cap-threshold), 0, 1)
}

// Score combines the three sub-scores through the configured weighted
// average. Weights are normalized so callers can specify them in any scale.
func Score(extremity, volumeScore, consensusFraction float64, w ScoreWeights) float64 {
	total := w.Oscillator + w.Volume + w.Consensus
	if total <= 0 {
		return 0
	}
	confidence := (w.Oscillator*clamp(extremity, 0, 1) +
		w.Volume*clamp(volumeScore, 0, 1) +
		w.Consensus*clamp(consensusFraction, 0, 1)) / total
	return clamp(confidence, 0, 1)
}
