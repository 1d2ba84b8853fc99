package strategy

import (
	"math"

	"tradewind/pkg/market"
	"tradewind/pkg/market/indicators"
)

// BuildVolumeContext derives the volume confirmation inputs from the latest
// closed bar and the rolling average over the preceding window. Only closed
// bars participate: the filter never peeks at a forming bar.
func BuildVolumeContext(s *market.Series, period int) (*VolumeContext, error) {
	volumes := s.Volumes()
	if len(volumes) < period+1 {
		return nil, ErrInsufficientHistory
	}

	// Average excludes the bar under confirmation so a single volume spike
	// does not confirm itself.
	window := volumes[:len(volumes)-1]
	avg := indicators.SMA(window, period)
	rolling := avg[len(avg)-1]
	if math.IsNaN(rolling) || rolling <= 0 {
		return nil, ErrInsufficientHistory
	}

	last, _ := s.Last()
	current := volumes[len(volumes)-1]
	return &VolumeContext{
		Symbol:         s.Symbol(),
		Timestamp:      last.CloseTime(),
		CurrentVolume:  current,
		RollingAverage: rolling,
		Ratio:          current / rolling,
	}, nil
}

// ConfirmVolume is the pure filter rule: a candidate survives only when the
// bar's volume ratio reaches the configured threshold.
func ConfirmVolume(vc *VolumeContext, threshold float64) bool {
	if vc == nil {
		return false
	}
	return vc.Ratio >= threshold
}
