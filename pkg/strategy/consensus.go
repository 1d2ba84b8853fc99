package strategy

import (
	"sort"

	"tradewind/pkg/market"
)

// EvaluateConsensus counts the coarser timeframes whose oscillator sits on
// the candidate's side of the midpoint (above 50 bullish, below bearish).
// Timeframes passed as nil (no snapshot yet) are excluded from both the
// agreeing set and the total; missing history is never disagreement.
func EvaluateConsensus(symbol string, direction Direction, snapshots map[market.Interval]*IndicatorSnapshot) *ConsensusResult {
	result := &ConsensusResult{
		Symbol:           symbol,
		PrimaryDirection: direction,
	}
	for interval, snap := range snapshots {
		if snap == nil {
			continue
		}
		result.TotalIntervals++
		agrees := false
		switch direction {
		case DirectionBuy:
			agrees = snap.Bullish()
		case DirectionSell:
			agrees = !snap.Bullish()
		}
		if agrees {
			result.AgreeingIntervals = append(result.AgreeingIntervals, interval)
		}
	}
	sort.Slice(result.AgreeingIntervals, func(i, j int) bool {
		return result.AgreeingIntervals[i] < result.AgreeingIntervals[j]
	})
	return result
}
