package backtest

import (
	"encoding/json"
	"math"
	"os"
)

// Result summarizes a simulation run.
type Result struct {
	Steps       int       `json:"steps"`
	Signals     int       `json:"signals"`
	Entries     int       `json:"entries"`
	Trades      int       `json:"trades"`
	Wins        int       `json:"wins"`
	WinRate     float64   `json:"win_rate"`
	RealizedPnL float64   `json:"realized_pnl"`
	FinalEquity float64   `json:"final_equity"`
	MaxDDPct    float64   `json:"max_dd_pct"`
	Sharpe      float64   `json:"sharpe"`
	EquityCurve []float64 `json:"equity_curve"`
}

func maxDrawdownPct(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	peak := series[0]
	mdd := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > mdd {
			mdd = dd
		}
	}
	return mdd * 100
}

func sharpe(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		rets = append(rets, equity[i]/equity[i-1]-1)
	}
	if len(rets) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	variance := 0.0
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets))
	sd := math.Sqrt(variance)
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(float64(len(rets)))
}

func writeReport(path string, r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
