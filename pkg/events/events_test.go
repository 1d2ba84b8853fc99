package events

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradewind/pkg/position"
	"tradewind/pkg/risk"
	"tradewind/pkg/strategy"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestEmitterWritesJSONLines(t *testing.T) {
	path := t.TempDir() + "/events.jsonl"
	e, err := NewEmitter(path)
	require.NoError(t, err)
	defer e.Close()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e.Evaluation(&strategy.Evaluation{
		Symbol: "BTC", At: at, Outcome: strategy.OutcomeVolumeRejected,
		Direction: strategy.DirectionBuy,
	})
	e.Evaluation(&strategy.Evaluation{
		Symbol: "BTC", At: at, Outcome: strategy.OutcomeSignal,
		Direction: strategy.DirectionBuy,
		Signal:    &strategy.Signal{Symbol: "BTC", Direction: strategy.DirectionBuy, Confidence: 0.8},
	})
	e.Decision(&strategy.Signal{Symbol: "BTC", Direction: strategy.DirectionBuy, Confidence: 0.8},
		risk.Decision{Approved: true, Quantity: 2})
	e.Transition(position.Position{ID: "p1", Symbol: "BTC", RealizedPnL: -12.5},
		position.StateClosingStop, position.StateClosed)
	e.Breaker(risk.State{Tripped: true, Reason: risk.TripReasonDailyLoss})

	records := readRecords(t, path)
	require.Len(t, records, 5)
	require.Equal(t, KindEvaluation, records[0].Kind)
	require.Equal(t, "volume_rejected", records[0].Outcome)
	require.Equal(t, KindSignal, records[1].Kind)
	require.InDelta(t, 0.8, records[1].Confidence, 1e-9)
	require.True(t, records[2].Approved)
	require.Equal(t, "CLOSED", records[3].ToState)
	require.InDelta(t, -12.5, records[3].PnL, 1e-9)
	require.True(t, records[4].Tripped)
}

func TestEmitterNilAndEmptyPathAreSafe(t *testing.T) {
	var nilEmitter *Emitter
	nilEmitter.Evaluation(&strategy.Evaluation{Symbol: "BTC"})
	require.NoError(t, nilEmitter.Close())

	e, err := NewEmitter("")
	require.NoError(t, err)
	e.Decision(&strategy.Signal{Symbol: "BTC"}, risk.Decision{Reason: risk.ReasonLowConfidence})
	require.NoError(t, e.Close())
}
