package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"tradewind/pkg/position"
	"tradewind/pkg/risk"
	"tradewind/pkg/strategy"
)

// Kind classifies an emitted event.
type Kind string

const (
	KindEvaluation Kind = "evaluation"
	KindSignal     Kind = "signal"
	KindDecision   Kind = "risk_decision"
	KindTransition Kind = "position_transition"
	KindBreaker    Kind = "breaker"
)

// Record is one timestamped entry on the observability surface. Every
// Signal (including rejected candidates), every risk decision, every
// position transition and every breaker trip/reset becomes one Record.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Symbol    string    `json:"symbol,omitempty"`

	Outcome    string  `json:"outcome,omitempty"`
	Direction  string  `json:"direction,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	Approved bool    `json:"approved,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
	Reason   string  `json:"reason,omitempty"`

	PositionID string  `json:"position_id,omitempty"`
	FromState  string  `json:"from_state,omitempty"`
	ToState    string  `json:"to_state,omitempty"`
	PnL        float64 `json:"pnl,omitempty"`

	Tripped bool `json:"tripped,omitempty"`
}

// Emitter appends events to a JSON-lines journal and mirrors them to the
// structured log and prometheus counters. A nil Emitter is a valid no-op.
type Emitter struct {
	mu    sync.Mutex
	file  *os.File
	nowFn func() time.Time
}

// NewEmitter opens (or creates) the journal file for appending. An empty
// path keeps only the log/metrics mirrors.
func NewEmitter(path string) (*Emitter, error) {
	e := &Emitter{nowFn: time.Now}
	if path == "" {
		return e, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("events: create journal dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("events: open journal: %w", err)
	}
	e.file = file
	return e, nil
}

// Close flushes and closes the journal file.
func (e *Emitter) Close() error {
	if e == nil || e.file == nil {
		return nil
	}
	return e.file.Close()
}

func (e *Emitter) write(rec Record) {
	if e == nil {
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = e.nowFn().UTC()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		logx.Errorw("encode event failed", logx.Field("error", err.Error()))
		return
	}
	if _, err := e.file.Write(append(data, '\n')); err != nil {
		logx.Errorw("write event failed", logx.Field("error", err.Error()))
	}
}

// Evaluation emits one pipeline pass, whatever its outcome.
func (e *Emitter) Evaluation(eval *strategy.Evaluation) {
	if e == nil || eval == nil {
		return
	}
	evaluationsTotal.WithLabelValues(eval.Symbol, string(eval.Outcome)).Inc()
	rec := Record{
		Timestamp: eval.At,
		Kind:      KindEvaluation,
		Symbol:    eval.Symbol,
		Outcome:   string(eval.Outcome),
		Direction: string(eval.Direction),
	}
	if eval.Signal != nil {
		rec.Kind = KindSignal
		rec.Confidence = eval.Signal.Confidence
		signalsTotal.WithLabelValues(eval.Symbol, string(eval.Direction)).Inc()
	}
	e.write(rec)
}

// Decision emits one risk manager verdict for a signal.
func (e *Emitter) Decision(sig *strategy.Signal, dec risk.Decision) {
	if e == nil || sig == nil {
		return
	}
	verdict := "approved"
	if !dec.Approved {
		verdict = dec.Reason
	}
	decisionsTotal.WithLabelValues(sig.Symbol, verdict).Inc()
	e.write(Record{
		Kind:       KindDecision,
		Symbol:     sig.Symbol,
		Direction:  string(sig.Direction),
		Confidence: sig.Confidence,
		Approved:   dec.Approved,
		Quantity:   dec.Quantity,
		Reason:     dec.Reason,
	})
}

// Transition emits one position state transition.
func (e *Emitter) Transition(p position.Position, from, to position.State) {
	if e == nil {
		return
	}
	transitionsTotal.WithLabelValues(string(to)).Inc()
	rec := Record{
		Kind:       KindTransition,
		Symbol:     p.Symbol,
		PositionID: p.ID,
		FromState:  string(from),
		ToState:    string(to),
	}
	if to == position.StateClosed {
		rec.PnL = p.RealizedPnL
		realizedPnL.Add(p.RealizedPnL)
	}
	e.write(rec)
}

// Breaker emits a circuit breaker trip or reset.
func (e *Emitter) Breaker(state risk.State) {
	if e == nil {
		return
	}
	if state.Tripped {
		breakerTrips.WithLabelValues(state.Reason).Inc()
		breakerState.Set(1)
	} else {
		breakerState.Set(0)
	}
	e.write(Record{
		Kind:    KindBreaker,
		Tripped: state.Tripped,
		Reason:  state.Reason,
	})
}
