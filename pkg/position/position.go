package position

import (
	"time"

	"tradewind/pkg/exchange"
)

// State is one step of the position lifecycle.
type State string

const (
	StatePendingEntry   State = "PENDING_ENTRY"
	StateOpen           State = "OPEN"
	StateClosingStop    State = "CLOSING_STOP"
	StateClosingTarget  State = "CLOSING_TARGET"
	StateClosingTrail   State = "CLOSING_TRAIL"
	StateClosingTimeout State = "CLOSING_TIMEOUT"
	StateClosingManual  State = "CLOSING_MANUAL"
	StateClosed         State = "CLOSED"
	// StateDiscarded is the terminal state of an entry whose order was
	// rejected or timed out before any fill.
	StateDiscarded State = "DISCARDED"
)

// Closing reports whether the state is one of the exit-in-flight states.
func (s State) Closing() bool {
	switch s {
	case StateClosingStop, StateClosingTarget, StateClosingTrail, StateClosingTimeout, StateClosingManual:
		return true
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool { return s == StateClosed || s == StateDiscarded }

// Position is the record owned by the lifecycle manager. The risk manager
// creates the initial record through OpenPosition and never mutates it
// afterwards. Exported fields stay msgpack-serializable for checkpointing.
type Position struct {
	ID       string        `msgpack:"id"`
	Symbol   string        `msgpack:"symbol"`
	Side     exchange.Side `msgpack:"side"`
	Quantity float64       `msgpack:"quantity"`
	State    State         `msgpack:"state"`

	EntryPrice        float64 `msgpack:"entry_price"`
	StopPrice         float64 `msgpack:"stop_price"`
	TargetPrice       float64 `msgpack:"target_price"`
	TrailingStopPrice float64 `msgpack:"trailing_stop_price"`
	// FavorableExtreme is the best price seen since open: the high water
	// mark for longs, low water mark for shorts.
	FavorableExtreme float64 `msgpack:"favorable_extreme"`

	OpenedAt    time.Time `msgpack:"opened_at"`
	ClosedAt    time.Time `msgpack:"closed_at"`
	ExitPrice   float64   `msgpack:"exit_price"`
	RealizedPnL float64   `msgpack:"realized_pnl"`

	EntryOrderID string `msgpack:"entry_order_id"`
	ExitOrderID  string `msgpack:"exit_order_id"`
}

// evaluateTick picks the exit transition for one price update, in fixed
// priority order: stop, target, trail, timeout. At most one fires; the stop
// wins any tie with the target.
func (p *Position) evaluateTick(price float64, now time.Time, maxHold time.Duration) (State, bool) {
	if p.State != StateOpen {
		return p.State, false
	}
	long := p.Side == exchange.SideBuy
	switch {
	case long && price <= p.StopPrice, !long && price >= p.StopPrice:
		return StateClosingStop, true
	case long && price >= p.TargetPrice, !long && price <= p.TargetPrice:
		return StateClosingTarget, true
	case p.trailHit(price):
		return StateClosingTrail, true
	case maxHold > 0 && now.Sub(p.OpenedAt) >= maxHold:
		return StateClosingTimeout, true
	}
	return p.State, false
}

func (p *Position) trailHit(price float64) bool {
	if p.TrailingStopPrice <= 0 {
		return false
	}
	if p.Side == exchange.SideBuy {
		return price <= p.TrailingStopPrice
	}
	return price >= p.TrailingStopPrice
}

// ratchetTrail advances the favorable extreme and the trailing stop. The
// trailing stop only ever moves in the position's favor; it is never reset
// while the position is open.
func (p *Position) ratchetTrail(price float64, trailPct float64) {
	if trailPct <= 0 || p.State != StateOpen {
		return
	}
	if p.Side == exchange.SideBuy {
		if price > p.FavorableExtreme {
			p.FavorableExtreme = price
		}
		candidate := p.FavorableExtreme * (1 - trailPct)
		if candidate > p.TrailingStopPrice {
			p.TrailingStopPrice = candidate
		}
		return
	}
	if p.FavorableExtreme == 0 || price < p.FavorableExtreme {
		p.FavorableExtreme = price
	}
	candidate := p.FavorableExtreme * (1 + trailPct)
	if p.TrailingStopPrice == 0 || candidate < p.TrailingStopPrice {
		p.TrailingStopPrice = candidate
	}
}

// realizedPnL computes the round-trip result for an exit at the given price.
func (p *Position) realizedPnL(exitPrice float64) float64 {
	if p.Side == exchange.SideBuy {
		return (exitPrice - p.EntryPrice) * p.Quantity
	}
	return (p.EntryPrice - exitPrice) * p.Quantity
}
