package risk

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"tradewind/pkg/exchange"
	"tradewind/pkg/strategy"
)

// ErrCircuitTripped is returned by callers that need the halt as an error
// rather than a rejection reason.
var ErrCircuitTripped = errors.New("risk: circuit breaker tripped")

// Rejection reasons, in check order.
const (
	ReasonCircuitTripped = "circuit_tripped"
	ReasonLowConfidence  = "confidence_below_minimum"
	ReasonMaxConcurrent  = "max_concurrent_positions"
	ReasonSymbolHeld     = "position_already_open_on_symbol"
	ReasonZeroQuantity   = "quantity_rounds_to_zero"
	ReasonDailyLoss      = "daily_loss_budget_exhausted"
)

// EntryPlan carries the instrument facts the sizing checks need.
type EntryPlan struct {
	EntryPrice float64
	// StopDistance is the absolute price distance to the initial hard stop;
	// it bounds the projected loss of the entry.
	StopDistance float64
	// MinIncrement is the instrument's minimum tradable increment. Zero
	// falls back to the configured default.
	MinIncrement float64
}

// Decision is the all-or-nothing outcome of one Evaluate call: either the
// full computed quantity is approved or the entry is rejected with a reason.
// The manager never silently shrinks a rejected trade.
type Decision struct {
	Approved bool
	Quantity float64
	Reason   string
}

// Manager gates scored signals against the account budget and the circuit
// breaker. Evaluate itself does not mutate the budget; consumption happens
// when positions close and report realized PnL.
type Manager struct {
	cfg     *Config
	budget  *Budget
	breaker *Breaker
}

// NewManager wires the manager to the shared budget and breaker singletons.
func NewManager(cfg *Config, budget *Budget, breaker *Breaker) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Manager{cfg: cfg, budget: budget, breaker: breaker}
}

// Budget exposes the shared risk budget.
func (m *Manager) Budget() *Budget { return m.budget }

// Breaker exposes the shared circuit breaker.
func (m *Manager) Breaker() *Breaker { return m.breaker }

// Evaluate runs the ordered entry checks for one scored signal. The account
// state must already include positions awaiting entry confirmation so two
// pipelines cannot claim the same slot.
func (m *Manager) Evaluate(sig *strategy.Signal, account exchange.AccountState, plan EntryPlan) (Decision, error) {
	if sig == nil {
		return Decision{}, errors.New("risk: nil signal")
	}
	if plan.EntryPrice <= 0 {
		return Decision{}, fmt.Errorf("risk: %s: non-positive entry price", sig.Symbol)
	}
	if plan.StopDistance <= 0 {
		return Decision{}, fmt.Errorf("risk: %s: non-positive stop distance", sig.Symbol)
	}

	if m.breaker != nil && m.breaker.Tripped() {
		return m.reject(sig, ReasonCircuitTripped), nil
	}
	if sig.Confidence < m.cfg.MinConfidence {
		return m.reject(sig, ReasonLowConfidence), nil
	}
	if len(account.Positions) >= m.cfg.MaxConcurrentPositions {
		return m.reject(sig, ReasonMaxConcurrent), nil
	}
	for _, p := range account.Positions {
		if strings.EqualFold(p.Symbol, sig.Symbol) {
			return m.reject(sig, ReasonSymbolHeld), nil
		}
	}

	increment := plan.MinIncrement
	if increment <= 0 {
		increment = m.cfg.DefaultIncrement
	}
	notional := math.Min(m.cfg.MaxPositionPct*account.Equity, account.BuyingPower)
	quantity := math.Floor(notional/plan.EntryPrice/increment) * increment
	if quantity <= 0 {
		return m.reject(sig, ReasonZeroQuantity), nil
	}

	if plan.StopDistance*quantity > m.budget.RemainingDailyLoss() {
		return m.reject(sig, ReasonDailyLoss), nil
	}

	logx.Infow("risk approved entry",
		logx.Field("symbol", sig.Symbol),
		logx.Field("direction", string(sig.Direction)),
		logx.Field("confidence", sig.Confidence),
		logx.Field("quantity", quantity))
	return Decision{Approved: true, Quantity: quantity}, nil
}

func (m *Manager) reject(sig *strategy.Signal, reason string) Decision {
	logx.Infow("risk rejected entry",
		logx.Field("symbol", sig.Symbol),
		logx.Field("direction", string(sig.Direction)),
		logx.Field("confidence", sig.Confidence),
		logx.Field("reason", reason))
	return Decision{Reason: reason}
}
