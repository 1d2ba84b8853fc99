package risk

import (
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// Breaker trip reasons.
const (
	TripReasonDailyLoss   = "daily_loss_limit"
	TripReasonErrorRate   = "execution_error_rate"
	TripReasonUnreachable = "execution_unreachable"
	TripReasonOperator    = "operator_override"
)

// Breaker is the process-wide circuit breaker. While tripped the risk
// manager rejects every new entry; open positions keep being monitored and
// may still close normally. It only resets on cooldown expiry or explicit
// operator action, never on a winning trade.
type Breaker struct {
	mu sync.Mutex

	tripped       bool
	reason        string
	trippedAt     time.Time
	cooldownUntil time.Time

	cooldown      time.Duration
	errorWindow   time.Duration
	rateThreshold float64
	minSamples    int
	execGrace     time.Duration

	outcomes    []execOutcome
	lastSuccess time.Time

	now func() time.Time
}

type execOutcome struct {
	at     time.Time
	failed bool
}

// NewBreaker builds an armed breaker from configuration.
func NewBreaker(cfg *Config) *Breaker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	b := &Breaker{
		cooldown:      cfg.Cooldown,
		errorWindow:   cfg.ErrorWindow,
		rateThreshold: cfg.ErrorRateThreshold,
		minSamples:    cfg.ErrorMinSamples,
		execGrace:     cfg.ExecGrace,
		now:           time.Now,
	}
	b.lastSuccess = b.now()
	return b
}

// State is a point-in-time read of the breaker.
type State struct {
	Tripped       bool
	Reason        string
	TrippedAt     time.Time
	CooldownUntil time.Time
}

// State returns a consistent copy of the breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return State{Tripped: b.tripped, Reason: b.reason, TrippedAt: b.trippedAt, CooldownUntil: b.cooldownUntil}
}

// Tripped reports whether new entries are currently suspended.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.tripped
}

// Trip suspends all new entries for the configured cooldown.
func (b *Breaker) Trip(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripLocked(reason)
}

// Reset clears the breaker by operator action.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tripped {
		return
	}
	logx.Infow("circuit breaker reset by operator", logx.Field("reason", b.reason))
	b.tripped = false
	b.reason = ""
	b.cooldownUntil = time.Time{}
	b.outcomes = b.outcomes[:0]
	b.lastSuccess = b.now()
}

// ObserveClose folds a closed position's outcome into the breaker: reaching
// the daily loss limit trips it.
func (b *Breaker) ObserveClose(budget *Budget) {
	if budget == nil || !budget.Exhausted() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tripped {
		b.tripLocked(TripReasonDailyLoss)
	}
}

// ObserveExecutionError records one failed execution-collaborator call. The
// breaker trips when the rolling error rate crosses the threshold or when
// the collaborator has been unreachable past the grace period.
func (b *Breaker) ObserveExecutionError() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.outcomes = append(b.outcomes, execOutcome{at: now, failed: true})
	b.pruneLocked(now)
	if b.tripped {
		return
	}
	if now.Sub(b.lastSuccess) > b.execGrace {
		b.tripLocked(TripReasonUnreachable)
		return
	}
	total, failed := 0, 0
	for _, o := range b.outcomes {
		total++
		if o.failed {
			failed++
		}
	}
	if total >= b.minSamples && float64(failed)/float64(total) >= b.rateThreshold {
		b.tripLocked(TripReasonErrorRate)
	}
}

// ObserveExecutionSuccess records one successful execution-collaborator call.
func (b *Breaker) ObserveExecutionSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.lastSuccess = now
	b.outcomes = append(b.outcomes, execOutcome{at: now})
	b.pruneLocked(now)
}

func (b *Breaker) tripLocked(reason string) {
	now := b.now()
	b.tripped = true
	b.reason = reason
	b.trippedAt = now
	b.cooldownUntil = now.Add(b.cooldown)
	logx.Errorw("circuit breaker tripped",
		logx.Field("reason", reason),
		logx.Field("cooldownUntil", b.cooldownUntil))
}

// refreshLocked clears a trip whose cooldown has expired.
func (b *Breaker) refreshLocked() {
	if b.tripped && !b.cooldownUntil.IsZero() && b.now().After(b.cooldownUntil) {
		logx.Infow("circuit breaker cooldown expired", logx.Field("reason", b.reason))
		b.tripped = false
		b.reason = ""
		b.cooldownUntil = time.Time{}
		b.outcomes = b.outcomes[:0]
		b.lastSuccess = b.now()
	}
}

func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.errorWindow)
	kept := b.outcomes[:0]
	for _, o := range b.outcomes {
		if o.at.After(cutoff) {
			kept = append(kept, o)
		}
	}
	b.outcomes = kept
}
