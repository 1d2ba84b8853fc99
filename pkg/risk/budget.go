package risk

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zeromicro/go-zero/core/logx"
)

// Budget is the account-scoped risk budget. It is a shared singleton across
// symbol pipelines; every mutation goes through its mutex so concurrent
// pipelines cannot race to consume the same daily-loss headroom.
type Budget struct {
	mu sync.Mutex

	maxPositionPct float64
	maxConcurrent  int
	dailyLossLimit float64
	consumed       float64
	lastReset      time.Time
}

// NewBudget builds the budget from the configured limits.
func NewBudget(cfg *Config) *Budget {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Budget{
		maxPositionPct: cfg.MaxPositionPct,
		maxConcurrent:  cfg.MaxConcurrentPositions,
		dailyLossLimit: cfg.DailyLossLimit,
		lastReset:      time.Now().UTC(),
	}
}

// BudgetSnapshot is a point-in-time read of the budget.
type BudgetSnapshot struct {
	MaxPositionPct         float64
	MaxConcurrentPositions int
	DailyLossLimit         float64
	ConsumedDailyLoss      float64
	LastReset              time.Time
}

// Snapshot returns a consistent copy of the budget state.
func (b *Budget) Snapshot() BudgetSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BudgetSnapshot{
		MaxPositionPct:         b.maxPositionPct,
		MaxConcurrentPositions: b.maxConcurrent,
		DailyLossLimit:         b.dailyLossLimit,
		ConsumedDailyLoss:      b.consumed,
		LastReset:              b.lastReset,
	}
}

// SeedConsumed rebuilds the consumed daily loss from the day's net realized
// PnL, recorded by the archive. Called once at startup so a process restart
// does not refill the budget mid-day. A non-negative net PnL seeds nothing.
func (b *Budget) SeedConsumed(netPnL float64) {
	if netPnL >= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumed = -netPnL
	logx.Infow("risk budget seeded from archive",
		logx.Field("consumed", b.consumed),
		logx.Field("limit", b.dailyLossLimit))
}

// RecordRealizedPnL folds a closed position's realized result into the
// consumed daily loss. Only losses consume budget; wins never restore it.
func (b *Budget) RecordRealizedPnL(pnl float64) {
	if pnl >= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumed += -pnl
}

// RemainingDailyLoss returns the loss headroom left today, floored at zero.
func (b *Budget) RemainingDailyLoss() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.dailyLossLimit - b.consumed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Exhausted reports whether the consumed loss has reached the daily limit.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumed >= b.dailyLossLimit
}

// ResetDaily zeroes the consumed loss at the start of a new trading day.
func (b *Budget) ResetDaily() {
	b.mu.Lock()
	defer b.mu.Unlock()
	logx.Infow("risk budget daily reset",
		logx.Field("consumed", b.consumed),
		logx.Field("limit", b.dailyLossLimit))
	b.consumed = 0
	b.lastReset = time.Now().UTC()
}

// ScheduleDailyReset registers the midnight UTC reset on the supplied cron.
// The cron must be constructed with the UTC location.
func (b *Budget) ScheduleDailyReset(c *cron.Cron) (cron.EntryID, error) {
	return c.AddFunc("@midnight", b.ResetDaily)
}
