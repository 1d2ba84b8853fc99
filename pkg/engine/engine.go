package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"tradewind/pkg/events"
	"tradewind/pkg/exchange"
	"tradewind/pkg/market"
	"tradewind/pkg/position"
	"tradewind/pkg/risk"
	"tradewind/pkg/strategy"
)

// Ledger reads realized results back from the closed-position archive.
// internal/repo's positions repository implements it.
type Ledger interface {
	RealizedSince(ctx context.Context, cutoff time.Time) (float64, error)
}

// Deps carries the collaborators the engine orchestrates. All fields are
// required except Events and Ledger.
type Deps struct {
	Strategy  *strategy.Config
	Position  *position.Config
	Risk      *risk.Manager
	Positions *position.Manager
	Market    market.Provider
	Broker    exchange.Provider
	Events    *events.Emitter
	Ledger    Ledger
}

// Engine runs one pipeline per symbol off the market provider's bar stream
// and routes promoted signals through the risk gate into the position
// lifecycle. Entry admission is serialized so concurrent symbol pipelines
// cannot race for the same budget headroom or concurrency slot.
type Engine struct {
	cfg  *Config
	deps Deps

	pipelines map[string]*strategy.Pipeline
	cron      *cron.Cron

	// entryMu serializes evaluate-then-open so the account view a decision
	// was made on cannot be invalidated by a sibling pipeline in between.
	entryMu sync.Mutex

	lastTripped bool
	trippedMu   sync.Mutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New wires the engine. It builds one pipeline per configured symbol.
func New(cfg *Config, deps Deps) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil config")
	}
	if deps.Risk == nil || deps.Positions == nil || deps.Market == nil || deps.Broker == nil {
		return nil, errors.New("engine: missing dependencies")
	}

	e := &Engine{
		cfg:       cfg,
		deps:      deps,
		pipelines: make(map[string]*strategy.Pipeline, len(cfg.Symbols)),
		cron:      cron.New(cron.WithLocation(time.UTC)),
		stopChan:  make(chan struct{}),
	}
	for _, symbol := range cfg.Symbols {
		p, err := strategy.NewPipeline(deps.Strategy, symbol, cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("engine: pipeline %s: %w", symbol, err)
		}
		e.pipelines[symbol] = p
	}
	if _, err := deps.Risk.Budget().ScheduleDailyReset(e.cron); err != nil {
		return nil, fmt.Errorf("engine: schedule daily reset: %w", err)
	}
	return e, nil
}

// Start subscribes every symbol's bar stream and begins trading. It returns
// once all consumers are running; Stop shuts them down.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.deps.Positions.Restore(); err != nil {
		return fmt.Errorf("engine: restore positions: %w", err)
	}
	e.seedDailyLedger(ctx)
	e.cron.Start()

	for symbol, pipeline := range e.pipelines {
		bars, err := e.deps.Market.Bars(ctx, symbol, e.cfg.Interval)
		if err != nil {
			return fmt.Errorf("engine: subscribe %s: %w", symbol, err)
		}
		sym, pipe := symbol, pipeline
		e.wg.Add(1)
		threading.GoSafe(func() {
			defer e.wg.Done()
			e.consume(ctx, sym, pipe, bars)
		})
	}
	logx.Infow("engine started",
		logx.Field("symbols", e.cfg.Symbols),
		logx.Field("interval", e.cfg.Interval.String()))
	return nil
}

// Stop halts bar consumption and the daily reset scheduler, then waits for
// in-flight work to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		ctx := e.cron.Stop()
		<-ctx.Done()
	})
	e.wg.Wait()
	logx.Info("engine stopped")
}

// FlattenAll force-closes every open position, taking priority over any
// pending stop/target evaluation.
func (e *Engine) FlattenAll(ctx context.Context) {
	logx.Info("operator flatten-all requested")
	e.deps.Positions.FlattenAll(ctx)
}

// TripBreaker suspends all new entries by operator override.
func (e *Engine) TripBreaker() {
	e.deps.Risk.Breaker().Trip(risk.TripReasonOperator)
	e.emitBreaker()
}

// ResetBreaker clears the circuit breaker by operator action.
func (e *Engine) ResetBreaker() {
	e.deps.Risk.Breaker().Reset()
	e.emitBreaker()
}

func (e *Engine) consume(ctx context.Context, symbol string, pipeline *strategy.Pipeline, bars <-chan market.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopChan:
			return
		case bar, ok := <-bars:
			if !ok {
				logx.Infow("bar stream ended", logx.Field("symbol", symbol))
				return
			}
			e.handleBar(ctx, pipeline, bar)
		}
	}
}

// markPriceSetter is implemented by paper brokers that value fills off a
// caller-supplied reference price instead of a live feed.
type markPriceSetter interface {
	SetMarkPrice(symbol string, price float64) error
}

// handleBar is one full pass for one closed bar: sync the broker's mark
// price, monitor existing positions at the new price, evaluate the
// pipeline, and gate any promoted signal through the risk manager.
func (e *Engine) handleBar(ctx context.Context, pipeline *strategy.Pipeline, bar market.Bar) {
	// Paper brokers have no market feed of their own; without this, their
	// fills settle at a price unrelated to the bar the signal fired on.
	if setter, ok := e.deps.Broker.(markPriceSetter); ok {
		if err := setter.SetMarkPrice(bar.Symbol, bar.Close); err != nil {
			logx.Errorw("mark price update failed",
				logx.Field("symbol", bar.Symbol), logx.Field("error", err.Error()))
		}
	}

	e.deps.Positions.OnPrice(ctx, bar.Symbol, bar.Close)

	eval, err := pipeline.OnBar(bar)
	if err != nil {
		// Bad bars are rejected and logged, never fatal.
		logx.Errorw("bar rejected",
			logx.Field("symbol", bar.Symbol),
			logx.Field("openTime", bar.OpenTime),
			logx.Field("error", err.Error()))
		return
	}
	e.deps.Events.Evaluation(eval)
	e.emitBreaker()
	if eval.Signal == nil {
		return
	}
	e.admit(ctx, eval.Signal, bar.Close)
}

// admit runs the serialized evaluate-then-open section for one signal.
func (e *Engine) admit(ctx context.Context, sig *strategy.Signal, price float64) {
	e.entryMu.Lock()
	defer e.entryMu.Unlock()

	account, err := e.deps.Broker.GetAccountState(ctx)
	if err != nil {
		logx.Errorw("account state unavailable, entry skipped",
			logx.Field("symbol", sig.Symbol), logx.Field("error", err.Error()))
		e.deps.Risk.Breaker().ObserveExecutionError()
		return
	}
	// The lifecycle manager's view includes entries awaiting confirmation,
	// which the broker does not report yet.
	view := *account
	view.Positions = mergeViews(account.Positions, e.deps.Positions.ActiveViews())

	plan := risk.EntryPlan{
		EntryPrice:   price,
		StopDistance: price * e.positionCfg().StopLossPct,
	}
	decision, err := e.deps.Risk.Evaluate(sig, view, plan)
	if err != nil {
		logx.Errorw("risk evaluation failed",
			logx.Field("symbol", sig.Symbol), logx.Field("error", err.Error()))
		return
	}
	e.deps.Events.Decision(sig, decision)
	e.emitBreaker()
	if !decision.Approved {
		return
	}

	if _, err := e.deps.Positions.OpenPosition(ctx, sig, decision.Quantity); err != nil {
		logx.Errorw("entry abandoned",
			logx.Field("symbol", sig.Symbol), logx.Field("error", err.Error()))
		e.emitBreaker()
	}
}

// seedDailyLedger rebuilds the consumed daily loss from the archive so a
// restart does not refill the budget mid-day. A tripped condition reached
// through the rebuilt ledger trips the breaker immediately.
func (e *Engine) seedDailyLedger(ctx context.Context) {
	if e.deps.Ledger == nil {
		return
	}
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	pnl, err := e.deps.Ledger.RealizedSince(ctx, midnight)
	if err != nil {
		logx.Errorw("daily ledger rebuild failed, starting with empty budget",
			logx.Field("error", err.Error()))
		return
	}
	e.deps.Risk.Budget().SeedConsumed(pnl)
	e.deps.Risk.Breaker().ObserveClose(e.deps.Risk.Budget())
	e.emitBreaker()
}

func (e *Engine) positionCfg() *position.Config {
	if e.deps.Position != nil {
		return e.deps.Position
	}
	return position.DefaultConfig()
}

// emitBreaker publishes breaker transitions exactly once per edge.
func (e *Engine) emitBreaker() {
	state := e.deps.Risk.Breaker().State()
	e.trippedMu.Lock()
	changed := state.Tripped != e.lastTripped
	e.lastTripped = state.Tripped
	e.trippedMu.Unlock()
	if changed {
		e.deps.Events.Breaker(state)
	}
}

func mergeViews(broker, local []exchange.PositionView) []exchange.PositionView {
	merged := make([]exchange.PositionView, 0, len(broker)+len(local))
	seen := make(map[string]struct{}, len(broker))
	for _, v := range broker {
		merged = append(merged, v)
		seen[v.Symbol] = struct{}{}
	}
	for _, v := range local {
		if _, dup := seen[v.Symbol]; dup {
			continue
		}
		merged = append(merged, v)
	}
	return merged
}
