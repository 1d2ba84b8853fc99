package backtest

import (
	"context"
	"errors"
	"fmt"

	"tradewind/pkg/exchange"
	"tradewind/pkg/exchange/sim"
	"tradewind/pkg/market"
	"tradewind/pkg/position"
	"tradewind/pkg/risk"
	"tradewind/pkg/strategy"
)

// Engine replays a closed-bar series through the full decision path
// (pipeline, risk gate, position lifecycle) against the paper broker and
// summarizes the session.
type Engine struct {
	Symbol   string
	Interval market.Interval
	Bars     []market.Bar

	Strategy *strategy.Config
	Risk     *risk.Config
	Position *position.Config

	InitialEquity float64 // defaults to 100000 if zero
	SlippageBps   float64
	// OutputPath optionally receives a JSON report of the run.
	OutputPath string
}

// Run simulates the session. It is deterministic for a given bar series and
// configuration.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.Symbol == "" || len(e.Bars) == 0 {
		return nil, errors.New("backtest: engine not fully configured")
	}
	equity := e.InitialEquity
	if equity <= 0 {
		equity = 100000
	}

	broker := sim.NewWithEquity(equity)
	if e.SlippageBps > 0 {
		broker.SetSlippageBps(e.SlippageBps)
	}

	riskCfg := e.Risk
	if riskCfg == nil {
		riskCfg = risk.DefaultConfig()
	}
	budget := risk.NewBudget(riskCfg)
	breaker := risk.NewBreaker(riskCfg)
	rmgr := risk.NewManager(riskCfg, budget, breaker)

	posCfg := e.Position
	if posCfg == nil {
		posCfg = position.DefaultConfig()
	}
	pmgr := position.NewManager(posCfg, broker, budget, breaker)

	res := &Result{}
	pmgr.OnTransition(func(p position.Position, from, to position.State) {
		if to != position.StateClosed {
			return
		}
		res.Trades++
		res.RealizedPnL += p.RealizedPnL
		if p.RealizedPnL > 0 {
			res.Wins++
		}
	})

	pipeline, err := strategy.NewPipeline(e.Strategy, e.Symbol, e.Interval)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	for _, bar := range e.Bars {
		if err := broker.SetMarkPrice(e.Symbol, bar.Close); err != nil {
			return nil, fmt.Errorf("backtest: %w", err)
		}
		pmgr.OnPrice(ctx, e.Symbol, bar.Close)

		eval, err := pipeline.OnBar(bar)
		if err != nil {
			// Out-of-order or duplicate bars are skipped, as live mode
			// would skip them.
			continue
		}
		res.Steps++
		if eval.Signal != nil {
			res.Signals++
			e.tryEnter(ctx, rmgr, pmgr, broker, eval.Signal, posCfg, bar.Close, res)
		}

		account, err := broker.GetAccountState(ctx)
		if err != nil {
			return nil, fmt.Errorf("backtest: %w", err)
		}
		res.EquityCurve = append(res.EquityCurve, account.Equity)
	}

	// Flatten whatever survived the series so realized PnL is complete.
	pmgr.FlattenAll(ctx)
	if last := len(e.Bars) - 1; last >= 0 {
		pmgr.OnPrice(ctx, e.Symbol, e.Bars[last].Close)
	}

	account, err := broker.GetAccountState(ctx)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	res.FinalEquity = account.Equity
	if res.Trades > 0 {
		res.WinRate = float64(res.Wins) / float64(res.Trades)
	}
	res.MaxDDPct = maxDrawdownPct(append([]float64{equity}, res.EquityCurve...))
	res.Sharpe = sharpe(res.EquityCurve)

	if e.OutputPath != "" {
		if err := writeReport(e.OutputPath, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (e *Engine) tryEnter(ctx context.Context, rmgr *risk.Manager, pmgr *position.Manager,
	broker exchange.Provider, sig *strategy.Signal, posCfg *position.Config, price float64, res *Result) {

	account, err := broker.GetAccountState(ctx)
	if err != nil {
		return
	}
	view := *account
	held := make(map[string]struct{}, len(view.Positions))
	for _, v := range view.Positions {
		held[v.Symbol] = struct{}{}
	}
	for _, v := range pmgr.ActiveViews() {
		if _, dup := held[v.Symbol]; !dup {
			view.Positions = append(view.Positions, v)
		}
	}

	decision, err := rmgr.Evaluate(sig, view, risk.EntryPlan{
		EntryPrice:   price,
		StopDistance: price * posCfg.StopLossPct,
	})
	if err != nil || !decision.Approved {
		return
	}
	if _, err := pmgr.OpenPosition(ctx, sig, decision.Quantity); err == nil {
		res.Entries++
	}
}
