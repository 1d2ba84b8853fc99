package sim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tradewind/pkg/exchange"
)

const (
	defaultInitialEquity = 100000.0
	defaultFallbackPrice = 100.0
)

// Provider is a paper-trading broker that keeps positions, equity and order
// state in-memory. Fills are asynchronous in the same sense as a real venue:
// SubmitOrder only books the order, the fill is observed on the next
// OrderStatus poll.
type Provider struct {
	mu sync.Mutex

	markPx    map[string]float64
	positions map[string]*positionState
	orders    map[string]*simOrder

	initialEquity float64
	cash          float64
	slippageBps   float64

	// Test hooks.
	failSubmits   int
	holdFills     bool
	rejectSymbols map[string]string
}

type positionState struct {
	Symbol string
	Qty    float64 // positive long, negative short
	Entry  float64 // average entry price
}

type simOrder struct {
	state exchange.OrderState
	req   exchange.OrderRequest
}

// New constructs a new simulator instance with default equity.
func New() *Provider {
	return NewWithEquity(defaultInitialEquity)
}

// NewWithEquity constructs a simulator with the provided starting cash.
func NewWithEquity(equity float64) *Provider {
	if equity <= 0 {
		equity = defaultInitialEquity
	}
	return &Provider{
		markPx:        make(map[string]float64),
		positions:     make(map[string]*positionState),
		orders:        make(map[string]*simOrder),
		initialEquity: equity,
		cash:          equity,
		rejectSymbols: make(map[string]string),
	}
}

func canonical(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }

// SetMarkPrice updates the reference price used for fills and unrealized PnL.
func (p *Provider) SetMarkPrice(symbol string, price float64) error {
	if price <= 0 {
		return fmt.Errorf("sim: mark price must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markPx[canonical(symbol)] = price
	return nil
}

// SetSlippageBps adjusts the simulated execution slippage.
func (p *Provider) SetSlippageBps(bps float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slippageBps = bps
}

// FailSubmits makes the next n SubmitOrder calls return an error. Test hook.
func (p *Provider) FailSubmits(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSubmits = n
}

// HoldFills keeps submitted orders pending until released. Test hook for
// timeout and retry paths.
func (p *Provider) HoldFills(hold bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdFills = hold
}

// RejectSymbol makes orders on the given symbol come back rejected. Test hook.
func (p *Provider) RejectSymbol(symbol, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectSymbols[canonical(symbol)] = reason
}

// SubmitOrder books an order and returns its broker ID. The order stays
// pending until the next OrderStatus poll observes the fill.
func (p *Provider) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	symbol := canonical(req.Symbol)
	if symbol == "" {
		return "", fmt.Errorf("sim: order symbol is required")
	}
	if req.Quantity <= 0 {
		return "", fmt.Errorf("sim: order quantity must be positive")
	}
	if req.Side != exchange.SideBuy && req.Side != exchange.SideSell {
		return "", fmt.Errorf("sim: invalid order side %q", req.Side)
	}
	if req.Type == exchange.OrderTypeLimit && req.LimitPrice <= 0 {
		return "", fmt.Errorf("sim: limit order requires a positive limit price")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failSubmits > 0 {
		p.failSubmits--
		return "", fmt.Errorf("sim: submit temporarily unavailable")
	}

	oid := uuid.NewString()
	req.Symbol = symbol
	p.orders[oid] = &simOrder{
		state: exchange.OrderState{
			OrderID:  oid,
			ClientID: req.ClientID,
			Symbol:   symbol,
			Side:     req.Side,
			Status:   exchange.OrderPending,
		},
		req: req,
	}
	return oid, nil
}

// OrderStatus reports, and where due settles, the state of an order.
func (p *Provider) OrderStatus(ctx context.Context, orderID string) (*exchange.OrderState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ord, ok := p.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("sim: unknown order %s", orderID)
	}
	if ord.state.Status == exchange.OrderPending && !p.holdFills {
		p.settleLocked(ord)
	}
	state := ord.state
	return &state, nil
}

func (p *Provider) settleLocked(ord *simOrder) {
	if reason, bad := p.rejectSymbols[ord.state.Symbol]; bad {
		ord.state.Status = exchange.OrderRejected
		if reason == "" {
			reason = "symbol rejected"
		}
		ord.state.RejectReason = reason
		return
	}

	price := p.resolveMarkPriceLocked(ord.state.Symbol)
	if ord.req.Type == exchange.OrderTypeLimit && ord.req.LimitPrice > 0 {
		price = ord.req.LimitPrice
	}
	price = p.applySlippageLocked(price, ord.req.Side == exchange.SideBuy)

	realized, filled := p.applyFillLocked(ord.state.Symbol, price, ord.req.Quantity, ord.req.Side == exchange.SideBuy, ord.req.ReduceOnly)
	if filled <= 0 {
		ord.state.Status = exchange.OrderRejected
		ord.state.RejectReason = "nothing to fill"
		return
	}
	p.cash += realized
	p.markPx[ord.state.Symbol] = price

	ord.state.Status = exchange.OrderFilled
	ord.state.FilledPrice = price
	ord.state.FilledQty = filled
}

func (p *Provider) applySlippageLocked(price float64, isBuy bool) float64 {
	if p.slippageBps <= 0 {
		return price
	}
	m := 1 + p.slippageBps/10000.0
	if isBuy {
		return price * m
	}
	return price / m
}

func (p *Provider) applyFillLocked(symbol string, price, size float64, isBuy, reduceOnly bool) (float64, float64) {
	state := p.positions[symbol]
	if reduceOnly && (state == nil || state.Qty == 0) {
		return 0, 0
	}
	if state == nil {
		state = &positionState{Symbol: symbol}
		p.positions[symbol] = state
	}

	execSize := size
	delta := execSize
	if !isBuy {
		delta = -execSize
	}

	if reduceOnly {
		if state.Qty*delta > 0 {
			return 0, 0
		}
		maxQty := math.Abs(state.Qty)
		if execSize > maxQty {
			execSize = maxQty
		}
		if execSize <= 0 {
			return 0, 0
		}
		delta = execSize
		if !isBuy {
			delta = -execSize
		}
	}

	oldQty := state.Qty
	newQty := oldQty + delta

	realized := 0.0
	if oldQty != 0 && oldQty*delta < 0 {
		closeQty := math.Min(math.Abs(oldQty), math.Abs(delta))
		dir := 1.0
		if oldQty < 0 {
			dir = -1.0
		}
		realized = closeQty * (price - state.Entry) * dir
	}

	switch {
	case oldQty == 0:
		state.Entry = price
	case oldQty*delta > 0:
		state.Entry = ((oldQty * state.Entry) + (delta * price)) / newQty
	case oldQty*delta < 0:
		if newQty == 0 || oldQty*newQty < 0 {
			state.Entry = price
		}
	}

	state.Qty = newQty
	if math.Abs(state.Qty) < 1e-10 {
		state.Qty = 0
	}
	if state.Qty == 0 {
		state.Entry = 0
		delete(p.positions, symbol)
	}
	return realized, math.Abs(delta)
}

// CancelOrder cancels a pending order.
func (p *Provider) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ord, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("sim: unknown order %s", orderID)
	}
	if ord.state.Status == exchange.OrderFilled {
		return fmt.Errorf("sim: order %s already filled", orderID)
	}
	ord.state.Status = exchange.OrderRejected
	ord.state.RejectReason = "cancelled"
	return nil
}

// GetAccountState returns a snapshot with equity, buying power and positions.
func (p *Provider) GetAccountState(ctx context.Context) (*exchange.AccountState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	views := make([]exchange.PositionView, 0, len(p.positions))
	unrealized := 0.0
	notional := 0.0
	for symbol, state := range p.positions {
		mark := p.resolveMarkPriceLocked(symbol)
		pnl := state.Qty * (mark - state.Entry)
		unrealized += pnl
		notional += math.Abs(state.Qty * mark)
		views = append(views, exchange.PositionView{
			Symbol:        symbol,
			Quantity:      state.Qty,
			EntryPrice:    state.Entry,
			MarkPrice:     mark,
			UnrealizedPnL: pnl,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Symbol < views[j].Symbol })

	return &exchange.AccountState{
		Equity:        p.cash + unrealized,
		Cash:          p.cash,
		BuyingPower:   math.Max(0, p.cash+unrealized-notional),
		UnrealizedPnL: unrealized,
		Positions:     views,
	}, nil
}

func (p *Provider) resolveMarkPriceLocked(symbol string) float64 {
	if price, ok := p.markPx[symbol]; ok && price > 0 {
		return price
	}
	if state, ok := p.positions[symbol]; ok && state.Entry > 0 {
		return state.Entry
	}
	return defaultFallbackPrice
}

// Registry hook for exchange.Config.
func init() {
	exchange.RegisterProvider("sim", func(name string, cfg *exchange.ProviderConfig) (exchange.Provider, error) {
		p := NewWithEquity(cfg.InitialEquity)
		if cfg.SlippageBps > 0 {
			p.SetSlippageBps(cfg.SlippageBps)
		}
		return p, nil
	})
}
