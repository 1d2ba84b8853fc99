package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"tradewind/pkg/exchange"
	"tradewind/pkg/risk"
	"tradewind/pkg/strategy"
)

// Execution collaborator failures.
var (
	ErrExecutionTimeout  = errors.New("position: execution timed out")
	ErrExecutionRejected = errors.New("position: execution rejected")
)

// Archiver persists closed positions. internal/repo implements it over
// Postgres; nil disables archiving.
type Archiver interface {
	ArchiveClosed(ctx context.Context, p Position) error
}

// TransitionFunc observes every state transition, for the event surface.
type TransitionFunc func(p Position, from, to State)

type retryState struct {
	attempts int
	nextAt   time.Time
}

// Manager owns every position's lifecycle: entry confirmation, per-tick
// monitoring, exit execution with bounded-backoff retry, and close
// accounting into the shared risk budget. All position mutations happen
// under one mutex; symbols share the manager safely.
type Manager struct {
	cfg     *Config
	broker  exchange.Provider
	budget  *risk.Budget
	breaker *risk.Breaker

	archive      Archiver
	store        *CheckpointStore
	onTransition TransitionFunc

	mu        sync.Mutex
	positions map[string]*Position
	retries   map[string]*retryState

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager wires the lifecycle manager to the broker and the shared risk
// singletons.
func NewManager(cfg *Config, broker exchange.Provider, budget *risk.Budget, breaker *risk.Breaker) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Manager{
		cfg:       cfg,
		broker:    broker,
		budget:    budget,
		breaker:   breaker,
		positions: make(map[string]*Position),
		retries:   make(map[string]*retryState),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// SetArchiver installs the closed-position archive.
func (m *Manager) SetArchiver(a Archiver) { m.archive = a }

// SetCheckpoint installs the crash/restart checkpoint store.
func (m *Manager) SetCheckpoint(s *CheckpointStore) { m.store = s }

// OnTransition installs the transition observer.
func (m *Manager) OnTransition(fn TransitionFunc) { m.onTransition = fn }

// Restore reloads non-terminal positions from the checkpoint so monitoring
// resumes from the last confirmed state without re-issuing orders.
func (m *Manager) Restore() error {
	if m.store == nil {
		return nil
	}
	saved, err := m.store.Load()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range saved {
		if p.State.Terminal() {
			continue
		}
		if p.State == StatePendingEntry {
			// The fill was never confirmed; the entry is abandoned rather
			// than re-issued.
			logx.Infow("dropping unconfirmed pending entry from checkpoint",
				logx.Field("id", p.ID), logx.Field("symbol", p.Symbol))
			continue
		}
		m.positions[p.ID] = p
		logx.Infow("restored position from checkpoint",
			logx.Field("id", p.ID),
			logx.Field("symbol", p.Symbol),
			logx.Field("state", string(p.State)))
	}
	return nil
}

// OpenPosition creates a PENDING_ENTRY record for an approved signal,
// submits the entry order and waits for confirmation. Entry failures are
// abandoned, never retried; the candidate is simply discarded.
func (m *Manager) OpenPosition(ctx context.Context, sig *strategy.Signal, quantity float64) (*Position, error) {
	if sig == nil || quantity <= 0 {
		return nil, fmt.Errorf("position: invalid entry request")
	}
	if m.breaker != nil && m.breaker.Tripped() {
		return nil, risk.ErrCircuitTripped
	}

	side := exchange.SideBuy
	if sig.Direction == strategy.DirectionSell {
		side = exchange.SideSell
	}
	p := &Position{
		ID:       uuid.NewString(),
		Symbol:   sig.Symbol,
		Side:     side,
		Quantity: quantity,
		State:    StatePendingEntry,
	}
	m.mu.Lock()
	m.positions[p.ID] = p
	m.transitionLocked(p, "", StatePendingEntry)
	m.mu.Unlock()

	submitCtx, cancel := boundCtx(ctx, m.cfg.EntryTimeout)
	orderID, err := m.broker.SubmitOrder(submitCtx, exchange.OrderRequest{
		ClientID: p.ID,
		Symbol:   p.Symbol,
		Side:     side,
		Quantity: quantity,
		Type:     exchange.OrderTypeMarket,
	})
	cancel()
	if err != nil {
		m.observeExecError()
		m.discard(p)
		return nil, fmt.Errorf("%w: submit entry: %v", ErrExecutionRejected, err)
	}

	m.mu.Lock()
	p.EntryOrderID = orderID
	m.mu.Unlock()

	st, err := m.awaitOrder(ctx, orderID, m.cfg.EntryTimeout)
	if err != nil {
		m.observeExecError()
		if errors.Is(err, ErrExecutionTimeout) {
			if cancelErr := m.broker.CancelOrder(ctx, orderID); cancelErr != nil {
				logx.Errorw("cancel timed-out entry failed",
					logx.Field("id", p.ID), logx.Field("error", cancelErr.Error()))
			}
		}
		m.discard(p)
		return nil, err
	}
	if st.Status == exchange.OrderRejected {
		m.observeExecError()
		m.discard(p)
		return nil, fmt.Errorf("%w: %s", ErrExecutionRejected, st.RejectReason)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p.EntryPrice = st.FilledPrice
	p.OpenedAt = m.now()
	p.FavorableExtreme = st.FilledPrice
	if side == exchange.SideBuy {
		p.StopPrice = st.FilledPrice * (1 - m.cfg.StopLossPct)
		p.TargetPrice = st.FilledPrice * (1 + m.cfg.TakeProfitPct)
		p.TrailingStopPrice = st.FilledPrice * (1 - m.cfg.TrailingStopPct)
	} else {
		p.StopPrice = st.FilledPrice * (1 + m.cfg.StopLossPct)
		p.TargetPrice = st.FilledPrice * (1 - m.cfg.TakeProfitPct)
		p.TrailingStopPrice = st.FilledPrice * (1 + m.cfg.TrailingStopPct)
	}
	m.transitionLocked(p, StatePendingEntry, StateOpen)
	if m.breaker != nil {
		m.breaker.ObserveExecutionSuccess()
	}
	return p, nil
}

// OnPrice feeds one price update to every position on the symbol. Open
// positions evaluate their exits in fixed priority order; closing positions
// drive their exit retry forward. A position in a CLOSING_* state never
// reverts to OPEN.
func (m *Manager) OnPrice(ctx context.Context, symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, p := range m.positions {
		if p.Symbol != symbol {
			continue
		}
		switch {
		case p.State == StateOpen:
			if next, fired := p.evaluateTick(price, now, m.cfg.MaxHold); fired {
				m.transitionLocked(p, StateOpen, next)
				m.attemptExitLocked(ctx, p)
			} else {
				p.ratchetTrail(price, m.cfg.TrailingStopPct)
			}
		case p.State.Closing():
			m.attemptExitLocked(ctx, p)
		}
	}
	m.checkpointLocked()
}

// FlattenAll transitions every OPEN position to CLOSING_MANUAL and starts
// their exits. Positions already closing keep their original exit reason.
func (m *Manager) FlattenAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.State != StateOpen {
			continue
		}
		m.transitionLocked(p, StateOpen, StateClosingManual)
		m.attemptExitLocked(ctx, p)
	}
	m.checkpointLocked()
}

// ActiveViews returns every non-terminal position as a broker-style view,
// so the risk manager counts pending entries against the concurrency and
// same-symbol limits.
func (m *Manager) ActiveViews() []exchange.PositionView {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := make([]exchange.PositionView, 0, len(m.positions))
	for _, p := range m.positions {
		if p.State.Terminal() {
			continue
		}
		qty := p.Quantity
		if p.Side == exchange.SideSell {
			qty = -qty
		}
		views = append(views, exchange.PositionView{
			Symbol:     p.Symbol,
			Quantity:   qty,
			EntryPrice: p.EntryPrice,
		})
	}
	return views
}

// Get returns a copy of the position, if it is still tracked.
func (m *Manager) Get(id string) (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// attemptExitLocked drives one step of the exit for a closing position:
// poll an in-flight order, or submit a new one once the retry backoff has
// elapsed. Failures leave the position in its CLOSING_* state. Broker calls
// run under the manager mutex, so each step is capped at ExitTimeout; a
// broker that stalls past it surfaces as a retryable error instead of
// freezing all monitoring.
func (m *Manager) attemptExitLocked(ctx context.Context, p *Position) {
	ctx, cancel := boundCtx(ctx, m.cfg.ExitTimeout)
	defer cancel()

	if p.ExitOrderID != "" {
		st, err := m.broker.OrderStatus(ctx, p.ExitOrderID)
		if err != nil {
			m.observeExecError()
			return
		}
		switch st.Status {
		case exchange.OrderFilled:
			m.closeLocked(ctx, p, st.FilledPrice)
		case exchange.OrderRejected:
			logx.Errorw("exit order rejected, will retry",
				logx.Field("id", p.ID), logx.Field("reason", st.RejectReason))
			p.ExitOrderID = ""
			m.observeExecError()
			m.bumpRetryLocked(p)
		}
		return
	}

	if rs, ok := m.retries[p.ID]; ok && m.now().Before(rs.nextAt) {
		return
	}

	orderID, err := m.broker.SubmitOrder(ctx, exchange.OrderRequest{
		ClientID:   p.ID + "-exit",
		Symbol:     p.Symbol,
		Side:       p.Side.Opposite(),
		Quantity:   p.Quantity,
		Type:       exchange.OrderTypeMarket,
		ReduceOnly: true,
	})
	if err != nil {
		logx.Errorw("exit submit failed, will retry",
			logx.Field("id", p.ID), logx.Field("error", err.Error()))
		m.observeExecError()
		m.bumpRetryLocked(p)
		return
	}
	p.ExitOrderID = orderID

	st, err := m.broker.OrderStatus(ctx, orderID)
	if err != nil {
		m.observeExecError()
		return
	}
	if st.Status == exchange.OrderFilled {
		m.closeLocked(ctx, p, st.FilledPrice)
	}
}

// closeLocked finalizes a confirmed exit fill: exactly one CLOSED record,
// realized PnL folded into the daily budget, archive and checkpoint.
func (m *Manager) closeLocked(ctx context.Context, p *Position, exitPrice float64) {
	from := p.State
	p.ExitPrice = exitPrice
	p.ClosedAt = m.now()
	p.RealizedPnL = p.realizedPnL(exitPrice)
	m.transitionLocked(p, from, StateClosed)
	delete(m.retries, p.ID)
	delete(m.positions, p.ID)

	if m.budget != nil {
		m.budget.RecordRealizedPnL(p.RealizedPnL)
	}
	if m.breaker != nil {
		m.breaker.ObserveExecutionSuccess()
		m.breaker.ObserveClose(m.budget)
	}
	if m.archive != nil {
		if err := m.archive.ArchiveClosed(ctx, *p); err != nil {
			logx.Errorw("archive closed position failed",
				logx.Field("id", p.ID), logx.Field("error", err.Error()))
		}
	}
	logx.Infow("position closed",
		logx.Field("id", p.ID),
		logx.Field("symbol", p.Symbol),
		logx.Field("via", string(from)),
		logx.Field("pnl", p.RealizedPnL))
}

func (m *Manager) bumpRetryLocked(p *Position) {
	rs := m.retries[p.ID]
	if rs == nil {
		rs = &retryState{}
		m.retries[p.ID] = rs
	}
	backoff := m.cfg.RetryBackoff << rs.attempts
	if backoff > m.cfg.RetryBackoffMax || backoff <= 0 {
		backoff = m.cfg.RetryBackoffMax
	}
	rs.attempts++
	rs.nextAt = m.now().Add(backoff)
}

func (m *Manager) discard(p *Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionLocked(p, p.State, StateDiscarded)
	delete(m.positions, p.ID)
	m.checkpointLocked()
}

func (m *Manager) transitionLocked(p *Position, from, to State) {
	p.State = to
	logx.Infow("position transition",
		logx.Field("id", p.ID),
		logx.Field("symbol", p.Symbol),
		logx.Field("from", string(from)),
		logx.Field("to", string(to)))
	if m.onTransition != nil {
		m.onTransition(*p, from, to)
	}
	m.checkpointLocked()
}

func (m *Manager) checkpointLocked() {
	if m.store == nil {
		return
	}
	snapshot := make([]*Position, 0, len(m.positions))
	for _, p := range m.positions {
		snapshot = append(snapshot, p)
	}
	if err := m.store.Save(snapshot); err != nil {
		logx.Errorw("position checkpoint failed", logx.Field("error", err.Error()))
	}
}

func (m *Manager) awaitOrder(ctx context.Context, orderID string, timeout time.Duration) (*exchange.OrderState, error) {
	ctx, cancel := boundCtx(ctx, timeout)
	defer cancel()
	deadline := m.now().Add(timeout)
	for {
		st, err := m.broker.OrderStatus(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("position: order status: %w", err)
		}
		if st.Status != exchange.OrderPending {
			return st, nil
		}
		if m.now().After(deadline) {
			return nil, ErrExecutionTimeout
		}
		if err := m.sleep(ctx, m.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}

func (m *Manager) observeExecError() {
	if m.breaker != nil {
		m.breaker.ObserveExecutionError()
	}
}

// boundCtx caps one broker call at d. A non-positive d leaves the context
// untouched.
func boundCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
