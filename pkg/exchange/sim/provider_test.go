package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tradewind/pkg/exchange"
)

func TestSubmitThenPollFills(t *testing.T) {
	p := New()
	ctx := context.Background()
	require.NoError(t, p.SetMarkPrice("BTC", 50000))

	oid, err := p.SubmitOrder(ctx, exchange.OrderRequest{
		ClientID: "c-1",
		Symbol:   "btc",
		Side:     exchange.SideBuy,
		Quantity: 0.5,
		Type:     exchange.OrderTypeMarket,
	})
	require.NoError(t, err)
	require.NotEmpty(t, oid)

	state, err := p.OrderStatus(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderFilled, state.Status)
	require.Equal(t, "c-1", state.ClientID)
	require.InDelta(t, 50000.0, state.FilledPrice, 1e-9)
	require.InDelta(t, 0.5, state.FilledQty, 1e-9)

	acct, err := p.GetAccountState(ctx)
	require.NoError(t, err)
	require.Len(t, acct.Positions, 1)
	require.InDelta(t, 0.5, acct.Positions[0].Quantity, 1e-9)
}

func TestHoldFillsKeepsOrderPending(t *testing.T) {
	p := New()
	ctx := context.Background()
	require.NoError(t, p.SetMarkPrice("ETH", 2000))
	p.HoldFills(true)

	oid, err := p.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: "ETH", Side: exchange.SideBuy, Quantity: 1, Type: exchange.OrderTypeMarket,
	})
	require.NoError(t, err)

	state, err := p.OrderStatus(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderPending, state.Status)

	p.HoldFills(false)
	state, err = p.OrderStatus(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderFilled, state.Status)
}

func TestRoundTripRealizedPnL(t *testing.T) {
	p := New()
	ctx := context.Background()
	require.NoError(t, p.SetMarkPrice("SOL", 100))

	oid, err := p.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: "SOL", Side: exchange.SideBuy, Quantity: 10, Type: exchange.OrderTypeMarket,
	})
	require.NoError(t, err)
	_, err = p.OrderStatus(ctx, oid)
	require.NoError(t, err)

	require.NoError(t, p.SetMarkPrice("SOL", 110))
	oid, err = p.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: "SOL", Side: exchange.SideSell, Quantity: 10, Type: exchange.OrderTypeMarket, ReduceOnly: true,
	})
	require.NoError(t, err)
	state, err := p.OrderStatus(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderFilled, state.Status)

	acct, err := p.GetAccountState(ctx)
	require.NoError(t, err)
	require.Empty(t, acct.Positions)
	require.InDelta(t, defaultInitialEquity+100.0, acct.Cash, 1e-6)
}

func TestRejectSymbol(t *testing.T) {
	p := New()
	ctx := context.Background()
	p.RejectSymbol("DOGE", "not tradable")

	oid, err := p.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: "DOGE", Side: exchange.SideBuy, Quantity: 100, Type: exchange.OrderTypeMarket,
	})
	require.NoError(t, err)
	state, err := p.OrderStatus(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderRejected, state.Status)
	require.Equal(t, "not tradable", state.RejectReason)
}

func TestFailSubmits(t *testing.T) {
	p := New()
	ctx := context.Background()
	p.FailSubmits(1)

	_, err := p.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: "BTC", Side: exchange.SideBuy, Quantity: 1, Type: exchange.OrderTypeMarket,
	})
	require.Error(t, err)

	_, err = p.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: "BTC", Side: exchange.SideBuy, Quantity: 1, Type: exchange.OrderTypeMarket,
	})
	require.NoError(t, err)
}

func TestCancelPendingOrder(t *testing.T) {
	p := New()
	ctx := context.Background()
	p.HoldFills(true)

	oid, err := p.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: "BTC", Side: exchange.SideSell, Quantity: 1, Type: exchange.OrderTypeMarket,
	})
	require.NoError(t, err)
	require.NoError(t, p.CancelOrder(ctx, oid))

	state, err := p.OrderStatus(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderRejected, state.Status)
	require.Equal(t, "cancelled", state.RejectReason)
}

func TestReduceOnlyNeverFlips(t *testing.T) {
	p := New()
	ctx := context.Background()
	require.NoError(t, p.SetMarkPrice("BTC", 100))

	oid, _ := p.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: "BTC", Side: exchange.SideBuy, Quantity: 1, Type: exchange.OrderTypeMarket,
	})
	_, err := p.OrderStatus(ctx, oid)
	require.NoError(t, err)

	// Oversized reduce-only close caps at the open quantity.
	oid, _ = p.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: "BTC", Side: exchange.SideSell, Quantity: 5, Type: exchange.OrderTypeMarket, ReduceOnly: true,
	})
	state, err := p.OrderStatus(ctx, oid)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderFilled, state.Status)
	require.InDelta(t, 1.0, state.FilledQty, 1e-9)

	acct, err := p.GetAccountState(ctx)
	require.NoError(t, err)
	require.Empty(t, acct.Positions)
}
