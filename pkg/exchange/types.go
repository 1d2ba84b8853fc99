package exchange

// Core order domain types shared across broker implementations. The shapes
// stay broker-agnostic so additional venues can be added without touching
// the position lifecycle.

// Side represents order direction.
type Side string

const (
	// SideBuy executes a buy.
	SideBuy Side = "buy"
	// SideSell executes a sell.
	SideSell Side = "sell"
)

// Opposite returns the closing side for an entry side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType selects the execution style of an order.
type OrderType string

const (
	// OrderTypeMarket fills at the prevailing price.
	OrderTypeMarket OrderType = "market"
	// OrderTypeLimit fills at the limit price or better.
	OrderTypeLimit OrderType = "limit"
)

// OrderRequest describes a normalized order submission.
type OrderRequest struct {
	ClientID   string    // Caller-supplied correlation ID.
	Symbol     string    // Instrument symbol.
	Side       Side      // buy or sell.
	Quantity   float64   // Size in base units, always positive.
	Type       OrderType // market or limit.
	LimitPrice float64   // Required for limit orders.
	ReduceOnly bool      // Order may only reduce an existing position.
}

// OrderStatusValue is the lifecycle state reported for a submitted order.
type OrderStatusValue string

const (
	OrderPending  OrderStatusValue = "pending"
	OrderFilled   OrderStatusValue = "filled"
	OrderRejected OrderStatusValue = "rejected"
)

// OrderState is the broker's view of a submitted order.
type OrderState struct {
	OrderID      string
	ClientID     string
	Symbol       string
	Side         Side
	Status       OrderStatusValue
	FilledPrice  float64 // Set once Status == OrderFilled.
	FilledQty    float64
	RejectReason string // Set once Status == OrderRejected.
}

// PositionView is the broker's view of an open position.
type PositionView struct {
	Symbol        string
	Quantity      float64 // Signed: positive long, negative short.
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
}

// AccountState summarizes the trading account.
type AccountState struct {
	Equity        float64 // Cash plus unrealized PnL.
	Cash          float64
	BuyingPower   float64
	UnrealizedPnL float64
	Positions     []PositionView
}
