package exchange

import "context"

// Provider exposes order execution in a broker-agnostic fashion. Every call
// is fallible and asynchronous: a submission must be paired with a status
// poll before the caller finalizes any state transition.
type Provider interface {
	// SubmitOrder places an order and returns the broker order ID. A returned
	// ID does not imply a fill; poll OrderStatus to confirm.
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)

	// OrderStatus reports the current lifecycle state of an order.
	OrderStatus(ctx context.Context, orderID string) (*OrderState, error)

	// CancelOrder cancels a pending order. Cancelling a filled order is an
	// error.
	CancelOrder(ctx context.Context, orderID string) error

	// GetAccountState returns equity, buying power and open positions.
	GetAccountState(ctx context.Context) (*AccountState, error)
}
