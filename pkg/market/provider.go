package market

import "context"

// Provider supplies an ordered stream of closed bars for a (symbol, interval).
// Transport concerns such as reconnection and heartbeats live behind this
// interface; consumers only see closed bars and must tolerate gaps in the
// stream.
type Provider interface {
	// Bars opens a stream of closed bars. The channel is closed when the
	// source is exhausted or the context is cancelled.
	Bars(ctx context.Context, symbol string, interval Interval) (<-chan Bar, error)
}
