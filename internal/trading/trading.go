package trading

import (
	"context"

	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
)

// Connector establishes the broker session.
type Connector interface {
	// Connect makes sure the broker session is usable. It is idempotent and safe
	// to call when already connected.
	Connect(ctx context.Context) error
}

// QuoteSource supplies prices for the tracked instrument on demand.
type QuoteSource interface {
	// GetQuote returns the latest last/close snapshot.
	GetQuote(ctx context.Context, instrument types.Instrument) (types.Quote, error)
}

// PositionSource supplies the exchange's authoritative net position.
type PositionSource interface {
	// GetPosition returns the signed quantity for the instrument (0 and Found=false
	// when the broker has no entry for it).
	GetPosition(ctx context.Context, instrument types.Instrument) (types.PositionSnapshot, error)
}

// OrderSink accepts new orders and cancellations.
type OrderSink interface {
	// SubmitOrder submits one order leg and returns the broker-assigned id.
	SubmitOrder(ctx context.Context, instrument types.Instrument, order types.Order) (types.SubmittedOrder, error)
	// CancelOrder cancels a working order by id.
	CancelOrder(ctx context.Context, instrument types.Instrument, orderID int64) error
	// GetOpenOrders returns all working orders for the instrument.
	GetOpenOrders(ctx context.Context, instrument types.Instrument) ([]types.OpenOrder, error)
}

// Broker is everything the signal engine needs from the outside world.
type Broker interface {
	// Name returns the provider name used in logs and metrics.
	Name() string
	Connector
	QuoteSource
	PositionSource
	OrderSink
}
