package exchange

import (
	"context"

	"github.com/arbi-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// Exchange is the interface every exchange integration implements.
// The manager and the bot treat all implementations identically.
type Exchange interface {
	// Connect establishes connection to the exchange API and verifies
	// reachability. Returns a *ConnectionError on failure.
	Connect(ctx context.Context) error

	// Disconnect closes all connections to the exchange. It tears down any
	// open orderbook stream and is safe to call multiple times.
	Disconnect(ctx context.Context) error

	// IsConnected returns true if the exchange connection is active.
	// It performs no I/O.
	IsConnected() bool

	// GetOrderbook fetches the current orderbook snapshot for a trading
	// pair. The pair format is "BASE/QUOTE" (e.g., "BTC/USDT").
	GetOrderbook(ctx context.Context, pair string) (*domain.Orderbook, error)

	// SubscribeOrderbook opens a real-time orderbook stream for the given
	// pairs. The returned channel is closed when the stream terminates;
	// the caller resubscribes if it wants the stream back. Transient
	// disconnects are handled internally by reconnecting.
	SubscribeOrderbook(ctx context.Context, pairs []string) (<-chan domain.Orderbook, error)

	// PlaceOrder submits an order. The returned trade carries the filled
	// quantity, which is zero when the order rested without executing.
	PlaceOrder(ctx context.Context, order domain.Order) (*domain.Trade, error)

	// CancelOrder cancels an open order by its exchange-assigned ID.
	CancelOrder(ctx context.Context, orderID string) error

	// GetOrder retrieves the current state of an order by its ID.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// GetBalances returns available balances for all assets with a
	// non-zero balance, keyed by asset symbol (e.g., "BTC").
	GetBalances(ctx context.Context) (map[string]decimal.Decimal, error)

	// GetFees returns the maker and taker fees for a trading pair.
	GetFees(pair string) domain.Fees

	// Name returns the unique identifier of this exchange (e.g., "poloniex").
	Name() string

	// SupportedPairs returns the trading pairs available on this exchange
	// in "BASE/QUOTE" format.
	SupportedPairs() []string
}
