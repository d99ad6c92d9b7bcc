package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel represents a single price level in an orderbook
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Orderbook represents the current state of bids and asks for a trading pair
type Orderbook struct {
	// Pair is the trading pair in "BASE/QUOTE" format (e.g., "BTC/USDT")
	Pair string `json:"pair"`
	// Exchange is the name of the exchange this orderbook belongs to
	Exchange string `json:"exchange"`
	// Bids are sorted from highest to lowest price
	Bids []PriceLevel `json:"bids"`
	// Asks are sorted from lowest to highest price
	Asks []PriceLevel `json:"asks"`
	// Timestamp is when this orderbook was captured
	Timestamp time.Time `json:"timestamp"`
}

// BestBid returns the highest bid level, or nil if there are no bids
func (ob *Orderbook) BestBid() *PriceLevel {
	if len(ob.Bids) == 0 {
		return nil
	}
	return &ob.Bids[0]
}

// BestAsk returns the lowest ask level, or nil if there are no asks
func (ob *Orderbook) BestAsk() *PriceLevel {
	if len(ob.Asks) == 0 {
		return nil
	}
	return &ob.Asks[0]
}

// Spread returns the difference between the best ask and best bid.
// The second return value is false when either side is empty.
func (ob *Orderbook) Spread() (decimal.Decimal, bool) {
	bid, ask := ob.BestBid(), ob.BestAsk()
	if bid == nil || ask == nil {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}
