package domain

import "github.com/shopspring/decimal"

// Fees represents the trading fees for a pair on an exchange.
// Fees are expressed as decimals (e.g., 0.001 for 0.1%).
type Fees struct {
	// Maker fee, for limit orders that add liquidity
	Maker decimal.Decimal `json:"maker"`
	// Taker fee, for orders that remove liquidity
	Taker decimal.Decimal `json:"taker"`
}

// NewFees creates a Fees value
func NewFees(maker, taker decimal.Decimal) Fees {
	return Fees{Maker: maker, Taker: taker}
}
