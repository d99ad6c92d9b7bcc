package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityType represents the kind of arbitrage opportunity
type OpportunityType string

const (
	// OpportunityTypeCrossExchange is arbitrage between two different exchanges
	OpportunityTypeCrossExchange OpportunityType = "cross_exchange"
)

// ParseOpportunityType parses an opportunity type from its string form
func ParseOpportunityType(s string) (OpportunityType, error) {
	switch s {
	case string(OpportunityTypeCrossExchange):
		return OpportunityTypeCrossExchange, nil
	default:
		return "", fmt.Errorf("unknown opportunity type: %s", s)
	}
}

// Opportunity represents a detected arbitrage opportunity
type Opportunity struct {
	ID   string          `json:"id"`
	Type OpportunityType `json:"type"`
	Pair string          `json:"pair"`
	// BuyExchange is where to buy (holds the lower ask)
	BuyExchange string `json:"buy_exchange"`
	// SellExchange is where to sell (holds the higher bid)
	SellExchange string          `json:"sell_exchange"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	// Quantity is the maximum amount that can be traded
	Quantity decimal.Decimal `json:"quantity"`
	// GrossProfit is profit before fees
	GrossProfit decimal.Decimal `json:"gross_profit"`
	// NetProfit is profit after all fees
	NetProfit decimal.Decimal `json:"net_profit"`
	// ProfitPercent is net profit as a fraction of the trade value
	ProfitPercent decimal.Decimal `json:"profit_percent"`
	BuyFee        decimal.Decimal `json:"buy_fee"`
	SellFee       decimal.Decimal `json:"sell_fee"`
	DetectedAt    time.Time       `json:"detected_at"`
	// ExpiresAt is when this opportunity is considered stale
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the opportunity is past its expiry time
func (o *Opportunity) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

// IsProfitable returns true if the net profit is positive
func (o *Opportunity) IsProfitable() bool {
	return o.NetProfit.IsPositive()
}
