package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func level(price, qty string) PriceLevel {
	p, _ := decimal.NewFromString(price)
	q, _ := decimal.NewFromString(qty)
	return PriceLevel{Price: p, Quantity: q}
}

func TestOrderbookBestLevels(t *testing.T) {
	ob := &Orderbook{
		Pair:     "BTC/USDT",
		Exchange: "poloniex",
		Bids:     []PriceLevel{level("50000", "0.5"), level("49900", "1.0")},
		Asks:     []PriceLevel{level("50100", "0.3"), level("50200", "2.0")},
	}

	bid := ob.BestBid()
	require.NotNil(t, bid)
	assert.Equal(t, "50000", bid.Price.String())

	ask := ob.BestAsk()
	require.NotNil(t, ask)
	assert.Equal(t, "50100", ask.Price.String())
}

func TestOrderbookBestLevelsEmpty(t *testing.T) {
	ob := &Orderbook{Pair: "BTC/USDT"}
	assert.Nil(t, ob.BestBid())
	assert.Nil(t, ob.BestAsk())
}

func TestOrderbookSpread(t *testing.T) {
	ob := &Orderbook{
		Bids: []PriceLevel{level("50000", "0.5")},
		Asks: []PriceLevel{level("50100", "0.3")},
	}

	spread, ok := ob.Spread()
	require.True(t, ok)
	assert.Equal(t, "100", spread.String())
}

func TestOrderbookSpreadEmptySide(t *testing.T) {
	ob := &Orderbook{Asks: []PriceLevel{level("50100", "0.3")}}
	_, ok := ob.Spread()
	assert.False(t, ok)
}

func TestOpportunityExpiry(t *testing.T) {
	fresh := &Opportunity{ExpiresAt: time.Now().Add(time.Minute)}
	assert.False(t, fresh.IsExpired())

	stale := &Opportunity{ExpiresAt: time.Now().Add(-time.Minute)}
	assert.True(t, stale.IsExpired())
}

func TestOpportunityProfitability(t *testing.T) {
	winner := &Opportunity{NetProfit: decimal.NewFromFloat(0.5)}
	assert.True(t, winner.IsProfitable())

	loser := &Opportunity{NetProfit: decimal.NewFromFloat(-0.1)}
	assert.False(t, loser.IsProfitable())

	breakeven := &Opportunity{NetProfit: decimal.Zero}
	assert.False(t, breakeven.IsProfitable())
}

func TestParseOpportunityType(t *testing.T) {
	parsed, err := ParseOpportunityType("cross_exchange")
	require.NoError(t, err)
	assert.Equal(t, OpportunityTypeCrossExchange, parsed)

	_, err = ParseOpportunityType("triangular")
	assert.Error(t, err)
}
