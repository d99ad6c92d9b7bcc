package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/arbi-bot/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testOpportunity() *domain.Opportunity {
	// fixed detection time well inside a dedup window
	now := time.Date(2026, 1, 15, 10, 2, 0, 0, time.UTC)
	return &domain.Opportunity{
		ID:            uuid.NewString(),
		Type:          domain.OpportunityTypeCrossExchange,
		Pair:          "BTC/USDT",
		BuyExchange:   "poloniex",
		SellExchange:  "gate",
		BuyPrice:      decimal.NewFromInt(50000),
		SellPrice:     decimal.NewFromInt(50200),
		Quantity:      decimal.NewFromFloat(0.5),
		GrossProfit:   decimal.NewFromInt(100),
		NetProfit:     decimal.NewFromFloat(22.35),
		ProfitPercent: decimal.NewFromFloat(0.0893),
		BuyFee:        decimal.NewFromFloat(38.75),
		SellFee:       decimal.NewFromFloat(38.9),
		DetectedAt:    now,
		ExpiresAt:     now.Add(3 * time.Second),
	}
}

func TestSaveAndGetByID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	op := testOpportunity()
	created, err := s.Save(ctx, op)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := s.GetByID(ctx, op.ID)
	require.NoError(t, err)

	assert.Equal(t, op.ID, got.ID)
	assert.Equal(t, op.Pair, got.Pair)
	assert.Equal(t, op.BuyExchange, got.BuyExchange)
	assert.Equal(t, op.SellExchange, got.SellExchange)
	assert.True(t, op.BuyPrice.Equal(got.BuyPrice))
	assert.True(t, op.NetProfit.Equal(got.NetProfit))
	assert.True(t, op.ProfitPercent.Equal(got.ProfitPercent))
}

func TestGetByIDNotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOpportunityNotFound)
}

func TestSaveDeduplicates(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	op := testOpportunity()
	created, err := s.Save(ctx, op)
	require.NoError(t, err)
	assert.True(t, created)

	// same opportunity detected again moments later, new ID
	dup := testOpportunity()
	dup.DetectedAt = op.DetectedAt.Add(time.Second)
	created, err = s.Save(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created, "equivalent opportunity in same window should be skipped")

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSaveDistinctOpportunities(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first := testOpportunity()
	created, err := s.Save(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := testOpportunity()
	second.Pair = "ETH/USDT"
	created, err = s.Save(ctx, second)
	require.NoError(t, err)
	assert.True(t, created)

	third := testOpportunity()
	third.ProfitPercent = decimal.NewFromFloat(1.5)
	created, err = s.Save(ctx, third)
	require.NoError(t, err)
	assert.True(t, created, "different profit rounds to a different identity")

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestGetAllOrdered(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	older := testOpportunity()
	older.DetectedAt = older.DetectedAt.Add(-10 * time.Minute)

	newer := testOpportunity()
	newer.Pair = "ETH/USDT"

	_, err := s.Save(ctx, older)
	require.NoError(t, err)
	_, err = s.Save(ctx, newer)
	require.NoError(t, err)

	all, err := s.GetAll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID, "newest first")

	limited, err := s.GetAll(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetByPair(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	btc := testOpportunity()
	eth := testOpportunity()
	eth.Pair = "ETH/USDT"

	_, err := s.Save(ctx, btc)
	require.NoError(t, err)
	_, err = s.Save(ctx, eth)
	require.NoError(t, err)

	got, err := s.GetByPair(ctx, "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, btc.ID, got[0].ID)
}
