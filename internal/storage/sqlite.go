package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/arbi-bot/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// dedupWindow is the granularity of the duplicate-suppression hash. Two
// equivalent opportunities detected within the same window collapse into
// one row.
const dedupWindow = 5 * time.Minute

// opportunityRecord is the database row for an opportunity
type opportunityRecord struct {
	ID            string `gorm:"primaryKey"`
	Type          string
	Pair          string `gorm:"index"`
	BuyExchange   string
	SellExchange  string
	BuyPrice      string
	SellPrice     string
	Quantity      string
	GrossProfit   string
	NetProfit     string
	ProfitPercent string
	BuyFee        string
	SellFee       string
	DetectedAt    time.Time `gorm:"index"`
	ExpiresAt     time.Time
	UniqueHash    string `gorm:"uniqueIndex;size:32"`
	CreatedAt     time.Time
}

func (opportunityRecord) TableName() string {
	return "opportunities"
}

// SQLiteStorage persists opportunities in a local SQLite database
type SQLiteStorage struct {
	db *gorm.DB
}

// NewSQLiteStorage opens (or creates) the database at path and migrates
// the schema
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&opportunityRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Printf("[Storage] SQLite database ready at %s", path)
	return &SQLiteStorage{db: db}, nil
}

// Save stores an opportunity, skipping writes that duplicate a recent
// equivalent one
func (s *SQLiteStorage) Save(ctx context.Context, op *domain.Opportunity) (bool, error) {
	record := toRecord(op)

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "unique_hash"}},
			DoNothing: true,
		}).
		Create(&record)
	if result.Error != nil {
		return false, fmt.Errorf("save opportunity: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// GetByID retrieves an opportunity by its ID
func (s *SQLiteStorage) GetByID(ctx context.Context, id string) (*domain.Opportunity, error) {
	var record opportunityRecord
	result := s.db.WithContext(ctx).First(&record, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOpportunityNotFound
		}
		return nil, result.Error
	}
	return fromRecord(&record)
}

// GetAll retrieves the most recent opportunities, newest first
func (s *SQLiteStorage) GetAll(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	var records []opportunityRecord
	result := s.db.WithContext(ctx).
		Order("detected_at DESC").
		Limit(limit).
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return fromRecords(records)
}

// GetByPair retrieves the most recent opportunities for a pair
func (s *SQLiteStorage) GetByPair(ctx context.Context, pair string, limit int) ([]domain.Opportunity, error) {
	var records []opportunityRecord
	result := s.db.WithContext(ctx).
		Where("pair = ?", pair).
		Order("detected_at DESC").
		Limit(limit).
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return fromRecords(records)
}

// Count returns the total number of stored opportunities
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&opportunityRecord{}).Count(&count)
	return count, result.Error
}

// Close closes the underlying database connection
func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// uniqueHash collapses equivalent opportunities detected within the same
// time window into one identity
func uniqueHash(op *domain.Opportunity) string {
	window := op.DetectedAt.Truncate(dedupWindow).UTC().Format("2006-01-02T15:04")
	key := fmt.Sprintf("%s|%s|%s|%s|%s",
		op.Pair,
		op.BuyExchange,
		op.SellExchange,
		op.ProfitPercent.Round(2).String(),
		window)

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

func toRecord(op *domain.Opportunity) opportunityRecord {
	return opportunityRecord{
		ID:            op.ID,
		Type:          string(op.Type),
		Pair:          op.Pair,
		BuyExchange:   op.BuyExchange,
		SellExchange:  op.SellExchange,
		BuyPrice:      op.BuyPrice.String(),
		SellPrice:     op.SellPrice.String(),
		Quantity:      op.Quantity.String(),
		GrossProfit:   op.GrossProfit.String(),
		NetProfit:     op.NetProfit.String(),
		ProfitPercent: op.ProfitPercent.String(),
		BuyFee:        op.BuyFee.String(),
		SellFee:       op.SellFee.String(),
		DetectedAt:    op.DetectedAt,
		ExpiresAt:     op.ExpiresAt,
		UniqueHash:    uniqueHash(op),
	}
}

func fromRecord(r *opportunityRecord) (*domain.Opportunity, error) {
	opType, err := domain.ParseOpportunityType(r.Type)
	if err != nil {
		return nil, err
	}

	op := &domain.Opportunity{
		ID:           r.ID,
		Type:         opType,
		Pair:         r.Pair,
		BuyExchange:  r.BuyExchange,
		SellExchange: r.SellExchange,
		DetectedAt:   r.DetectedAt,
		ExpiresAt:    r.ExpiresAt,
	}

	fields := []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&op.BuyPrice, r.BuyPrice, "buy_price"},
		{&op.SellPrice, r.SellPrice, "sell_price"},
		{&op.Quantity, r.Quantity, "quantity"},
		{&op.GrossProfit, r.GrossProfit, "gross_profit"},
		{&op.NetProfit, r.NetProfit, "net_profit"},
		{&op.ProfitPercent, r.ProfitPercent, "profit_percent"},
		{&op.BuyFee, r.BuyFee, "buy_fee"},
		{&op.SellFee, r.SellFee, "sell_fee"},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = value
	}

	return op, nil
}

func fromRecords(records []opportunityRecord) ([]domain.Opportunity, error) {
	out := make([]domain.Opportunity, 0, len(records))
	for i := range records {
		op, err := fromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *op)
	}
	return out, nil
}
