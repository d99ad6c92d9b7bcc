package storage

import (
	"context"
	"errors"

	"github.com/arbi-bot/internal/domain"
)

var (
	ErrOpportunityNotFound = errors.New("opportunity not found")
)

// OpportunityStorage persists detected arbitrage opportunities
type OpportunityStorage interface {
	// Save stores an opportunity. It returns false when an equivalent
	// opportunity was already recorded recently and the write was skipped.
	Save(ctx context.Context, op *domain.Opportunity) (bool, error)
	// GetByID retrieves an opportunity by its ID
	GetByID(ctx context.Context, id string) (*domain.Opportunity, error)
	// GetAll retrieves the most recent opportunities, newest first
	GetAll(ctx context.Context, limit int) ([]domain.Opportunity, error)
	// GetByPair retrieves the most recent opportunities for a pair
	GetByPair(ctx context.Context, pair string, limit int) ([]domain.Opportunity, error)
	// Count returns the total number of stored opportunities
	Count(ctx context.Context) (int64, error)
	// Close releases the underlying resources
	Close() error
}
