package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arbi-bot/internal/config"
	"github.com/arbi-bot/internal/domain"
	"github.com/arbi-bot/internal/exchange"
	"github.com/arbi-bot/internal/notification"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExchange serves a canned orderbook
type fakeExchange struct {
	name      string
	connected bool

	mu    sync.Mutex
	calls int
}

func (f *fakeExchange) Connect(ctx context.Context) error {
	f.connected = true
	return nil
}

func (f *fakeExchange) Disconnect(ctx context.Context) error {
	f.connected = false
	return nil
}

func (f *fakeExchange) IsConnected() bool { return f.connected }

func (f *fakeExchange) GetOrderbook(ctx context.Context, pair string) (*domain.Orderbook, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return &domain.Orderbook{
		Pair:      pair,
		Exchange:  f.name,
		Bids:      []domain.PriceLevel{{Price: decimal.NewFromInt(50000), Quantity: decimal.NewFromInt(1)}},
		Asks:      []domain.PriceLevel{{Price: decimal.NewFromInt(50100), Quantity: decimal.NewFromInt(1)}},
		Timestamp: time.Now(),
	}, nil
}

func (f *fakeExchange) SubscribeOrderbook(ctx context.Context, pairs []string) (<-chan domain.Orderbook, error) {
	return nil, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, order domain.Order) (*domain.Trade, error) {
	return nil, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, orderID string) error { return nil }

func (f *fakeExchange) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return nil, nil
}

func (f *fakeExchange) GetBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	return nil, nil
}

func (f *fakeExchange) GetFees(pair string) domain.Fees {
	return domain.NewFees(decimal.Zero, decimal.Zero)
}

func (f *fakeExchange) Name() string { return f.name }

func (f *fakeExchange) SupportedPairs() []string { return nil }

func (f *fakeExchange) orderbookCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memoryStore records saved opportunities; every other ID is a duplicate
type memoryStore struct {
	mu    sync.Mutex
	saved []*domain.Opportunity
	dedup map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{dedup: map[string]bool{}}
}

func (m *memoryStore) Save(ctx context.Context, op *domain.Opportunity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op.Pair + "|" + op.BuyExchange + "|" + op.SellExchange
	if m.dedup[key] {
		return false, nil
	}
	m.dedup[key] = true
	m.saved = append(m.saved, op)
	return true, nil
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*domain.Opportunity, error) {
	return nil, nil
}

func (m *memoryStore) GetAll(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	return nil, nil
}

func (m *memoryStore) GetByPair(ctx context.Context, pair string, limit int) ([]domain.Opportunity, error) {
	return nil, nil
}

func (m *memoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.saved)), nil
}

func (m *memoryStore) Close() error { return nil }

// captureNotifier records events
type captureNotifier struct {
	mu     sync.Mutex
	events []*notification.Event
}

func (c *captureNotifier) Send(ctx context.Context, event *notification.Event) error {
	c.SendAsync(event)
	return nil
}

func (c *captureNotifier) SendAsync(event *notification.Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func (c *captureNotifier) IsEnabled(eventType notification.EventType) bool { return true }

func (c *captureNotifier) Close() error { return nil }

func (c *captureNotifier) byType(eventType notification.EventType) []*notification.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*notification.Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func botConfig() *config.Config {
	return &config.Config{
		App:   config.AppConfig{Name: "arbi-bot", Env: "development"},
		Pairs: []string{"BTC/USDT"},
		Exchanges: map[string]*config.ExchangeConfig{
			"poloniex": {Enabled: true, FeeTaker: "0.001"},
		},
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeExchange, *memoryStore, *captureNotifier) {
	t.Helper()

	ex := &fakeExchange{name: "poloniex", connected: true}
	manager := exchange.NewManager()
	manager.Register(ex)

	store := newMemoryStore()
	notifier := &captureNotifier{}

	b := New(botConfig(), manager, store, notifier)
	t.Cleanup(b.Stop)
	return b, ex, store, notifier
}

func TestStartAndStop(t *testing.T) {
	b, _, _, notifier := newTestBot(t)

	require.NoError(t, b.Start(context.Background()))
	assert.True(t, b.IsRunning())

	err := b.Start(context.Background())
	require.Error(t, err, "second start must fail")

	b.Stop()
	assert.False(t, b.IsRunning())

	assert.Len(t, notifier.byType(notification.EventStartup), 1)
	shutdowns := notifier.byType(notification.EventShutdown)
	require.Len(t, shutdowns, 1)
	assert.Equal(t, "arbi-bot", shutdowns[0].Shutdown.AppName)
}

func TestStopWithoutStart(t *testing.T) {
	b, _, _, _ := newTestBot(t)
	b.Stop()
	assert.False(t, b.IsRunning())
}

func TestDetectionCycleCountsUpdates(t *testing.T) {
	b, ex, _, _ := newTestBot(t)

	require.NoError(t, b.Start(context.Background()))

	require.Eventually(t, func() bool {
		return ex.orderbookCalls() > 0
	}, 3*time.Second, 20*time.Millisecond)

	b.Stop()

	snapshot := b.Stats()
	assert.Positive(t, snapshot.DetectionCycles)
	assert.Positive(t, snapshot.OrderbookUpdates)
}

func TestDetectionSkipsDisconnectedExchanges(t *testing.T) {
	b, ex, _, _ := newTestBot(t)
	ex.connected = false

	b.detectionCycle(context.Background())
	assert.Zero(t, ex.orderbookCalls())
}

func TestRecordOpportunity(t *testing.T) {
	b, _, store, notifier := newTestBot(t)

	op := &domain.Opportunity{
		Type:         domain.OpportunityTypeCrossExchange,
		Pair:         "BTC/USDT",
		BuyExchange:  "poloniex",
		SellExchange: "gate",
		NetProfit:    decimal.NewFromFloat(12.5),
		DetectedAt:   time.Now(),
	}

	created, err := b.RecordOpportunity(context.Background(), op)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, op.ID, "an ID is assigned when missing")

	count, _ := store.Count(context.Background())
	assert.Equal(t, int64(1), count)
	assert.Len(t, notifier.byType(notification.EventOpportunity), 1)
	assert.Equal(t, int64(1), b.Stats().OpportunitiesFound)
}

func TestRecordOpportunityDuplicateNotAnnounced(t *testing.T) {
	b, _, _, notifier := newTestBot(t)

	op := &domain.Opportunity{
		Pair:         "BTC/USDT",
		BuyExchange:  "poloniex",
		SellExchange: "gate",
	}
	_, err := b.RecordOpportunity(context.Background(), op)
	require.NoError(t, err)

	dup := &domain.Opportunity{
		Pair:         "BTC/USDT",
		BuyExchange:  "poloniex",
		SellExchange: "gate",
	}
	created, err := b.RecordOpportunity(context.Background(), dup)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Len(t, notifier.byType(notification.EventOpportunity), 1)
	assert.Equal(t, int64(2), b.Stats().OpportunitiesFound, "duplicates still count as found")
}

func TestPairLocks(t *testing.T) {
	b, _, _, _ := newTestBot(t)

	require.True(t, b.TryLockPair("BTC/USDT"))
	assert.False(t, b.TryLockPair("BTC/USDT"), "pair is locked")
	assert.True(t, b.TryLockPair("ETH/USDT"), "other pairs are independent")

	b.UnlockPair("BTC/USDT")
	assert.True(t, b.TryLockPair("BTC/USDT"))
}

func TestRestartAfterStop(t *testing.T) {
	b, _, _, _ := newTestBot(t)

	require.NoError(t, b.Start(context.Background()))
	b.Stop()
	require.NoError(t, b.Start(context.Background()))
	assert.True(t, b.IsRunning())
}
