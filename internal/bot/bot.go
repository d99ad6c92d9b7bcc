package bot

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/arbi-bot/internal/config"
	"github.com/arbi-bot/internal/domain"
	"github.com/arbi-bot/internal/exchange"
	"github.com/arbi-bot/internal/notification"
	"github.com/arbi-bot/internal/storage"
	"github.com/google/uuid"
)

const (
	// detectionInterval is how often the detection cycle runs
	detectionInterval = 500 * time.Millisecond

	// defaultOverviewInterval is used when the config sets none
	defaultOverviewInterval = time.Hour
)

// Bot orchestrates the exchange registry, opportunity detection, storage
// and notifications. Storage and notifier may be nil when those
// subsystems are disabled.
type Bot struct {
	cfg      *config.Config
	manager  *exchange.Manager
	store    storage.OpportunityStorage
	notifier notification.Notifier

	stats *Stats

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// pairLocks guarantees at most one execution per pair at a time
	pairLocks sync.Map
}

// New creates a Bot. store and notifier may be nil.
func New(cfg *config.Config, manager *exchange.Manager, store storage.OpportunityStorage, notifier notification.Notifier) *Bot {
	return &Bot{
		cfg:      cfg,
		manager:  manager,
		store:    store,
		notifier: notifier,
		stats:    newStats(),
	}
}

// Start launches the detection and overview loops. It fails if the bot is
// already running.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return exchange.NewInternalError("bot is already running")
	}
	b.running = true
	b.stats = newStats()

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.mu.Unlock()

	log.Printf("[Bot] Starting %s", b.cfg.App.Name)
	b.notifyStartup()

	go b.run(runCtx)
	return nil
}

// Stop shuts the loops down and sends the shutdown notification. Stopping
// a bot that is not running is a no-op.
func (b *Bot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	cancel()
	<-done

	uptime := b.statsRef().Uptime()
	log.Printf("[Bot] Stopped after %v", uptime)
	b.notifyShutdown(uptime)
}

// IsRunning reports whether the loops are active
func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Stats returns a snapshot of the activity counters, or a zero snapshot
// if the bot never started
func (b *Bot) Stats() StatsSnapshot {
	return b.statsRef().Snapshot()
}

func (b *Bot) statsRef() *Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// TryLockPair acquires the execution lock for a pair. It returns false
// when an execution for the pair is already in flight.
func (b *Bot) TryLockPair(pair string) bool {
	_, loaded := b.pairLocks.LoadOrStore(pair, struct{}{})
	return !loaded
}

// UnlockPair releases the execution lock for a pair
func (b *Bot) UnlockPair(pair string) {
	b.pairLocks.Delete(pair)
}

func (b *Bot) run(ctx context.Context) {
	defer close(b.done)

	detectTicker := time.NewTicker(detectionInterval)
	defer detectTicker.Stop()

	overviewTicker := time.NewTicker(b.overviewInterval())
	defer overviewTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-detectTicker.C:
			b.detectionCycle(ctx)
		case <-overviewTicker.C:
			b.sendOverview()
		}
	}
}

func (b *Bot) overviewInterval() time.Duration {
	if b.cfg.Notification != nil &&
		b.cfg.Notification.Telegram != nil &&
		b.cfg.Notification.Telegram.OverviewInterval.Std() > 0 {
		return b.cfg.Notification.Telegram.OverviewInterval.Std()
	}
	return defaultOverviewInterval
}

// detectionCycle gathers current orderbooks from every connected exchange.
// The comparison strategy plugs in at this boundary.
func (b *Bot) detectionCycle(ctx context.Context) {
	b.statsRef().detectionCycles.Add(1)

	cycleCtx := ctx
	if b.cfg.Arbitrage != nil && b.cfg.Arbitrage.DetectionTimeout.Std() > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, b.cfg.Arbitrage.DetectionTimeout.Std())
		defer cancel()
	}

	for _, name := range b.manager.List() {
		ex := b.manager.Get(name)
		if ex == nil || !ex.IsConnected() {
			continue
		}
		for _, pair := range b.cfg.Pairs {
			ob, err := ex.GetOrderbook(cycleCtx, pair)
			if err != nil {
				log.Printf("[Bot] Failed to fetch %s orderbook from %s: %v", pair, name, err)
				continue
			}
			if ob != nil {
				b.statsRef().orderbookUpdates.Add(1)
			}
		}
	}
}

// RecordOpportunity persists and announces a detected opportunity. The
// returned flag reports whether it was new; duplicates within the storage
// dedup window are counted but not re-announced.
func (b *Bot) RecordOpportunity(ctx context.Context, op *domain.Opportunity) (bool, error) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	b.statsRef().opportunitiesFound.Add(1)

	created := true
	if b.store != nil {
		var err error
		created, err = b.store.Save(ctx, op)
		if err != nil {
			return false, err
		}
	}

	if created && b.notifier != nil {
		event := notification.NewEvent(notification.EventOpportunity)
		event.Opportunity = op
		b.notifier.SendAsync(event)
	}

	return created, nil
}

func (b *Bot) sendOverview() {
	if b.notifier == nil || !b.notifier.IsEnabled(notification.EventOverview) {
		return
	}

	snapshot := b.statsRef().Snapshot()
	event := notification.NewEvent(notification.EventOverview)
	event.Overview = &notification.OverviewData{
		Uptime:             snapshot.Uptime,
		OpportunitiesFound: snapshot.OpportunitiesFound,
		OrderbookUpdates:   snapshot.OrderbookUpdates,
		Exchanges:          b.manager.Status(),
	}
	b.notifier.SendAsync(event)
}

func (b *Bot) notifyStartup() {
	if b.notifier == nil {
		return
	}
	event := notification.NewEvent(notification.EventStartup)
	event.Startup = &notification.StartupData{
		AppName:   b.cfg.App.Name,
		Exchanges: b.manager.List(),
		Pairs:     b.cfg.Pairs,
	}
	b.notifier.SendAsync(event)
}

func (b *Bot) notifyShutdown(uptime time.Duration) {
	if b.notifier == nil {
		return
	}
	event := notification.NewEvent(notification.EventShutdown)
	event.Shutdown = &notification.ShutdownData{
		AppName: b.cfg.App.Name,
		Uptime:  uptime,
	}
	b.notifier.SendAsync(event)
}
