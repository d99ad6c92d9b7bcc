package bot

import (
	"sync/atomic"
	"time"
)

// Stats tracks bot activity counters. All counters are safe for
// concurrent use.
type Stats struct {
	startedAt time.Time

	detectionCycles    atomic.Int64
	orderbookUpdates   atomic.Int64
	opportunitiesFound atomic.Int64
	executions         atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters
type StatsSnapshot struct {
	Uptime             time.Duration
	DetectionCycles    int64
	OrderbookUpdates   int64
	OpportunitiesFound int64
	Executions         int64
}

func newStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

// Snapshot returns a consistent copy of the current counters
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Uptime:             time.Since(s.startedAt),
		DetectionCycles:    s.detectionCycles.Load(),
		OrderbookUpdates:   s.orderbookUpdates.Load(),
		OpportunitiesFound: s.opportunitiesFound.Load(),
		Executions:         s.executions.Load(),
	}
}

// Uptime returns how long the bot has been running
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.startedAt)
}
