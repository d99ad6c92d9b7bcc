package notification

import (
	"time"

	"github.com/arbi-bot/internal/domain"
)

// EventType classifies a notification event
type EventType string

const (
	EventOpportunity EventType = "opportunity"
	EventExecution   EventType = "execution"
	EventError       EventType = "error"
	EventStartup     EventType = "startup"
	EventShutdown    EventType = "shutdown"
	EventOverview    EventType = "overview"
)

// Event is one notification to deliver
type Event struct {
	Type      EventType
	Timestamp time.Time

	Opportunity *domain.Opportunity
	Execution   *ExecutionData
	Error       *ErrorData
	Startup     *StartupData
	Shutdown    *ShutdownData
	Overview    *OverviewData
}

// ExecutionData describes an executed (or attempted) arbitrage trade
type ExecutionData struct {
	Opportunity *domain.Opportunity
	BuyTrade    *domain.Trade
	SellTrade   *domain.Trade
	Success     bool
	Reason      string
}

// ErrorData describes a runtime failure worth alerting on
type ErrorData struct {
	Component string
	Message   string
}

// StartupData describes the bot coming online
type StartupData struct {
	AppName   string
	Version   string
	Exchanges []string
	Pairs     []string
}

// ShutdownData describes the bot going offline
type ShutdownData struct {
	AppName string
	Uptime  time.Duration
}

// OverviewData is a periodic activity summary
type OverviewData struct {
	Uptime             time.Duration
	OpportunitiesFound int64
	OrderbookUpdates   int64
	Exchanges          map[string]bool
}

// NewEvent creates an event of the given type stamped with the current time
func NewEvent(eventType EventType) *Event {
	return &Event{Type: eventType, Timestamp: time.Now()}
}
