package notification

import (
	"fmt"
	"strings"
	"time"
)

// formatEvent renders an event as a Telegram Markdown message. An empty
// string means there is nothing to send.
func formatEvent(event *Event) string {
	switch event.Type {
	case EventOpportunity:
		return formatOpportunity(event)
	case EventExecution:
		return formatExecution(event)
	case EventError:
		return formatError(event)
	case EventStartup:
		return formatStartup(event)
	case EventShutdown:
		return formatShutdown(event)
	case EventOverview:
		return formatOverview(event)
	default:
		return ""
	}
}

func formatOpportunity(event *Event) string {
	op := event.Opportunity
	if op == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("💰 *Arbitrage Opportunity*\n\n")
	fmt.Fprintf(&b, "Pair: `%s`\n", op.Pair)
	fmt.Fprintf(&b, "Buy:  `%s` @ %s\n", op.BuyExchange, op.BuyPrice.String())
	fmt.Fprintf(&b, "Sell: `%s` @ %s\n", op.SellExchange, op.SellPrice.String())
	fmt.Fprintf(&b, "Quantity: %s\n", op.Quantity.String())
	fmt.Fprintf(&b, "Net profit: %s (%s%%)\n", op.NetProfit.String(), op.ProfitPercent.String())
	return b.String()
}

func formatExecution(event *Event) string {
	ex := event.Execution
	if ex == nil {
		return ""
	}

	var b strings.Builder
	if ex.Success {
		b.WriteString("✅ *Trade Executed*\n\n")
	} else {
		b.WriteString("⚠️ *Trade Failed*\n\n")
	}
	if ex.Opportunity != nil {
		fmt.Fprintf(&b, "Pair: `%s`\n", ex.Opportunity.Pair)
		fmt.Fprintf(&b, "Buy: `%s`, Sell: `%s`\n", ex.Opportunity.BuyExchange, ex.Opportunity.SellExchange)
	}
	if ex.BuyTrade != nil {
		fmt.Fprintf(&b, "Bought %s @ %s\n", ex.BuyTrade.Quantity.String(), ex.BuyTrade.Price.String())
	}
	if ex.SellTrade != nil {
		fmt.Fprintf(&b, "Sold %s @ %s\n", ex.SellTrade.Quantity.String(), ex.SellTrade.Price.String())
	}
	if ex.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", ex.Reason)
	}
	return b.String()
}

func formatError(event *Event) string {
	e := event.Error
	if e == nil {
		return ""
	}
	return fmt.Sprintf("🚨 *Error* [%s]\n\n%s", e.Component, e.Message)
}

func formatStartup(event *Event) string {
	s := event.Startup
	if s == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚀 *%s started*", s.AppName)
	if s.Version != "" {
		fmt.Fprintf(&b, " (v%s)", s.Version)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Exchanges: %s\n", strings.Join(s.Exchanges, ", "))
	fmt.Fprintf(&b, "Pairs: %s\n", strings.Join(s.Pairs, ", "))
	return b.String()
}

func formatShutdown(event *Event) string {
	s := event.Shutdown
	if s == nil {
		return ""
	}
	return fmt.Sprintf("🛑 *%s stopped*\n\nUptime: %s", s.AppName, formatDuration(s.Uptime))
}

func formatOverview(event *Event) string {
	o := event.Overview
	if o == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("📊 *Overview*\n\n")
	fmt.Fprintf(&b, "Uptime: %s\n", formatDuration(o.Uptime))
	fmt.Fprintf(&b, "Opportunities found: %d\n", o.OpportunitiesFound)
	fmt.Fprintf(&b, "Orderbook updates: %d\n", o.OrderbookUpdates)

	if len(o.Exchanges) > 0 {
		b.WriteString("Exchanges:\n")
		for name, connected := range o.Exchanges {
			state := "disconnected"
			if connected {
				state = "connected"
			}
			fmt.Fprintf(&b, "  `%s`: %s\n", name, state)
		}
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
