package notification

import (
	"context"
	"log"
)

// Notifier delivers events to an alerting channel
type Notifier interface {
	// Send delivers an event synchronously
	Send(ctx context.Context, event *Event) error
	// SendAsync queues an event for background delivery. Events are
	// dropped when the queue is full.
	SendAsync(event *Event)
	// IsEnabled reports whether this notifier wants events of the type
	IsEnabled(eventType EventType) bool
	// Close flushes pending events and releases resources
	Close() error
}

// MultiNotifier fans events out to several notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that delivers to all the given
// notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send delivers the event to every interested notifier, returning the
// first error after attempting all of them
func (m *MultiNotifier) Send(ctx context.Context, event *Event) error {
	var firstErr error
	for _, n := range m.notifiers {
		if !n.IsEnabled(event.Type) {
			continue
		}
		if err := n.Send(ctx, event); err != nil {
			log.Printf("[Notification] Delivery failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SendAsync queues the event on every interested notifier
func (m *MultiNotifier) SendAsync(event *Event) {
	for _, n := range m.notifiers {
		if n.IsEnabled(event.Type) {
			n.SendAsync(event)
		}
	}
}

// IsEnabled reports whether any underlying notifier wants the event type
func (m *MultiNotifier) IsEnabled(eventType EventType) bool {
	for _, n := range m.notifiers {
		if n.IsEnabled(eventType) {
			return true
		}
	}
	return false
}

// Close closes every underlying notifier
func (m *MultiNotifier) Close() error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
