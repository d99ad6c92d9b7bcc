package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/arbi-bot/internal/config"
)

const (
	defaultTelegramAPIBase = "https://api.telegram.org"

	// telegramMessageLimit is the maximum message length Telegram accepts
	telegramMessageLimit = 4096

	// asyncQueueSize bounds the background delivery queue; events beyond
	// it are dropped rather than blocking the caller
	asyncQueueSize = 100

	telegramSendTimeout = 10 * time.Second
)

// TelegramNotifier delivers events to Telegram chats via the Bot API.
// Error events go to a dedicated error chat when one is configured.
type TelegramNotifier struct {
	cfg        *config.TelegramConfig
	apiBase    string
	httpClient *http.Client

	queue chan *Event
	done  chan struct{}

	closeOnce sync.Once
}

// TelegramOption adjusts a TelegramNotifier during construction
type TelegramOption func(*TelegramNotifier)

// WithTelegramAPIBase overrides the Bot API base URL
func WithTelegramAPIBase(base string) TelegramOption {
	return func(t *TelegramNotifier) {
		t.apiBase = base
	}
}

// NewTelegramNotifier creates a Telegram notifier and starts its delivery
// worker
func NewTelegramNotifier(cfg *config.TelegramConfig, opts ...TelegramOption) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram: bot token and chat ID are required")
	}

	t := &TelegramNotifier{
		cfg:        cfg,
		apiBase:    defaultTelegramAPIBase,
		httpClient: &http.Client{Timeout: telegramSendTimeout},
		queue:      make(chan *Event, asyncQueueSize),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	go t.worker()
	return t, nil
}

// Send formats and delivers the event synchronously
func (t *TelegramNotifier) Send(ctx context.Context, event *Event) error {
	text := formatEvent(event)
	if text == "" {
		return nil
	}
	return t.sendMessage(ctx, t.chatFor(event.Type), text)
}

// SendAsync queues the event for background delivery. A full queue drops
// the event with a log line.
func (t *TelegramNotifier) SendAsync(event *Event) {
	select {
	case t.queue <- event:
	default:
		log.Printf("[Notification] Telegram queue full, dropping %s event", event.Type)
	}
}

// IsEnabled reports whether the config wants events of this type
func (t *TelegramNotifier) IsEnabled(eventType EventType) bool {
	if !t.cfg.Enabled {
		return false
	}
	switch eventType {
	case EventOpportunity:
		return t.cfg.NotifyOpportunities
	case EventExecution:
		return t.cfg.NotifyExecutions
	case EventError:
		return t.cfg.NotifyErrors
	case EventOverview:
		return t.cfg.NotifyOverview
	default:
		// startup and shutdown always go out
		return true
	}
}

// Close stops the delivery worker after draining queued events
func (t *TelegramNotifier) Close() error {
	t.closeOnce.Do(func() {
		close(t.queue)
		<-t.done
	})
	return nil
}

func (t *TelegramNotifier) worker() {
	defer close(t.done)
	for event := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), telegramSendTimeout)
		if err := t.Send(ctx, event); err != nil {
			log.Printf("[Notification] Telegram send failed: %v", err)
		}
		cancel()
	}
}

// chatFor routes error events to the error chat when one is configured
func (t *TelegramNotifier) chatFor(eventType EventType) string {
	if eventType == EventError && t.cfg.ErrorChatID != "" {
		return t.cfg.ErrorChatID
	}
	return t.cfg.ChatID
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, chatID, text string) error {
	if len(text) > telegramMessageLimit {
		// cut on a rune boundary so the payload stays valid UTF-8
		cut := telegramMessageLimit - 3
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram: encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram: api returned %d: %s", resp.StatusCode, body)
	}

	return nil
}
