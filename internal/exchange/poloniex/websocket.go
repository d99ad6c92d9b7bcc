package poloniex

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbi-bot/internal/domain"
	"github.com/arbi-bot/internal/exchange"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	// websocketURL is the public Poloniex market-data stream
	websocketURL = "wss://ws.poloniex.com/ws/public"

	// defaultPingInterval keeps the session alive. Poloniex requires a
	// message or ping every 30 seconds; 20 leaves a reliability margin.
	defaultPingInterval = 20 * time.Second

	// defaultReconnectDelay is the pause before a reconnect attempt
	defaultReconnectDelay = 5 * time.Second

	// defaultDepth is the orderbook depth requested on subscribe
	defaultDepth = 10
)

// errSessionClosed is returned when an operation runs against a session
// that was explicitly closed
var errSessionClosed = errors.New("websocket session closed")

// wsConfig holds the immutable settings of one streaming session. It is
// reused verbatim on every reconnect so resubscription is identical.
type wsConfig struct {
	url   string
	pairs []string
	depth int

	pingInterval   time.Duration
	reconnectDelay time.Duration

	// onReconnectFailed is invoked when a reconnect attempt fails and the
	// session is about to terminate
	onReconnectFailed func(exchangeName, reason string)
}

// wsManager owns one WebSocket session: subscribe, keepalive, read loop,
// reconnect-with-resubscribe and decoding into domain orderbooks.
//
// The ping loop and the read loop run as separate goroutines sharing the
// connection; writes are serialized by connMu, held only for the duration
// of a single send.
//
// Updates buffer without bound between the read loop and the consumer: the
// read loop appends to an internal queue and a forwarder goroutine drains
// it onto the output channel, so a slow consumer delays delivery but never
// loses data or tears the session down.
type wsManager struct {
	cfg wsConfig

	connMu sync.Mutex
	conn   *websocket.Conn

	orderbooks chan domain.Orderbook

	queueMu sync.Mutex
	queue   []domain.Orderbook
	// wake signals the forwarder that the queue has new entries
	wake chan struct{}

	// readDone is closed when the read loop (or a failed subscribe)
	// terminates the session
	readDone chan struct{}
	// done is closed by Close and aborts any pending delivery
	done chan struct{}

	closed atomic.Bool
}

// newWSManager creates a manager and returns the channel orderbook updates
// are delivered on. The channel is closed when the session terminates.
func newWSManager(cfg wsConfig) (*wsManager, <-chan domain.Orderbook) {
	if cfg.url == "" {
		cfg.url = websocketURL
	}
	if cfg.depth <= 0 {
		cfg.depth = defaultDepth
	}
	if cfg.pingInterval <= 0 {
		cfg.pingInterval = defaultPingInterval
	}
	if cfg.reconnectDelay <= 0 {
		cfg.reconnectDelay = defaultReconnectDelay
	}

	m := &wsManager{
		cfg:        cfg,
		orderbooks: make(chan domain.Orderbook),
		wake:       make(chan struct{}, 1),
		readDone:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	go m.forward()
	return m, m.orderbooks
}

// Subscribe connects, sends the subscription message, spawns the ping loop
// and runs the read loop until the session is closed or terminates.
func (m *wsManager) Subscribe() error {
	conn, err := m.connect()
	if err != nil {
		close(m.readDone)
		return err
	}

	if err := m.sendSubscribeMessage(); err != nil {
		m.teardownConn()
		close(m.readDone)
		return err
	}

	go m.pingLoop()

	m.readLoop(conn)
	return nil
}

// connect dials the WebSocket server and installs the connection as the
// shared write sink. The returned conn is what the read loop consumes.
func (m *wsManager) connect() (*websocket.Conn, error) {
	log.Printf("[Poloniex] Connecting to websocket %s", m.cfg.url)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(m.cfg.url, nil)
	if err != nil {
		log.Printf("[Poloniex] Failed to connect to websocket: %v", err)
		return nil, err
	}

	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()

	log.Printf("[Poloniex] Websocket connected")
	return conn, nil
}

// Close shuts the session down. Idempotent; the closed flag is set first so
// any in-flight reconnect aborts.
func (m *wsManager) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.teardownConn()
	close(m.done)
	log.Printf("[Poloniex] Websocket closed")
}

func (m *wsManager) isClosed() bool {
	return m.closed.Load()
}

// teardownConn closes the current connection, ignoring errors, and clears
// the shared sink
func (m *wsManager) teardownConn() {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

// writeJSON sends one message on the shared sink. errSessionClosed is
// returned when no connection is installed.
func (m *wsManager) writeJSON(v any) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if m.conn == nil {
		return errSessionClosed
	}
	return m.conn.WriteJSON(v)
}

// sendSubscribeMessage sends the orderbook subscription for the configured
// pairs and depth
func (m *wsManager) sendSubscribeMessage() error {
	symbols := make([]string, len(m.cfg.pairs))
	for i, pair := range m.cfg.pairs {
		symbols[i] = exchange.PairToSymbol(pair)
	}

	depth := normalizeDepth(m.cfg.depth)

	msg := map[string]any{
		"event":   "subscribe",
		"channel": []string{"book"},
		"symbols": symbols,
		"depth":   depth,
	}

	if err := m.writeJSON(msg); err != nil {
		log.Printf("[Poloniex] Failed to subscribe: %v", err)
		return err
	}

	log.Printf("[Poloniex] Subscribed to orderbook for %v (depth %d)", symbols, depth)
	return nil
}

// pingLoop sends a keepalive message at a fixed interval until the session
// ends. A missing sink means a reconnect is in progress, so the loop keeps
// ticking and resumes keepalives on the new connection; other send
// failures are logged and the loop continues.
func (m *wsManager) pingLoop() {
	ticker := time.NewTicker(m.cfg.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-m.readDone:
			return
		}

		if m.isClosed() {
			return
		}

		err := m.writeJSON(map[string]string{"event": "ping"})
		if err != nil && !errors.Is(err, errSessionClosed) {
			log.Printf("[Poloniex] Ping failed: %v", err)
		}
	}
}

// enqueue appends an update for the forwarder to deliver
func (m *wsManager) enqueue(ob domain.Orderbook) {
	m.queueMu.Lock()
	m.queue = append(m.queue, ob)
	m.queueMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *wsManager) dequeue() (domain.Orderbook, bool) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	if len(m.queue) == 0 {
		return domain.Orderbook{}, false
	}
	ob := m.queue[0]
	m.queue = m.queue[1:]
	return ob, true
}

// forward drains the queue onto the output channel. It exits, closing the
// channel, once the read loop has ended and the queue is delivered, or
// immediately on Close.
func (m *wsManager) forward() {
	defer close(m.orderbooks)

	for {
		ob, ok := m.dequeue()
		if !ok {
			select {
			case <-m.wake:
				continue
			case <-m.readDone:
				m.drain()
				return
			case <-m.done:
				return
			}
		}

		select {
		case m.orderbooks <- ob:
		case <-m.done:
			return
		}
	}
}

// drain delivers whatever remains in the queue after the read loop ended
func (m *wsManager) drain() {
	for {
		ob, ok := m.dequeue()
		if !ok {
			return
		}
		select {
		case m.orderbooks <- ob:
		case <-m.done:
			return
		}
	}
}

// readLoop consumes inbound messages until the session closes or a
// non-recoverable error occurs. Recoverable transport errors and server
// close frames trigger a single reconnect attempt each.
func (m *wsManager) readLoop(conn *websocket.Conn) {
	defer func() {
		m.teardownConn()
		close(m.readDone)
	}()

	for {
		if m.isClosed() {
			return
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if m.isClosed() {
				return
			}
			if errors.Is(err, io.EOF) {
				log.Printf("[Poloniex] Websocket stream ended")
				return
			}
			if !shouldReconnect(err) {
				log.Printf("[Poloniex] Websocket error (non-recoverable): %v", err)
				return
			}

			log.Printf("[Poloniex] Websocket error, attempting reconnect: %v", err)
			newConn := m.tryReconnect()
			if newConn == nil {
				return
			}
			conn = newConn
			continue
		}

		if msgType != websocket.TextMessage {
			continue
		}

		ob := parseMessage(data)
		if ob == nil {
			continue
		}

		m.enqueue(*ob)
	}
}

// reconnect tears down the current connection, waits the configured delay
// and re-establishes the session with the original subscription. The closed
// flag is checked before and after the delay so Close aborts it.
func (m *wsManager) reconnect() (*websocket.Conn, error) {
	m.teardownConn()

	if m.isClosed() {
		return nil, errSessionClosed
	}

	log.Printf("[Poloniex] Reconnecting in %v", m.cfg.reconnectDelay)
	time.Sleep(m.cfg.reconnectDelay)

	if m.isClosed() {
		return nil, errSessionClosed
	}

	conn, err := m.connect()
	if err != nil {
		return nil, err
	}
	if err := m.sendSubscribeMessage(); err != nil {
		return nil, err
	}

	return conn, nil
}

// tryReconnect runs one reconnect attempt. On failure it logs, invokes the
// failure callback and returns nil; the caller terminates the stream.
func (m *wsManager) tryReconnect() *websocket.Conn {
	conn, err := m.reconnect()
	if err != nil {
		log.Printf("[Poloniex] Reconnect failed: %v", err)
		if m.cfg.onReconnectFailed != nil {
			m.cfg.onReconnectFailed(exchangeName, err.Error())
		}
		return nil
	}
	return conn
}

// shouldReconnect reports whether a read error warrants a reconnect
// attempt. Server close frames and transport-level failures are
// recoverable; anything else is fatal.
func shouldReconnect(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}

// normalizeDepth rounds the requested depth up to the nearest value
// Poloniex supports: 5, 10 or 20
func normalizeDepth(depth int) int {
	switch {
	case depth <= 5:
		return 5
	case depth <= 10:
		return 10
	default:
		return 20
	}
}

// orderbookMessage is the wire format of a Poloniex book-channel message:
// {"channel":"book","data":[{"symbol":"BTC_USDT","asks":[...],"bids":[...],"ts":123}]}
type orderbookMessage struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    []orderbookData `json:"data"`
}

type orderbookData struct {
	Symbol     string     `json:"symbol"`
	CreateTime int64      `json:"createTime"`
	Asks       [][]string `json:"asks"`
	Bids       [][]string `json:"bids"`
	ID         int64      `json:"id"`
	Ts         int64      `json:"ts"`
}

// parseMessage decodes a WebSocket message into an Orderbook. Control
// messages (subscribe acks, pongs) and non-book channels return nil.
func parseMessage(data []byte) *domain.Orderbook {
	var msg orderbookMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil
	}

	if msg.Channel != "book" {
		return nil
	}
	if msg.Event == "subscribe" || msg.Event == "pong" {
		return nil
	}
	if len(msg.Data) == 0 {
		return nil
	}

	d := msg.Data[0]
	timestamp := d.Ts
	if timestamp == 0 {
		timestamp = d.CreateTime
	}

	return &domain.Orderbook{
		Exchange:  exchangeName,
		Pair:      exchange.SymbolToPair(d.Symbol),
		Bids:      parseWSLevels(d.Bids),
		Asks:      parseWSLevels(d.Asks),
		Timestamp: time.UnixMilli(timestamp),
	}
}

// parseWSLevels parses [[price, qty], ...] arrays. Levels with zero
// quantity mark removals and are dropped here, never forwarded.
func parseWSLevels(levels [][]string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, level := range levels {
		if len(level) < 2 {
			continue
		}
		price, err := decimal.NewFromString(level[0])
		if err != nil {
			continue
		}
		quantity, err := decimal.NewFromString(level[1])
		if err != nil {
			continue
		}
		if quantity.IsZero() {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Quantity: quantity})
	}
	return out
}
