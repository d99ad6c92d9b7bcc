package poloniex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbi-bot/internal/config"
	"github.com/arbi-bot/internal/domain"
	"github.com/arbi-bot/internal/exchange"
	"github.com/shopspring/decimal"
)

const exchangeName = "poloniex"

// maxClockDrift is the largest local/server time difference tolerated
// without a warning. Larger drift invalidates request signing windows.
const maxClockDrift = 5 * time.Second

// defaultOrderbookDepth is used when the config sets no max_depth
const defaultOrderbookDepth = 20

func init() {
	exchange.RegisterFactory(exchangeName, func(cfg *config.Config) (exchange.Exchange, error) {
		return New(cfg)
	})
}

// Poloniex implements the Exchange interface for the Poloniex spot market
type Poloniex struct {
	client *Client
	wsCfg  *config.WebSocketConfig

	fees  domain.Fees
	depth int
	pairs []string

	connected atomic.Bool

	wsMu sync.Mutex
	ws   *wsManager
}

// New creates a Poloniex exchange from the application config. It fails if
// Poloniex is absent from the config or not enabled.
func New(cfg *config.Config) (*Poloniex, error) {
	exCfg, ok := cfg.Exchanges[exchangeName]
	if !ok {
		return nil, exchange.NewInternalError("%s not found in config", exchangeName)
	}
	if !exCfg.Enabled {
		return nil, exchange.NewInternalError("%s is not enabled", exchangeName)
	}

	client := NewClient(ClientConfig{
		APIKey:    exCfg.APIKey,
		APISecret: exCfg.APISecret,
		RateLimit: int64(exCfg.RateLimit),
	})

	takerFee, err := decimal.NewFromString(exCfg.FeeTaker)
	if err != nil {
		takerFee = decimal.Zero
	}

	depth := defaultOrderbookDepth
	if cfg.Orderbook != nil && cfg.Orderbook.MaxDepth > 0 {
		depth = cfg.Orderbook.MaxDepth
	}

	return &Poloniex{
		client: client,
		wsCfg:  exCfg.WebSocket,
		fees:   domain.NewFees(takerFee, takerFee),
		depth:  depth,
		pairs:  append([]string(nil), cfg.Pairs...),
	}, nil
}

// Connect verifies API reachability by fetching server time and warns on
// significant clock drift
func (p *Poloniex) Connect(ctx context.Context) error {
	serverTime, err := p.client.GetServerTime(ctx)
	if err != nil {
		return &exchange.ConnectionError{Exchange: exchangeName, Err: err}
	}

	drift := time.Since(serverTime)
	if drift < 0 {
		drift = -drift
	}

	log.Printf("[Poloniex] Connected (server time %s, clock drift %v)",
		serverTime.Format(time.RFC3339), drift)

	if drift > maxClockDrift {
		log.Printf("[Poloniex] Warning: significant clock drift detected (%v); signed requests may be rejected", drift)
	}

	p.connected.Store(true)
	return nil
}

// Disconnect closes any active streaming session and clears the connected
// flag. Safe to call multiple times.
func (p *Poloniex) Disconnect(ctx context.Context) error {
	p.connected.Store(false)

	p.wsMu.Lock()
	if p.ws != nil {
		p.ws.Close()
		p.ws = nil
	}
	p.wsMu.Unlock()

	log.Printf("[Poloniex] Disconnected")
	return nil
}

// IsConnected reports whether Connect has succeeded
func (p *Poloniex) IsConnected() bool {
	return p.connected.Load()
}

// orderbookResponse is the REST orderbook snapshot format. Asks and bids
// are flat [price, qty, price, qty, ...] arrays.
type orderbookResponse struct {
	Time  int64    `json:"time"`
	Scale string   `json:"scale"`
	Asks  []string `json:"asks"`
	Bids  []string `json:"bids"`
	Ts    int64    `json:"ts"`
}

func (r *orderbookResponse) toOrderbook(pair string) *domain.Orderbook {
	timestamp := r.Ts
	if timestamp == 0 {
		timestamp = r.Time
	}
	return &domain.Orderbook{
		Exchange:  exchangeName,
		Pair:      pair,
		Bids:      exchange.ParsePriceLevels(r.Bids),
		Asks:      exchange.ParsePriceLevels(r.Asks),
		Timestamp: time.UnixMilli(timestamp),
	}
}

// GetOrderbook fetches a one-shot orderbook snapshot over REST
func (p *Poloniex) GetOrderbook(ctx context.Context, pair string) (*domain.Orderbook, error) {
	if !p.IsConnected() {
		return nil, &exchange.ConnectionError{Exchange: exchangeName, Err: errors.New("not connected")}
	}

	endpoint := fmt.Sprintf("/markets/%s/orderBook", exchange.PairToSymbol(pair))
	params := map[string]string{"limit": fmt.Sprint(p.depth)}

	body, err := p.client.Request(ctx, http.MethodGet, endpoint, params, false)
	if err != nil {
		return nil, mapClientError(err, pair)
	}

	var resp orderbookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &exchange.APIError{Code: 0, Message: fmt.Sprintf("parse orderbook: %v", err)}
	}

	return resp.toOrderbook(pair), nil
}

// SubscribeOrderbook opens a streaming session for the given pairs. The
// returned channel closes when the stream terminates; the caller decides
// whether to resubscribe.
func (p *Poloniex) SubscribeOrderbook(ctx context.Context, pairs []string) (<-chan domain.Orderbook, error) {
	if !p.IsConnected() {
		return nil, &exchange.ConnectionError{Exchange: exchangeName, Err: errors.New("not connected")}
	}

	cfg := wsConfig{
		pairs: pairs,
		depth: p.depth,
	}
	if p.wsCfg != nil {
		cfg.pingInterval = p.wsCfg.PingInterval.Std()
		cfg.reconnectDelay = p.wsCfg.ReconnectDelay.Std()
	}

	manager, updates := newWSManager(cfg)

	p.wsMu.Lock()
	if p.ws != nil {
		p.ws.Close()
	}
	p.ws = manager
	p.wsMu.Unlock()

	go func() {
		if err := manager.Subscribe(); err != nil {
			log.Printf("[Poloniex] Websocket subscription error: %v", err)
		}
	}()

	return updates, nil
}

// placeOrderResponse is the POST /orders response
type placeOrderResponse struct {
	ID             string `json:"id"`
	ClientOrderID  string `json:"clientOrderId"`
	State          string `json:"state"`
	FilledQuantity string `json:"filledQuantity"`
	AvgPrice       string `json:"avgPrice"`
}

// PlaceOrder submits a limit IOC order. The returned trade carries the
// filled quantity, which is zero when nothing executed before cancel.
func (p *Poloniex) PlaceOrder(ctx context.Context, order domain.Order) (*domain.Trade, error) {
	if !p.IsConnected() {
		return nil, &exchange.ConnectionError{Exchange: exchangeName, Err: errors.New("not connected")}
	}

	side := "SELL"
	if order.Side == domain.OrderSideBuy {
		side = "BUY"
	}

	params := map[string]string{
		"symbol":      exchange.PairToSymbol(order.Pair),
		"side":        side,
		"type":        "LIMIT",
		"price":       order.Price.String(),
		"quantity":    order.Quantity.String(),
		"timeInForce": "IOC",
	}

	body, err := p.client.Request(ctx, http.MethodPost, "/orders", params, true)
	if err != nil {
		return nil, mapClientError(err, order.Pair)
	}

	var resp placeOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &exchange.APIError{Code: 0, Message: fmt.Sprintf("parse order response: %v", err)}
	}

	filledQty, _ := decimal.NewFromString(resp.FilledQuantity)
	avgPrice, err := decimal.NewFromString(resp.AvgPrice)
	if err != nil || avgPrice.IsZero() {
		avgPrice = order.Price
	}

	return &domain.Trade{
		ID:        resp.ID,
		OrderID:   resp.ID,
		Exchange:  exchangeName,
		Pair:      order.Pair,
		Side:      order.Side,
		Price:     avgPrice,
		Quantity:  filledQty,
		Fee:       decimal.Zero,
		Timestamp: time.Now(),
	}, nil
}

// CancelOrder cancels an open order by ID
func (p *Poloniex) CancelOrder(ctx context.Context, orderID string) error {
	if !p.IsConnected() {
		return &exchange.ConnectionError{Exchange: exchangeName, Err: errors.New("not connected")}
	}

	endpoint := "/orders/" + orderID
	if _, err := p.client.Request(ctx, http.MethodDelete, endpoint, nil, true); err != nil {
		return mapClientError(err, orderID)
	}
	return nil
}

// orderInfo is the GET /orders/{id} response
type orderInfo struct {
	ID             string `json:"id"`
	ClientOrderID  string `json:"clientOrderId"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	Price          string `json:"price"`
	Quantity       string `json:"quantity"`
	Amount         string `json:"amount"`
	State          string `json:"state"`
	FilledAmount   string `json:"filledAmount"`
	FilledQuantity string `json:"filledQuantity"`
	CreateTime     int64  `json:"createTime"`
	UpdateTime     int64  `json:"updateTime"`
}

func (o *orderInfo) toOrder() *domain.Order {
	price, _ := decimal.NewFromString(o.Price)
	quantity, _ := decimal.NewFromString(o.Quantity)

	return &domain.Order{
		ID:        o.ID,
		Exchange:  exchangeName,
		Pair:      exchange.SymbolToPair(o.Symbol),
		Side:      exchange.ParseOrderSide(o.Side),
		Type:      exchange.ParseOrderType(o.Type),
		Price:     price,
		Quantity:  quantity,
		Status:    exchange.ParseOrderStatus(o.State),
		CreatedAt: time.UnixMilli(o.CreateTime),
		UpdatedAt: time.UnixMilli(o.UpdateTime),
	}
}

// GetOrder retrieves the current state of an order
func (p *Poloniex) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if !p.IsConnected() {
		return nil, &exchange.ConnectionError{Exchange: exchangeName, Err: errors.New("not connected")}
	}

	body, err := p.client.Request(ctx, http.MethodGet, "/orders/"+orderID, nil, true)
	if err != nil {
		return nil, mapClientError(err, orderID)
	}

	var info orderInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &exchange.APIError{Code: 0, Message: fmt.Sprintf("parse order: %v", err)}
	}

	return info.toOrder(), nil
}

// accountBalance is one entry of the GET /accounts/balances response
type accountBalance struct {
	AccountID   string `json:"accountId"`
	AccountType string `json:"accountType"`
	Balances    []struct {
		CurrencyID string `json:"currencyId"`
		Currency   string `json:"currency"`
		Available  string `json:"available"`
		Hold       string `json:"hold"`
	} `json:"balances"`
}

// GetBalances returns available SPOT balances. Only positive balances are
// included.
func (p *Poloniex) GetBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	if !p.IsConnected() {
		return nil, &exchange.ConnectionError{Exchange: exchangeName, Err: errors.New("not connected")}
	}

	body, err := p.client.Request(ctx, http.MethodGet, "/accounts/balances", nil, true)
	if err != nil {
		return nil, mapClientError(err, "")
	}

	var accounts []accountBalance
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, &exchange.APIError{Code: 0, Message: fmt.Sprintf("parse balances: %v", err)}
	}

	balances := make(map[string]decimal.Decimal)
	for _, account := range accounts {
		if account.AccountType != "SPOT" {
			continue
		}
		for _, bal := range account.Balances {
			available, err := decimal.NewFromString(bal.Available)
			if err != nil || !available.IsPositive() {
				continue
			}
			balances[bal.Currency] = available
		}
	}

	return balances, nil
}

// GetFees returns the configured trading fees
func (p *Poloniex) GetFees(pair string) domain.Fees {
	return p.fees
}

// Name returns the exchange identifier
func (p *Poloniex) Name() string {
	return exchangeName
}

// SupportedPairs returns the configured trading pairs
func (p *Poloniex) SupportedPairs() []string {
	return append([]string(nil), p.pairs...)
}

// Poloniex error codes with a precise mapping in the taxonomy
const (
	codeInsufficientFunds = 21603
	codeOrderNotFound     = 21606
	codePairNotSupported  = 21601
)

// mapClientError translates client errors into the exchange taxonomy.
// ref is the pair or order ID the failed call concerned.
func mapClientError(err error, ref string) error {
	var api *apiError
	if errors.As(err, &api) {
		switch api.Code {
		case codeInsufficientFunds:
			return exchange.ErrInsufficientFunds
		case codeOrderNotFound:
			return &exchange.OrderNotFoundError{ID: ref}
		case codePairNotSupported:
			return &exchange.PairNotSupportedError{Pair: ref}
		default:
			return &exchange.APIError{Code: api.Code, Message: api.Message}
		}
	}

	var rateErr *exchange.RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &exchange.ConnectionError{Exchange: exchangeName, Err: err}
	}

	return &exchange.APIError{Code: 0, Message: err.Error()}
}
