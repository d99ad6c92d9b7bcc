package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents the direction of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType represents how an order is executed
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderStatus represents the current state of an order
type OrderStatus string

const (
	// OrderStatusPending means the order is created but not yet submitted
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusOpen means the order is submitted and waiting to be filled
	OrderStatusOpen OrderStatus = "open"
	// OrderStatusFilled means the order has been completely filled
	OrderStatusFilled OrderStatus = "filled"
	// OrderStatusCancelled means the order was cancelled before being filled
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusFailed means the order failed due to an error
	OrderStatusFailed OrderStatus = "failed"
)

// Order represents a trading order on an exchange
type Order struct {
	// ID is the unique identifier assigned by the exchange
	ID       string    `json:"id"`
	Exchange string    `json:"exchange"`
	Pair     string    `json:"pair"`
	Side     OrderSide `json:"side"`
	Type     OrderType `json:"type"`
	// Price is the limit price for limit orders (ignored for market orders)
	Price decimal.Decimal `json:"price"`
	// Quantity is the amount of base currency to buy or sell
	Quantity  decimal.Decimal `json:"quantity"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Trade represents an executed trade resulting from an order fill
type Trade struct {
	ID       string          `json:"id"`
	OrderID  string          `json:"order_id"`
	Exchange string          `json:"exchange"`
	Pair     string          `json:"pair"`
	Side     OrderSide       `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	// Fee is the trading fee charged, in FeeCurrency
	Fee         decimal.Decimal `json:"fee"`
	FeeCurrency string          `json:"fee_currency"`
	Timestamp   time.Time       `json:"timestamp"`
}
