package exchange

import (
	"strings"

	"github.com/arbi-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// PairToSymbol converts "BTC/USDT" to "BTC_USDT"
func PairToSymbol(pair string) string {
	return strings.ReplaceAll(pair, "/", "_")
}

// SymbolToPair converts "BTC_USDT" to "BTC/USDT"
func SymbolToPair(symbol string) string {
	return strings.ReplaceAll(symbol, "_", "/")
}

// ParseOrderSide parses an order side from its wire form
func ParseOrderSide(side string) domain.OrderSide {
	if strings.EqualFold(side, "BUY") {
		return domain.OrderSideBuy
	}
	return domain.OrderSideSell
}

// ParseOrderType parses an order type from its wire form
func ParseOrderType(orderType string) domain.OrderType {
	if strings.EqualFold(orderType, "MARKET") {
		return domain.OrderTypeMarket
	}
	return domain.OrderTypeLimit
}

// ParseOrderStatus maps common exchange order states to an OrderStatus
func ParseOrderStatus(state string) domain.OrderStatus {
	switch state {
	case "NEW", "PARTIALLY_FILLED":
		return domain.OrderStatusOpen
	case "FILLED":
		return domain.OrderStatusFilled
	case "CANCELED", "PARTIALLY_CANCELED":
		return domain.OrderStatusCancelled
	case "FAILED", "EXPIRED":
		return domain.OrderStatusFailed
	default:
		return domain.OrderStatusPending
	}
}

// ParsePriceLevels parses a flat [price, qty, price, qty, ...] array into
// price levels. Entries that fail to parse are skipped.
func ParsePriceLevels(data []string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		price, err := decimal.NewFromString(data[i])
		if err != nil {
			continue
		}
		quantity, err := decimal.NewFromString(data[i+1])
		if err != nil {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: quantity})
	}
	return levels
}
