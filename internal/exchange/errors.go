package exchange

import (
	"errors"
	"fmt"
)

// ErrInsufficientFunds is returned when an account balance cannot cover an order.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ConnectionError indicates the exchange is unreachable or authentication failed
type ConnectionError struct {
	Exchange string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: connection error: %v", e.Exchange, e.Err)
	}
	return fmt.Sprintf("%s: connection error", e.Exchange)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PairNotSupportedError indicates the exchange has no market for the pair
type PairNotSupportedError struct {
	Pair string
}

func (e *PairNotSupportedError) Error() string {
	return fmt.Sprintf("pair %s is not supported", e.Pair)
}

// OrderNotFoundError indicates the order does not exist or is already gone
type OrderNotFoundError struct {
	ID string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.ID)
}

// APIError carries a provider error code and message that has no more
// specific mapping in the taxonomy
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// RateLimitError is returned when the client-side request budget for the
// current window is exhausted. Requests are rejected, never queued.
type RateLimitError struct {
	Current int64
	Limit   int64
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d/%d", e.Current, e.Limit)
}

// InternalError indicates a misconfiguration such as an unknown provider name
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Message)
}

// NewInternalError creates an InternalError with a formatted message
func NewInternalError(format string, args ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}
