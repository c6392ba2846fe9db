// Package domain defines the core types of the trading core: portfolios,
// holdings, securities, orders, and the immutable transaction journal.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType distinguishes market from limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// TimeInForce governs how long an order remains eligible for execution.
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
)

// OrderStatus is the lifecycle state of an order. Orders start pending and
// move to exactly one terminal state; terminal states are never left.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusExecuted  OrderStatus = "executed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Terminal reports whether the status is a terminal lifecycle state.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusExecuted || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Portfolio is a user's cash account. It is mutated only by the ledger
// settlement path; CashBalance never goes negative as a result of a buy.
type Portfolio struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Holding is a position in a single security. At most one row exists per
// (portfolio, security) pair; a holding is deleted when its quantity reaches
// zero on a sell.
type Holding struct {
	ID           string          `json:"id"`
	PortfolioID  string          `json:"portfolio_id"`
	SecurityID   string          `json:"security_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

// Security is reference data for a tradable instrument. LastPrice is
// maintained by an external price feed; the trading core only reads it.
type Security struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	LastPrice decimal.Decimal `json:"last_price"`
}

// OrderRequest is an incoming trade request from a caller.
type OrderRequest struct {
	UserID      string          `json:"user_id"`
	Symbol      string          `json:"symbol"`
	Side        OrderSide       `json:"side"`
	Type        OrderType       `json:"type"`
	Quantity    decimal.Decimal `json:"quantity"`
	LimitPrice  decimal.Decimal `json:"limit_price"` // required for limit, ignored for market
	TimeInForce TimeInForce     `json:"time_in_force"`
}

// Order is a persisted trade request and its lifecycle state. Symbol is
// denormalized from the security row for venue submission.
type Order struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	SecurityID   string          `json:"security_id"`
	Symbol       string          `json:"symbol"`
	Side         OrderSide       `json:"side"`
	Type         OrderType       `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	LimitPrice   decimal.Decimal `json:"limit_price"`
	TimeInForce  TimeInForce     `json:"time_in_force"`
	Status       OrderStatus     `json:"status"`
	VenueOrderID string          `json:"venue_order_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Transaction is an immutable journal entry describing one settled trade.
// Rows are append-only and are the source of truth for historical P&L.
// Commission is recorded for reporting and is not debited from cash.
type Transaction struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	SecurityID string          `json:"security_id"`
	Side       OrderSide       `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"` // quantity × price
	Commission decimal.Decimal `json:"commission"`
	CreatedAt  time.Time       `json:"created_at"`
}
