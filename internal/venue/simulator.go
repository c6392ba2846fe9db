package venue

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
)

// Compile-time interface check.
var _ Venue = (*Simulator)(nil)

// PriceFunc resolves a symbol to its current reference price.
type PriceFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)

// Simulator implements the Venue interface in memory for paper trading and
// tests. Market orders and marketable limit orders fill immediately at the
// reference price; non-marketable limit orders stay open until cancelled.
type Simulator struct {
	price PriceFunc

	mu     sync.Mutex
	orders map[string]*simOrder
}

type simOrder struct {
	status      Status
	filledPrice decimal.Decimal
}

// NewSimulator creates a Simulator that prices fills with the given PriceFunc.
func NewSimulator(price PriceFunc) *Simulator {
	return &Simulator{
		price:  price,
		orders: make(map[string]*simOrder),
	}
}

// Name returns "simulator".
func (s *Simulator) Name() string { return "simulator" }

// SubmitOrder accepts the order and simulates execution. Unknown symbols are
// business rejections, matching how a real venue answers.
func (s *Simulator) SubmitOrder(ctx context.Context, order *domain.Order) (*Response, error) {
	last, err := s.price(ctx, order.Symbol)
	if err != nil {
		return nil, fmt.Errorf("unknown symbol %s: %w", order.Symbol, domain.ErrVenueRejected)
	}

	venueID := uuid.NewString()
	so := &simOrder{status: StatusAccepted}

	if order.Type == domain.OrderTypeMarket || marketable(order, last) {
		so.status = StatusFilled
		so.filledPrice = last
	}

	s.mu.Lock()
	s.orders[venueID] = so
	s.mu.Unlock()

	return &Response{VenueOrderID: venueID, Status: so.status, FilledPrice: so.filledPrice}, nil
}

// CancelOrder cancels an open order. Filled orders refuse cancellation and
// report their filled state, so the caller sees that execution won the race.
func (s *Simulator) CancelOrder(_ context.Context, venueOrderID string) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.orders[venueOrderID]
	if !ok {
		return nil, fmt.Errorf("unknown venue order %s: %w", venueOrderID, domain.ErrVenueRejected)
	}
	if so.status == StatusFilled {
		return &Response{VenueOrderID: venueOrderID, Status: StatusFilled, FilledPrice: so.filledPrice}, nil
	}
	so.status = StatusCancelled
	return &Response{VenueOrderID: venueOrderID, Status: StatusCancelled}, nil
}

// OrderStatus returns the simulator's view of an order.
func (s *Simulator) OrderStatus(_ context.Context, venueOrderID string) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.orders[venueOrderID]
	if !ok {
		return nil, fmt.Errorf("unknown venue order %s: %w", venueOrderID, domain.ErrVenueRejected)
	}
	return &Response{VenueOrderID: venueOrderID, Status: so.status, FilledPrice: so.filledPrice}, nil
}

// Fill force-fills an open order at the given price. Tests and the paper
// trading loop use it to model executions that arrive after acceptance.
func (s *Simulator) Fill(venueOrderID string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.orders[venueOrderID]
	if !ok {
		return fmt.Errorf("unknown venue order %s", venueOrderID)
	}
	if so.status != StatusAccepted {
		return fmt.Errorf("venue order %s is %s, not open", venueOrderID, so.status)
	}
	so.status = StatusFilled
	so.filledPrice = price
	return nil
}

// marketable reports whether a limit order crosses the reference price.
func marketable(order *domain.Order, last decimal.Decimal) bool {
	if order.Type != domain.OrderTypeLimit {
		return false
	}
	if order.Side == domain.OrderSideBuy {
		return order.LimitPrice.GreaterThanOrEqual(last)
	}
	return order.LimitPrice.LessThanOrEqual(last)
}

// SecurityPrices adapts a security lookup into a PriceFunc.
func SecurityPrices(lookup func(ctx context.Context, symbol string) (*domain.Security, error)) PriceFunc {
	return func(ctx context.Context, symbol string) (decimal.Decimal, error) {
		sec, err := lookup(ctx, strings.ToUpper(symbol))
		if err != nil {
			return decimal.Zero, err
		}
		return sec.LastPrice, nil
	}
}
