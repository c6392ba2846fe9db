// Package venue defines the Venue interface and provides implementations for
// submitting, cancelling, and polling orders against external execution
// venues. Venues never mutate portfolio state; they only report outcomes.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
)

// Status is the venue's view of an order.
type Status string

const (
	// StatusAccepted means the venue holds the order open; execution may
	// arrive later and is picked up by status polling.
	StatusAccepted  Status = "accepted"
	StatusFilled    Status = "filled"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Response is the venue's answer to a submit, cancel, or status call.
type Response struct {
	// VenueOrderID is the venue-assigned identifier, set once the venue has
	// accepted the order.
	VenueOrderID string

	Status Status

	// FilledPrice is the execution price; valid only when Status is filled.
	FilledPrice decimal.Decimal

	// Message carries the venue's human-readable detail, if any.
	Message string
}

// Venue abstracts an external execution venue. Implementations must
// distinguish transport failures (domain.ErrVenueUnavailable, retryable)
// from business rejections (domain.ErrVenueRejected, terminal).
type Venue interface {
	// Name returns the venue identifier (e.g. "alpaca", "simulator").
	Name() string

	// SubmitOrder sends an order to the venue for execution.
	SubmitOrder(ctx context.Context, order *domain.Order) (*Response, error)

	// CancelOrder requests cancellation of an open order. If the venue has
	// already filled the order, the response reports StatusFilled and the
	// cancellation is refused.
	CancelOrder(ctx context.Context, venueOrderID string) (*Response, error)

	// OrderStatus returns the venue's current view of an order.
	OrderStatus(ctx context.Context, venueOrderID string) (*Response, error)
}
