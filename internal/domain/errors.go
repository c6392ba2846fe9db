package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the order and settlement paths. Handlers use errors.Is
// to map these to transport status codes.
var (
	// Validation failures the client can correct.
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrSecurityNotFound   = errors.New("security not found")

	// Access control.
	ErrUnauthorized = errors.New("order does not belong to caller")

	// Lifecycle conflicts.
	ErrOrderNotCancellable  = errors.New("order is not cancellable")
	ErrOrderAlreadyExecuted = errors.New("order already executed")

	// Venue failures. VenueUnavailable is retryable; the order stays pending.
	ErrVenueUnavailable = errors.New("venue unavailable")
	ErrVenueRejected    = errors.New("venue rejected order")

	// Settlement detected a race against the stored portfolio state.
	ErrSettlementConflict = errors.New("settlement conflict")

	// Infrastructure failure; nothing was written.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// OrderError annotates an error with the order and operation it occurred in.
type OrderError struct {
	OrderID string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("order %s: %s: %v", e.OrderID, e.Op, e.Err)
	}
	return fmt.Sprintf("order: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError wraps err with order and operation context.
func NewOrderError(orderID, op string, err error) *OrderError {
	return &OrderError{OrderID: orderID, Op: op, Err: err}
}
