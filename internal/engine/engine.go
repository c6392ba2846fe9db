package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradedesk/internal/domain"
	"tradedesk/internal/store"
	"tradedesk/internal/venue"
)

// Store bundles the persistence interfaces the engine needs. *store.SQLiteStore
// satisfies it.
type Store interface {
	store.PortfolioStore
	store.OrderStore
	store.SecurityStore
	store.TransactionStore
}

// Engine owns the order lifecycle state machine. Orders start pending and
// move to exactly one of executed, cancelled, or rejected; the engine is the
// only writer of order status, and the Settler is the only writer of
// portfolio state.
type Engine struct {
	store        Store
	venue        venue.Venue
	settler      *Settler
	venueTimeout time.Duration
	log          *slog.Logger
}

// NewEngine creates an Engine wired with the given dependencies.
// venueTimeout bounds every venue call; on timeout the order stays pending
// and the reconciler picks it up.
func NewEngine(st Store, v venue.Venue, settler *Settler, venueTimeout time.Duration, log *slog.Logger) *Engine {
	return &Engine{
		store:        st,
		venue:        v,
		settler:      settler,
		venueTimeout: venueTimeout,
		log:          log.With("component", "engine"),
	}
}

// PlaceOrder validates the request, persists the order, and submits it to the
// venue. Validation failures persist the order directly in the rejected state
// and return the failure reason. A synchronous fill settles before the order
// is marked executed; an asynchronous acceptance leaves the order pending for
// the reconciler.
func (e *Engine) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.Order, error) {
	now := time.Now().UTC()
	order := &domain.Order{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Symbol:      strings.ToUpper(req.Symbol),
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		LimitPrice:  req.LimitPrice,
		TimeInForce: req.TimeInForce,
		Status:      domain.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if order.TimeInForce == "" {
		order.TimeInForce = domain.TimeInForceDay
	}

	security, err := e.store.GetSecurityBySymbol(ctx, order.Symbol)
	if errors.Is(err, store.ErrNotFound) {
		return e.rejectNew(ctx, order, fmt.Errorf("symbol %s: %w", order.Symbol, domain.ErrSecurityNotFound))
	}
	if err != nil {
		return nil, err
	}
	order.SecurityID = security.ID

	portfolio, err := e.store.GetPortfolioByUser(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return e.rejectNew(ctx, order, fmt.Errorf("user %s has no portfolio: %w", req.UserID, domain.ErrInvalidOrder))
	}
	if err != nil {
		return nil, err
	}

	holding, err := e.store.GetHolding(ctx, portfolio.ID, security.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if verr := Validate(req, portfolio, holding, security); verr != nil {
		return e.rejectNew(ctx, order, verr)
	}

	if err := e.store.SaveOrder(ctx, order); err != nil {
		return nil, err
	}

	vctx, cancel := context.WithTimeout(ctx, e.venueTimeout)
	defer cancel()
	resp, err := e.venue.SubmitOrder(vctx, order)
	if err != nil {
		if errors.Is(err, domain.ErrVenueRejected) {
			e.transition(ctx, order, domain.OrderStatusRejected)
			return order, domain.NewOrderError(order.ID, "submit", err)
		}
		// Venue unreachable: the order stays pending and the reconciler
		// resolves it once the venue answers again.
		e.log.Warn("venue submit failed, order stays pending", "order", order.ID, "error", err)
		return order, domain.NewOrderError(order.ID, "submit", err)
	}

	if resp.VenueOrderID != "" {
		order.VenueOrderID = resp.VenueOrderID
		if err := e.store.SetVenueOrderID(ctx, order.ID, resp.VenueOrderID); err != nil {
			return nil, err
		}
	}
	return e.applyVenueResponse(ctx, order, resp)
}

// CancelOrder cancels a pending order. Cancellation races execution at the
// venue; when execution wins, the fill is settled and the cancellation fails
// with ErrOrderAlreadyExecuted.
func (e *Engine) CancelOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.NewOrderError(orderID, "cancel", domain.ErrUnauthorized)
	}

	switch order.Status {
	case domain.OrderStatusExecuted:
		return nil, domain.NewOrderError(orderID, "cancel", domain.ErrOrderAlreadyExecuted)
	case domain.OrderStatusCancelled, domain.OrderStatusRejected:
		return nil, domain.NewOrderError(orderID, "cancel", domain.ErrOrderNotCancellable)
	}

	if order.VenueOrderID != "" {
		vctx, cancel := context.WithTimeout(ctx, e.venueTimeout)
		defer cancel()
		resp, err := e.venue.CancelOrder(vctx, order.VenueOrderID)
		if err != nil {
			return nil, domain.NewOrderError(orderID, "cancel", err)
		}
		if resp.Status == venue.StatusFilled {
			// Execution won the race: settle it, then report the conflict.
			if _, aerr := e.applyVenueResponse(ctx, order, resp); aerr != nil {
				e.log.Error("settling fill discovered during cancel", "order", orderID, "error", aerr)
			}
			return order, domain.NewOrderError(orderID, "cancel", domain.ErrOrderAlreadyExecuted)
		}
	}

	if err := e.store.TransitionOrder(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusCancelled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost the transition race; report the final state.
			return nil, domain.NewOrderError(orderID, "cancel", domain.ErrOrderNotCancellable)
		}
		return nil, err
	}
	order.Status = domain.OrderStatusCancelled
	return order, nil
}

// GetOrderStatus returns an order after verifying the caller owns it.
func (e *Engine) GetOrderStatus(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.NewOrderError(orderID, "get", domain.ErrUnauthorized)
	}
	return order, nil
}

// ListActiveOrders returns the caller's pending orders, newest first.
func (e *Engine) ListActiveOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return e.store.ListOrdersByUser(ctx, userID, domain.OrderStatusPending)
}

// ListOrderHistory returns all of the caller's orders, newest first.
func (e *Engine) ListOrderHistory(ctx context.Context, userID string) ([]domain.Order, error) {
	return e.store.ListOrdersByUser(ctx, userID)
}

// ListTransactions returns the caller's journal entries, newest first.
func (e *Engine) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	return e.store.ListTransactions(ctx, userID, limit)
}

// GetPortfolio returns the caller's portfolio and holdings.
func (e *Engine) GetPortfolio(ctx context.Context, userID string) (*domain.Portfolio, []domain.Holding, error) {
	portfolio, err := e.store.GetPortfolioByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	holdings, err := e.store.ListHoldings(ctx, portfolio.ID)
	if err != nil {
		return nil, nil, err
	}
	return portfolio, holdings, nil
}

// rejectNew persists a freshly built order directly in the rejected state and
// returns the validation failure.
func (e *Engine) rejectNew(ctx context.Context, order *domain.Order, cause error) (*domain.Order, error) {
	order.Status = domain.OrderStatusRejected
	if err := e.store.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, domain.NewOrderError(order.ID, "validate", cause)
}

// applyVenueResponse maps a venue answer for a pending order onto a terminal
// transition. Fills settle before the order is marked executed; a settlement
// failure rejects the order and asks the venue to reverse, best-effort.
func (e *Engine) applyVenueResponse(ctx context.Context, order *domain.Order, resp *venue.Response) (*domain.Order, error) {
	switch resp.Status {
	case venue.StatusAccepted:
		// Still working at the venue; the reconciler polls it to a terminal
		// state.
		return order, nil

	case venue.StatusRejected:
		e.transition(ctx, order, domain.OrderStatusRejected)
		return order, domain.NewOrderError(order.ID, "submit",
			fmt.Errorf("%s: %w", resp.Message, domain.ErrVenueRejected))

	case venue.StatusCancelled:
		e.transition(ctx, order, domain.OrderStatusCancelled)
		return order, nil

	case venue.StatusFilled:
		if _, err := e.settler.Settle(ctx, order, resp.FilledPrice); err != nil {
			if errors.Is(err, domain.ErrOrderAlreadyExecuted) {
				// Another path settled this fill first; report the stored
				// state without touching the ledger again.
				if stored, serr := e.store.GetOrder(ctx, order.ID); serr == nil {
					*order = *stored
				}
				return order, nil
			}
			e.transition(ctx, order, domain.OrderStatusRejected)
			e.reverseFill(ctx, order)
			return order, domain.NewOrderError(order.ID, "settle", err)
		}
		// Settle claimed the pending order and marked it executed in the same
		// transaction as the ledger writes.
		order.Status = domain.OrderStatusExecuted
		order.UpdatedAt = time.Now().UTC()
		return order, nil

	default:
		return nil, fmt.Errorf("unexpected venue status %q for order %s", resp.Status, order.ID)
	}
}

// transition moves a pending order to a terminal state. A lost race is
// logged, not fatal: terminal states are immutable at the storage layer.
func (e *Engine) transition(ctx context.Context, order *domain.Order, to domain.OrderStatus) {
	if err := e.store.TransitionOrder(ctx, order.ID, domain.OrderStatusPending, to); err != nil {
		e.log.Error("order transition failed", "order", order.ID, "to", to, "error", err)
		return
	}
	order.Status = to
	order.UpdatedAt = time.Now().UTC()
}

// reverseFill asks the venue to cancel/reverse a fill whose settlement
// failed. Venues generally cannot unwind executions, so this is best-effort
// and loudly logged for the operations runbook when it fails.
func (e *Engine) reverseFill(ctx context.Context, order *domain.Order) {
	if order.VenueOrderID == "" {
		return
	}
	vctx, cancel := context.WithTimeout(ctx, e.venueTimeout)
	defer cancel()
	resp, err := e.venue.CancelOrder(vctx, order.VenueOrderID)
	if err != nil || resp.Status == venue.StatusFilled {
		e.log.Error("could not reverse venue fill after settlement failure; manual reconciliation required",
			"order", order.ID, "venue_order", order.VenueOrderID, "error", err)
	}
}
