// Package engine owns the order lifecycle: validation, venue submission,
// settlement of executions against the portfolio ledger, and reconciliation
// of orders the venue fills asynchronously.
package engine

import (
	"fmt"

	"tradedesk/internal/domain"
)

// Validate checks an order request against a snapshot of portfolio state.
// It is side-effect free; the caller supplies the snapshot and settlement
// re-verifies against current state, since the snapshot may be stale by the
// time an execution arrives.
//
// holding may be nil when the portfolio has no position in the security.
func Validate(req *domain.OrderRequest, portfolio *domain.Portfolio, holding *domain.Holding, security *domain.Security) error {
	if !req.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s: %w", req.Quantity, domain.ErrInvalidOrder)
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return fmt.Errorf("unknown side %q: %w", req.Side, domain.ErrInvalidOrder)
	}
	if req.Type != domain.OrderTypeMarket && req.Type != domain.OrderTypeLimit {
		return fmt.Errorf("unknown order type %q: %w", req.Type, domain.ErrInvalidOrder)
	}
	if req.Type == domain.OrderTypeLimit && !req.LimitPrice.IsPositive() {
		return fmt.Errorf("limit order requires a positive price: %w", domain.ErrInvalidOrder)
	}

	switch req.Side {
	case domain.OrderSideBuy:
		// Market buys are costed at the last traded price; limit buys at the
		// limit price, the worst price the order can fill at.
		price := security.LastPrice
		if req.Type == domain.OrderTypeLimit {
			price = req.LimitPrice
		}
		required := req.Quantity.Mul(price)
		if portfolio.CashBalance.LessThan(required) {
			return fmt.Errorf("need %s, cash balance is %s: %w",
				required, portfolio.CashBalance, domain.ErrInsufficientFunds)
		}

	case domain.OrderSideSell:
		if holding == nil {
			return fmt.Errorf("no position in %s: %w", security.Symbol, domain.ErrSecurityNotFound)
		}
		if holding.Quantity.LessThan(req.Quantity) {
			return fmt.Errorf("selling %s but holding %s: %w",
				req.Quantity, holding.Quantity, domain.ErrInsufficientShares)
		}
	}
	return nil
}
