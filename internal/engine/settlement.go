package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
	"tradedesk/internal/store"
)

// Settler applies executed trades to the portfolio ledger. Every settlement
// runs inside a single ledger transaction: the sufficiency re-check, the
// holding update, the cash adjustment, and the journal append all apply
// together or not at all.
type Settler struct {
	portfolios     store.PortfolioStore
	ledger         store.LedgerStore
	commissionRate decimal.Decimal
	log            *slog.Logger
}

// NewSettler creates a Settler. commissionRate is the fraction of the trade
// amount recorded as commission on each transaction (e.g. 0.002 for 0.2%).
// Commission is recorded for reporting only; it is not debited from cash.
func NewSettler(portfolios store.PortfolioStore, ledger store.LedgerStore, commissionRate decimal.Decimal, log *slog.Logger) *Settler {
	return &Settler{
		portfolios:     portfolios,
		ledger:         ledger,
		commissionRate: commissionRate,
		log:            log.With("component", "settler"),
	}
}

// Settle atomically applies an execution to the owner's portfolio: it claims
// the pending order (moving it to executed), re-validates sufficiency against
// the current stored rows (not the snapshot used at submission), adjusts the
// holding and cash balance, and appends exactly one journal entry. All of
// that commits or rolls back together. A lost claim fails with
// domain.ErrOrderAlreadyExecuted; a violated sufficiency check fails with
// domain.ErrSettlementConflict and leaves the order pending and the
// portfolio untouched.
func (s *Settler) Settle(ctx context.Context, order *domain.Order, executionPrice decimal.Decimal) (*domain.Transaction, error) {
	if !executionPrice.IsPositive() {
		return nil, fmt.Errorf("execution price %s is not positive: %w", executionPrice, domain.ErrInvalidOrder)
	}

	portfolio, err := s.portfolios.GetPortfolioByUser(ctx, order.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolving portfolio for user %s: %w", order.UserID, err)
	}

	amount := order.Quantity.Mul(executionPrice)
	txn := &domain.Transaction{
		ID:         uuid.NewString(),
		UserID:     order.UserID,
		SecurityID: order.SecurityID,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      executionPrice,
		Amount:     amount,
		Commission: amount.Mul(s.commissionRate),
		CreatedAt:  time.Now().UTC(),
	}

	err = s.ledger.RunLedgerTx(ctx, portfolio.ID, func(tx store.LedgerTx) error {
		// Claim the order inside the same transaction as the ledger writes.
		// A fill can be reported on two paths at once (a cancel racing the
		// reconciler); only the claim winner settles, the loser rolls back
		// having written nothing.
		if err := tx.TransitionOrder(order.ID, domain.OrderStatusPending, domain.OrderStatusExecuted); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("order %s is no longer pending: %w", order.ID, domain.ErrOrderAlreadyExecuted)
			}
			return err
		}

		p, err := tx.Portfolio()
		if err != nil {
			return err
		}

		switch order.Side {
		case domain.OrderSideBuy:
			return s.settleBuy(tx, p, order, executionPrice, amount, txn)
		case domain.OrderSideSell:
			return s.settleSell(tx, p, order, amount, txn)
		default:
			return fmt.Errorf("unknown side %q: %w", order.Side, domain.ErrInvalidOrder)
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("settled order",
		"order", order.ID,
		"side", order.Side,
		"quantity", order.Quantity,
		"price", executionPrice,
		"amount", domain.FormatUSD(amount))
	return txn, nil
}

// settleBuy re-checks cash sufficiency, applies weighted-average cost to the
// holding, debits cash, and appends the journal entry.
func (s *Settler) settleBuy(tx store.LedgerTx, p *domain.Portfolio, order *domain.Order, price, amount decimal.Decimal, txn *domain.Transaction) error {
	if p.CashBalance.LessThan(amount) {
		return fmt.Errorf("buy needs %s, cash balance is %s: %w",
			amount, p.CashBalance, domain.ErrSettlementConflict)
	}

	holding, err := tx.Holding(order.SecurityID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		holding = &domain.Holding{
			ID:           uuid.NewString(),
			PortfolioID:  p.ID,
			SecurityID:   order.SecurityID,
			Quantity:     order.Quantity,
			AveragePrice: price,
		}
	case err != nil:
		return err
	default:
		// newAvg = (oldQty×oldAvg + fillQty×fillPrice) / (oldQty + fillQty)
		newQty := holding.Quantity.Add(order.Quantity)
		cost := holding.Quantity.Mul(holding.AveragePrice).Add(amount)
		holding.AveragePrice = cost.Div(newQty)
		holding.Quantity = newQty
	}

	if err := tx.PutHolding(holding); err != nil {
		return err
	}
	if err := tx.SetCashBalance(p.CashBalance.Sub(amount)); err != nil {
		return err
	}
	return tx.AppendTransaction(txn)
}

// settleSell re-checks share sufficiency, decrements (or removes) the
// holding, credits cash, and appends the journal entry. The average price is
// untouched; cost basis changes only on buys.
func (s *Settler) settleSell(tx store.LedgerTx, p *domain.Portfolio, order *domain.Order, amount decimal.Decimal, txn *domain.Transaction) error {
	holding, err := tx.Holding(order.SecurityID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no position in security %s: %w", order.SecurityID, domain.ErrSettlementConflict)
	}
	if err != nil {
		return err
	}
	if holding.Quantity.LessThan(order.Quantity) {
		return fmt.Errorf("selling %s but holding %s: %w",
			order.Quantity, holding.Quantity, domain.ErrSettlementConflict)
	}

	remaining := holding.Quantity.Sub(order.Quantity)
	if remaining.IsZero() {
		if err := tx.RemoveHolding(order.SecurityID); err != nil {
			return err
		}
	} else {
		holding.Quantity = remaining
		if err := tx.PutHolding(holding); err != nil {
			return err
		}
	}

	if err := tx.SetCashBalance(p.CashBalance.Add(amount)); err != nil {
		return err
	}
	return tx.AppendTransaction(txn)
}
