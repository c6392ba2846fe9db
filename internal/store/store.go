// Package store defines storage interfaces for persisting and retrieving
// domain objects: portfolios, holdings, orders, transactions, and security
// reference data.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// PortfolioStore reads portfolio and holding state. Mutation happens only
// through LedgerStore.RunLedgerTx.
type PortfolioStore interface {
	// CreatePortfolio inserts a new portfolio row.
	CreatePortfolio(ctx context.Context, p *domain.Portfolio) error

	// GetPortfolio retrieves a portfolio by its ID.
	GetPortfolio(ctx context.Context, id string) (*domain.Portfolio, error)

	// GetPortfolioByUser retrieves the portfolio owned by the given user.
	GetPortfolioByUser(ctx context.Context, userID string) (*domain.Portfolio, error)

	// GetHolding retrieves the holding for a (portfolio, security) pair.
	GetHolding(ctx context.Context, portfolioID, securityID string) (*domain.Holding, error)

	// ListHoldings returns all holdings of a portfolio, ordered by security.
	ListHoldings(ctx context.Context, portfolioID string) ([]domain.Holding, error)
}

// OrderStore persists and retrieves order records.
type OrderStore interface {
	// SaveOrder inserts a new order into storage.
	SaveOrder(ctx context.Context, order *domain.Order) error

	// GetOrder retrieves a single order by its ID.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// ListOrdersByUser returns a user's orders, newest first, optionally
	// filtered to the given statuses.
	ListOrdersByUser(ctx context.Context, userID string, statuses ...domain.OrderStatus) ([]domain.Order, error)

	// ListOrdersByStatus returns all orders in the given status, oldest first.
	ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)

	// TransitionOrder moves an order from one status to another. It returns
	// ErrNotFound when the order is not currently in the from status, which
	// callers treat as a lost transition race.
	TransitionOrder(ctx context.Context, id string, from, to domain.OrderStatus) error

	// SetVenueOrderID records the venue-assigned identifier for an order.
	SetVenueOrderID(ctx context.Context, id, venueOrderID string) error
}

// TransactionStore reads the append-only transaction journal. Appends happen
// only inside a ledger transaction.
type TransactionStore interface {
	// ListTransactions returns a user's transactions, newest first, up to limit.
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)

	// ListTransactionsBetween returns all transactions in [start, end),
	// oldest first. Used by the journal archiver.
	ListTransactionsBetween(ctx context.Context, start, end time.Time) ([]domain.Transaction, error)
}

// SecurityStore reads security reference data. Upserts come from the external
// price feed and from seeding; the trading core only reads.
type SecurityStore interface {
	// GetSecurity retrieves a security by its ID.
	GetSecurity(ctx context.Context, id string) (*domain.Security, error)

	// GetSecurityBySymbol resolves a ticker symbol to its security row.
	GetSecurityBySymbol(ctx context.Context, symbol string) (*domain.Security, error)

	// UpsertSecurity inserts or updates a security reference row.
	UpsertSecurity(ctx context.Context, sec *domain.Security) error

	// ListSecurities returns all known securities ordered by symbol.
	ListSecurities(ctx context.Context) ([]domain.Security, error)
}

// LedgerTx is a transactional view over one portfolio's ledger rows. All
// reads observe the current stored state, not any earlier snapshot.
type LedgerTx interface {
	// Portfolio returns the portfolio row as of this transaction.
	Portfolio() (*domain.Portfolio, error)

	// Holding returns the holding for the given security, or ErrNotFound.
	Holding(securityID string) (*domain.Holding, error)

	// PutHolding inserts or updates a holding row.
	PutHolding(h *domain.Holding) error

	// RemoveHolding deletes the holding for the given security.
	RemoveHolding(securityID string) error

	// SetCashBalance updates the portfolio's cash balance.
	SetCashBalance(balance decimal.Decimal) error

	// AppendTransaction appends an immutable journal entry.
	AppendTransaction(t *domain.Transaction) error

	// TransitionOrder moves an order between statuses with the same
	// current-status guard as OrderStore.TransitionOrder. Settlement claims
	// the order through this inside the same transaction as its ledger
	// writes, so a fill reported on two paths settles exactly once.
	TransitionOrder(id string, from, to domain.OrderStatus) error
}

// LedgerStore exposes the atomic multi-record write primitive: fn runs inside
// a single storage transaction and either all of its writes apply or none do.
type LedgerStore interface {
	RunLedgerTx(ctx context.Context, portfolioID string, fn func(LedgerTx) error) error
}
