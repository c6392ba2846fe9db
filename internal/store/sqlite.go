package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"tradedesk/internal/domain"
)

// Compile-time interface checks.
var _ PortfolioStore = (*SQLiteStore)(nil)
var _ OrderStore = (*SQLiteStore)(nil)
var _ TransactionStore = (*SQLiteStore)(nil)
var _ SecurityStore = (*SQLiteStore)(nil)
var _ LedgerStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS portfolios (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL UNIQUE,
	cash_balance TEXT NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
	id            TEXT PRIMARY KEY,
	portfolio_id  TEXT NOT NULL REFERENCES portfolios(id),
	security_id   TEXT NOT NULL,
	quantity      TEXT NOT NULL,
	average_price TEXT NOT NULL,
	UNIQUE (portfolio_id, security_id)
);

CREATE TABLE IF NOT EXISTS securities (
	id         TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT '',
	last_price TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	security_id    TEXT NOT NULL,
	symbol         TEXT NOT NULL,
	side           TEXT NOT NULL,
	order_type     TEXT NOT NULL,
	quantity       TEXT NOT NULL,
	limit_price    TEXT NOT NULL,
	time_in_force  TEXT NOT NULL,
	status         TEXT NOT NULL,
	venue_order_id TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_user_idx   ON orders (user_id, created_at);
CREATE INDEX IF NOT EXISTS orders_status_idx ON orders (status);

CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	security_id TEXT NOT NULL,
	side        TEXT NOT NULL,
	quantity    TEXT NOT NULL,
	price       TEXT NOT NULL,
	amount      TEXT NOT NULL,
	commission  TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_user_idx ON transactions (user_id, created_at);
`

// SQLiteStore implements PortfolioStore, OrderStore, TransactionStore,
// SecurityStore, and LedgerStore backed by a SQLite database. Decimal values
// are stored as text to keep arithmetic exact.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs
// migrations, and returns a ready-to-use SQLiteStore. SQLite supports a
// single writer, so the connection pool is capped at one connection; ledger
// transactions from concurrent callers queue on the pool instead of
// returning busy errors. Transactions begin immediate (_txlock) so every
// RunLedgerTx takes the write lock up front; serialization does not depend
// on the pool size alone.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_txlock=immediate&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// storageErr tags a driver error as an infrastructure failure while keeping
// its message. sql.ErrNoRows maps to ErrNotFound.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStorageUnavailable)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ---------------------------------------------------------------------------
// PortfolioStore implementation
// ---------------------------------------------------------------------------

// CreatePortfolio inserts a new portfolio row.
func (s *SQLiteStore) CreatePortfolio(ctx context.Context, p *domain.Portfolio) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO portfolios (id, user_id, cash_balance, updated_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.UserID, p.CashBalance.String(), p.UpdatedAt.UnixMilli())
	return storageErr("inserting portfolio", err)
}

// GetPortfolio retrieves a portfolio by its ID.
func (s *SQLiteStore) GetPortfolio(ctx context.Context, id string) (*domain.Portfolio, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, cash_balance, updated_at FROM portfolios WHERE id = ?`, id)
	return scanPortfolio(row)
}

// GetPortfolioByUser retrieves the portfolio owned by the given user.
func (s *SQLiteStore) GetPortfolioByUser(ctx context.Context, userID string) (*domain.Portfolio, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, cash_balance, updated_at FROM portfolios WHERE user_id = ?`, userID)
	return scanPortfolio(row)
}

func scanPortfolio(row *sql.Row) (*domain.Portfolio, error) {
	var p domain.Portfolio
	var balance string
	var updated int64
	if err := row.Scan(&p.ID, &p.UserID, &balance, &updated); err != nil {
		return nil, storageErr("scanning portfolio", err)
	}
	var err error
	if p.CashBalance, err = parseDecimal(balance); err != nil {
		return nil, fmt.Errorf("parsing cash balance: %w", err)
	}
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return &p, nil
}

// GetHolding retrieves the holding for a (portfolio, security) pair.
func (s *SQLiteStore) GetHolding(ctx context.Context, portfolioID, securityID string) (*domain.Holding, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, portfolio_id, security_id, quantity, average_price
		   FROM holdings WHERE portfolio_id = ? AND security_id = ?`, portfolioID, securityID)
	return scanHolding(row.Scan)
}

// ListHoldings returns all holdings of a portfolio, ordered by security.
func (s *SQLiteStore) ListHoldings(ctx context.Context, portfolioID string) ([]domain.Holding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, portfolio_id, security_id, quantity, average_price
		   FROM holdings WHERE portfolio_id = ? ORDER BY security_id`, portfolioID)
	if err != nil {
		return nil, storageErr("querying holdings", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows.Scan)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, *h)
	}
	return holdings, storageErr("iterating holdings", rows.Err())
}

func scanHolding(scan func(...any) error) (*domain.Holding, error) {
	var h domain.Holding
	var qty, avg string
	if err := scan(&h.ID, &h.PortfolioID, &h.SecurityID, &qty, &avg); err != nil {
		return nil, storageErr("scanning holding", err)
	}
	var err error
	if h.Quantity, err = parseDecimal(qty); err != nil {
		return nil, fmt.Errorf("parsing holding quantity: %w", err)
	}
	if h.AveragePrice, err = parseDecimal(avg); err != nil {
		return nil, fmt.Errorf("parsing holding average price: %w", err)
	}
	return &h, nil
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

const orderColumns = `id, user_id, security_id, symbol, side, order_type, quantity,
	limit_price, time_in_force, status, venue_order_id, created_at, updated_at`

// SaveOrder inserts a new order into the database.
func (s *SQLiteStore) SaveOrder(ctx context.Context, o *domain.Order) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.SecurityID, o.Symbol, string(o.Side), string(o.Type),
		o.Quantity.String(), o.LimitPrice.String(), string(o.TimeInForce),
		string(o.Status), o.VenueOrderID, o.CreatedAt.UnixMilli(), o.UpdatedAt.UnixMilli())
	return storageErr("inserting order", err)
}

// GetOrder retrieves a single order by its ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	return scanOrder(row.Scan)
}

// ListOrdersByUser returns a user's orders, newest first, optionally filtered
// to the given statuses.
func (s *SQLiteStore) ListOrdersByUser(ctx context.Context, userID string, statuses ...domain.OrderStatus) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ?`
	args := []any{userID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(",?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("querying orders", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListOrdersByStatus returns all orders in the given status, oldest first.
func (s *SQLiteStore) ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = ? ORDER BY created_at`, string(status))
	if err != nil {
		return nil, storageErr("querying orders by status", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// TransitionOrder moves an order from one status to another. The WHERE guard
// on the current status makes terminal states immutable at the storage layer:
// a transition that lost the race affects zero rows and returns ErrNotFound.
func (s *SQLiteStore) TransitionOrder(ctx context.Context, id string, from, to domain.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UnixMilli(), id, string(from))
	return transitionResult(res, err, id, from)
}

// transitionResult turns a guarded status UPDATE into ErrNotFound when the
// order was not in the expected status.
func transitionResult(res sql.Result, err error, id string, from domain.OrderStatus) error {
	if err != nil {
		return storageErr("updating order status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("updating order status", err)
	}
	if n == 0 {
		return fmt.Errorf("order %s not in status %s: %w", id, from, ErrNotFound)
	}
	return nil
}

// SetVenueOrderID records the venue-assigned identifier for an order.
func (s *SQLiteStore) SetVenueOrderID(ctx context.Context, id, venueOrderID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET venue_order_id = ?, updated_at = ? WHERE id = ?`,
		venueOrderID, time.Now().UnixMilli(), id)
	return storageErr("setting venue order id", err)
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, storageErr("iterating orders", rows.Err())
}

func scanOrder(scan func(...any) error) (*domain.Order, error) {
	var o domain.Order
	var side, otype, tif, status, qty, limit string
	var created, updated int64
	if err := scan(&o.ID, &o.UserID, &o.SecurityID, &o.Symbol, &side, &otype,
		&qty, &limit, &tif, &status, &o.VenueOrderID, &created, &updated); err != nil {
		return nil, storageErr("scanning order", err)
	}
	o.Side = domain.OrderSide(side)
	o.Type = domain.OrderType(otype)
	o.TimeInForce = domain.TimeInForce(tif)
	o.Status = domain.OrderStatus(status)
	var err error
	if o.Quantity, err = parseDecimal(qty); err != nil {
		return nil, fmt.Errorf("parsing order quantity: %w", err)
	}
	if o.LimitPrice, err = parseDecimal(limit); err != nil {
		return nil, fmt.Errorf("parsing order limit price: %w", err)
	}
	o.CreatedAt = time.UnixMilli(created).UTC()
	o.UpdatedAt = time.UnixMilli(updated).UTC()
	return &o, nil
}

// ---------------------------------------------------------------------------
// TransactionStore implementation
// ---------------------------------------------------------------------------

const txnColumns = `id, user_id, security_id, side, quantity, price, amount, commission, created_at`

// ListTransactions returns a user's transactions, newest first, up to limit.
func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, storageErr("querying transactions", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListTransactionsBetween returns all transactions in [start, end), oldest first.
func (s *SQLiteStore) ListTransactionsBetween(ctx context.Context, start, end time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE created_at >= ? AND created_at < ? ORDER BY created_at`,
		start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, storageErr("querying transactions by range", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var side, qty, price, amount, commission string
		var created int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.SecurityID, &side, &qty, &price,
			&amount, &commission, &created); err != nil {
			return nil, storageErr("scanning transaction", err)
		}
		t.Side = domain.OrderSide(side)
		var err error
		if t.Quantity, err = parseDecimal(qty); err != nil {
			return nil, fmt.Errorf("parsing transaction quantity: %w", err)
		}
		if t.Price, err = parseDecimal(price); err != nil {
			return nil, fmt.Errorf("parsing transaction price: %w", err)
		}
		if t.Amount, err = parseDecimal(amount); err != nil {
			return nil, fmt.Errorf("parsing transaction amount: %w", err)
		}
		if t.Commission, err = parseDecimal(commission); err != nil {
			return nil, fmt.Errorf("parsing transaction commission: %w", err)
		}
		t.CreatedAt = time.UnixMilli(created).UTC()
		txns = append(txns, t)
	}
	return txns, storageErr("iterating transactions", rows.Err())
}

// ---------------------------------------------------------------------------
// SecurityStore implementation
// ---------------------------------------------------------------------------

// GetSecurity retrieves a security by its ID.
func (s *SQLiteStore) GetSecurity(ctx context.Context, id string) (*domain.Security, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, name, type, last_price FROM securities WHERE id = ?`, id)
	return scanSecurity(row.Scan)
}

// GetSecurityBySymbol resolves a ticker symbol to its security row.
func (s *SQLiteStore) GetSecurityBySymbol(ctx context.Context, symbol string) (*domain.Security, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symbol, name, type, last_price FROM securities WHERE symbol = ?`,
		strings.ToUpper(symbol))
	return scanSecurity(row.Scan)
}

// UpsertSecurity inserts or updates a security reference row.
func (s *SQLiteStore) UpsertSecurity(ctx context.Context, sec *domain.Security) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO securities (id, symbol, name, type, last_price) VALUES (?, ?, ?, ?, ?)
		   ON CONFLICT (symbol) DO UPDATE SET name = excluded.name, type = excluded.type,
		   last_price = excluded.last_price`,
		sec.ID, strings.ToUpper(sec.Symbol), sec.Name, sec.Type, sec.LastPrice.String())
	return storageErr("upserting security", err)
}

// ListSecurities returns all known securities ordered by symbol.
func (s *SQLiteStore) ListSecurities(ctx context.Context) ([]domain.Security, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, name, type, last_price FROM securities ORDER BY symbol`)
	if err != nil {
		return nil, storageErr("querying securities", err)
	}
	defer rows.Close()

	var secs []domain.Security
	for rows.Next() {
		sec, err := scanSecurity(rows.Scan)
		if err != nil {
			return nil, err
		}
		secs = append(secs, *sec)
	}
	return secs, storageErr("iterating securities", rows.Err())
}

func scanSecurity(scan func(...any) error) (*domain.Security, error) {
	var sec domain.Security
	var price string
	if err := scan(&sec.ID, &sec.Symbol, &sec.Name, &sec.Type, &price); err != nil {
		return nil, storageErr("scanning security", err)
	}
	var err error
	if sec.LastPrice, err = parseDecimal(price); err != nil {
		return nil, fmt.Errorf("parsing security price: %w", err)
	}
	return &sec, nil
}

// ---------------------------------------------------------------------------
// LedgerStore implementation
// ---------------------------------------------------------------------------

// RunLedgerTx runs fn inside a single SQLite transaction scoped to one
// portfolio. Business errors from fn roll back every write; commit errors are
// surfaced as storage failures.
func (s *SQLiteStore) RunLedgerTx(ctx context.Context, portfolioID string, fn func(LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("beginning ledger tx", err)
	}

	lt := &sqliteLedgerTx{tx: tx, portfolioID: portfolioID}
	if err := fn(lt); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("committing ledger tx", err)
	}
	return nil
}

type sqliteLedgerTx struct {
	tx          *sql.Tx
	portfolioID string
}

func (lt *sqliteLedgerTx) Portfolio() (*domain.Portfolio, error) {
	var p domain.Portfolio
	var balance string
	var updated int64
	err := lt.tx.QueryRow(
		`SELECT id, user_id, cash_balance, updated_at FROM portfolios WHERE id = ?`,
		lt.portfolioID).Scan(&p.ID, &p.UserID, &balance, &updated)
	if err != nil {
		return nil, storageErr("reading portfolio in tx", err)
	}
	if p.CashBalance, err = parseDecimal(balance); err != nil {
		return nil, fmt.Errorf("parsing cash balance: %w", err)
	}
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return &p, nil
}

func (lt *sqliteLedgerTx) Holding(securityID string) (*domain.Holding, error) {
	row := lt.tx.QueryRow(
		`SELECT id, portfolio_id, security_id, quantity, average_price
		   FROM holdings WHERE portfolio_id = ? AND security_id = ?`,
		lt.portfolioID, securityID)
	return scanHolding(row.Scan)
}

func (lt *sqliteLedgerTx) PutHolding(h *domain.Holding) error {
	_, err := lt.tx.Exec(
		`INSERT INTO holdings (id, portfolio_id, security_id, quantity, average_price)
		   VALUES (?, ?, ?, ?, ?)
		   ON CONFLICT (portfolio_id, security_id) DO UPDATE SET
		   quantity = excluded.quantity, average_price = excluded.average_price`,
		h.ID, h.PortfolioID, h.SecurityID, h.Quantity.String(), h.AveragePrice.String())
	return storageErr("upserting holding in tx", err)
}

func (lt *sqliteLedgerTx) RemoveHolding(securityID string) error {
	_, err := lt.tx.Exec(
		`DELETE FROM holdings WHERE portfolio_id = ? AND security_id = ?`,
		lt.portfolioID, securityID)
	return storageErr("deleting holding in tx", err)
}

func (lt *sqliteLedgerTx) SetCashBalance(balance decimal.Decimal) error {
	_, err := lt.tx.Exec(
		`UPDATE portfolios SET cash_balance = ?, updated_at = ? WHERE id = ?`,
		balance.String(), time.Now().UnixMilli(), lt.portfolioID)
	return storageErr("updating cash balance in tx", err)
}

func (lt *sqliteLedgerTx) TransitionOrder(id string, from, to domain.OrderStatus) error {
	res, err := lt.tx.Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UnixMilli(), id, string(from))
	return transitionResult(res, err, id, from)
}

func (lt *sqliteLedgerTx) AppendTransaction(t *domain.Transaction) error {
	_, err := lt.tx.Exec(
		`INSERT INTO transactions (`+txnColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.SecurityID, string(t.Side), t.Quantity.String(),
		t.Price.String(), t.Amount.String(), t.Commission.String(), t.CreatedAt.UnixMilli())
	return storageErr("appending transaction in tx", err)
}
