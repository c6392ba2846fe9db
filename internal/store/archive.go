package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
)

// JournalArchive exports the settled-transaction journal to Parquet files on
// disk, one file per calendar month. Archive files are a cold copy for
// reporting pipelines; the SQLite journal stays authoritative.
type JournalArchive struct {
	DataDir string
}

// NewJournalArchive creates a JournalArchive rooted at the given data directory.
func NewJournalArchive(dataDir string) *JournalArchive {
	return &JournalArchive{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record type (on-disk schema)
// ---------------------------------------------------------------------------

// TransactionRecord is the Parquet schema for archived journal entries.
// Decimal fields are serialized as strings to keep them exact.
type TransactionRecord struct {
	ID         string `parquet:"id"`
	UserID     string `parquet:"user_id"`
	SecurityID string `parquet:"security_id"`
	Side       string `parquet:"side"`
	Quantity   string `parquet:"quantity"`
	Price      string `parquet:"price"`
	Amount     string `parquet:"amount"`
	Commission string `parquet:"commission"`
	CreatedAt  int64  `parquet:"created_at,timestamp(millisecond)"` // Unix ms
}

// WriteTransactions writes journal entries to Parquet files grouped by month.
// Each month produces a separate file at:
//
//	<DataDir>/journal/<YYYY>/<YYYY-MM>.parquet
//
// Re-archiving a month merges with existing records, deduplicated by
// transaction id, so the export is idempotent.
func (a *JournalArchive) WriteTransactions(_ context.Context, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	groups := make(map[string][]TransactionRecord)
	for _, t := range txns {
		month := t.CreatedAt.UTC().Format("2006-01")
		groups[month] = append(groups[month], TransactionRecord{
			ID:         t.ID,
			UserID:     t.UserID,
			SecurityID: t.SecurityID,
			Side:       string(t.Side),
			Quantity:   t.Quantity.String(),
			Price:      t.Price.String(),
			Amount:     t.Amount.String(),
			Commission: t.Commission.String(),
			CreatedAt:  t.CreatedAt.UnixMilli(),
		})
	}

	for month, records := range groups {
		path := a.monthPath(month)

		existing, _ := readParquetFile[TransactionRecord](path)
		merged := mergeTransactionRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing journal archive for %s: %w", month, err)
		}
	}
	return nil
}

// ReadTransactions reads archived journal entries for the given time range.
func (a *JournalArchive) ReadTransactions(_ context.Context, start, end time.Time) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(end); m = m.AddDate(0, 1, 0) {
		path := a.monthPath(m.Format("2006-01"))
		records, err := readParquetFile[TransactionRecord](path)
		if err != nil {
			// No archive for this month, skip.
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.CreatedAt).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			t, err := recordToTransaction(r)
			if err != nil {
				return nil, err
			}
			txns = append(txns, t)
		}
	}
	return txns, nil
}

func recordToTransaction(r TransactionRecord) (domain.Transaction, error) {
	t := domain.Transaction{
		ID:         r.ID,
		UserID:     r.UserID,
		SecurityID: r.SecurityID,
		Side:       domain.OrderSide(r.Side),
		CreatedAt:  time.UnixMilli(r.CreatedAt).UTC(),
	}
	for _, f := range []struct {
		dst  *decimal.Decimal
		src  string
		name string
	}{
		{&t.Quantity, r.Quantity, "quantity"},
		{&t.Price, r.Price, "price"},
		{&t.Amount, r.Amount, "amount"},
		{&t.Commission, r.Commission, "commission"},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("parsing archived %s for %s: %w", f.name, r.ID, err)
		}
		*f.dst = d
	}
	return t, nil
}

// monthPath returns the filesystem path for a monthly archive file.
// Layout: <dataDir>/journal/<YYYY>/<YYYY-MM>.parquet
func (a *JournalArchive) monthPath(month string) string {
	return filepath.Join(a.DataDir, "journal", month[:4], month+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeTransactionRecords deduplicates records by id, preferring new records
// over existing ones. Results are sorted by timestamp then id.
func mergeTransactionRecords(existing, incoming []TransactionRecord) []TransactionRecord {
	seen := make(map[string]TransactionRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.ID] = r
	}
	for _, r := range incoming {
		seen[r.ID] = r
	}

	merged := make([]TransactionRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt < merged[j].CreatedAt
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
