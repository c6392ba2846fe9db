// Command tradedesk-archive exports the settled-transaction journal from the
// SQLite store into monthly Parquet archive files for reporting pipelines.
// The export is idempotent; re-running a window merges by transaction id.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"tradedesk/internal/config"
	"tradedesk/internal/store"
	"tradedesk/internal/util"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath = flag.String("config", "config/tradedesk.yaml", "path to config file")
		startS  = flag.String("start", "", "start date (YYYY-MM-DD), default 30 days ago")
		endS    = flag.String("end", "", "end date (YYYY-MM-DD, exclusive), default tomorrow")
	)
	flag.Parse()

	if p := os.Getenv("TRADEDESK_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level)

	end := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -31)
	if *startS != "" {
		if start, err = time.Parse("2006-01-02", *startS); err != nil {
			log.Fatalf("invalid -start: %v", err)
		}
	}
	if *endS != "" {
		if end, err = time.Parse("2006-01-02", *endS); err != nil {
			log.Fatalf("invalid -end: %v", err)
		}
	}

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	txns, err := st.ListTransactionsBetween(ctx, start, end)
	if err != nil {
		log.Fatalf("failed to read journal: %v", err)
	}

	archive := store.NewJournalArchive(cfg.Storage.DataDir)
	if err := archive.WriteTransactions(ctx, txns); err != nil {
		log.Fatalf("failed to write archive: %v", err)
	}

	logger.Info("journal archived",
		"transactions", len(txns),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"dir", cfg.Storage.DataDir)
}
