// Command tradedesk-server runs the trading API: order placement and
// cancellation, portfolio reads, and the background reconciler that resolves
// orders the venue fills asynchronously.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"tradedesk/internal/config"
	"tradedesk/internal/domain"
	"tradedesk/internal/engine"
	"tradedesk/internal/httpapi"
	"tradedesk/internal/store"
	"tradedesk/internal/util"
	"tradedesk/internal/venue"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfgPath := "config/tradedesk.yaml"
	if p := os.Getenv("TRADEDESK_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedSecurities(ctx, st, cfg.Securities); err != nil {
		log.Fatalf("failed to seed securities: %v", err)
	}

	var v venue.Venue
	if cfg.Trading.PaperMode {
		v = venue.NewSimulator(venue.SecurityPrices(st.GetSecurityBySymbol))
	} else {
		v = venue.NewAlpacaVenue(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	}
	logger.Info("venue configured", "venue", v.Name())

	settler := engine.NewSettler(st, st, decimal.NewFromFloat(cfg.Trading.CommissionRate), logger)
	eng := engine.NewEngine(st, v, settler, cfg.Trading.VenueTimeout(), logger)

	reconciler := engine.NewReconciler(eng, cfg.Trading.ReconcileInterval(), cfg.Trading.PollPerMin, logger)
	go func() {
		if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("reconciler stopped", "error", err)
		}
	}()

	api := httpapi.NewServer(eng, st, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: api.Handler()}

	go func() {
		logger.Info("http api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
}

// seedSecurities upserts configured reference rows so paper deployments have
// tradable symbols without waiting for the price feed.
func seedSecurities(ctx context.Context, st *store.SQLiteStore, seeds []config.SecuritySeed) error {
	for _, seed := range seeds {
		price, err := decimal.NewFromString(seed.LastPrice)
		if err != nil {
			return fmt.Errorf("security %s: parsing last_price %q: %w", seed.Symbol, seed.LastPrice, err)
		}
		sec := &domain.Security{
			ID:        uuid.NewString(),
			Symbol:    seed.Symbol,
			Name:      seed.Name,
			Type:      seed.Type,
			LastPrice: price,
		}
		if err := st.UpsertSecurity(ctx, sec); err != nil {
			return err
		}
	}
	return nil
}
