package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tradedesk/internal/domain"
	"tradedesk/internal/util"
	"tradedesk/internal/venue"
)

// Reconciler is the out-of-band polling path for orders the venue accepted
// but did not fill synchronously, and for orders whose submit response was
// lost to a timeout. It sweeps pending orders on an interval and applies the
// venue's terminal answers through the engine's settlement path.
type Reconciler struct {
	engine   *Engine
	interval time.Duration
	limiter  *util.RateLimiter
	log      *slog.Logger
}

// NewReconciler creates a Reconciler that sweeps every interval, polling the
// venue at most pollPerMinute times per minute.
func NewReconciler(e *Engine, interval time.Duration, pollPerMinute int, log *slog.Logger) *Reconciler {
	return &Reconciler{
		engine:   e,
		interval: interval,
		limiter:  util.NewRateLimiter(pollPerMinute),
		log:      log.With("component", "reconciler"),
	}
}

// Run sweeps until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.log.Warn("sweep failed", "error", err)
			}
		}
	}
}

// Sweep polls every pending order that has a venue order ID and applies
// terminal venue answers. Orders without a venue ID never reached the venue;
// they stay pending until resubmitted or cancelled by the caller.
func (r *Reconciler) Sweep(ctx context.Context) error {
	pending, err := r.engine.store.ListOrdersByStatus(ctx, domain.OrderStatusPending)
	if err != nil {
		return err
	}

	for i := range pending {
		order := &pending[i]
		if order.VenueOrderID == "" {
			continue
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := r.pollStatus(ctx, order.VenueOrderID)
		if err != nil {
			r.log.Warn("status poll failed", "order", order.ID, "error", err)
			continue
		}
		if resp.Status == venue.StatusAccepted {
			continue
		}

		if _, err := r.engine.applyVenueResponse(ctx, order, resp); err != nil {
			// Terminal transitions are persisted by applyVenueResponse even on
			// settlement failure; only log here.
			r.log.Error("applying venue result", "order", order.ID, "status", resp.Status, "error", err)
		} else {
			r.log.Info("reconciled order", "order", order.ID, "status", order.Status)
		}
	}
	return nil
}

// pollStatus queries the venue, retrying transient unavailability. Each
// attempt is bounded by the engine's venue timeout so a hung venue cannot
// stall the sweep. Business rejections are not retried.
func (r *Reconciler) pollStatus(ctx context.Context, venueOrderID string) (*venue.Response, error) {
	var resp *venue.Response
	var business error
	err := util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		vctx, cancel := context.WithTimeout(ctx, r.engine.venueTimeout)
		defer cancel()

		var verr error
		resp, verr = r.engine.venue.OrderStatus(vctx, venueOrderID)
		if verr != nil && !errors.Is(verr, domain.ErrVenueUnavailable) {
			business = verr
			return nil
		}
		return verr
	})
	if err != nil {
		return nil, err
	}
	if business != nil {
		return nil, business
	}
	return resp, nil
}
