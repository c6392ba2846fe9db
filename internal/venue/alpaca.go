package venue

import (
	"context"
	"errors"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"tradedesk/internal/domain"
)

// Compile-time interface check.
var _ Venue = (*AlpacaVenue)(nil)

// AlpacaVenue implements the Venue interface against the Alpaca trading API.
type AlpacaVenue struct {
	client *alpaca.Client
}

// NewAlpacaVenue creates an AlpacaVenue configured with the given credentials
// and API endpoint.
func NewAlpacaVenue(apiKey, apiSecret, baseURL string) *AlpacaVenue {
	return &AlpacaVenue{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

// Name returns "alpaca".
func (v *AlpacaVenue) Name() string { return "alpaca" }

// SubmitOrder sends an order to the Alpaca API for execution. The tradedesk
// order ID doubles as the client order ID so a submission whose response was
// lost can be recovered by polling.
func (v *AlpacaVenue) SubmitOrder(_ context.Context, order *domain.Order) (*Response, error) {
	qty := order.Quantity
	req := alpaca.PlaceOrderRequest{
		Symbol:        order.Symbol,
		Qty:           &qty,
		Side:          alpacaSide(order.Side),
		Type:          alpacaType(order.Type),
		TimeInForce:   alpacaTIF(order.TimeInForce),
		ClientOrderID: order.ID,
	}
	if order.Type == domain.OrderTypeLimit {
		limit := order.LimitPrice
		req.LimitPrice = &limit
	}

	placed, err := v.client.PlaceOrder(req)
	if err != nil {
		return nil, classify("submitting order", err)
	}
	return fromAlpacaOrder(placed), nil
}

// CancelOrder requests cancellation of an open order. When Alpaca refuses
// because the order is no longer open, the current order state is fetched so
// the caller can see whether execution won the race.
func (v *AlpacaVenue) CancelOrder(ctx context.Context, venueOrderID string) (*Response, error) {
	if err := v.client.CancelOrder(venueOrderID); err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 422 {
			// Not cancellable: report the order's actual state instead.
			return v.OrderStatus(ctx, venueOrderID)
		}
		return nil, classify("cancelling order", err)
	}
	return &Response{VenueOrderID: venueOrderID, Status: StatusCancelled}, nil
}

// OrderStatus returns Alpaca's current view of an order.
func (v *AlpacaVenue) OrderStatus(_ context.Context, venueOrderID string) (*Response, error) {
	o, err := v.client.GetOrder(venueOrderID)
	if err != nil {
		return nil, classify("querying order status", err)
	}
	return fromAlpacaOrder(o), nil
}

// classify maps SDK errors onto the venue error taxonomy: HTTP 4xx is a
// business rejection, everything else (5xx, transport) is retryable.
func classify(op string, err error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return fmt.Errorf("%s: %s: %w", op, apiErr.Message, domain.ErrVenueRejected)
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrVenueUnavailable)
}

func fromAlpacaOrder(o *alpaca.Order) *Response {
	resp := &Response{VenueOrderID: o.ID}
	switch o.Status {
	case "filled":
		resp.Status = StatusFilled
		if o.FilledAvgPrice != nil {
			resp.FilledPrice = *o.FilledAvgPrice
		}
	case "canceled", "expired":
		resp.Status = StatusCancelled
	case "rejected", "stopped", "suspended":
		resp.Status = StatusRejected
		resp.Message = "order " + o.Status + " by venue"
	default:
		// new, accepted, pending_new, partially_filled, ...: still working.
		resp.Status = StatusAccepted
	}
	return resp
}

func alpacaSide(s domain.OrderSide) alpaca.Side {
	if s == domain.OrderSideSell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func alpacaType(t domain.OrderType) alpaca.OrderType {
	if t == domain.OrderTypeLimit {
		return alpaca.Limit
	}
	return alpaca.Market
}

func alpacaTIF(tif domain.TimeInForce) alpaca.TimeInForce {
	if tif == domain.TimeInForceGTC {
		return alpaca.GTC
	}
	return alpaca.Day
}
