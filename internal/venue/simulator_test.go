package venue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
)

func fixedPrices(prices map[string]decimal.Decimal) PriceFunc {
	return func(_ context.Context, symbol string) (decimal.Decimal, error) {
		p, ok := prices[symbol]
		if !ok {
			return decimal.Zero, fmt.Errorf("no price for %s", symbol)
		}
		return p, nil
	}
}

func simOrderFor(side domain.OrderSide, otype domain.OrderType, limit decimal.Decimal) *domain.Order {
	return &domain.Order{
		ID:         "o1",
		Symbol:     "XYZ",
		Side:       side,
		Type:       otype,
		Quantity:   decimal.NewFromInt(10),
		LimitPrice: limit,
	}
}

func TestSimulatorMarketOrderFills(t *testing.T) {
	s := NewSimulator(fixedPrices(map[string]decimal.Decimal{"XYZ": decimal.NewFromInt(50)}))

	resp, err := s.SubmitOrder(context.Background(), simOrderFor(domain.OrderSideBuy, domain.OrderTypeMarket, decimal.Zero))
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if resp.Status != StatusFilled {
		t.Errorf("status = %s, want filled", resp.Status)
	}
	if !resp.FilledPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("filled price = %s, want 50", resp.FilledPrice)
	}
	if resp.VenueOrderID == "" {
		t.Error("missing venue order id")
	}
}

func TestSimulatorLimitOrders(t *testing.T) {
	tests := []struct {
		name  string
		side  domain.OrderSide
		limit int64
		want  Status
	}{
		{"buy limit above market is marketable", domain.OrderSideBuy, 55, StatusFilled},
		{"buy limit below market stays open", domain.OrderSideBuy, 45, StatusAccepted},
		{"sell limit below market is marketable", domain.OrderSideSell, 45, StatusFilled},
		{"sell limit above market stays open", domain.OrderSideSell, 55, StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSimulator(fixedPrices(map[string]decimal.Decimal{"XYZ": decimal.NewFromInt(50)}))
			resp, err := s.SubmitOrder(context.Background(),
				simOrderFor(tt.side, domain.OrderTypeLimit, decimal.NewFromInt(tt.limit)))
			if err != nil {
				t.Fatalf("SubmitOrder: %v", err)
			}
			if resp.Status != tt.want {
				t.Errorf("status = %s, want %s", resp.Status, tt.want)
			}
		})
	}
}

func TestSimulatorUnknownSymbolRejected(t *testing.T) {
	s := NewSimulator(fixedPrices(nil))
	_, err := s.SubmitOrder(context.Background(), simOrderFor(domain.OrderSideBuy, domain.OrderTypeMarket, decimal.Zero))
	if !errors.Is(err, domain.ErrVenueRejected) {
		t.Errorf("error = %v, want ErrVenueRejected", err)
	}
}

func TestSimulatorCancelOpenOrder(t *testing.T) {
	s := NewSimulator(fixedPrices(map[string]decimal.Decimal{"XYZ": decimal.NewFromInt(50)}))
	ctx := context.Background()

	resp, err := s.SubmitOrder(ctx, simOrderFor(domain.OrderSideBuy, domain.OrderTypeLimit, decimal.NewFromInt(45)))
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if resp.Status != StatusAccepted {
		t.Fatalf("status = %s, want accepted", resp.Status)
	}

	cresp, err := s.CancelOrder(ctx, resp.VenueOrderID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cresp.Status != StatusCancelled {
		t.Errorf("cancel status = %s, want cancelled", cresp.Status)
	}

	sresp, err := s.OrderStatus(ctx, resp.VenueOrderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if sresp.Status != StatusCancelled {
		t.Errorf("status after cancel = %s, want cancelled", sresp.Status)
	}
}

func TestSimulatorCancelFilledOrderRefused(t *testing.T) {
	s := NewSimulator(fixedPrices(map[string]decimal.Decimal{"XYZ": decimal.NewFromInt(50)}))
	ctx := context.Background()

	resp, err := s.SubmitOrder(ctx, simOrderFor(domain.OrderSideBuy, domain.OrderTypeMarket, decimal.Zero))
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	cresp, err := s.CancelOrder(ctx, resp.VenueOrderID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cresp.Status != StatusFilled {
		t.Errorf("cancel status = %s, want filled", cresp.Status)
	}
	if !cresp.FilledPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("filled price = %s, want 50", cresp.FilledPrice)
	}
}

func TestSimulatorFill(t *testing.T) {
	s := NewSimulator(fixedPrices(map[string]decimal.Decimal{"XYZ": decimal.NewFromInt(50)}))
	ctx := context.Background()

	resp, err := s.SubmitOrder(ctx, simOrderFor(domain.OrderSideBuy, domain.OrderTypeLimit, decimal.NewFromInt(45)))
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	if err := s.Fill(resp.VenueOrderID, decimal.NewFromInt(44)); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	sresp, err := s.OrderStatus(ctx, resp.VenueOrderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if sresp.Status != StatusFilled {
		t.Errorf("status = %s, want filled", sresp.Status)
	}
	if !sresp.FilledPrice.Equal(decimal.NewFromInt(44)) {
		t.Errorf("filled price = %s, want 44", sresp.FilledPrice)
	}

	// A second Fill on an already-filled order is refused.
	if err := s.Fill(resp.VenueOrderID, decimal.NewFromInt(43)); err == nil {
		t.Error("Fill on filled order succeeded, want error")
	}
}

func TestSimulatorUnknownOrderID(t *testing.T) {
	s := NewSimulator(fixedPrices(nil))
	if _, err := s.OrderStatus(context.Background(), "nope"); !errors.Is(err, domain.ErrVenueRejected) {
		t.Errorf("OrderStatus error = %v, want ErrVenueRejected", err)
	}
	if _, err := s.CancelOrder(context.Background(), "nope"); !errors.Is(err, domain.ErrVenueRejected) {
		t.Errorf("CancelOrder error = %v, want ErrVenueRejected", err)
	}
}
