package httpapi

import (
	"time"

	"tradedesk/internal/domain"
)

// placeOrderRequest is the POST /api/v1/orders payload. Quantity and
// limit_price are decimal strings so amounts survive the wire exactly.
type placeOrderRequest struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	Quantity    string `json:"quantity"`
	LimitPrice  string `json:"limit_price,omitempty"`
	TimeInForce string `json:"time_in_force,omitempty"`
}

type orderResponse struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	Type         string    `json:"type"`
	Quantity     string    `json:"quantity"`
	LimitPrice   string    `json:"limit_price,omitempty"`
	TimeInForce  string    `json:"time_in_force"`
	Status       string    `json:"status"`
	VenueOrderID string    `json:"venue_order_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		Symbol:       o.Symbol,
		Side:         string(o.Side),
		Type:         string(o.Type),
		Quantity:     o.Quantity.String(),
		TimeInForce:  string(o.TimeInForce),
		Status:       string(o.Status),
		VenueOrderID: o.VenueOrderID,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.Type == domain.OrderTypeLimit {
		resp.LimitPrice = o.LimitPrice.String()
	}
	return resp
}

type holdingResponse struct {
	SecurityID   string `json:"security_id"`
	Quantity     string `json:"quantity"`
	AveragePrice string `json:"average_price"`
}

type portfolioResponse struct {
	ID          string            `json:"id"`
	CashBalance string            `json:"cash_balance"`
	CashDisplay string            `json:"cash_display"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Holdings    []holdingResponse `json:"holdings"`
}

func toPortfolioResponse(p *domain.Portfolio, holdings []domain.Holding) portfolioResponse {
	resp := portfolioResponse{
		ID:          p.ID,
		CashBalance: p.CashBalance.String(),
		CashDisplay: domain.FormatUSD(p.CashBalance),
		UpdatedAt:   p.UpdatedAt,
		Holdings:    make([]holdingResponse, 0, len(holdings)),
	}
	for _, h := range holdings {
		resp.Holdings = append(resp.Holdings, holdingResponse{
			SecurityID:   h.SecurityID,
			Quantity:     h.Quantity.String(),
			AveragePrice: h.AveragePrice.String(),
		})
	}
	return resp
}

type transactionResponse struct {
	ID            string    `json:"id"`
	SecurityID    string    `json:"security_id"`
	Side          string    `json:"side"`
	Quantity      string    `json:"quantity"`
	Price         string    `json:"price"`
	Amount        string    `json:"amount"`
	AmountDisplay string    `json:"amount_display"`
	Commission    string    `json:"commission"`
	CreatedAt     time.Time `json:"created_at"`
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		SecurityID:    t.SecurityID,
		Side:          string(t.Side),
		Quantity:      t.Quantity.String(),
		Price:         t.Price.String(),
		Amount:        t.Amount.String(),
		AmountDisplay: domain.FormatUSD(t.Amount),
		Commission:    t.Commission.String(),
		CreatedAt:     t.CreatedAt,
	}
}

type securityResponse struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	LastPrice string `json:"last_price"`
}
