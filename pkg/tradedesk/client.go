// Package tradedesk provides a Go SDK for the tradedesk HTTP API.
package tradedesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is a thin HTTP client for the tradedesk API. All calls are scoped
// to the user the client was created for.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewClient creates a new tradedesk API client acting as the given user.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL:    baseURL,
		userID:     userID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// PlaceOrderParams describes an order to submit. Quantity and LimitPrice are
// decimal strings.
type PlaceOrderParams struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	Quantity    string `json:"quantity"`
	LimitPrice  string `json:"limit_price,omitempty"`
	TimeInForce string `json:"time_in_force,omitempty"`
}

// Order is the API's view of an order.
type Order struct {
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

// Holding is one position inside a portfolio.
type Holding struct {
	SecurityID   string `json:"security_id"`
	Quantity     string `json:"quantity"`
	AveragePrice string `json:"average_price"`
}

// Portfolio is the API's view of the caller's account.
type Portfolio struct {
	ID          string    `json:"id"`
	CashBalance string    `json:"cash_balance"`
	CashDisplay string    `json:"cash_display"`
	UpdatedAt   time.Time `json:"updated_at"`
	Holdings    []Holding `json:"holdings"`
}

// Transaction is one settled journal entry.
type Transaction struct {
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

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// PlaceOrder submits a new order.
func (c *Client) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", params, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels a pending order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodDelete, "/api/v1/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder retrieves an order by ID.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListActiveOrders returns the caller's pending orders.
func (c *Client) ListActiveOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders?scope=active", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOrderHistory returns all of the caller's orders.
func (c *Client) ListOrderHistory(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders?scope=history", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetPortfolio returns the caller's portfolio and holdings.
func (c *Client) GetPortfolio(ctx context.Context) (*Portfolio, error) {
	var p Portfolio
	if err := c.do(ctx, http.MethodGet, "/api/v1/portfolio", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListTransactions returns the caller's most recent journal entries.
func (c *Client) ListTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	path := fmt.Sprintf("/api/v1/transactions?limit=%d", limit)
	var txns []Transaction
	if err := c.do(ctx, http.MethodGet, path, nil, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-User-ID", c.userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if derr := json.NewDecoder(resp.Body).Decode(&apiErr); derr != nil || apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
