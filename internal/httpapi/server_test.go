package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
	"tradedesk/internal/engine"
	"tradedesk/internal/store"
	"tradedesk/internal/venue"
)

// newTestAPI assembles the full stack behind an httptest server: SQLite store,
// simulator venue, settler, engine, and the HTTP handler.
func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if err := st.UpsertSecurity(ctx, &domain.Security{
		ID: "s1", Symbol: "XYZ", Name: "XYZ Corp", Type: "equity",
		LastPrice: decimal.NewFromInt(50),
	}); err != nil {
		t.Fatalf("UpsertSecurity: %v", err)
	}
	if err := st.CreatePortfolio(ctx, &domain.Portfolio{
		ID: "p1", UserID: "u1",
		CashBalance: decimal.NewFromInt(1000),
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreatePortfolio: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	sim := venue.NewSimulator(venue.SecurityPrices(st.GetSecurityBySymbol))
	settler := engine.NewSettler(st, st, decimal.RequireFromString("0.002"), logger)
	e := engine.NewEngine(st, sim, settler, time.Second, logger)

	srv := httptest.NewServer(NewServer(e, st, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, userID, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestPlaceOrderEndpoint(t *testing.T) {
	srv := newTestAPI(t)

	resp, body := doRequest(t, srv, "POST", "/api/v1/orders", "u1",
		`{"symbol":"XYZ","side":"buy","type":"market","quantity":"10"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %v)", resp.StatusCode, body)
	}
	if body["status"] != "executed" {
		t.Errorf("order status = %v, want executed", body["status"])
	}
	if body["symbol"] != "XYZ" {
		t.Errorf("symbol = %v, want XYZ", body["symbol"])
	}
	if body["quantity"] != "10" {
		t.Errorf("quantity = %v, want \"10\"", body["quantity"])
	}
}

func TestPlaceOrderRequiresCaller(t *testing.T) {
	srv := newTestAPI(t)
	resp, _ := doRequest(t, srv, "POST", "/api/v1/orders", "",
		`{"symbol":"XYZ","side":"buy","type":"market","quantity":"1"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestPlaceOrderInsufficientFunds(t *testing.T) {
	srv := newTestAPI(t)

	resp, body := doRequest(t, srv, "POST", "/api/v1/orders", "u1",
		`{"symbol":"XYZ","side":"buy","type":"market","quantity":"21"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body: %v)", resp.StatusCode, body)
	}
	// The rejected order record rides along with the error.
	order, ok := body["order"].(map[string]any)
	if !ok {
		t.Fatalf("body has no order record: %v", body)
	}
	if order["status"] != "rejected" {
		t.Errorf("order status = %v, want rejected", order["status"])
	}
}

func TestPlaceOrderUnknownSymbol(t *testing.T) {
	srv := newTestAPI(t)
	resp, _ := doRequest(t, srv, "POST", "/api/v1/orders", "u1",
		`{"symbol":"NOPE","side":"buy","type":"market","quantity":"1"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPlaceOrderBadJSON(t *testing.T) {
	srv := newTestAPI(t)
	resp, _ := doRequest(t, srv, "POST", "/api/v1/orders", "u1", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCancelOrderEndpoint(t *testing.T) {
	srv := newTestAPI(t)

	// A non-marketable limit buy stays open at the simulator.
	resp, body := doRequest(t, srv, "POST", "/api/v1/orders", "u1",
		`{"symbol":"XYZ","side":"buy","type":"limit","quantity":"1","limit_price":"45"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place status = %d, want 201 (body: %v)", resp.StatusCode, body)
	}
	if body["status"] != "pending" {
		t.Fatalf("order status = %v, want pending", body["status"])
	}
	orderID := body["id"].(string)

	resp, body = doRequest(t, srv, "DELETE", "/api/v1/orders/"+orderID, "u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200 (body: %v)", resp.StatusCode, body)
	}
	if body["status"] != "cancelled" {
		t.Errorf("order status = %v, want cancelled", body["status"])
	}

	// Cancelling a cancelled order conflicts.
	resp, _ = doRequest(t, srv, "DELETE", "/api/v1/orders/"+orderID, "u1", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", resp.StatusCode)
	}
}

func TestCancelExecutedOrderConflicts(t *testing.T) {
	srv := newTestAPI(t)

	resp, body := doRequest(t, srv, "POST", "/api/v1/orders", "u1",
		`{"symbol":"XYZ","side":"buy","type":"market","quantity":"1"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place status = %d, want 201", resp.StatusCode)
	}
	orderID := body["id"].(string)

	resp, _ = doRequest(t, srv, "DELETE", "/api/v1/orders/"+orderID, "u1", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("cancel status = %d, want 409", resp.StatusCode)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	srv := newTestAPI(t)

	_, body := doRequest(t, srv, "POST", "/api/v1/orders", "u1",
		`{"symbol":"XYZ","side":"buy","type":"market","quantity":"1"}`)
	orderID := body["id"].(string)

	resp, _ := doRequest(t, srv, "GET", "/api/v1/orders/"+orderID, "u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("owner read status = %d, want 200", resp.StatusCode)
	}

	resp, _ = doRequest(t, srv, "GET", "/api/v1/orders/"+orderID, "intruder", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("intruder read status = %d, want 403", resp.StatusCode)
	}

	resp, _ = doRequest(t, srv, "GET", "/api/v1/orders/missing", "u1", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing order status = %d, want 404", resp.StatusCode)
	}
}

func TestPortfolioEndpoint(t *testing.T) {
	srv := newTestAPI(t)

	if resp, _ := doRequest(t, srv, "POST", "/api/v1/orders", "u1",
		`{"symbol":"XYZ","side":"buy","type":"market","quantity":"10"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("place status = %d, want 201", resp.StatusCode)
	}

	resp, body := doRequest(t, srv, "GET", "/api/v1/portfolio", "u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["cash_balance"] != "500" {
		t.Errorf("cash_balance = %v, want \"500\"", body["cash_balance"])
	}
	if body["cash_display"] != "$500.00" {
		t.Errorf("cash_display = %v, want $500.00", body["cash_display"])
	}
	holdings, ok := body["holdings"].([]any)
	if !ok || len(holdings) != 1 {
		t.Fatalf("holdings = %v, want one entry", body["holdings"])
	}
	h := holdings[0].(map[string]any)
	if h["quantity"] != "10" || h["average_price"] != "50" {
		t.Errorf("holding = %v, want 10 @ 50", h)
	}
}

func TestListOrdersScope(t *testing.T) {
	srv := newTestAPI(t)

	// One executed market order, one pending limit order.
	doRequest(t, srv, "POST", "/api/v1/orders", "u1",
		`{"symbol":"XYZ","side":"buy","type":"market","quantity":"1"}`)
	doRequest(t, srv, "POST", "/api/v1/orders", "u1",
		`{"symbol":"XYZ","side":"buy","type":"limit","quantity":"1","limit_price":"45"}`)

	req, _ := http.NewRequest("GET", srv.URL+"/api/v1/orders?scope=active", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	defer resp.Body.Close()
	var active []map[string]any
	json.NewDecoder(resp.Body).Decode(&active)
	if len(active) != 1 || active[0]["status"] != "pending" {
		t.Errorf("active = %v, want one pending order", active)
	}

	req, _ = http.NewRequest("GET", srv.URL+"/api/v1/orders?scope=history", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	defer resp.Body.Close()
	var history []map[string]any
	json.NewDecoder(resp.Body).Decode(&history)
	if len(history) != 2 {
		t.Errorf("history has %d orders, want 2", len(history))
	}

	badResp, _ := doRequest(t, srv, "GET", "/api/v1/orders?scope=bogus", "u1", "")
	if badResp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus scope status = %d, want 400", badResp.StatusCode)
	}
}

func TestTransactionsEndpoint(t *testing.T) {
	srv := newTestAPI(t)

	doRequest(t, srv, "POST", "/api/v1/orders", "u1",
		`{"symbol":"XYZ","side":"buy","type":"market","quantity":"10"}`)

	req, _ := http.NewRequest("GET", srv.URL+"/api/v1/transactions", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	defer resp.Body.Close()

	var txns []map[string]any
	json.NewDecoder(resp.Body).Decode(&txns)
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if txns[0]["amount"] != "500" {
		t.Errorf("amount = %v, want \"500\"", txns[0]["amount"])
	}
	if txns[0]["amount_display"] != "$500.00" {
		t.Errorf("amount_display = %v, want $500.00", txns[0]["amount_display"])
	}
	if txns[0]["commission"] != "1" {
		t.Errorf("commission = %v, want \"1\"", txns[0]["commission"])
	}
}

func TestSecuritiesEndpoint(t *testing.T) {
	srv := newTestAPI(t)

	resp, err := srv.Client().Get(srv.URL + "/api/v1/securities")
	if err != nil {
		t.Fatalf("list securities: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var secs []map[string]any
	json.NewDecoder(resp.Body).Decode(&secs)
	if len(secs) != 1 || secs[0]["symbol"] != "XYZ" {
		t.Errorf("securities = %v, want one XYZ entry", secs)
	}
}
