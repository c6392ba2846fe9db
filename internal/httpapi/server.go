// Package httpapi serves the caller-facing HTTP API: order placement and
// cancellation, order and portfolio reads, and the transaction journal. All
// operations are scoped to the authenticated caller, whose identity arrives
// in the X-User-ID header from the upstream auth layer.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"tradedesk/internal/domain"
	"tradedesk/internal/engine"
	"tradedesk/internal/store"
)

// Server serves the trading HTTP API.
type Server struct {
	engine     *engine.Engine
	securities store.SecurityStore
	log        *slog.Logger
}

// NewServer creates a new API server backed by the given engine.
func NewServer(e *engine.Engine, securities store.SecurityStore, log *slog.Logger) *Server {
	return &Server{
		engine:     e,
		securities: securities,
		log:        log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orders", s.handlePlaceOrder)
	mux.HandleFunc("GET /api/v1/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/v1/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("DELETE /api/v1/orders/{id}", s.handleCancelOrder)
	mux.HandleFunc("GET /api/v1/portfolio", s.handleGetPortfolio)
	mux.HandleFunc("GET /api/v1/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/v1/securities", s.handleListSecurities)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}

	var body placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	qty, err := decimal.NewFromString(body.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "quantity must be a decimal string")
		return
	}
	limit := decimal.Zero
	if body.LimitPrice != "" {
		if limit, err = decimal.NewFromString(body.LimitPrice); err != nil {
			writeError(w, http.StatusBadRequest, "limit_price must be a decimal string")
			return
		}
	}

	req := &domain.OrderRequest{
		UserID:      userID,
		Symbol:      body.Symbol,
		Side:        domain.OrderSide(body.Side),
		Type:        domain.OrderType(body.Type),
		Quantity:    qty,
		LimitPrice:  limit,
		TimeInForce: domain.TimeInForce(body.TimeInForce),
	}

	order, err := s.engine.PlaceOrder(r.Context(), req)
	if err != nil {
		// The order record (if any) still reflects the terminal state; report
		// both the state and the reason.
		s.writeOrderError(w, order, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, toOrderResponse(order))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}

	order, err := s.engine.CancelOrder(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeOrderError(w, order, err)
		return
	}
	writeJSON(w, toOrderResponse(order))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}

	order, err := s.engine.GetOrderStatus(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeOrderError(w, nil, err)
		return
	}
	writeJSON(w, toOrderResponse(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}

	var (
		orders []domain.Order
		err    error
	)
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "active":
		orders, err = s.engine.ListActiveOrders(r.Context(), userID)
	case "history":
		orders, err = s.engine.ListOrderHistory(r.Context(), userID)
	default:
		writeError(w, http.StatusBadRequest, "scope must be active or history")
		return
	}
	if err != nil {
		s.writeOrderError(w, nil, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	writeJSON(w, resp)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}

	portfolio, holdings, err := s.engine.GetPortfolio(r.Context(), userID)
	if err != nil {
		s.writeOrderError(w, nil, err)
		return
	}
	writeJSON(w, toPortfolioResponse(portfolio, holdings))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	txns, err := s.engine.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		s.writeOrderError(w, nil, err)
		return
	}

	resp := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		resp = append(resp, toTransactionResponse(&txns[i]))
	}
	writeJSON(w, resp)
}

func (s *Server) handleListSecurities(w http.ResponseWriter, r *http.Request) {
	secs, err := s.securities.ListSecurities(r.Context())
	if err != nil {
		s.writeOrderError(w, nil, err)
		return
	}

	resp := make([]securityResponse, 0, len(secs))
	for _, sec := range secs {
		resp = append(resp, securityResponse{
			ID:        sec.ID,
			Symbol:    sec.Symbol,
			Name:      sec.Name,
			Type:      sec.Type,
			LastPrice: sec.LastPrice.String(),
		})
	}
	writeJSON(w, resp)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// callerID extracts the authenticated user from the request, answering 401
// itself when absent.
func (s *Server) callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return "", false
	}
	return userID, true
}

// writeOrderError maps an engine error to an HTTP status. When the engine
// returned an order record alongside the error (a rejected placement, for
// example), the record rides along so the client sees the persisted state.
func (s *Server) writeOrderError(w http.ResponseWriter, order *domain.Order, err error) {
	status := statusForError(err)
	if status >= 500 {
		s.log.Error("request failed", "status", status, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"error": err.Error()}
	if order != nil {
		body["order"] = toOrderResponse(order)
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("encoding error response", "error", err)
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientShares),
		errors.Is(err, domain.ErrInvalidOrder):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSecurityNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrOrderNotCancellable),
		errors.Is(err, domain.ErrOrderAlreadyExecuted),
		errors.Is(err, domain.ErrSettlementConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrVenueRejected):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrVenueUnavailable),
		errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
