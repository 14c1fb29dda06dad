// Package gateway exposes the HTTP intake and the per-order WebSocket
// subscription endpoint. It is a thin layer over the engine service:
// validation and wire handling live here, execution semantics do not.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"swaprouter/internal/engine"
	"swaprouter/internal/model"
)

// maxAmountIn bounds a single market fill.
const maxAmountIn = 1e9

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Server is the public HTTP/WebSocket surface.
type Server struct {
	svc *engine.Service
	srv *http.Server
}

// NewServer wires the routes onto addr.
func NewServer(addr string, svc *engine.Service) *Server {
	s := &Server{svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/orders", s.handleOrders)
	mux.HandleFunc("/api/orders/", s.handleOrderByID)
	mux.HandleFunc("/ws/orders/", s.handleWS)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("gateway listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("gateway server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// handleOrders serves POST (create) and GET (list) on /api/orders.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		s.createOrder(w, r)
	case http.MethodGet:
		s.listOrders(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order := model.NewOrder(req.TokenIn, req.TokenOut, req.AmountIn)
	if err := s.svc.AddOrder(r.Context(), order); err != nil {
		slog.Error("order intake failed", "order_id", order.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "order intake failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(toOrderResponse(order))
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	orders, err := s.svc.ListOrders(r.Context(), limit, offset)
	if err != nil {
		slog.Error("order listing failed", "err", err)
		writeError(w, http.StatusInternalServerError, "order listing failed")
		return
	}

	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// handleOrderByID serves GET /api/orders/{id}.
func (s *Server) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := s.svc.GetOrder(r.Context(), id)
	if errors.Is(err, model.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		slog.Error("order lookup failed", "order_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "order lookup failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toOrderResponse(order))
}

// handleWS upgrades GET /ws/orders/{id} and binds the connection as the
// order's notification sink. An existing binding for the same order is
// replaced; last writer wins.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimPrefix(r.URL.Path, "/ws/orders/")
	if orderID == "" || strings.Contains(orderID, "/") {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "order_id", orderID, "err", err)
		return
	}

	client := newWSClient(conn)
	s.svc.RegisterWebSocket(orderID, client)
	slog.Info("ws subscriber connected", "order_id", orderID)

	go client.writePump()
	go client.readPump(orderID, func() {
		s.svc.UnregisterWebSocket(orderID, client)
	})
}

func validate(req CreateOrderRequest) error {
	switch {
	case req.TokenIn == "":
		return &model.ValidationError{Field: "tokenIn", Reason: "required"}
	case req.TokenOut == "":
		return &model.ValidationError{Field: "tokenOut", Reason: "required"}
	case req.TokenIn == req.TokenOut:
		return &model.ValidationError{Field: "tokenOut", Reason: "must differ from tokenIn"}
	case req.AmountIn <= 0:
		return &model.ValidationError{Field: "amountIn", Reason: "must be positive"}
	case req.AmountIn > maxAmountIn:
		return &model.ValidationError{Field: "amountIn", Reason: "exceeds maximum"}
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
