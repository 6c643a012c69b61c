// Package mockgateway provides a mock Interactive Brokers Client Portal
// gateway for testing. It implements the REST endpoints the ibkr provider uses
// and simulates fills for market orders and resting stop and limit orders.
package mockgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// APIPrefix is the path prefix of the Client Portal API.
const APIPrefix = "/v1/api"

// OrderStatus mirrors gateway order statuses.
type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "Submitted"
	OrderStatusFilled    OrderStatus = "Filled"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// Price is the market data reported for a contract.
type Price struct {
	Last  float64
	Close float64
}

// OrderRequest is one order as posted by a client.
type OrderRequest struct {
	AcctID     string   `json:"acctId"`
	ConID      int64    `json:"conid"`
	COID       string   `json:"cOID,omitempty"`
	OrderType  string   `json:"orderType"`
	Side       string   `json:"side"`
	Quantity   int      `json:"quantity"`
	Tif        string   `json:"tif"`
	OutsideRTH bool     `json:"outsideRTH"`
	Price      *float64 `json:"price,omitempty"`
}

// Order is an order known to the gateway.
type Order struct {
	OrderID   int64
	Request   OrderRequest
	Status    OrderStatus
	CreatedAt time.Time
}

// ServerConfig configures the initial state.
type ServerConfig struct {
	AccountID string
	Prices    map[int64]Price
	Positions map[int64]float64
	// RequireConfirmation makes every order answer with one confirmation prompt first.
	RequireConfirmation bool
	FirstOrderID        int64
}

// MockIBKRGateway is a mock Client Portal gateway.
type MockIBKRGateway struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener

	accountID           string
	authenticated       bool
	requireConfirmation bool
	prices              map[int64]Price
	positions           map[int64]float64
	orders              map[int64]*Order
	orderIDSeq          int64
	pendingReplies      map[string]OrderRequest
	rejectOrderTypes    map[string]string
	submissions         []OrderRequest
	cancellations       []int64
}

// NewMockIBKRGateway creates a gateway with the given state.
func NewMockIBKRGateway(config ServerConfig) *MockIBKRGateway {
	gateway := &MockIBKRGateway{
		mu:                  sync.RWMutex{},
		httpServer:          nil,
		listener:            nil,
		accountID:           config.AccountID,
		authenticated:       true,
		requireConfirmation: config.RequireConfirmation,
		prices:              make(map[int64]Price),
		positions:           make(map[int64]float64),
		orders:              make(map[int64]*Order),
		orderIDSeq:          config.FirstOrderID,
		pendingReplies:      make(map[string]OrderRequest),
		rejectOrderTypes:    make(map[string]string),
		submissions:         nil,
		cancellations:       nil,
	}

	if gateway.accountID == "" {
		gateway.accountID = "DU1234567"
	}

	if gateway.orderIDSeq == 0 {
		gateway.orderIDSeq = 1000
	}

	for conid, price := range config.Prices {
		gateway.prices[conid] = price
	}

	for conid, qty := range config.Positions {
		gateway.positions[conid] = qty
	}

	return gateway
}

// Handler returns the gateway router, for use with httptest.
func (s *MockIBKRGateway) Handler() http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix(APIPrefix).Subrouter()

	api.HandleFunc("/iserver/auth/status", s.handleAuthStatus).Methods("POST")
	api.HandleFunc("/iserver/marketdata/snapshot", s.handleSnapshot).Methods("GET")
	api.HandleFunc("/portfolio/{accountId}/positions/{page}", s.handlePositions).Methods("GET")
	api.HandleFunc("/iserver/account/orders", s.handleLiveOrders).Methods("GET")
	api.HandleFunc("/iserver/account/{accountId}/orders", s.handlePlaceOrders).Methods("POST")
	api.HandleFunc("/iserver/reply/{replyId}", s.handleReply).Methods("POST")
	api.HandleFunc("/iserver/account/{accountId}/order/{orderId}", s.handleCancelOrder).Methods("DELETE")

	return router
}

// Start starts the gateway on the given address (":0" picks a free port).
func (s *MockIBKRGateway) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts the gateway down.
func (s *MockIBKRGateway) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Address returns the listening address.
func (s *MockIBKRGateway) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the API root a client should use.
func (s *MockIBKRGateway) BaseURL() string {
	return "http://" + s.Address() + APIPrefix
}

// AccountID returns the simulated account id.
func (s *MockIBKRGateway) AccountID() string {
	return s.accountID
}

// SetAuthenticated toggles the brokerage session state.
func (s *MockIBKRGateway) SetAuthenticated(authenticated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authenticated = authenticated
}

// SetPrice sets market data for a contract.
func (s *MockIBKRGateway) SetPrice(conid int64, price Price) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[conid] = price
}

// SetPosition sets the position for a contract.
func (s *MockIBKRGateway) SetPosition(conid int64, qty float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[conid] = qty
}

// Position returns the position for a contract.
func (s *MockIBKRGateway) Position(conid int64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.positions[conid]
}

// RejectOrderType makes the next orders of the given type fail with message.
func (s *MockIBKRGateway) RejectOrderType(orderType, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rejectOrderTypes[orderType] = message
}

// Submissions returns all accepted order requests in arrival order.
func (s *MockIBKRGateway) Submissions() []OrderRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.submissions)
}

// Cancellations returns the ids of cancelled orders.
func (s *MockIBKRGateway) Cancellations() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.cancellations)
}

// WorkingOrders returns resting orders sorted by id.
func (s *MockIBKRGateway) WorkingOrders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]Order, 0)

	for _, o := range s.orders {
		if o.Status == OrderStatusSubmitted {
			orders = append(orders, *o)
		}
	}

	slices.SortFunc(orders, func(a, b Order) int {
		return int(a.OrderID - b.OrderID)
	})

	return orders
}

// AddWorkingOrder places a resting order directly, bypassing the API.
func (s *MockIBKRGateway) AddWorkingOrder(orderID int64, request OrderRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[orderID] = &Order{OrderID: orderID, Request: request, Status: OrderStatusSubmitted, CreatedAt: time.Now()}
}

// TriggerStop fills a resting stop as if the exchange executed it.
func (s *MockIBKRGateway) TriggerStop(orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.Status != OrderStatusSubmitted || order.Request.OrderType != "STP" {
		return fmt.Errorf("no working stop order %d", orderID)
	}

	s.fillLocked(order)

	return nil
}

func (s *MockIBKRGateway) fillLocked(order *Order) {
	order.Status = OrderStatusFilled

	qty := float64(order.Request.Quantity)
	if order.Request.Side == "SELL" {
		qty = -qty
	}

	s.positions[order.Request.ConID] += qty
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *MockIBKRGateway) handleAuthStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	authenticated := s.authenticated
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": authenticated,
		"connected":     authenticated,
		"competing":     false,
		"message":       "",
	})
}

func (s *MockIBKRGateway) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]map[string]any, 0)

	for _, raw := range strings.Split(r.URL.Query().Get("conids"), ",") {
		conid, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			continue
		}

		entry := map[string]any{"conid": conid}

		if price, ok := s.prices[conid]; ok {
			if price.Last > 0 {
				entry["31"] = strconv.FormatFloat(price.Last, 'f', 2, 64)
			}

			if price.Close > 0 {
				entry["7741"] = "C" + strconv.FormatFloat(price.Close, 'f', 2, 64)
			}
		}

		result = append(result, entry)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *MockIBKRGateway) handlePositions(w http.ResponseWriter, r *http.Request) {
	if mux.Vars(r)["accountId"] != s.accountID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown account"})

		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]map[string]any, 0, len(s.positions))
	for conid, qty := range s.positions {
		result = append(result, map[string]any{
			"acctId":       s.accountID,
			"conid":        conid,
			"position":     qty,
			"contractDesc": strconv.FormatInt(conid, 10),
		})
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *MockIBKRGateway) handleLiveOrders(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]map[string]any, 0, len(s.orders))

	for _, o := range s.orders {
		entry := map[string]any{
			"acct":              s.accountID,
			"orderId":           o.OrderID,
			"conid":             o.Request.ConID,
			"orderType":         displayOrderType(o.Request.OrderType),
			"side":              o.Request.Side,
			"remainingQuantity": o.Request.Quantity,
			"status":            string(o.Status),
		}

		if o.Request.Price != nil {
			if o.Request.OrderType == "STP" {
				entry["auxPrice"] = strconv.FormatFloat(*o.Request.Price, 'f', 2, 64)
			} else {
				entry["price"] = strconv.FormatFloat(*o.Request.Price, 'f', 2, 64)
			}
		}

		orders = append(orders, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "snapshot": true})
}

func (s *MockIBKRGateway) handlePlaceOrders(w http.ResponseWriter, r *http.Request) {
	if mux.Vars(r)["accountId"] != s.accountID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown account"})

		return
	}

	var body struct {
		Orders []OrderRequest `json:"orders"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Orders) != 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order body"})

		return
	}

	request := body.Orders[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.requireConfirmation {
		replyID := uuid.NewString()
		s.pendingReplies[replyID] = request

		writeJSON(w, http.StatusOK, []map[string]any{{
			"id":      replyID,
			"message": []string{"You are about to submit an order outside regular trading hours. Are you sure?"},
		}})

		return
	}

	s.acceptLocked(w, request)
}

func (s *MockIBKRGateway) handleReply(w http.ResponseWriter, r *http.Request) {
	replyID := mux.Vars(r)["replyId"]

	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.pendingReplies[replyID]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown reply id"})

		return
	}

	delete(s.pendingReplies, replyID)
	s.acceptLocked(w, request)
}

func (s *MockIBKRGateway) acceptLocked(w http.ResponseWriter, request OrderRequest) {
	if message, reject := s.rejectOrderTypes[request.OrderType]; reject {
		writeJSON(w, http.StatusOK, []map[string]any{{"error": message}})

		return
	}

	s.orderIDSeq++
	order := &Order{OrderID: s.orderIDSeq, Request: request, Status: OrderStatusSubmitted, CreatedAt: time.Now()}
	s.orders[order.OrderID] = order
	s.submissions = append(s.submissions, request)

	if request.OrderType == "MKT" {
		s.fillLocked(order)
	}

	writeJSON(w, http.StatusOK, []map[string]any{{
		"order_id":     strconv.FormatInt(order.OrderID, 10),
		"order_status": string(order.Status),
	}})
}

func (s *MockIBKRGateway) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderId"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.Status != OrderStatusSubmitted {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "OrderID " + strconv.FormatInt(orderID, 10) + " doesn't exist"})

		return
	}

	order.Status = OrderStatusCancelled
	s.cancellations = append(s.cancellations, orderID)

	writeJSON(w, http.StatusOK, map[string]any{
		"msg":      "Request was submitted",
		"order_id": orderID,
		"conid":    order.Request.ConID,
	})
}

// displayOrderType returns the name the live orders listing uses.
func displayOrderType(orderType string) string {
	switch orderType {
	case "STP":
		return "Stop"
	case "LMT":
		return "Limit"
	case "MKT":
		return "Market"
	default:
		return orderType
	}
}
