package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jadewok-pos/api/internal/database"
	"github.com/jadewok-pos/api/internal/handler"
	"github.com/jadewok-pos/api/internal/service"
)

// --- Mock OrderServicer ---

type mockOrderService struct {
	createFn       func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	updateStatusFn func(ctx context.Context, orderID, newStatus string) (database.Order, error)
	cancelFn       func(ctx context.Context, orderID string) (database.Order, error)
}

func (m *mockOrderService) Create(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
	return m.createFn(ctx, req)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, orderID, newStatus string) (database.Order, error) {
	return m.updateStatusFn(ctx, orderID, newStatus)
}

func (m *mockOrderService) Cancel(ctx context.Context, orderID string) (database.Order, error) {
	return m.cancelFn(ctx, orderID)
}

// --- Mock OrderStore ---

type mockOrderStore struct {
	getOrderFn              func(ctx context.Context, id string) (database.Order, error)
	listOrdersFn            func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listOrderItemsByOrderFn func(ctx context.Context, orderID string) ([]database.OrderItem, error)
	listPaymentsByOrderFn   func(ctx context.Context, orderID string) ([]database.Payment, error)
	countOrdersByStatusFn   func(ctx context.Context, since pgtype.Timestamptz) ([]database.CountOrdersByStatusRow, error)
	sumRevenueSinceFn       func(ctx context.Context, since pgtype.Timestamptz) (pgtype.Numeric, error)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id string) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID string) ([]database.OrderItem, error) {
	if m.listOrderItemsByOrderFn != nil {
		return m.listOrderItemsByOrderFn(ctx, orderID)
	}
	return []database.OrderItem{}, nil
}

func (m *mockOrderStore) ListPaymentsByOrder(ctx context.Context, orderID string) ([]database.Payment, error) {
	if m.listPaymentsByOrderFn != nil {
		return m.listPaymentsByOrderFn(ctx, orderID)
	}
	return []database.Payment{}, nil
}

func (m *mockOrderStore) CountOrdersByStatus(ctx context.Context, since pgtype.Timestamptz) ([]database.CountOrdersByStatusRow, error) {
	if m.countOrdersByStatusFn != nil {
		return m.countOrdersByStatusFn(ctx, since)
	}
	return []database.CountOrdersByStatusRow{}, nil
}

func (m *mockOrderStore) SumRevenueSince(ctx context.Context, since pgtype.Timestamptz) (pgtype.Numeric, error) {
	if m.sumRevenueSinceFn != nil {
		return m.sumRevenueSinceFn(ctx, since)
	}
	return makeNumeric("0.00"), nil
}

// --- Mock Broadcaster ---

type broadcastEvent struct {
	eventType string
	payload   interface{}
}

type mockHub struct {
	events []broadcastEvent
}

func (m *mockHub) Broadcast(eventType string, payload interface{}) {
	m.events = append(m.events, broadcastEvent{eventType: eventType, payload: payload})
}

// --- Test helpers ---

const testBaseURL = "http://localhost:5173"

func makeNumeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		panic(err)
	}
	return n
}

func testOrder() database.Order {
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return database.Order{
		ID:            "ORD-20260830-0001",
		Source:        "ai_voice_agent",
		CustomerName:  "Alice Chen",
		CustomerPhone: "555-0101",
		OrderType:     "pickup",
		Subtotal:      makeNumeric("34.40"),
		TaxRate:       makeNumeric("0.1175"),
		TaxAmount:     makeNumeric("4.04"),
		DeliveryFee:   makeNumeric("0.00"),
		Total:         makeNumeric("38.44"),
		Status:        "pending_payment",
		CreatedAt:     pgtype.Timestamptz{Time: created, Valid: true},
		UpdatedAt:     pgtype.Timestamptz{Time: created, Valid: true},
	}
}

func setupOrderRouter(svc *mockOrderService, store *mockOrderStore, hub *mockHub) *chi.Mux {
	h := handler.NewOrderHandler(svc, store, hub, testBaseURL)
	r := chi.NewRouter()
	r.Route("/api/orders", func(r chi.Router) {
		h.RegisterRoutes(r)
		h.RegisterIntakeRoutes(r)
		h.RegisterProtectedRoutes(r)
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"customer_name":  "Alice Chen",
		"customer_phone": "555-0101",
		"order_type":     "pickup",
		"items": []map[string]interface{}{
			{"name": "General Tao's Chicken", "quantity": 2},
			{"name": "White Rice", "quantity": 1},
		},
	}
}

// --- Create ---

func TestCreateOrder_Success(t *testing.T) {
	hub := &mockHub{}
	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			if req.CustomerName != "Alice Chen" {
				t.Errorf("customer name = %q, want Alice Chen", req.CustomerName)
			}
			if len(req.Items) != 2 {
				t.Errorf("items = %d, want 2", len(req.Items))
			}
			return &service.CreateOrderResult{Order: testOrder()}, nil
		},
	}
	router := setupOrderRouter(svc, &mockOrderStore{}, hub)

	rr := doRequest(t, router, http.MethodPost, "/api/orders", validCreateBody())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}

	resp := decodeBody(t, rr)
	if resp["success"] != true {
		t.Error("expected success true")
	}
	if _, ok := resp["warnings"]; ok {
		t.Error("expected no warnings key for a clean order")
	}

	order := resp["order"].(map[string]interface{})
	if order["order_id"] != "ORD-20260830-0001" {
		t.Errorf("order_id = %v", order["order_id"])
	}
	if order["total"] != "38.44" {
		t.Errorf("total = %v, want 38.44", order["total"])
	}
	if order["tax_rate"] != "0.1175" {
		t.Errorf("tax_rate = %v, want 0.1175", order["tax_rate"])
	}
	if order["payment_url"] != testBaseURL+"/pay/ORD-20260830-0001" {
		t.Errorf("payment_url = %v", order["payment_url"])
	}

	if len(hub.events) != 1 || hub.events[0].eventType != "new_order" {
		t.Errorf("expected one new_order broadcast, got %+v", hub.events)
	}
}

func TestCreateOrder_Warnings(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			return &service.CreateOrderResult{
				Order:    testOrder(),
				Warnings: []string{`Item not found in menu: "Dragon Surprise"`},
			}, nil
		},
	}
	router := setupOrderRouter(svc, &mockOrderStore{}, &mockHub{})

	rr := doRequest(t, router, http.MethodPost, "/api/orders", validCreateBody())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	resp := decodeBody(t, rr)
	warnings, ok := resp["warnings"].([]interface{})
	if !ok || len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one entry", resp["warnings"])
	}
}

func TestCreateOrder_InvalidBody(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{}, &mockHub{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestCreateOrder_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(body map[string]interface{})
	}{
		{"missing customer_name", func(b map[string]interface{}) { delete(b, "customer_name") }},
		{"missing customer_phone", func(b map[string]interface{}) { delete(b, "customer_phone") }},
		{"missing order_type", func(b map[string]interface{}) { delete(b, "order_type") }},
		{"empty items", func(b map[string]interface{}) { b["items"] = []map[string]interface{}{} }},
		{"item without name", func(b map[string]interface{}) {
			b["items"] = []map[string]interface{}{{"quantity": 1}}
		}},
		{"item with zero quantity", func(b map[string]interface{}) {
			b["items"] = []map[string]interface{}{{"name": "White Rice", "quantity": 0}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
					t.Fatal("service should not be called")
					return nil, nil
				},
			}
			router := setupOrderRouter(svc, &mockOrderStore{}, &mockHub{})

			body := validCreateBody()
			tt.mutate(body)
			rr := doRequest(t, router, http.MethodPost, "/api/orders", body)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestCreateOrder_ServiceValidationError(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			return nil, service.ErrInvalidOrderType
		},
	}
	router := setupOrderRouter(svc, &mockOrderStore{}, &mockHub{})

	body := validCreateBody()
	body["order_type"] = "teleport"
	rr := doRequest(t, router, http.MethodPost, "/api/orders", body)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// --- List ---

func TestListOrders(t *testing.T) {
	var gotParams database.ListOrdersParams
	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			gotParams = arg
			second := testOrder()
			second.ID = "ORD-20260830-0002"
			return []database.Order{testOrder(), second}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, &mockHub{})

	rr := doRequest(t, router, http.MethodGet, "/api/orders?status=pending_payment&type=pickup", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	resp := decodeBody(t, rr)
	if resp["count"] != float64(2) {
		t.Errorf("count = %v, want 2", resp["count"])
	}
	if gotParams.Status != "pending_payment" || gotParams.OrderType != "pickup" {
		t.Errorf("filters not passed through: %+v", gotParams)
	}
	if gotParams.Limit != 50 {
		t.Errorf("default limit = %d, want 50", gotParams.Limit)
	}
}

func TestListOrders_LimitCapped(t *testing.T) {
	var gotParams database.ListOrdersParams
	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			gotParams = arg
			return nil, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, &mockHub{})

	rr := doRequest(t, router, http.MethodGet, "/api/orders?limit=500", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if gotParams.Limit != 100 {
		t.Errorf("limit = %d, want 100", gotParams.Limit)
	}
}

func TestListOrders_InvalidDate(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{}, &mockHub{})

	rr := doRequest(t, router, http.MethodGet, "/api/orders?start_date=yesterday", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// --- Stats ---

func TestOrderStats(t *testing.T) {
	store := &mockOrderStore{
		countOrdersByStatusFn: func(ctx context.Context, since pgtype.Timestamptz) ([]database.CountOrdersByStatusRow, error) {
			return []database.CountOrdersByStatusRow{
				{Status: "pending_payment", Count: 2},
				{Status: "paid", Count: 3},
				{Status: "completed", Count: 5},
			}, nil
		},
		sumRevenueSinceFn: func(ctx context.Context, since pgtype.Timestamptz) (pgtype.Numeric, error) {
			return makeNumeric("312.75"), nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, &mockHub{})

	rr := doRequest(t, router, http.MethodGet, "/api/orders/stats", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	resp := decodeBody(t, rr)
	stats := resp["stats"].(map[string]interface{})
	if stats["total_orders"] != float64(10) {
		t.Errorf("total_orders = %v, want 10", stats["total_orders"])
	}
	if stats["paid"] != float64(3) {
		t.Errorf("paid = %v, want 3", stats["paid"])
	}
	if stats["total_revenue"] != "312.75" {
		t.Errorf("total_revenue = %v, want 312.75", stats["total_revenue"])
	}
}

// --- Get ---

func TestGetOrder_Success(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id string) (database.Order, error) {
			return testOrder(), nil
		},
		listOrderItemsByOrderFn: func(ctx context.Context, orderID string) ([]database.OrderItem, error) {
			return []database.OrderItem{{
				OrderID:    orderID,
				MenuItemID: "ent_001",
				Name:       "General Tao's Chicken",
				Matched:    true,
				Quantity:   2,
				UnitPrice:  makeNumeric("15.95"),
				LineTotal:  makeNumeric("31.90"),
			}}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, &mockHub{})

	rr := doRequest(t, router, http.MethodGet, "/api/orders/ORD-20260830-0001", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	resp := decodeBody(t, rr)
	order := resp["order"].(map[string]interface{})
	items := order["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	item := items[0].(map[string]interface{})
	if item["line_total"] != "31.90" {
		t.Errorf("line_total = %v, want 31.90", item["line_total"])
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{}, &mockHub{})

	rr := doRequest(t, router, http.MethodGet, "/api/orders/ORD-20260830-9999", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

// --- UpdateStatus ---

func TestUpdateOrderStatus_Success(t *testing.T) {
	hub := &mockHub{}
	svc := &mockOrderService{
		updateStatusFn: func(ctx context.Context, orderID, newStatus string) (database.Order, error) {
			if newStatus != "preparing" {
				t.Errorf("newStatus = %q, want preparing", newStatus)
			}
			o := testOrder()
			o.Status = "preparing"
			return o, nil
		},
	}
	router := setupOrderRouter(svc, &mockOrderStore{}, hub)

	rr := doRequest(t, router, http.MethodPut, "/api/orders/ORD-20260830-0001",
		map[string]string{"status": "preparing"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	resp := decodeBody(t, rr)
	order := resp["order"].(map[string]interface{})
	if order["status"] != "preparing" {
		t.Errorf("status = %v, want preparing", order["status"])
	}
	if len(hub.events) != 1 || hub.events[0].eventType != "order_updated" {
		t.Errorf("expected one order_updated broadcast, got %+v", hub.events)
	}
}

func TestUpdateOrderStatus_Errors(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
	}{
		{"unknown status", service.ErrInvalidStatus, http.StatusBadRequest},
		{"order not found", service.ErrOrderNotFound, http.StatusNotFound},
		{"invalid transition", service.ErrInvalidTransition, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := &mockHub{}
			svc := &mockOrderService{
				updateStatusFn: func(ctx context.Context, orderID, newStatus string) (database.Order, error) {
					return database.Order{}, tt.svcErr
				},
			}
			router := setupOrderRouter(svc, &mockOrderStore{}, hub)

			rr := doRequest(t, router, http.MethodPut, "/api/orders/ORD-20260830-0001",
				map[string]string{"status": "ready"})

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if len(hub.events) != 0 {
				t.Errorf("no broadcast expected on failure, got %+v", hub.events)
			}
		})
	}
}

func TestUpdateOrderStatus_MissingStatus(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{}, &mockHub{})

	rr := doRequest(t, router, http.MethodPut, "/api/orders/ORD-20260830-0001",
		map[string]string{})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// --- Cancel ---

func TestCancelOrder_Success(t *testing.T) {
	hub := &mockHub{}
	svc := &mockOrderService{
		cancelFn: func(ctx context.Context, orderID string) (database.Order, error) {
			o := testOrder()
			o.Status = "cancelled"
			return o, nil
		},
	}
	router := setupOrderRouter(svc, &mockOrderStore{}, hub)

	rr := doRequest(t, router, http.MethodDelete, "/api/orders/ORD-20260830-0001", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	resp := decodeBody(t, rr)
	if resp["message"] != "Order cancelled" {
		t.Errorf("message = %v", resp["message"])
	}
	if len(hub.events) != 1 || hub.events[0].eventType != "order_updated" {
		t.Errorf("expected one order_updated broadcast, got %+v", hub.events)
	}
}

func TestCancelOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
	}{
		{"not found", service.ErrOrderNotFound, http.StatusNotFound},
		{"already preparing", service.ErrInvalidTransition, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				cancelFn: func(ctx context.Context, orderID string) (database.Order, error) {
					return database.Order{}, tt.svcErr
				},
			}
			router := setupOrderRouter(svc, &mockOrderStore{}, &mockHub{})

			rr := doRequest(t, router, http.MethodDelete, "/api/orders/ORD-20260830-0001", nil)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}
