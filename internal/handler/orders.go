package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/jadewok-pos/api/internal/database"
	"github.com/jadewok-pos/api/internal/pricing"
	"github.com/jadewok-pos/api/internal/service"
	"github.com/jadewok-pos/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	UpdateStatus(ctx context.Context, orderID, newStatus string) (database.Order, error)
	Cancel(ctx context.Context, orderID string) (database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID string) ([]database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]database.Payment, error)
	CountOrdersByStatus(ctx context.Context, since pgtype.Timestamptz) ([]database.CountOrdersByStatusRow, error)
	SumRevenueSince(ctx context.Context, since pgtype.Timestamptz) (pgtype.Numeric, error)
}

// Broadcaster pushes events to connected dashboard clients.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(eventType string, payload interface{})
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc     OrderServicer
	store   OrderStore
	hub     Broadcaster
	baseURL string
}

// NewOrderHandler creates a new OrderHandler. baseURL is the dashboard
// origin used to build payment links.
func NewOrderHandler(svc OrderServicer, store OrderStore, hub Broadcaster, baseURL string) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub, baseURL: baseURL}
}

// RegisterRoutes registers the order read endpoints on the given Chi
// router. Mounted at /api/orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/stats", h.Stats)
	r.Get("/{id}", h.Get)
}

// RegisterIntakeRoutes registers order creation, gated by the voice
// agent API key.
func (h *OrderHandler) RegisterIntakeRoutes(r chi.Router) {
	r.Post("/", h.Create)
}

// RegisterProtectedRoutes registers order endpoints that require staff
// authentication.
func (h *OrderHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Put("/{id}", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Source              string                   `json:"source"`
	CustomerName        string                   `json:"customer_name"`
	CustomerPhone       string                   `json:"customer_phone"`
	OrderType           string                   `json:"order_type"`
	ScheduledTime       string                   `json:"scheduled_time"`
	SpecialInstructions string                   `json:"special_instructions"`
	TaxRate             *decimal.Decimal         `json:"tax_rate"`
	Items               []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	Name      string            `json:"name"`
	Quantity  int               `json:"quantity"`
	Price     *decimal.Decimal  `json:"price"`
	Modifiers []modifierRequest `json:"modifiers"`
	Notes     string            `json:"notes"`
}

type modifierRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// createOrderResponse is the compact confirmation returned to the voice
// agent. It carries just enough for the agent to read back the total and
// hand the customer a payment link.
type createOrderResponse struct {
	OrderID     string    `json:"order_id"`
	Status      string    `json:"status"`
	Subtotal    string    `json:"subtotal"`
	TaxRate     string    `json:"tax_rate"`
	TaxAmount   string    `json:"tax_amount"`
	DeliveryFee string    `json:"delivery_fee"`
	Total       string    `json:"total"`
	PaymentURL  string    `json:"payment_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type orderResponse struct {
	OrderID             string              `json:"order_id"`
	Source              string              `json:"source"`
	CustomerName        string              `json:"customer_name"`
	CustomerPhone       string              `json:"customer_phone"`
	OrderType           string              `json:"order_type"`
	ScheduledTime       *time.Time          `json:"scheduled_time"`
	SpecialInstructions *string             `json:"special_instructions"`
	Subtotal            string              `json:"subtotal"`
	TaxRate             string              `json:"tax_rate"`
	TaxAmount           string              `json:"tax_amount"`
	DeliveryFee         string              `json:"delivery_fee"`
	Total               string              `json:"total"`
	Status              string              `json:"status"`
	PaymentMethod       *string             `json:"payment_method"`
	PaymentID           *string             `json:"payment_id"`
	PaidAt              *time.Time          `json:"paid_at"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	Items               []orderItemResponse `json:"items,omitempty"`
	Payments            []paymentResponse   `json:"payments,omitempty"`
}

type orderItemResponse struct {
	MenuItemID  string          `json:"menu_item_id"`
	Name        string          `json:"name"`
	MatchedName *string         `json:"matched_name"`
	Matched     bool            `json:"matched"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   string          `json:"unit_price"`
	LineTotal   string          `json:"line_total"`
	Modifiers   json.RawMessage `json:"modifiers"`
	Notes       *string         `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderStatsResponse struct {
	TotalOrders    int64  `json:"total_orders"`
	PendingPayment int64  `json:"pending_payment"`
	Paid           int64  `json:"paid"`
	Preparing      int64  `json:"preparing"`
	Ready          int64  `json:"ready"`
	Completed      int64  `json:"completed"`
	Cancelled      int64  `json:"cancelled"`
	TotalRevenue   string `json:"total_revenue"`
}

// --- Handlers ---

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CustomerName == "" || req.CustomerPhone == "" {
		writeError(w, http.StatusBadRequest, "customer_name and customer_phone are required")
		return
	}
	if req.OrderType == "" {
		writeError(w, http.StatusBadRequest, "order_type is required")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items are required")
		return
	}
	for i, item := range req.Items {
		if item.Name == "" {
			writeError(w, http.StatusBadRequest, formatItemError(i, "name is required"))
			return
		}
		if item.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, formatItemError(i, "quantity must be > 0"))
			return
		}
	}

	svcItems := make([]pricing.RequestedItem, len(req.Items))
	for i, item := range req.Items {
		mods := make([]pricing.SelectedModifier, len(item.Modifiers))
		for j, mod := range item.Modifiers {
			mods[j] = pricing.SelectedModifier{Name: mod.Name, Price: mod.Price}
		}
		svcItems[i] = pricing.RequestedItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Modifiers: mods,
			Notes:     item.Notes,
		}
	}

	result, err := h.svc.Create(r.Context(), service.CreateOrderRequest{
		Source:              req.Source,
		CustomerName:        req.CustomerName,
		CustomerPhone:       req.CustomerPhone,
		OrderType:           req.OrderType,
		ScheduledTime:       req.ScheduledTime,
		SpecialInstructions: req.SpecialInstructions,
		TaxRate:             req.TaxRate,
		Items:               svcItems,
	})
	if err != nil {
		if isOrderValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	full := dbOrderToResponse(result.Order)
	full.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		full.Items[i] = dbOrderItemToResponse(item)
	}
	h.hub.Broadcast(ws.EventNewOrder, full)

	o := result.Order
	body := map[string]interface{}{
		"success": true,
		"order": createOrderResponse{
			OrderID:     o.ID,
			Status:      o.Status,
			Subtotal:    numericToString(o.Subtotal),
			TaxRate:     rateToString(o.TaxRate),
			TaxAmount:   numericToString(o.TaxAmount),
			DeliveryFee: numericToString(o.DeliveryFee),
			Total:       numericToString(o.Total),
			PaymentURL:  h.baseURL + "/pay/" + o.ID,
			CreatedAt:   o.CreatedAt.Time,
		},
	}
	if len(result.Warnings) > 0 {
		body["warnings"] = result.Warnings
	}
	writeJSON(w, http.StatusCreated, body)
}

// List handles GET /api/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		Status:    r.URL.Query().Get("status"),
		OrderType: r.URL.Query().Get("type"),
		Limit:     int32(limit),
		Offset:    int32(offset),
	}

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date format, use YYYY-MM-DD")
			return
		}
		params.CreatedAfter = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date format, use YYYY-MM-DD")
			return
		}
		// end_date is inclusive; the query bound is exclusive.
		params.CreatedBefore = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(resp),
		"orders":  resp,
	})
}

// Stats handles GET /api/orders/stats.
func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	// Zero time means all-time stats.
	since := pgtype.Timestamptz{Valid: true}
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since format, use YYYY-MM-DD")
			return
		}
		since = pgtype.Timestamptz{Time: t, Valid: true}
	}

	rows, err := h.store.CountOrdersByStatus(r.Context(), since)
	if err != nil {
		log.Printf("ERROR: count orders by status: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	revenue, err := h.store.SumRevenueSince(r.Context(), since)
	if err != nil {
		log.Printf("ERROR: sum revenue: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	stats := orderStatsResponse{TotalRevenue: numericToString(revenue)}
	for _, row := range rows {
		stats.TotalOrders += row.Count
		switch row.Status {
		case "pending_payment":
			stats.PendingPayment = row.Count
		case "paid":
			stats.Paid = row.Count
		case "preparing":
			stats.Preparing = row.Count
		case "ready":
			stats.Ready = row.Count
		case "completed":
			stats.Completed = row.Count
		case "cancelled":
			stats.Cancelled = row.Count
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

// Get handles GET /api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := dbOrderToResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}
	resp.Payments = make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp.Payments[i] = dbPaymentToResponse(p)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"order":   resp,
	})
}

// UpdateStatus handles PUT /api/orders/{id}.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	updated, err := h.svc.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "invalid status")
		case errors.Is(err, service.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("ERROR: update order status: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	resp := dbOrderToResponse(updated)
	h.hub.Broadcast(ws.EventOrderUpdated, resp)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"order":   resp,
	})
}

// Cancel handles DELETE /api/orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	cancelled, err := h.svc.Cancel(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "order cannot be cancelled once preparation has started")
		default:
			log.Printf("ERROR: cancel order: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	resp := dbOrderToResponse(cancelled)
	h.hub.Broadcast(ws.EventOrderUpdated, resp)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Order cancelled",
		"order":   resp,
	})
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// isOrderValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrCustomerRequired) ||
		errors.Is(err, service.ErrInvalidSource) ||
		errors.Is(err, service.ErrInvalidTaxRate) ||
		errors.Is(err, service.ErrInvalidScheduled) ||
		errors.Is(err, pricing.ErrInvalidQuantity)
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		OrderID:       o.ID,
		Source:        o.Source,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		OrderType:     o.OrderType,
		Subtotal:      numericToString(o.Subtotal),
		TaxRate:       rateToString(o.TaxRate),
		TaxAmount:     numericToString(o.TaxAmount),
		DeliveryFee:   numericToString(o.DeliveryFee),
		Total:         numericToString(o.Total),
		Status:        o.Status,
		CreatedAt:     o.CreatedAt.Time,
		UpdatedAt:     o.UpdatedAt.Time,
	}

	if o.ScheduledTime.Valid {
		resp.ScheduledTime = &o.ScheduledTime.Time
	}
	if o.SpecialInstructions.Valid {
		resp.SpecialInstructions = &o.SpecialInstructions.String
	}
	if o.PaymentMethod.Valid {
		resp.PaymentMethod = &o.PaymentMethod.String
	}
	if o.PaymentID.Valid {
		resp.PaymentID = &o.PaymentID.String
	}
	if o.PaidAt.Valid {
		resp.PaidAt = &o.PaidAt.Time
	}

	return resp
}

func dbOrderItemToResponse(item database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		MenuItemID: item.MenuItemID,
		Name:       item.Name,
		Matched:    item.Matched,
		Quantity:   item.Quantity,
		UnitPrice:  numericToString(item.UnitPrice),
		LineTotal:  numericToString(item.LineTotal),
		Modifiers:  json.RawMessage(item.Modifiers),
	}
	if len(resp.Modifiers) == 0 {
		resp.Modifiers = json.RawMessage("[]")
	}
	if item.MatchedName.Valid {
		resp.MatchedName = &item.MatchedName.String
	}
	if item.Notes.Valid {
		resp.Notes = &item.Notes.String
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

// rateToString keeps four decimal places, matching how tax rates are
// stored.
func rateToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.0000"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.0000"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.0000"
	}
	return d.StringFixed(4)
}
