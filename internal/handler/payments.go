package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jadewok-pos/api/internal/database"
	"github.com/jadewok-pos/api/internal/enum"
	"github.com/jadewok-pos/api/internal/service"
	"github.com/jadewok-pos/api/internal/ws"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	Process(ctx context.Context, req service.ProcessPaymentRequest) (*service.ProcessPaymentResult, error)
	Get(ctx context.Context, id string) (database.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]database.Payment, error)
	Refund(ctx context.Context, id string) (database.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc PaymentServicer
	hub Broadcaster
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer, hub Broadcaster) *PaymentHandler {
	return &PaymentHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Mounted at /api/payments.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Process)
	r.Get("/{id}", h.Get)
	r.Get("/order/{orderID}", h.ListByOrder)
}

// RegisterProtectedRoutes registers payment endpoints that require staff
// authentication.
func (h *PaymentHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/{id}/refund", h.Refund)
}

// --- Request / Response types ---

type processPaymentRequest struct {
	OrderID       string       `json:"order_id"`
	PaymentMethod string       `json:"payment_method"`
	Card          *cardRequest `json:"card"`
}

type cardRequest struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
	Name     string `json:"name"`
}

type paymentResponse struct {
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	Amount        string    `json:"amount"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	CardBrand     *string   `json:"card_brand"`
	CardLastFour  *string   `json:"card_last_four"`
	FailureReason *string   `json:"failure_reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// --- Handlers ---

// Process handles POST /api/payments.
func (h *PaymentHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}
	if req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "payment_method is required")
		return
	}

	var card *service.Card
	if req.PaymentMethod == enum.PaymentMethodCard {
		if req.Card == nil {
			writeError(w, http.StatusBadRequest, "card information is required for card payments")
			return
		}
		if req.Card.Number == "" || req.Card.ExpMonth == 0 || req.Card.ExpYear == 0 ||
			req.Card.CVC == "" || req.Card.Name == "" {
			writeError(w, http.StatusBadRequest, "card requires number, exp_month, exp_year, cvc, and name")
			return
		}
		card = &service.Card{
			Number:   req.Card.Number,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			CVC:      req.Card.CVC,
			Name:     req.Card.Name,
		}
	}

	result, err := h.svc.Process(r.Context(), service.ProcessPaymentRequest{
		OrderID: req.OrderID,
		Method:  req.PaymentMethod,
		Card:    card,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPaymentMethod),
			errors.Is(err, service.ErrCardRequired),
			errors.Is(err, service.ErrInvalidCardNumber):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrOrderNotPayable):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("ERROR: process payment: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	payment := dbPaymentToResponse(result.Payment)

	if !result.Completed {
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"success": false,
			"error":   "Payment declined",
			"payment": payment,
		})
		return
	}

	h.hub.Broadcast(ws.EventPaymentReceived, map[string]interface{}{
		"payment": payment,
		"order":   dbOrderToResponse(result.Order),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"payment": payment,
	})
}

// Get handles GET /api/payments/{id}.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	payment, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		log.Printf("ERROR: get payment: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"payment": dbPaymentToResponse(payment),
	})
}

// ListByOrder handles GET /api/payments/order/{orderID}.
func (h *PaymentHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	payments, err := h.svc.ListByOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		log.Printf("ERROR: list payments by order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = dbPaymentToResponse(p)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"count":    len(resp),
		"payments": resp,
	})
}

// Refund handles POST /api/payments/{id}/refund.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	payment, err := h.svc.Refund(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			writeError(w, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrNotRefundable):
			writeError(w, http.StatusConflict, "only completed payments can be refunded")
		default:
			log.Printf("ERROR: refund payment: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Payment refunded",
		"payment": dbPaymentToResponse(payment),
	})
}

// --- Helpers ---

func dbPaymentToResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		Amount:    numericToString(p.Amount),
		Method:    p.Method,
		Status:    p.Status,
		CreatedAt: p.CreatedAt.Time,
	}
	if p.CardBrand.Valid {
		resp.CardBrand = &p.CardBrand.String
	}
	if p.CardLast4.Valid {
		resp.CardLastFour = &p.CardLast4.String
	}
	if p.FailureReason.Valid {
		resp.FailureReason = &p.FailureReason.String
	}
	return resp
}
