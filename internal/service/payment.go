package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jadewok-pos/api/internal/database"
	"github.com/jadewok-pos/api/internal/enum"
)

// defaultProcessingDelay approximates a card processor round trip.
const defaultProcessingDelay = 2 * time.Second

// Errors returned by the payment service.
var (
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrCardRequired         = errors.New("card information is required")
	ErrInvalidCardNumber    = errors.New("invalid card number")
	ErrOrderNotPayable      = errors.New("order cannot be paid")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrNotRefundable        = errors.New("payment cannot be refunded")
)

// PaymentStore defines the DB methods needed by the payment service.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	GetOrder(ctx context.Context, id string) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id string) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id string) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]database.Payment, error)
	RefundPayment(ctx context.Context, id string) (database.Payment, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// Card is the card detail block of a payment request. Expiry, CVC, and
// name are accepted but never stored.
type Card struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVC      string
	Name     string
}

// ProcessPaymentRequest is the validated input for processing a payment.
type ProcessPaymentRequest struct {
	OrderID string
	Method  string
	Card    *Card
}

// ProcessPaymentResult is the recorded payment plus the order as it
// stands after processing. Completed is false for declined cards.
type ProcessPaymentResult struct {
	Payment   database.Payment
	Order     database.Order
	Completed bool
}

// PaymentService handles the mock payment processor and payment records.
type PaymentService struct {
	pool     TxBeginner
	store    PaymentStore
	newStore NewPaymentStore
	delay    time.Duration
	now      func() time.Time
}

func NewPaymentService(pool TxBeginner, store PaymentStore, newStore NewPaymentStore) *PaymentService {
	return &PaymentService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		delay:    defaultProcessingDelay,
		now:      time.Now,
	}
}

// testCards maps well-known processor test numbers to a fixed outcome.
// Any other number succeeds when it passes format and Luhn checks.
var testCards = map[string]bool{
	"4242424242424242": true,
	"5555555555554444": true,
	"378282246310005":  true,
	"4000000000000002": false,
}

// Process validates the request, simulates processing for card payments,
// and records the payment. Only orders awaiting payment can be paid. A
// completed payment marks the order paid in the same transaction, with
// the order row locked against concurrent payment attempts. A declined
// card still records a failed payment and leaves the order untouched.
func (s *PaymentService) Process(ctx context.Context, req ProcessPaymentRequest) (*ProcessPaymentResult, error) {
	switch req.Method {
	case enum.PaymentMethodCard, enum.PaymentMethodCash, enum.PaymentMethodOther:
	default:
		return nil, ErrInvalidPaymentMethod
	}

	order, err := s.store.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusPendingPayment {
		return nil, fmt.Errorf("%w: current status %s", ErrOrderNotPayable, order.Status)
	}

	completed := true
	cardBrand := pgtype.Text{}
	cardLast4 := pgtype.Text{}
	failureReason := pgtype.Text{}

	if req.Method == enum.PaymentMethodCard {
		if req.Card == nil || req.Card.Number == "" {
			return nil, ErrCardRequired
		}
		number := cleanCardNumber(req.Card.Number)
		if !validCardNumber(number) {
			return nil, ErrInvalidCardNumber
		}

		approved, err := s.simulateProcessing(ctx, number)
		if err != nil {
			return nil, err
		}
		completed = approved
		cardBrand = pgtype.Text{String: detectCardBrand(number), Valid: true}
		cardLast4 = pgtype.Text{String: number[len(number)-4:], Valid: true}
		if !approved {
			failureReason = pgtype.Text{String: "card declined", Valid: true}
		}
	}

	status := enum.PaymentStatusCompleted
	if !completed {
		status = enum.PaymentStatusFailed
	}
	paymentID := fmt.Sprintf("PAY-%s", strings.SplitN(uuid.NewString(), "-", 2)[0])

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Re-read under lock. Another payment may have landed during the
	// simulated processing delay.
	order, err = store.GetOrderForUpdate(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if order.Status != enum.OrderStatusPendingPayment {
		return nil, fmt.Errorf("%w: current status %s", ErrOrderNotPayable, order.Status)
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		ID:            paymentID,
		OrderID:       order.ID,
		Amount:        order.Total,
		Method:        req.Method,
		Status:        status,
		CardBrand:     cardBrand,
		CardLast4:     cardLast4,
		FailureReason: failureReason,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	if completed {
		order, err = store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{
			ID:            order.ID,
			PaymentMethod: pgtype.Text{String: req.Method, Valid: true},
			PaymentID:     pgtype.Text{String: payment.ID, Valid: true},
			PaidAt:        pgtype.Timestamptz{Time: s.now().UTC(), Valid: true},
		})
		if err != nil {
			return nil, fmt.Errorf("mark order paid: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &ProcessPaymentResult{Payment: payment, Order: order, Completed: completed}, nil
}

// Get returns a payment by id.
func (s *PaymentService) Get(ctx context.Context, id string) (database.Payment, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, ErrPaymentNotFound
		}
		return database.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

// ListByOrder returns all payment attempts for an order.
func (s *PaymentService) ListByOrder(ctx context.Context, orderID string) ([]database.Payment, error) {
	payments, err := s.store.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// Refund flips a completed payment to refunded.
func (s *PaymentService) Refund(ctx context.Context, id string) (database.Payment, error) {
	payment, err := s.store.RefundPayment(ctx, id)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Payment{}, fmt.Errorf("refund payment: %w", err)
	}

	// No rows updated: missing payment or one that is not completed.
	if _, fetchErr := s.store.GetPayment(ctx, id); fetchErr != nil {
		if errors.Is(fetchErr, pgx.ErrNoRows) {
			return database.Payment{}, ErrPaymentNotFound
		}
		return database.Payment{}, fmt.Errorf("get payment for refund: %w", fetchErr)
	}
	return database.Payment{}, ErrNotRefundable
}

// simulateProcessing waits out the processor delay and returns the
// approval decision. Respects context cancellation during the wait.
func (s *PaymentService) simulateProcessing(ctx context.Context, number string) (bool, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	if outcome, ok := testCards[number]; ok {
		return outcome, nil
	}
	return validCardNumber(number), nil
}

// cleanCardNumber strips the whitespace customers type into card fields.
func cleanCardNumber(number string) string {
	return strings.Join(strings.Fields(number), "")
}

// validCardNumber requires 13 to 19 digits passing the Luhn checksum.
func validCardNumber(number string) bool {
	if len(number) < 13 || len(number) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		digit := int(c - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}

// detectCardBrand reports the brand from the leading digits.
func detectCardBrand(number string) string {
	switch {
	case strings.HasPrefix(number, "4"):
		return enum.CardBrandVisa
	case len(number) >= 2 && number[0] == '5' && number[1] >= '1' && number[1] <= '5':
		return enum.CardBrandMastercard
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return enum.CardBrandAmex
	case strings.HasPrefix(number, "6011"), strings.HasPrefix(number, "65"):
		return enum.CardBrandDiscover
	default:
		return enum.CardBrandUnknown
	}
}
