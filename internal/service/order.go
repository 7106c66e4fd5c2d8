package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/jadewok-pos/api/internal/database"
	"github.com/jadewok-pos/api/internal/enum"
	"github.com/jadewok-pos/api/internal/pricing"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidOrderType  = errors.New("invalid order_type")
	ErrCustomerRequired  = errors.New("customer name and phone are required")
	ErrInvalidSource     = errors.New("invalid source")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidTaxRate    = errors.New("invalid tax_rate")
	ErrInvalidScheduled  = errors.New("invalid scheduled_time")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CountOrdersCreatedSince(ctx context.Context, since pgtype.Timestamptz) (int64, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id string) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID string) ([]database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, id string) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	Source              string
	CustomerName        string
	CustomerPhone       string
	OrderType           string
	ScheduledTime       string // RFC3339, optional
	SpecialInstructions string
	TaxRate             *decimal.Decimal
	Items               []pricing.RequestedItem
}

// CreateOrderResult is the created order with its priced items and any
// pricing warnings.
type CreateOrderResult struct {
	Order    database.Order
	Items    []database.OrderItem
	Warnings []string
}

// OrderService handles order business logic. store runs reads and
// single-statement updates outside transactions; newStore builds
// tx-scoped stores for atomic writes.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
	pricer   *pricing.Pricer
	now      func() time.Time
}

func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, pricer *pricing.Pricer) *OrderService {
	return &OrderService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		pricer:   pricer,
		now:      time.Now,
	}
}

// allowedTransitions defines the forward order lifecycle. Cancellation is
// only possible before preparation starts.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPendingPayment: {enum.OrderStatusPaid, enum.OrderStatusCancelled},
	enum.OrderStatusPaid:           {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing:      {enum.OrderStatusReady},
	enum.OrderStatusReady:          {enum.OrderStatusCompleted},
}

// Create validates, prices, and persists an order atomically. Retries up
// to maxOrderNumberRetries times on order id unique constraint violations
// (concurrent transactions can draw the same daily sequence number).
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateOrderType(req.OrderType); err != nil {
		return nil, err
	}
	if req.CustomerName == "" || req.CustomerPhone == "" {
		return nil, ErrCustomerRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	source := req.Source
	if source == "" {
		source = enum.OrderSourceVoiceAgent
	}
	if source != enum.OrderSourceVoiceAgent && source != enum.OrderSourceDashboard {
		return nil, ErrInvalidSource
	}

	var scheduled pgtype.Timestamptz
	if req.ScheduledTime != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScheduled, err)
		}
		scheduled = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if req.TaxRate != nil && (req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(decimal.NewFromInt(1))) {
		return nil, ErrInvalidTaxRate
	}

	items, warnings, err := s.pricer.EnrichItems(req.Items)
	if err != nil {
		return nil, err
	}
	totals := s.pricer.ComputeTotals(items, req.TaxRate, req.OrderType)

	taxRate := req.TaxRate
	if taxRate == nil {
		r := s.pricer.CatalogTaxRate()
		taxRate = &r
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req, source, scheduled, *taxRate, items, totals)
		if err == nil {
			result.Warnings = warnings
			return result, nil
		}
		if isOrderIDConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderIDConflict checks for a unique constraint violation on the order
// primary key (pgconn error code 23505).
func isOrderIDConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_pkey"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(
	ctx context.Context,
	req CreateOrderRequest,
	source string,
	scheduled pgtype.Timestamptz,
	taxRate decimal.Decimal,
	items []pricing.LineItem,
	totals pricing.Totals,
) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	orderID, err := s.nextOrderID(ctx, store)
	if err != nil {
		return nil, err
	}

	specialInstructions := pgtype.Text{}
	if req.SpecialInstructions != "" {
		specialInstructions = pgtype.Text{String: req.SpecialInstructions, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		ID:                  orderID,
		Source:              source,
		CustomerName:        req.CustomerName,
		CustomerPhone:       req.CustomerPhone,
		OrderType:           req.OrderType,
		ScheduledTime:       scheduled,
		SpecialInstructions: specialInstructions,
		Subtotal:            decimalToNumeric(totals.Subtotal),
		TaxRate:             decimalToNumeric4(taxRate),
		TaxAmount:           decimalToNumeric(totals.TaxAmount),
		DeliveryFee:         decimalToNumeric(totals.DeliveryFee),
		Total:               decimalToNumeric(totals.Total),
		Status:              enum.OrderStatusPendingPayment,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var dbItems []database.OrderItem
	for i, item := range items {
		modifiers, err := json.Marshal(item.Modifiers)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: marshal modifiers: %w", i, err)
		}
		matchedName := pgtype.Text{}
		if item.MatchedName != "" {
			matchedName = pgtype.Text{String: item.MatchedName, Valid: true}
		}
		notes := pgtype.Text{}
		if item.Notes != "" {
			notes = pgtype.Text{String: item.Notes, Valid: true}
		}
		dbItem, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:     order.ID,
			MenuItemID:  item.MenuItemID,
			Name:        item.Name,
			MatchedName: matchedName,
			Matched:     item.Matched,
			Quantity:    int32(item.Quantity),
			UnitPrice:   decimalToNumeric(item.UnitPrice),
			LineTotal:   decimalToNumeric(item.LineTotal),
			Modifiers:   modifiers,
			Notes:       notes,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		dbItems = append(dbItems, dbItem)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: dbItems}, nil
}

// nextOrderID builds an ORD-YYYYMMDD-NNNN id from today's order count.
// The unique constraint on the id catches concurrent collisions; the
// caller retries.
func (s *OrderService) nextOrderID(ctx context.Context, store OrderStore) (string, error) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := store.CountOrdersCreatedSince(ctx, pgtype.Timestamptz{Time: midnight, Valid: true})
	if err != nil {
		return "", fmt.Errorf("count orders: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), count+1), nil
}

// UpdateStatus moves an order along the lifecycle after validating the
// transition against the current status.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, newStatus string) (database.Order, error) {
	if !isValidOrderStatus(newStatus) {
		return database.Order{}, ErrInvalidStatus
	}

	current, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if err := validateStatusTransition(current.Status, newStatus); err != nil {
		return database.Order{}, err
	}

	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         orderID,
		Status:     newStatus,
		FromStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Status changed between read and write.
			return database.Order{}, ErrInvalidTransition
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

// Cancel cancels an order that has not started preparation. The SQL
// enforces the precondition atomically.
func (s *OrderService) Cancel(ctx context.Context, orderID string) (database.Order, error) {
	cancelled, err := s.store.CancelOrder(ctx, orderID)
	if err == nil {
		return cancelled, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, fmt.Errorf("cancel order: %w", err)
	}

	// No rows updated: missing order or non-cancellable status. Fetch to
	// tell the two apart.
	if _, fetchErr := s.store.GetOrder(ctx, orderID); fetchErr != nil {
		if errors.Is(fetchErr, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order for cancel: %w", fetchErr)
	}
	return database.Order{}, ErrInvalidTransition
}

// --- Helpers ---

func validateOrderType(s string) error {
	switch s {
	case enum.OrderTypePickup, enum.OrderTypeDelivery, enum.OrderTypeDineIn:
		return nil
	}
	return ErrInvalidOrderType
}

func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPendingPayment, enum.OrderStatusPaid,
		enum.OrderStatusPreparing, enum.OrderStatusReady,
		enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return true
	}
	return false
}

// validateStatusTransition checks if moving from current to next is
// allowed.
func validateStatusTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("%w: cannot transition from %s", ErrInvalidTransition, current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// decimalToNumeric4 keeps four decimal places, used for tax rates.
func decimalToNumeric4(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(4))
	return n
}
