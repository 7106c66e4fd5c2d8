package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, source, customer_name, customer_phone, order_type, scheduled_time, special_instructions, subtotal, tax_rate, tax_amount, delivery_fee, total, status, payment_method, payment_id, paid_at, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.Source,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.OrderType,
		&o.ScheduledTime,
		&o.SpecialInstructions,
		&o.Subtotal,
		&o.TaxRate,
		&o.TaxAmount,
		&o.DeliveryFee,
		&o.Total,
		&o.Status,
		&o.PaymentMethod,
		&o.PaymentID,
		&o.PaidAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

const createOrder = `
INSERT INTO orders (
	id, source, customer_name, customer_phone, order_type, scheduled_time,
	special_instructions, subtotal, tax_rate, tax_amount, delivery_fee,
	total, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ID                  string
	Source              string
	CustomerName        string
	CustomerPhone       string
	OrderType           string
	ScheduledTime       pgtype.Timestamptz
	SpecialInstructions pgtype.Text
	Subtotal            pgtype.Numeric
	TaxRate             pgtype.Numeric
	TaxAmount           pgtype.Numeric
	DeliveryFee         pgtype.Numeric
	Total               pgtype.Numeric
	Status              string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.ID,
		arg.Source,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.OrderType,
		arg.ScheduledTime,
		arg.SpecialInstructions,
		arg.Subtotal,
		arg.TaxRate,
		arg.TaxAmount,
		arg.DeliveryFee,
		arg.Total,
		arg.Status,
	)
	return scanOrder(row)
}

const createOrderItem = `
INSERT INTO order_items (
	order_id, menu_item_id, name, matched_name, matched, quantity,
	unit_price, line_total, modifiers, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, order_id, menu_item_id, name, matched_name, matched, quantity, unit_price, line_total, modifiers, notes`

type CreateOrderItemParams struct {
	OrderID     string
	MenuItemID  string
	Name        string
	MatchedName pgtype.Text
	Matched     bool
	Quantity    int32
	UnitPrice   pgtype.Numeric
	LineTotal   pgtype.Numeric
	Modifiers   []byte
	Notes       pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.Name,
		arg.MatchedName,
		arg.Matched,
		arg.Quantity,
		arg.UnitPrice,
		arg.LineTotal,
		arg.Modifiers,
		arg.Notes,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.Name,
		&i.MatchedName,
		&i.Matched,
		&i.Quantity,
		&i.UnitPrice,
		&i.LineTotal,
		&i.Modifiers,
		&i.Notes,
	)
	return i, err
}

const getOrder = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

// GetOrderForUpdate locks the order row for the rest of the transaction.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `
SELECT ` + orderColumns + ` FROM orders
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR order_type = $2)
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at < $4)
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`

type ListOrdersParams struct {
	Status        string
	OrderType     string
	CreatedAfter  pgtype.Timestamptz
	CreatedBefore pgtype.Timestamptz
	Limit         int32
	Offset        int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.Status,
		arg.OrderType,
		arg.CreatedAfter,
		arg.CreatedBefore,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listOrderItemsByOrder = `
SELECT id, order_id, menu_item_id, name, matched_name, matched, quantity, unit_price, line_total, modifiers, notes
FROM order_items WHERE order_id = $1 ORDER BY id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.MenuItemID,
			&i.Name,
			&i.MatchedName,
			&i.Matched,
			&i.Quantity,
			&i.UnitPrice,
			&i.LineTotal,
			&i.Modifiers,
			&i.Notes,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countOrdersCreatedSince = `
SELECT COUNT(*) FROM orders WHERE created_at >= $1`

// CountOrdersCreatedSince feeds the daily order number sequence.
func (q *Queries) CountOrdersCreatedSince(ctx context.Context, since pgtype.Timestamptz) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOrdersCreatedSince, since).Scan(&count)
	return count, err
}

const updateOrderStatus = `
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID         string
	Status     string
	FromStatus string
}

// UpdateOrderStatus moves an order to a new status only when it is still
// in the expected one. pgx.ErrNoRows signals a lost race.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.FromStatus))
}

const markOrderPaid = `
UPDATE orders
SET status = 'paid', payment_method = $2, payment_id = $3, paid_at = $4, updated_at = now()
WHERE id = $1 AND status = 'pending_payment'
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID            string
	PaymentMethod pgtype.Text
	PaymentID     pgtype.Text
	PaidAt        pgtype.Timestamptz
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.PaymentMethod, arg.PaymentID, arg.PaidAt))
}

const cancelOrder = `
UPDATE orders SET status = 'cancelled', updated_at = now()
WHERE id = $1 AND status IN ('pending_payment', 'paid')
RETURNING ` + orderColumns

func (q *Queries) CancelOrder(ctx context.Context, id string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, id))
}

const countOrdersByStatus = `
SELECT status, COUNT(*) FROM orders
WHERE created_at >= $1
GROUP BY status`

type CountOrdersByStatusRow struct {
	Status string
	Count  int64
}

func (q *Queries) CountOrdersByStatus(ctx context.Context, since pgtype.Timestamptz) ([]CountOrdersByStatusRow, error) {
	rows, err := q.db.Query(ctx, countOrdersByStatus, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountOrdersByStatusRow
	for rows.Next() {
		var r CountOrdersByStatusRow
		if err := rows.Scan(&r.Status, &r.Count); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const sumRevenueSince = `
SELECT COALESCE(SUM(total), 0) FROM orders
WHERE created_at >= $1 AND status NOT IN ('pending_payment', 'cancelled')`

// SumRevenueSince totals paid orders. Pending and cancelled orders never
// count as revenue.
func (q *Queries) SumRevenueSince(ctx context.Context, since pgtype.Timestamptz) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx, sumRevenueSince, since).Scan(&sum)
	return sum, err
}
