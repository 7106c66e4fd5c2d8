package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, amount, method, status, card_brand, card_last4, failure_reason, created_at`

func scanPayment(row interface{ Scan(dest ...interface{}) error }) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.Method,
		&p.Status,
		&p.CardBrand,
		&p.CardLast4,
		&p.FailureReason,
		&p.CreatedAt,
	)
	return p, err
}

const createPayment = `
INSERT INTO payments (
	id, order_id, amount, method, status, card_brand, card_last4, failure_reason
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	ID            string
	OrderID       string
	Amount        pgtype.Numeric
	Method        string
	Status        string
	CardBrand     pgtype.Text
	CardLast4     pgtype.Text
	FailureReason pgtype.Text
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.ID,
		arg.OrderID,
		arg.Amount,
		arg.Method,
		arg.Status,
		arg.CardBrand,
		arg.CardLast4,
		arg.FailureReason,
	)
	return scanPayment(row)
}

const getPayment = `
SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

func (q *Queries) GetPayment(ctx context.Context, id string) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPayment, id))
}

const listPaymentsByOrder = `
SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const refundPayment = `
UPDATE payments SET status = 'refunded'
WHERE id = $1 AND status = 'completed'
RETURNING ` + paymentColumns

// RefundPayment flips a completed payment to refunded. pgx.ErrNoRows
// signals the payment is missing or not refundable.
func (q *Queries) RefundPayment(ctx context.Context, id string) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, refundPayment, id))
}
