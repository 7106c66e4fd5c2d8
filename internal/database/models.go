package database

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Order is a row in the orders table. Money columns are NUMERIC and
// surface as pgtype.Numeric; services convert to decimal.Decimal.
type Order struct {
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
	PaymentMethod       pgtype.Text
	PaymentID           pgtype.Text
	PaidAt              pgtype.Timestamptz
	CreatedAt           pgtype.Timestamptz
	UpdatedAt           pgtype.Timestamptz
}

// OrderItem is a priced line of an order. Modifiers holds the selected
// modifier options as a JSONB document.
type OrderItem struct {
	ID          uuid.UUID
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

// Payment is a row in the payments table.
type Payment struct {
	ID            string
	OrderID       string
	Amount        pgtype.Numeric
	Method        string
	Status        string
	CardBrand     pgtype.Text
	CardLast4     pgtype.Text
	FailureReason pgtype.Text
	CreatedAt     pgtype.Timestamptz
}
