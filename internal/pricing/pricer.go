// Package pricing turns free-text order lines into priced line items and
// computes order-level totals.
package pricing

import (
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/jadewok-pos/api/internal/enum"
	"github.com/jadewok-pos/api/internal/menu"
)

var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// UnknownItemID marks line items whose name could not be resolved against
// the menu.
const UnknownItemID = "unknown"

// deliveryFee is the flat surcharge added to delivery orders. It is not
// taxed.
var deliveryFee = decimal.NewFromFloat(4.00)

// SelectedModifier is a modifier option chosen by the caller, passed
// through to the stored line item unchanged.
type SelectedModifier struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// RequestedItem is one raw line of an incoming order.
type RequestedItem struct {
	Name      string
	Quantity  int
	UnitPrice *decimal.Decimal
	Modifiers []SelectedModifier
	Notes     string
}

// LineItem is a requested item after menu resolution. MatchedName is set
// only when the canonical menu name differs from what the caller sent.
type LineItem struct {
	MenuItemID  string
	Name        string
	MatchedName string
	Matched     bool
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	Modifiers   []SelectedModifier
	Notes       string
}

// Totals holds the four order-level money fields, each rounded to two
// decimal places independently.
type Totals struct {
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Pricer resolves requested items against a loaded menu catalog.
type Pricer struct {
	catalog *menu.Catalog
	matcher *menu.Matcher
}

func New(catalog *menu.Catalog) *Pricer {
	return &Pricer{
		catalog: catalog,
		matcher: menu.NewMatcher(catalog),
	}
}

// CatalogTaxRate exposes the loaded menu's tax rate for callers that
// need to persist the rate an order was priced with.
func (p *Pricer) CatalogTaxRate() decimal.Decimal {
	return p.catalog.TaxRate()
}

// EnrichItems resolves each requested item against the menu. A matched
// item takes the catalog price even when the caller supplied one. An
// unmatched item keeps the caller price, or zero, and adds a warning so
// the order can still be created and corrected afterwards. Partial
// matches are logged but do not produce warnings.
func (p *Pricer) EnrichItems(items []RequestedItem) ([]LineItem, []string, error) {
	enriched := make([]LineItem, 0, len(items))
	warnings := []string{}

	for _, req := range items {
		if req.Quantity <= 0 {
			return nil, nil, fmt.Errorf("item %q: %w", req.Name, ErrInvalidQuantity)
		}

		line := LineItem{
			MenuItemID: UnknownItemID,
			Name:       req.Name,
			Quantity:   req.Quantity,
			Modifiers:  req.Modifiers,
			Notes:      req.Notes,
		}

		match := p.matcher.Resolve(req.Name)
		if match.Found {
			line.MenuItemID = match.MenuItemID
			line.Matched = true
			line.UnitPrice = match.Price
			if match.Name != req.Name {
				line.MatchedName = match.Name
			}
			if match.Partial {
				log.Printf("pricing: fuzzy match %q -> %q (similarity %.2f)", req.Name, match.Name, match.Similarity)
			}
		} else {
			if req.UnitPrice != nil {
				line.UnitPrice = *req.UnitPrice
			}
			warnings = append(warnings, fmt.Sprintf("Item not found in menu: %q", req.Name))
		}

		qty := decimal.NewFromInt(int64(req.Quantity))
		line.LineTotal = qty.Mul(line.UnitPrice).Round(2)
		enriched = append(enriched, line)
	}

	return enriched, warnings, nil
}

// ComputeTotals sums the line totals and applies tax and, for delivery
// orders, the flat delivery fee. The fee is never taxed. A nil taxRate
// falls back to the catalog's configured rate. Each output field is
// rounded once, from the unrounded running values.
func (p *Pricer) ComputeTotals(items []LineItem, taxRate *decimal.Decimal, orderType string) Totals {
	rate := p.catalog.TaxRate()
	if taxRate != nil {
		rate = *taxRate
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}

	fee := decimal.Zero
	if orderType == enum.OrderTypeDelivery {
		fee = deliveryFee
	}

	tax := subtotal.Mul(rate)
	return Totals{
		Subtotal:    subtotal.Round(2),
		TaxAmount:   tax.Round(2),
		DeliveryFee: fee.Round(2),
		Total:       subtotal.Add(tax).Add(fee).Round(2),
	}
}
