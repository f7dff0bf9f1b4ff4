// Package cart holds a customer's in-progress selection and keeps its
// totals a server-side function of the line items. Totals are never
// trusted from client input.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the owner has no cart yet.
var ErrNotFound = errors.New("cart not found")

// ErrItemNotFound is returned when mutating a line that is not in the cart.
var ErrItemNotFound = errors.New("cart item not found")

// ErrInvalidQuantity is returned for non-positive quantities.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Item is one cart line. UnitPriceCents is snapshotted at add time.
type Item struct {
	ProductID      string
	VariantID      string
	Quantity       int
	UnitPriceCents int64
}

// Cart is owned by a user id or an anonymous session token (OwnerID).
// ReservationGroupID groups the stock holds of this cart's checkout attempt.
type Cart struct {
	ID                 string
	OwnerID            string
	ReservationGroupID uuid.UUID
	Items              []Item
	SubtotalCents      int64
	TaxCents           int64
	TotalCents         int64
	UpdatedAt          time.Time
}

// Totals is the server-computed money summary of a set of lines.
type Totals struct {
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals derives subtotal, tax, and total from the line items and a
// tax rate expressed in percent. It is deterministic and idempotent given
// the same inputs. Tax is floored to whole cents.
func ComputeTotals(items []Item, taxRatePercent decimal.Decimal) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.UnitPriceCents * int64(it.Quantity)
	}

	tax := decimal.NewFromInt(subtotal).
		Mul(taxRatePercent).
		Div(hundred).
		Floor().
		IntPart()

	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    subtotal + tax,
	}
}

// Repository defines persistence for carts and their lines.
type Repository interface {
	// GetByOwner loads the owner's cart with its items, or ErrNotFound.
	GetByOwner(ctx context.Context, ownerID string) (*Cart, error)
	// Save upserts the cart and replaces its line items.
	Save(ctx context.Context, c *Cart) error
	// Delete removes the cart and its items.
	Delete(ctx context.Context, ownerID string) error
}
