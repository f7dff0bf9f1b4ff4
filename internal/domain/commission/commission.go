// Package commission splits each order item's value between the platform
// and the vendor. The platform share is computed first and the vendor
// share is the exact remainder, so the two always sum to the item total
// with no per-cent rounding drift.
package commission

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the commission settlement state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
)

// ErrAlreadyExists is returned by Repository.Create when a commission for
// the order item exists; creation is append-once per item.
var ErrAlreadyExists = errors.New("commission already exists for order item")

// ErrNotFound is returned when a commission id does not exist.
var ErrNotFound = errors.New("commission not found")

// Commission is one platform/vendor split for a single order item.
type Commission struct {
	ID                  string
	OrderItemID         string
	VendorID            string
	RatePercent         decimal.Decimal
	PlatformAmountCents int64
	VendorAmountCents   int64
	Status              Status
	PayoutID            *string
	CreatedAt           time.Time
}

var hundred = decimal.NewFromInt(100)

// Split computes the platform/vendor division of totalCents at the given
// percentage rate:
//
//	platform = floor(total * rate / 100)
//	vendor   = total - platform
//
// The remainder method guarantees platform + vendor == total for every
// rate in [0, 100] and every non-negative total.
func Split(totalCents int64, ratePercent decimal.Decimal) (platformCents, vendorCents int64) {
	platformCents = decimal.NewFromInt(totalCents).
		Mul(ratePercent).
		Div(hundred).
		Floor().
		IntPart()
	return platformCents, totalCents - platformCents
}

// Repository defines persistence for commissions. Create must be backed by
// a uniqueness constraint on order_item_id and return ErrAlreadyExists on
// conflict; that constraint, not a lock, is what makes creation safe to
// repeat.
type Repository interface {
	Create(ctx context.Context, c *Commission) error
	Get(ctx context.Context, id string) (*Commission, error)
	// ConfirmByOrderItem moves an item's pending commission to confirmed.
	ConfirmByOrderItem(ctx context.Context, orderItemID string) error
}
