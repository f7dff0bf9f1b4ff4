package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendora/marketplace-core/internal/domain/cart"
	"github.com/vendora/marketplace-core/internal/domain/event"
)

// Checkout failure reasons, all recoverable by the user correcting input.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrPhoneUnverified = errors.New("phone number must be verified for cash on delivery")
)

// CodAmountError is returned when a COD order total falls outside the
// configured bounds.
type CodAmountError struct {
	TotalCents int64
	MinCents   int64
	MaxCents   int64
}

func (e *CodAmountError) Error() string {
	return fmt.Sprintf("cod order total %d outside allowed range [%d, %d]",
		e.TotalCents, e.MinCents, e.MaxCents)
}

// CheckoutError wraps storage-layer failures during the atomic checkout so
// raw database errors never leak to callers.
type CheckoutError struct {
	Err error
}

func (e *CheckoutError) Error() string { return "checkout failed: " + e.Err.Error() }
func (e *CheckoutError) Unwrap() error { return e.Err }

// CodFeeTier is one step of the COD fee schedule: the fee charged for
// order totals up to and including UpToCents. A zero UpToCents marks the
// open-ended top tier.
type CodFeeTier struct {
	UpToCents int64
	FeeCents  int64
}

// CheckoutConfig holds the checkout tunables, injected at construction
// instead of read from any global settings lookup.
type CheckoutConfig struct {
	TaxRatePercent decimal.Decimal
	ShippingCents  int64
	CodMinCents    int64
	CodMaxCents    int64
	// CodFeeTiers must be sorted ascending by UpToCents with the open-ended
	// tier last, fees non-strictly increasing with the order total.
	CodFeeTiers []CodFeeTier
}

// CodFee returns the fee for an order total per the tier schedule.
func (c CheckoutConfig) CodFee(totalCents int64) int64 {
	for _, t := range c.CodFeeTiers {
		if t.UpToCents == 0 || totalCents <= t.UpToCents {
			return t.FeeCents
		}
	}
	return 0
}

// PaymentOutcome carries the gateway result for non-COD methods. The
// gateway integration itself is an external collaborator; the core only
// records what it reports.
type PaymentOutcome struct {
	Succeeded     bool
	TransactionID string
}

// PlaceOrderRequest is the checkout input.
type PlaceOrderRequest struct {
	CustomerID      string
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	PhoneVerified   bool
	DiscountCents   int64
	Payment         PaymentOutcome
}

// CheckoutStore persists a new order atomically: inside one transaction it
// re-checks availability for every line, inserts the order and its items,
// commits the reservation group (decrementing stock), records payment, and
// clears the cart. Any failure rolls the whole transaction back.
// Stock races surface as *inventory.InsufficientStockError.
//
// The store also completes each item's catalog snapshot (vendor id,
// product name, variant attributes) from the variant rows it locks for
// the availability re-check.
type CheckoutStore interface {
	CreateOrder(ctx context.Context, o *Order, c *cart.Cart) error
}

// Checkout turns a cart into an order.
type Checkout struct {
	carts  cart.Repository
	store  CheckoutStore
	events event.Publisher
	cfg    CheckoutConfig
	now    func() time.Time
}

// NewCheckout creates the checkout service.
func NewCheckout(carts cart.Repository, store CheckoutStore, events event.Publisher, cfg CheckoutConfig) *Checkout {
	return &Checkout{
		carts:  carts,
		store:  store,
		events: events,
		cfg:    cfg,
		now:    time.Now,
	}
}

// PlaceOrder validates the cart and request, builds the order snapshot, and
// hands it to the store for atomic creation. On success the cart is gone,
// stock is decremented, and OrderPlaced is emitted.
func (s *Checkout) PlaceOrder(ctx context.Context, ownerID string, req PlaceOrderRequest) (*Order, error) {
	c, err := s.carts.GetByOwner(ctx, ownerID)
	if errors.Is(err, cart.ErrNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	o := s.buildOrder(c, req)

	if o.IsCod() {
		if !req.PhoneVerified {
			return nil, ErrPhoneUnverified
		}
		if o.TotalCents < s.cfg.CodMinCents || (s.cfg.CodMaxCents > 0 && o.TotalCents > s.cfg.CodMaxCents) {
			return nil, &CodAmountError{
				TotalCents: o.TotalCents,
				MinCents:   s.cfg.CodMinCents,
				MaxCents:   s.cfg.CodMaxCents,
			}
		}
	}

	if err := s.store.CreateOrder(ctx, o, c); err != nil {
		return nil, err
	}

	_ = s.events.Publish(ctx, event.Event{
		Type: event.TypeOrderPlaced,
		Payload: event.OrderPlaced{
			OrderNumber:   o.OrderNumber,
			CustomerID:    o.CustomerID,
			PaymentMethod: o.PaymentMethod,
			TotalCents:    o.TotalCents,
		},
	})

	return o, nil
}

// buildOrder snapshots the cart lines into order items and derives the
// money fields. Per-line tax is floored to whole cents; order-level tax is
// the sum of line taxes so item totals always add up to the order total.
func (s *Checkout) buildOrder(c *cart.Cart, req PlaceOrderRequest) *Order {
	now := s.now().UTC()
	number := newOrderNumber(now)

	o := &Order{
		OrderNumber:     number,
		CustomerID:      req.CustomerID,
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		PaymentMethod:   req.PaymentMethod,
		ShippingCents:   s.cfg.ShippingCents,
		DiscountCents:   req.DiscountCents,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		CreatedAt:       now,
	}

	for _, line := range c.Items {
		sub := line.UnitPriceCents * int64(line.Quantity)
		tax := decimal.NewFromInt(sub).
			Mul(s.cfg.TaxRatePercent).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()

		o.Items = append(o.Items, Item{
			ID:             uuid.New().String(),
			OrderNumber:    number,
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			SubtotalCents:  sub,
			TaxCents:       tax,
			TotalCents:     sub + tax,
			VendorStatus:   VendorPending,
		})
		o.SubtotalCents += sub
		o.TaxCents += tax
	}

	o.TotalCents = o.SubtotalCents + o.TaxCents + o.ShippingCents - o.DiscountCents
	if o.IsCod() {
		o.CodFeeCents = s.cfg.CodFee(o.TotalCents)
		o.TotalCents += o.CodFeeCents
	} else if req.Payment.Succeeded {
		o.PaymentStatus = PaymentPaid
		o.PaymentTransactionID = req.Payment.TransactionID
	}

	return o
}

// newOrderNumber builds a unique, human-referenceable order number.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
