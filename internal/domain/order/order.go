// Package order contains the order aggregate: the immutable financial
// record created at checkout, its per-vendor line items, and the COD
// delivery workflow that drives an order from pending to settled cash.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Status is the order-level lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusProcessing     Status = "processing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusDeliveryFailed Status = "delivery_failed"
	StatusCancelled      Status = "cancelled"
	StatusShipped        Status = "shipped"
)

// PaymentStatus tracks how much of the order total has been settled.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentRefunded      PaymentStatus = "refunded"
)

// VendorStatus is the per-order-item fulfillment sub-status, independent of
// (but rolled up into) the order's overall status.
type VendorStatus string

const (
	VendorPending     VendorStatus = "pending"
	VendorProcessing  VendorStatus = "processing"
	VendorReadyToShip VendorStatus = "ready_to_ship"
	VendorShipped     VendorStatus = "shipped"
	VendorDelivered   VendorStatus = "delivered"
	VendorCancelled   VendorStatus = "cancelled"
)

// PaymentMethodCOD marks cash-on-delivery orders. Other methods pass
// through from the gateway integration layer unchanged.
const PaymentMethodCOD = "cod"

// Address is the shipping/billing snapshot captured at checkout. Records
// arrive fully formed from the address book collaborator; the core only
// stores them.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Item is one line of an order. Product name and attributes are snapshotted
// at order time so later catalog edits cannot corrupt history.
type Item struct {
	ID                string
	OrderNumber       string
	VendorID          string
	ProductID         string
	VariantID         string
	ProductName       string
	VariantAttributes map[string]string
	UnitPriceCents    int64
	Quantity          int
	SubtotalCents     int64
	TaxCents          int64
	TotalCents        int64
	VendorStatus      VendorStatus
}

// Order is the financial record of a completed checkout. Money fields are
// integer cents and obey:
// total = subtotal + tax + shipping - discount (+ cod_fee for COD).
type Order struct {
	OrderNumber          string
	CustomerID           string
	Status               Status
	PaymentStatus        PaymentStatus
	PaymentMethod        string
	PaymentTransactionID string
	SubtotalCents        int64
	TaxCents             int64
	ShippingCents        int64
	DiscountCents        int64
	CodFeeCents          int64
	TotalCents           int64
	ShippingAddress      Address
	BillingAddress       Address
	Items                []Item

	// COD delivery tracking.
	CodAmountCollected    *int64
	DeliveryAttempts      int
	ScheduledDeliveryDate *time.Time
	DeliveryAgentID       string
	DeliveredByID         string
	DeliveredAt           *time.Time

	CreatedAt time.Time
}

// IsCod reports whether the order is cash-on-delivery.
func (o *Order) IsCod() bool {
	return o.PaymentMethod == PaymentMethodCOD
}

// StatusLog is one audit trail entry for an order status change.
type StatusLog struct {
	OrderNumber string
	OldStatus   Status
	NewStatus   Status
	Note        string
	ActorID     string
	CreatedAt   time.Time
}

// ErrNotFound is returned when an order number does not exist.
var ErrNotFound = errors.New("order not found")

// ErrNotCodOrder is returned when a COD-only operation targets an order
// paid by another method.
var ErrNotCodOrder = errors.New("not a cash-on-delivery order")

// InvalidTransitionError reports a state machine guard violation. It is a
// caller error and is never retried automatically.
type InvalidTransitionError struct {
	Operation string
	Current   Status
	Required  []Status
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Required) == 1 {
		return fmt.Sprintf("%s requires status %q, order is %q", e.Operation, e.Required[0], e.Current)
	}
	return fmt.Sprintf("%s requires one of %v, order is %q", e.Operation, e.Required, e.Current)
}

// CannotCancelError is returned once delivery is out: the cancellable
// window closes at out_for_delivery.
type CannotCancelError struct {
	Current Status
}

func (e *CannotCancelError) Error() string {
	return fmt.Sprintf("order cannot be cancelled in status %q", e.Current)
}

// Repository defines persistence for the order aggregate. Orders load
// fully hydrated (with items); the domain never triggers further loads
// mid-computation.
type Repository interface {
	// Get loads an order and all of its items, or ErrNotFound.
	Get(ctx context.Context, orderNumber string) (*Order, error)

	// UpdateStatus persists the order's mutated status and side fields and
	// appends the audit log entry inside the same transaction.
	UpdateStatus(ctx context.Context, o *Order, log StatusLog) error

	// UpdateItemStatus persists one item's vendor status together with the
	// recomputed order-level status projection and its audit entry.
	UpdateItemStatus(ctx context.Context, o *Order, itemID string, log StatusLog) error
}
