// Package event defines the domain events the core emits at each order and
// settlement transition. The out-of-scope notification layer consumes them
// and owns channel, template, and retry semantics; the core only decides
// that something notification-worthy happened.
package event

import "context"

// Type names a domain event.
type Type string

const (
	TypeOrderPlaced            Type = "order.placed"
	TypeCodOrderConfirmed      Type = "cod.order_confirmed"
	TypeCodOrderOutForDelivery Type = "cod.out_for_delivery"
	TypeCodPaymentCollected    Type = "cod.payment_collected"
	TypeCodDeliveryFailed      Type = "cod.delivery_failed"
	TypePayoutProcessed        Type = "payout.processed"
)

// Event is a single domain event with its typed payload.
type Event struct {
	Type    Type
	Payload any
}

// OrderPlaced is emitted once per successful checkout.
type OrderPlaced struct {
	OrderNumber   string `json:"order_number"`
	CustomerID    string `json:"customer_id"`
	PaymentMethod string `json:"payment_method"`
	TotalCents    int64  `json:"total_cents"`
}

// CodOrderConfirmed is emitted when a pending COD order is confirmed.
type CodOrderConfirmed struct {
	OrderNumber string `json:"order_number"`
}

// CodOrderOutForDelivery is emitted when an order leaves for delivery,
// including reschedules after a failed attempt.
type CodOrderOutForDelivery struct {
	OrderNumber   string `json:"order_number"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
	Rescheduled   bool   `json:"rescheduled"`
}

// CodPaymentCollected is emitted on successful delivery with the cash
// amount the agent collected.
type CodPaymentCollected struct {
	OrderNumber    string `json:"order_number"`
	CollectedCents int64  `json:"collected_cents"`
	PaymentStatus  string `json:"payment_status"`
}

// CodDeliveryFailed is emitted on every failed attempt. Escalated is set
// once the attempt count reaches the configured threshold; resolution is
// left to the consumer.
type CodDeliveryFailed struct {
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"`
	Attempt     int    `json:"attempt"`
	Escalated   bool   `json:"escalated"`
}

// PayoutProcessed is emitted when a payout completes.
type PayoutProcessed struct {
	PayoutID       string `json:"payout_id"`
	VendorID       string `json:"vendor_id"`
	NetAmountCents int64  `json:"net_amount_cents"`
	TransactionID  string `json:"transaction_id"`
}

// Publisher delivers events to the notification dispatch layer.
// Implementations must not block domain operations on delivery problems.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
