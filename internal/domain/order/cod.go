package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/vendora/marketplace-core/internal/domain/event"
)

// CodConfig holds the COD workflow tunables.
type CodConfig struct {
	// EscalationThreshold is the failed-attempt count at which a delivery
	// failure is flagged for escalation. Attempts keep being allowed;
	// resolution belongs to the notification consumer.
	EscalationThreshold int
}

// Finalizer runs settlement side effects at the two points an order's
// money position changes: confirmation (commissions are created) and
// delivery (commissions become eligible for payout). The commission
// engine implements it.
type Finalizer interface {
	FinalizeOrder(ctx context.Context, o *Order) error
	SettleOrder(ctx context.Context, o *Order) error
}

// CodWorkflow drives a cash-on-delivery order through its statuses. Every
// transition validates the payment method and the predecessor state,
// persists the mutation together with an audit log entry, and emits the
// matching domain event.
type CodWorkflow struct {
	orders    Repository
	events    event.Publisher
	finalizer Finalizer
	cfg       CodConfig
	now       func() time.Time
}

// NewCodWorkflow creates the COD workflow service. finalizer may be nil
// when no finalization side effects are wired.
func NewCodWorkflow(orders Repository, events event.Publisher, finalizer Finalizer, cfg CodConfig) *CodWorkflow {
	return &CodWorkflow{
		orders:    orders,
		events:    events,
		finalizer: finalizer,
		cfg:       cfg,
		now:       time.Now,
	}
}

// load fetches the order and enforces the COD payment-method guard shared
// by every workflow operation.
func (w *CodWorkflow) load(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := w.orders.Get(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !o.IsCod() {
		return nil, ErrNotCodOrder
	}
	return o, nil
}

func (w *CodWorkflow) transition(ctx context.Context, o *Order, to Status, note, actorID string) error {
	from := o.Status
	o.Status = to
	log := StatusLog{
		OrderNumber: o.OrderNumber,
		OldStatus:   from,
		NewStatus:   to,
		Note:        note,
		ActorID:     actorID,
		CreatedAt:   w.now().UTC(),
	}
	if err := w.orders.UpdateStatus(ctx, o, log); err != nil {
		return errors.Wrap(err, "update status")
	}
	return nil
}

// Confirm moves a pending order to confirmed.
func (w *CodWorkflow) Confirm(ctx context.Context, orderNumber, actorID string) (*Order, error) {
	o, err := w.load(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, &InvalidTransitionError{Operation: "confirm", Current: o.Status, Required: []Status{StatusPending}}
	}

	if err := w.transition(ctx, o, StatusConfirmed, "order confirmed", actorID); err != nil {
		return nil, err
	}

	if w.finalizer != nil {
		if err := w.finalizer.FinalizeOrder(ctx, o); err != nil {
			return nil, errors.Wrap(err, "finalize order")
		}
	}

	_ = w.events.Publish(ctx, event.Event{
		Type:    event.TypeCodOrderConfirmed,
		Payload: event.CodOrderConfirmed{OrderNumber: o.OrderNumber},
	})
	return o, nil
}

// StartProcessing moves a confirmed order to processing.
func (w *CodWorkflow) StartProcessing(ctx context.Context, orderNumber, actorID string) (*Order, error) {
	o, err := w.load(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusConfirmed {
		return nil, &InvalidTransitionError{Operation: "start processing", Current: o.Status, Required: []Status{StatusConfirmed}}
	}

	if err := w.transition(ctx, o, StatusProcessing, "processing started", actorID); err != nil {
		return nil, err
	}
	return o, nil
}

// MarkOutForDelivery dispatches a processing order, or reschedules one
// whose last attempt failed. scheduledDate is recorded on the reschedule
// path; agentID identifies the delivery agent taking the order out.
func (w *CodWorkflow) MarkOutForDelivery(ctx context.Context, orderNumber, agentID string, scheduledDate *time.Time, actorID string) (*Order, error) {
	o, err := w.load(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusProcessing && o.Status != StatusDeliveryFailed {
		return nil, &InvalidTransitionError{
			Operation: "mark out for delivery",
			Current:   o.Status,
			Required:  []Status{StatusProcessing, StatusDeliveryFailed},
		}
	}

	rescheduled := o.Status == StatusDeliveryFailed
	note := "out for delivery"
	if rescheduled {
		note = "delivery rescheduled"
		o.ScheduledDeliveryDate = scheduledDate
	}
	o.DeliveryAgentID = agentID

	if err := w.transition(ctx, o, StatusOutForDelivery, note, actorID); err != nil {
		return nil, err
	}

	scheduled := ""
	if o.ScheduledDeliveryDate != nil {
		scheduled = o.ScheduledDeliveryDate.Format("2006-01-02")
	}
	_ = w.events.Publish(ctx, event.Event{
		Type: event.TypeCodOrderOutForDelivery,
		Payload: event.CodOrderOutForDelivery{
			OrderNumber:   o.OrderNumber,
			ScheduledDate: scheduled,
			Rescheduled:   rescheduled,
		},
	})
	return o, nil
}

// MarkDelivered completes a delivery, recording the cash collected.
// payment_status becomes paid when the collected amount covers the total,
// partially_paid otherwise.
func (w *CodWorkflow) MarkDelivered(ctx context.Context, orderNumber string, amountCollectedCents int64, deliveredByID string) (*Order, error) {
	o, err := w.load(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusOutForDelivery {
		return nil, &InvalidTransitionError{Operation: "mark delivered", Current: o.Status, Required: []Status{StatusOutForDelivery}}
	}

	now := w.now().UTC()
	o.CodAmountCollected = &amountCollectedCents
	o.DeliveredByID = deliveredByID
	o.DeliveredAt = &now
	if amountCollectedCents >= o.TotalCents {
		o.PaymentStatus = PaymentPaid
	} else {
		o.PaymentStatus = PaymentPartiallyPaid
	}

	note := fmt.Sprintf("delivered, collected %d cents", amountCollectedCents)
	if err := w.transition(ctx, o, StatusDelivered, note, deliveredByID); err != nil {
		return nil, err
	}

	if w.finalizer != nil {
		if err := w.finalizer.SettleOrder(ctx, o); err != nil {
			return nil, errors.Wrap(err, "settle order")
		}
	}

	_ = w.events.Publish(ctx, event.Event{
		Type: event.TypeCodPaymentCollected,
		Payload: event.CodPaymentCollected{
			OrderNumber:    o.OrderNumber,
			CollectedCents: amountCollectedCents,
			PaymentStatus:  string(o.PaymentStatus),
		},
	})
	return o, nil
}

// MarkDeliveryFailed records a failed attempt. The attempt counter is
// incremented on every failure; reaching the configured threshold flags
// the event for escalation but does not block further reschedules.
func (w *CodWorkflow) MarkDeliveryFailed(ctx context.Context, orderNumber, reason, actorID string) (*Order, error) {
	o, err := w.load(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusOutForDelivery {
		return nil, &InvalidTransitionError{Operation: "mark delivery failed", Current: o.Status, Required: []Status{StatusOutForDelivery}}
	}

	o.DeliveryAttempts++
	note := fmt.Sprintf("delivery attempt %d failed: %s", o.DeliveryAttempts, reason)
	if err := w.transition(ctx, o, StatusDeliveryFailed, note, actorID); err != nil {
		return nil, err
	}

	_ = w.events.Publish(ctx, event.Event{
		Type: event.TypeCodDeliveryFailed,
		Payload: event.CodDeliveryFailed{
			OrderNumber: o.OrderNumber,
			Reason:      reason,
			Attempt:     o.DeliveryAttempts,
			Escalated:   o.DeliveryAttempts >= w.cfg.EscalationThreshold,
		},
	})
	return o, nil
}

// Cancel terminates an order that has not yet gone out for delivery.
func (w *CodWorkflow) Cancel(ctx context.Context, orderNumber, reason, actorID string) (*Order, error) {
	o, err := w.load(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !Cancellable(o.Status) {
		return nil, &CannotCancelError{Current: o.Status}
	}

	note := "cancelled"
	if reason != "" {
		note = "cancelled: " + reason
	}
	if err := w.transition(ctx, o, StatusCancelled, note, actorID); err != nil {
		return nil, err
	}
	return o, nil
}
