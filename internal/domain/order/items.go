package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// vendorNext lists the legal per-item fulfillment moves.
var vendorNext = map[VendorStatus]map[VendorStatus]bool{
	VendorPending:     {VendorProcessing: true, VendorCancelled: true},
	VendorProcessing:  {VendorReadyToShip: true, VendorCancelled: true},
	VendorReadyToShip: {VendorShipped: true, VendorCancelled: true},
	VendorShipped:     {VendorDelivered: true},
	VendorDelivered:   {},
	VendorCancelled:   {},
}

// VendorStatusError reports an illegal per-item fulfillment move.
type VendorStatusError struct {
	ItemID  string
	Current VendorStatus
	Target  VendorStatus
}

func (e *VendorStatusError) Error() string {
	return fmt.Sprintf("item %s cannot move from %q to %q", e.ItemID, e.Current, e.Target)
}

// ErrItemNotFound is returned when an item id does not belong to the order.
var ErrItemNotFound = errors.New("order item not found")

// Items updates per-vendor fulfillment statuses and keeps the order-level
// status a derived projection of them.
type Items struct {
	orders Repository
	now    func() time.Time
}

// NewItems creates the item status service.
func NewItems(orders Repository) *Items {
	return &Items{orders: orders, now: time.Now}
}

// UpdateStatus moves one item to a new vendor status, recomputes the order
// status from all item statuses, and persists both with an audit entry.
// The order status is never set independently here: it is always the
// ProjectStatus result.
func (s *Items) UpdateStatus(ctx context.Context, orderNumber, itemID string, target VendorStatus, actorID string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrItemNotFound
	}

	current := o.Items[idx].VendorStatus
	if !vendorNext[current][target] {
		return nil, &VendorStatusError{ItemID: itemID, Current: current, Target: target}
	}

	o.Items[idx].VendorStatus = target

	oldStatus := o.Status
	o.Status = ProjectStatus(o.Status, o.Items)

	log := StatusLog{
		OrderNumber: orderNumber,
		OldStatus:   oldStatus,
		NewStatus:   o.Status,
		Note:        fmt.Sprintf("item %s moved to %s", itemID, target),
		ActorID:     actorID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.orders.UpdateItemStatus(ctx, o, itemID, log); err != nil {
		return nil, errors.Wrap(err, "update item status")
	}
	return o, nil
}
