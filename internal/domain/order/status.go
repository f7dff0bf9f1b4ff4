package order

// codNext maps each COD status to its legal successors:
//
//	pending → confirmed → processing → out_for_delivery → delivered
//	out_for_delivery → delivery_failed → out_for_delivery (reschedule)
//	pending/confirmed/processing → cancelled
//
// delivered and cancelled are terminal. Cancellation is only possible
// strictly before the order first goes out for delivery.
var codNext = map[Status]map[Status]bool{
	StatusPending:        {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:      {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing:     {StatusOutForDelivery: true, StatusCancelled: true},
	StatusOutForDelivery: {StatusDelivered: true, StatusDeliveryFailed: true},
	StatusDeliveryFailed: {StatusOutForDelivery: true},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

// CanTransition reports whether from → to is a legal COD transition.
func CanTransition(from, to Status) bool {
	return codNext[from][to]
}

// Cancellable reports whether an order may still be cancelled. The window
// closes for good once the order first goes out for delivery.
func Cancellable(s Status) bool {
	return codNext[s][StatusCancelled]
}

// ProjectStatus derives the order-level status from its items' vendor
// statuses. It is the single source of the projection and only ever moves
// the order forward: delivered-all wins over shipped-all, which wins over
// any-processing-while-pending; anything else leaves the current status
// untouched. Cancelled items are ignored so one vendor backing out does
// not block the rest of the order; an order whose active items are all
// gone is cancelled, but only while cancellation is still legal.
func ProjectStatus(current Status, items []Item) Status {
	if current == StatusDelivered || current == StatusCancelled {
		return current
	}

	allDelivered := true
	allShipped := true
	anyActive := false
	anyProcessing := false

	for _, it := range items {
		if it.VendorStatus == VendorCancelled {
			continue
		}
		anyActive = true

		if it.VendorStatus != VendorDelivered {
			allDelivered = false
		}
		if it.VendorStatus != VendorShipped && it.VendorStatus != VendorDelivered {
			allShipped = false
		}
		if it.VendorStatus == VendorProcessing || it.VendorStatus == VendorReadyToShip {
			anyProcessing = true
		}
	}

	// Shipped is only an upgrade while the order has not left the warehouse.
	beforeDispatch := current == StatusPending || current == StatusConfirmed || current == StatusProcessing

	switch {
	case !anyActive:
		if Cancellable(current) {
			return StatusCancelled
		}
		return current
	case allDelivered:
		return StatusDelivered
	case allShipped && beforeDispatch:
		return StatusShipped
	case anyProcessing && current == StatusPending:
		return StatusProcessing
	default:
		return current
	}
}
