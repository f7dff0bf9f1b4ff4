// Package inventory defines the stock ledger: committed on-hand quantities
// per sellable unit and the temporary reservations held against them.
//
// Stock is only ever decremented when a reservation group is committed as
// part of order creation. Reservations themselves never touch
// stock_quantity; availability is always derived as
// stock_quantity - sum(active reservations).
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// SellableUnit is a purchasable product variant (SKU).
type SellableUnit struct {
	ID            string
	VendorID      string
	ProductID     string
	SKU           string
	Name          string
	Attributes    map[string]string
	PriceCents    int64
	StockQuantity int
}

// Reservation is an expiring hold on stock for an in-progress checkout.
// All reservations of one checkout attempt share a GroupID.
type Reservation struct {
	ID        string
	GroupID   uuid.UUID
	UnitID    string
	Quantity  int
	ExpiresAt time.Time
}

// Active reports whether the reservation still holds stock at the given time.
func (r Reservation) Active(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// Available returns the quantity that may still be reserved given the
// committed stock and the sum of active reservations.
func Available(stock, reserved int) int {
	return stock - reserved
}

// ErrUnitNotFound is returned when a sellable unit id does not exist.
var ErrUnitNotFound = errors.New("sellable unit not found")

// InsufficientStockError is returned when a reservation or commit requests
// more stock than is available. It is recoverable: the caller can reduce
// the quantity or retry later.
type InsufficientStockError struct {
	UnitID    string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for unit %s: requested %d, available %d",
		e.UnitID, e.Requested, e.Available)
}

// Ledger defines all stock-affecting operations. Implementations must run
// each read-then-write sequence inside a single row-locking transaction so
// concurrent reservations cannot both observe stale availability.
type Ledger interface {
	// GetUnit loads a sellable unit by id.
	GetUnit(ctx context.Context, unitID string) (*SellableUnit, error)

	// AvailableQuantity returns stock_quantity minus the sum of active
	// reservations for the unit.
	AvailableQuantity(ctx context.Context, unitID string) (int, error)

	// Reserve holds qty units for the given group with the given TTL.
	// A repeated Reserve for the same (group, unit) is additive: the existing
	// hold grows by qty and its expiry is refreshed. Returns
	// *InsufficientStockError when stock minus all active holds cannot cover
	// qty more units.
	Reserve(ctx context.Context, unitID string, qty int, groupID uuid.UUID, ttl time.Duration) (*Reservation, error)

	// Commit decrements stock_quantity by each of the group's reserved
	// amounts and deletes the reservations, atomically. Order placement runs
	// the same sequence inside its own transaction; the standalone form
	// exists for admin stock corrections.
	Commit(ctx context.Context, groupID uuid.UUID) error

	// ReduceReservation shrinks or removes the group's hold on a unit,
	// without touching stock.
	ReduceReservation(ctx context.Context, groupID uuid.UUID, unitID string, qty int) error

	// Release drops every reservation in the group without touching stock.
	Release(ctx context.Context, groupID uuid.UUID) error

	// SweepExpired deletes reservations past their expiry and returns the
	// number removed. It never touches committed stock.
	SweepExpired(ctx context.Context) (int, error)
}
