package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendora/marketplace-core/internal/domain/inventory"
)

// Config holds the cart-level tunables. The tax rate and reservation TTL
// are injected here rather than read from any global settings lookup.
type Config struct {
	TaxRatePercent decimal.Decimal
	ReservationTTL time.Duration
}

// Service reconciles cart mutations against the inventory ledger and keeps
// totals recomputed after every change.
type Service struct {
	carts  Repository
	ledger inventory.Ledger
	cfg    Config
}

// NewService creates a cart Service.
func NewService(carts Repository, ledger inventory.Ledger, cfg Config) *Service {
	return &Service{carts: carts, ledger: ledger, cfg: cfg}
}

// AddItem reserves qty units of the variant for the owner's cart and upserts
// the cart line, merging quantity when the variant is already present. The
// owner's own prior reservation is additive: the ledger grows the existing
// hold instead of double-counting it against availability.
func (s *Service) AddItem(ctx context.Context, ownerID, variantID string, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	unit, err := s.ledger.GetUnit(ctx, variantID)
	if err != nil {
		return nil, errors.Wrap(err, "load unit")
	}

	c, err := s.carts.GetByOwner(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		c = &Cart{
			ID:                 uuid.New().String(),
			OwnerID:            ownerID,
			ReservationGroupID: uuid.New(),
		}
	} else if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	// Reserve first: the ledger is the arbiter of availability and fails
	// with InsufficientStock before the cart is touched.
	if _, err := s.ledger.Reserve(ctx, variantID, qty, c.ReservationGroupID, s.cfg.ReservationTTL); err != nil {
		return nil, err
	}

	merged := false
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			c.Items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		c.Items = append(c.Items, Item{
			ProductID:      unit.ProductID,
			VariantID:      variantID,
			Quantity:       qty,
			UnitPriceCents: unit.PriceCents,
		})
	}

	return c, s.save(ctx, c)
}

// UpdateQuantity sets the line quantity for a variant already in the cart,
// adjusting the reservation by the delta.
func (s *Service) UpdateQuantity(ctx context.Context, ownerID, variantID string, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.carts.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrItemNotFound
	}

	delta := qty - c.Items[idx].Quantity
	switch {
	case delta > 0:
		if _, err := s.ledger.Reserve(ctx, variantID, delta, c.ReservationGroupID, s.cfg.ReservationTTL); err != nil {
			return nil, err
		}
	case delta < 0:
		if err := s.ledger.ReduceReservation(ctx, c.ReservationGroupID, variantID, -delta); err != nil {
			return nil, errors.Wrap(err, "reduce reservation")
		}
	}

	c.Items[idx].Quantity = qty
	return c, s.save(ctx, c)
}

// RemoveItem drops a line and its reservation.
func (s *Service) RemoveItem(ctx context.Context, ownerID, variantID string) (*Cart, error) {
	c, err := s.carts.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	kept := c.Items[:0]
	found := false
	for _, it := range c.Items {
		if it.VariantID == variantID {
			found = true
			if err := s.ledger.ReduceReservation(ctx, c.ReservationGroupID, variantID, it.Quantity); err != nil {
				return nil, errors.Wrap(err, "reduce reservation")
			}
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return nil, ErrItemNotFound
	}

	c.Items = kept
	return c, s.save(ctx, c)
}

// Clear empties the cart and releases every reservation in its group.
func (s *Service) Clear(ctx context.Context, ownerID string) error {
	c, err := s.carts.GetByOwner(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.ledger.Release(ctx, c.ReservationGroupID); err != nil {
		return errors.Wrap(err, "release reservations")
	}
	return s.carts.Delete(ctx, ownerID)
}

// Get returns the owner's cart.
func (s *Service) Get(ctx context.Context, ownerID string) (*Cart, error) {
	return s.carts.GetByOwner(ctx, ownerID)
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	t := ComputeTotals(c.Items, s.cfg.TaxRatePercent)
	c.SubtotalCents = t.SubtotalCents
	c.TaxCents = t.TaxCents
	c.TotalCents = t.TotalCents

	if err := s.carts.Save(ctx, c); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}
