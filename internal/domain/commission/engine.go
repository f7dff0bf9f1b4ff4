package commission

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendora/marketplace-core/internal/domain/order"
)

// Engine creates commissions for finalized orders. It implements
// order.Finalizer so confirmation of an order produces exactly one
// commission per item.
type Engine struct {
	repo Repository
	rate decimal.Decimal
	now  func() time.Time
}

// NewEngine creates an Engine with the platform's commission rate in
// percent.
func NewEngine(repo Repository, ratePercent decimal.Decimal) *Engine {
	return &Engine{repo: repo, rate: ratePercent, now: time.Now}
}

// Calculate returns the split for one order item at the engine's rate.
// Recalculating with the same inputs always yields the same result.
func (e *Engine) Calculate(totalCents int64) (platformCents, vendorCents int64) {
	return Split(totalCents, e.rate)
}

// FinalizeOrder creates a commission for every item of the order. A
// commission that already exists (a repeated confirmation, a replayed
// request) is skipped: the uniqueness constraint makes the whole operation
// idempotent.
func (e *Engine) FinalizeOrder(ctx context.Context, o *order.Order) error {
	for _, it := range o.Items {
		platform, vendor := Split(it.TotalCents, e.rate)
		c := &Commission{
			ID:                  uuid.New().String(),
			OrderItemID:         it.ID,
			VendorID:            it.VendorID,
			RatePercent:         e.rate,
			PlatformAmountCents: platform,
			VendorAmountCents:   vendor,
			Status:              StatusPending,
			CreatedAt:           e.now().UTC(),
		}
		if err := e.repo.Create(ctx, c); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				continue
			}
			return errors.Wrap(err, "create commission")
		}
	}
	return nil
}

// SettleOrder confirms the commissions of every item in a delivered
// order, making their vendor shares count toward available balances.
// Items whose commissions are already confirmed or paid are unaffected.
func (e *Engine) SettleOrder(ctx context.Context, o *order.Order) error {
	for _, it := range o.Items {
		if err := e.repo.ConfirmByOrderItem(ctx, it.ID); err != nil {
			return errors.Wrap(err, "confirm commission")
		}
	}
	return nil
}

var _ order.Finalizer = (*Engine)(nil)
