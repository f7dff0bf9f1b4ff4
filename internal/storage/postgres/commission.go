package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/marketplace-core/internal/domain/commission"
	"github.com/vendora/marketplace-core/internal/domain/payout"
)

var (
	_ commission.Repository   = (*CommissionRepository)(nil)
	_ payout.CommissionSource = (*CommissionRepository)(nil)
)

// CommissionRepository implements commission.Repository backed by
// PostgreSQL. The UNIQUE constraint on order_item_id is what enforces
// append-once creation; no lock is taken.
type CommissionRepository struct {
	pool *pgxpool.Pool
}

// NewCommissionRepository returns a CommissionRepository using the pool.
func NewCommissionRepository(pool *pgxpool.Pool) *CommissionRepository {
	return &CommissionRepository{pool: pool}
}

const uniqueViolation = "23505"

const insertCommissionSQL = `INSERT INTO commissions (
		id, order_item_id, vendor_id, commission_rate,
		platform_amount_cents, vendor_amount_cents, status, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Create inserts a commission, mapping the uniqueness conflict to
// commission.ErrAlreadyExists.
func (r *CommissionRepository) Create(ctx context.Context, c *commission.Commission) error {
	_, err := r.pool.Exec(ctx, insertCommissionSQL,
		c.ID, c.OrderItemID, c.VendorID, c.RatePercent,
		c.PlatformAmountCents, c.VendorAmountCents, c.Status, c.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return commission.ErrAlreadyExists
	}
	return errors.Wrap(err, "insert commission")
}

const getCommissionSQL = `SELECT id, order_item_id, vendor_id, commission_rate,
		platform_amount_cents, vendor_amount_cents, status, payout_id, created_at
	FROM commissions WHERE id = $1`

// Get loads a commission by id.
func (r *CommissionRepository) Get(ctx context.Context, id string) (*commission.Commission, error) {
	var c commission.Commission
	err := r.pool.QueryRow(ctx, getCommissionSQL, id).Scan(
		&c.ID, &c.OrderItemID, &c.VendorID, &c.RatePercent,
		&c.PlatformAmountCents, &c.VendorAmountCents, &c.Status, &c.PayoutID, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, commission.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query commission")
	}
	return &c, nil
}

// ConfirmByOrderItem moves an item's pending commission to confirmed.
// Already-confirmed or paid commissions are left alone.
func (r *CommissionRepository) ConfirmByOrderItem(ctx context.Context, orderItemID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE commissions SET status = 'confirmed', updated_at = now()
		WHERE order_item_id = $1 AND status = 'pending'`, orderItemID)
	return errors.Wrap(err, "confirm commission")
}

// VendorAmounts returns vendor_amount_cents per commission id.
func (r *CommissionRepository) VendorAmounts(ctx context.Context, commissionIDs []string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, vendor_amount_cents FROM commissions WHERE id = ANY($1)`, commissionIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query commission amounts")
	}
	defer rows.Close()

	amounts := make(map[string]int64, len(commissionIDs))
	for rows.Next() {
		var id string
		var amt int64
		if err := rows.Scan(&id, &amt); err != nil {
			return nil, errors.Wrap(err, "scan commission amount")
		}
		amounts[id] = amt
	}
	return amounts, errors.Wrap(rows.Err(), "iterate commission amounts")
}

const listUnattachedSQL = `SELECT id, order_item_id, vendor_amount_cents, created_at
	FROM commissions
	WHERE vendor_id = $1 AND status = 'confirmed' AND payout_id IS NULL
	ORDER BY created_at`

// ListConfirmedUnattached returns the vendor's confirmed commissions not
// yet attached to any payout.
func (r *CommissionRepository) ListConfirmedUnattached(ctx context.Context, vendorID string) ([]payout.UnattachedCommission, error) {
	rows, err := r.pool.Query(ctx, listUnattachedSQL, vendorID)
	if err != nil {
		return nil, errors.Wrap(err, "query unattached commissions")
	}
	defer rows.Close()

	var out []payout.UnattachedCommission
	for rows.Next() {
		var c payout.UnattachedCommission
		if err := rows.Scan(&c.ID, &c.OrderItemID, &c.VendorAmountCents, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan unattached commission")
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "iterate unattached commissions")
}
