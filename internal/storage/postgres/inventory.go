package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/marketplace-core/internal/domain/inventory"
)

var _ inventory.Ledger = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Ledger backed by PostgreSQL.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository using the pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

const getUnitSQL = `SELECT id, vendor_id, product_id, sku, name, attributes, price_cents, stock_quantity
	FROM product_variants WHERE id = $1`

// GetUnit loads a sellable unit by id.
func (r *InventoryRepository) GetUnit(ctx context.Context, unitID string) (*inventory.SellableUnit, error) {
	var u inventory.SellableUnit
	err := r.pool.QueryRow(ctx, getUnitSQL, unitID).Scan(
		&u.ID, &u.VendorID, &u.ProductID, &u.SKU, &u.Name, &u.Attributes, &u.PriceCents, &u.StockQuantity,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, inventory.ErrUnitNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query unit")
	}
	return &u, nil
}

const availableSQL = `SELECT v.stock_quantity - COALESCE((
		SELECT SUM(r.quantity) FROM stock_reservations r
		WHERE r.variant_id = v.id AND r.expires_at > now()
	), 0)
	FROM product_variants v WHERE v.id = $1`

// AvailableQuantity returns stock minus the sum of active reservations.
func (r *InventoryRepository) AvailableQuantity(ctx context.Context, unitID string) (int, error) {
	var available int
	if err := r.pool.QueryRow(ctx, availableSQL, unitID).Scan(&available); err != nil {
		return 0, errors.Wrap(err, "query availability")
	}
	return available, nil
}

// Reserve holds qty units for the group inside a row-locking transaction.
// The variant row lock serializes concurrent reservations so two requests
// cannot both observe the same availability and both succeed when only one
// should.
func (r *InventoryRepository) Reserve(ctx context.Context, unitID string, qty int, groupID uuid.UUID, ttl time.Duration) (*inventory.Reservation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock_quantity FROM product_variants WHERE id = $1 FOR UPDATE`, unitID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, inventory.ErrUnitNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock variant")
	}

	var reserved int
	err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_reservations
		WHERE variant_id = $1 AND expires_at > now()`, unitID).Scan(&reserved)
	if err != nil {
		return nil, errors.Wrap(err, "sum reservations")
	}

	if available := inventory.Available(stock, reserved); available < qty {
		return nil, &inventory.InsufficientStockError{
			UnitID:    unitID,
			Requested: qty,
			Available: available,
		}
	}

	res := &inventory.Reservation{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		UnitID:    unitID,
		Quantity:  qty,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}

	// A repeat reserve for the same (group, unit) grows the existing hold
	// and refreshes its expiry instead of inserting a second row.
	_, err = tx.Exec(ctx, `INSERT INTO stock_reservations (id, group_id, variant_id, quantity, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (group_id, variant_id) DO UPDATE
		SET quantity = stock_reservations.quantity + EXCLUDED.quantity,
		    expires_at = EXCLUDED.expires_at`,
		res.ID, groupID.String(), unitID, qty, res.ExpiresAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert reservation")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return res, nil
}

// Commit decrements stock by the group's reserved amounts and deletes the
// reservations, all in one transaction. The guarded UPDATE keeps
// stock_quantity from ever going negative even if a reservation row is
// somehow stale.
func (r *InventoryRepository) Commit(ctx context.Context, groupID uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	if err := commitReservations(ctx, tx, groupID); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// commitReservations runs the stock decrement + reservation delete inside
// the caller's transaction. The checkout transaction shares it.
func commitReservations(ctx context.Context, tx pgx.Tx, groupID uuid.UUID) error {
	rows, err := tx.Query(ctx, `SELECT variant_id, quantity FROM stock_reservations
		WHERE group_id = $1`, groupID.String())
	if err != nil {
		return errors.Wrap(err, "load reservations")
	}

	type hold struct {
		variantID string
		qty       int
	}
	var holds []hold
	for rows.Next() {
		var h hold
		if err := rows.Scan(&h.variantID, &h.qty); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan reservation")
		}
		holds = append(holds, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate reservations")
	}

	for _, h := range holds {
		ct, err := tx.Exec(ctx, `UPDATE product_variants
			SET stock_quantity = stock_quantity - $2, updated_at = now()
			WHERE id = $1 AND stock_quantity >= $2`, h.variantID, h.qty)
		if err != nil {
			return errors.Wrap(err, "decrement stock")
		}
		if ct.RowsAffected() != 1 {
			var stock int
			_ = tx.QueryRow(ctx, `SELECT stock_quantity FROM product_variants WHERE id = $1`, h.variantID).Scan(&stock)
			return &inventory.InsufficientStockError{
				UnitID:    h.variantID,
				Requested: h.qty,
				Available: stock,
			}
		}
	}

	_, err = tx.Exec(ctx, `DELETE FROM stock_reservations WHERE group_id = $1`, groupID.String())
	return errors.Wrap(err, "delete reservations")
}

// ReduceReservation shrinks the group's hold on a unit without touching
// stock, removing the row once it reaches zero.
func (r *InventoryRepository) ReduceReservation(ctx context.Context, groupID uuid.UUID, unitID string, qty int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `UPDATE stock_reservations SET quantity = quantity - $3
		WHERE group_id = $1 AND variant_id = $2`, groupID.String(), unitID, qty)
	if err != nil {
		return errors.Wrap(err, "reduce reservation")
	}
	_, err = tx.Exec(ctx, `DELETE FROM stock_reservations
		WHERE group_id = $1 AND variant_id = $2 AND quantity <= 0`, groupID.String(), unitID)
	if err != nil {
		return errors.Wrap(err, "drop empty reservation")
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// Release drops every reservation in the group without touching stock.
func (r *InventoryRepository) Release(ctx context.Context, groupID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM stock_reservations WHERE group_id = $1`, groupID.String())
	return errors.Wrap(err, "release reservations")
}

// SweepExpired deletes reservations past their expiry. It only ever
// removes rows whose expires_at has passed and never touches committed
// stock.
func (r *InventoryRepository) SweepExpired(ctx context.Context) (int, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM stock_reservations WHERE expires_at <= now()`)
	if err != nil {
		return 0, errors.Wrap(err, "sweep reservations")
	}
	return int(ct.RowsAffected()), nil
}
