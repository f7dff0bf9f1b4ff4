package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/marketplace-core/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository using the pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

const getCartSQL = `SELECT id, owner_id, reservation_group_id, subtotal_cents, tax_cents, total_cents, updated_at
	FROM carts WHERE owner_id = $1`

const getCartItemsSQL = `SELECT variant_id, product_id, quantity, unit_price_cents
	FROM cart_items WHERE cart_id = $1 ORDER BY variant_id`

// GetByOwner loads the owner's cart with its items.
func (r *CartRepository) GetByOwner(ctx context.Context, ownerID string) (*cart.Cart, error) {
	var c cart.Cart
	var groupID string
	err := r.pool.QueryRow(ctx, getCartSQL, ownerID).Scan(
		&c.ID, &c.OwnerID, &groupID, &c.SubtotalCents, &c.TaxCents, &c.TotalCents, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query cart")
	}

	c.ReservationGroupID, err = uuid.Parse(groupID)
	if err != nil {
		return nil, errors.Wrap(err, "parse reservation group")
	}

	rows, err := r.pool.Query(ctx, getCartItemsSQL, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "query cart items")
	}
	defer rows.Close()

	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(&it.VariantID, &it.ProductID, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, errors.Wrap(err, "scan cart item")
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate cart items")
	}
	return &c, nil
}

// Save upserts the cart header and replaces its line items in one
// transaction.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO carts (id, owner_id, reservation_group_id, subtotal_cents, tax_cents, total_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO UPDATE
		SET subtotal_cents = EXCLUDED.subtotal_cents,
		    tax_cents = EXCLUDED.tax_cents,
		    total_cents = EXCLUDED.total_cents,
		    updated_at = now()`,
		c.ID, c.OwnerID, c.ReservationGroupID.String(), c.SubtotalCents, c.TaxCents, c.TotalCents,
	)
	if err != nil {
		return errors.Wrap(err, "upsert cart")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
		return errors.Wrap(err, "clear cart items")
	}
	for _, it := range c.Items {
		_, err := tx.Exec(ctx, `INSERT INTO cart_items (cart_id, variant_id, product_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5)`,
			c.ID, it.VariantID, it.ProductID, it.Quantity, it.UnitPriceCents,
		)
		if err != nil {
			return errors.Wrap(err, "insert cart item")
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// Delete removes the cart; items cascade.
func (r *CartRepository) Delete(ctx context.Context, ownerID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE owner_id = $1`, ownerID)
	return errors.Wrap(err, "delete cart")
}
