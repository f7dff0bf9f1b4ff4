package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/marketplace-core/internal/domain/cart"
	"github.com/vendora/marketplace-core/internal/domain/inventory"
	"github.com/vendora/marketplace-core/internal/domain/order"
	"github.com/vendora/marketplace-core/internal/domain/reconciliation"
)

var (
	_ order.Repository           = (*OrderRepository)(nil)
	_ order.CheckoutStore        = (*OrderRepository)(nil)
	_ reconciliation.OrderSource = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository and order.CheckoutStore
// backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository using the pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const insertOrderSQL = `INSERT INTO orders (
		order_number, customer_id, status, payment_status, payment_method,
		payment_transaction_id, subtotal_cents, tax_cents, shipping_cents,
		discount_cents, cod_fee_cents, total_cents, shipping_address,
		billing_address, created_at
	) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13, $14, $15)`

const insertOrderItemSQL = `INSERT INTO order_items (
		id, order_number, vendor_id, product_id, variant_id, product_name,
		variant_attributes, unit_price_cents, quantity, subtotal_cents,
		tax_cents, total_cents, vendor_status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// CreateOrder runs the whole checkout inside one transaction: availability
// re-check under variant row locks, order + item insertion (completing the
// catalog snapshots from the locked rows), stock decrement, reservation
// drop, and cart removal. A failure at any step rolls everything back; no
// partial order, no partial stock decrement. Stock races surface as
// *inventory.InsufficientStockError, everything else as *order.CheckoutError.
func (r *OrderRepository) CreateOrder(ctx context.Context, o *order.Order, c *cart.Cart) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &order.CheckoutError{Err: err}
	}
	defer tx.Rollback(ctx)

	group := c.ReservationGroupID.String()

	for i := range o.Items {
		it := &o.Items[i]

		// Lock the variant row and complete the item snapshot from it.
		var stock int
		err := tx.QueryRow(ctx, `SELECT vendor_id, name, attributes, stock_quantity
			FROM product_variants WHERE id = $1 FOR UPDATE`, it.VariantID).
			Scan(&it.VendorID, &it.ProductName, &it.VariantAttributes, &stock)
		if err != nil {
			return &order.CheckoutError{Err: errors.Wrap(err, "lock variant")}
		}

		// Availability re-check: holds from other checkout groups still
		// count; this cart's own reservation is the one being consumed.
		var reservedByOthers int
		err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_reservations
			WHERE variant_id = $1 AND group_id <> $2 AND expires_at > now()`,
			it.VariantID, group).Scan(&reservedByOthers)
		if err != nil {
			return &order.CheckoutError{Err: errors.Wrap(err, "sum reservations")}
		}

		if available := inventory.Available(stock, reservedByOthers); available < it.Quantity {
			return &inventory.InsufficientStockError{
				UnitID:    it.VariantID,
				Requested: it.Quantity,
				Available: available,
			}
		}

		ct, err := tx.Exec(ctx, `UPDATE product_variants
			SET stock_quantity = stock_quantity - $2, updated_at = now()
			WHERE id = $1 AND stock_quantity >= $2`, it.VariantID, it.Quantity)
		if err != nil {
			return &order.CheckoutError{Err: errors.Wrap(err, "decrement stock")}
		}
		if ct.RowsAffected() != 1 {
			return &inventory.InsufficientStockError{
				UnitID:    it.VariantID,
				Requested: it.Quantity,
				Available: stock,
			}
		}
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.OrderNumber, o.CustomerID, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.PaymentTransactionID, o.SubtotalCents, o.TaxCents, o.ShippingCents,
		o.DiscountCents, o.CodFeeCents, o.TotalCents, o.ShippingAddress,
		o.BillingAddress, o.CreatedAt,
	)
	if err != nil {
		return &order.CheckoutError{Err: errors.Wrap(err, "insert order")}
	}

	for _, it := range o.Items {
		_, err := tx.Exec(ctx, insertOrderItemSQL,
			it.ID, it.OrderNumber, it.VendorID, it.ProductID, it.VariantID,
			it.ProductName, it.VariantAttributes, it.UnitPriceCents, it.Quantity,
			it.SubtotalCents, it.TaxCents, it.TotalCents, it.VendorStatus,
		)
		if err != nil {
			return &order.CheckoutError{Err: errors.Wrap(err, "insert order item")}
		}
	}

	// The reservation group is consumed by the decrements above.
	if _, err := tx.Exec(ctx, `DELETE FROM stock_reservations WHERE group_id = $1`, group); err != nil {
		return &order.CheckoutError{Err: errors.Wrap(err, "drop reservations")}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, c.ID); err != nil {
		return &order.CheckoutError{Err: errors.Wrap(err, "clear cart")}
	}

	if err := tx.Commit(ctx); err != nil {
		return &order.CheckoutError{Err: err}
	}
	return nil
}

const getOrderSQL = `SELECT order_number, customer_id, status, payment_status, payment_method,
		COALESCE(payment_transaction_id, ''), subtotal_cents, tax_cents, shipping_cents,
		discount_cents, cod_fee_cents, total_cents, shipping_address, billing_address,
		cod_amount_collected, delivery_attempts, scheduled_delivery_date,
		COALESCE(delivery_agent_id, ''), COALESCE(delivered_by_id, ''), delivered_at, created_at
	FROM orders WHERE order_number = $1`

const getOrderItemsSQL = `SELECT id, order_number, vendor_id, product_id, variant_id, product_name,
		variant_attributes, unit_price_cents, quantity, subtotal_cents, tax_cents,
		total_cents, vendor_status
	FROM order_items WHERE order_number = $1 ORDER BY id`

// Get loads an order fully hydrated with its items.
func (r *OrderRepository) Get(ctx context.Context, orderNumber string) (*order.Order, error) {
	var o order.Order
	err := r.pool.QueryRow(ctx, getOrderSQL, orderNumber).Scan(
		&o.OrderNumber, &o.CustomerID, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.PaymentTransactionID, &o.SubtotalCents, &o.TaxCents, &o.ShippingCents,
		&o.DiscountCents, &o.CodFeeCents, &o.TotalCents, &o.ShippingAddress, &o.BillingAddress,
		&o.CodAmountCollected, &o.DeliveryAttempts, &o.ScheduledDeliveryDate,
		&o.DeliveryAgentID, &o.DeliveredByID, &o.DeliveredAt, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}

	rows, err := r.pool.Query(ctx, getOrderItemsSQL, orderNumber)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	defer rows.Close()

	for rows.Next() {
		var it order.Item
		err := rows.Scan(
			&it.ID, &it.OrderNumber, &it.VendorID, &it.ProductID, &it.VariantID,
			&it.ProductName, &it.VariantAttributes, &it.UnitPriceCents, &it.Quantity,
			&it.SubtotalCents, &it.TaxCents, &it.TotalCents, &it.VendorStatus,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate order items")
	}
	return &o, nil
}

const updateOrderSQL = `UPDATE orders SET
		status = $2, payment_status = $3, cod_amount_collected = $4,
		delivery_attempts = $5, scheduled_delivery_date = $6,
		delivery_agent_id = NULLIF($7, ''), delivered_by_id = NULLIF($8, ''),
		delivered_at = $9, updated_at = now()
	WHERE order_number = $1`

const insertStatusLogSQL = `INSERT INTO order_status_logs (order_number, old_status, new_status, note, actor_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// UpdateStatus persists the mutated order and appends the audit entry in
// one transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *order.Order, log order.StatusLog) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	if err := updateOrderTx(ctx, tx, o, log); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// UpdateItemStatus persists one item's vendor status, the projected order
// status, and the audit entry in one transaction.
func (r *OrderRepository) UpdateItemStatus(ctx context.Context, o *order.Order, itemID string, log order.StatusLog) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	var status order.VendorStatus
	for _, it := range o.Items {
		if it.ID == itemID {
			status = it.VendorStatus
			break
		}
	}
	ct, err := tx.Exec(ctx, `UPDATE order_items SET vendor_status = $2 WHERE id = $1`, itemID, status)
	if err != nil {
		return errors.Wrap(err, "update item status")
	}
	if ct.RowsAffected() != 1 {
		return order.ErrItemNotFound
	}

	if err := updateOrderTx(ctx, tx, o, log); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func updateOrderTx(ctx context.Context, tx pgx.Tx, o *order.Order, log order.StatusLog) error {
	ct, err := tx.Exec(ctx, updateOrderSQL,
		o.OrderNumber, o.Status, o.PaymentStatus, o.CodAmountCollected,
		o.DeliveryAttempts, o.ScheduledDeliveryDate, o.DeliveryAgentID,
		o.DeliveredByID, o.DeliveredAt,
	)
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	if ct.RowsAffected() != 1 {
		return order.ErrNotFound
	}

	_, err = tx.Exec(ctx, insertStatusLogSQL,
		log.OrderNumber, log.OldStatus, log.NewStatus, log.Note, log.ActorID, log.CreatedAt,
	)
	return errors.Wrap(err, "insert status log")
}

const agentDeliveredSQL = `SELECT COUNT(*), COALESCE(SUM(COALESCE(cod_amount_collected, total_cents)), 0)
	FROM orders
	WHERE delivered_by_id = $1 AND status = 'delivered'
	  AND delivered_at >= $2 AND delivered_at < $3`

const agentFailedSQL = `SELECT COUNT(*)
	FROM order_status_logs l
	JOIN orders o ON o.order_number = l.order_number
	WHERE o.delivery_agent_id = $1 AND l.new_status = 'delivery_failed'
	  AND l.created_at >= $2 AND l.created_at < $3`

// AgentDailyTotals computes the delivered count, cash collected, and
// failed-attempt count for one agent on one UTC day. Failed attempts come
// from the audit trail so a failure later rescheduled the same day still
// counts.
func (r *OrderRepository) AgentDailyTotals(ctx context.Context, agentID string, date time.Time) (int, int64, int, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var delivered int
	var collected int64
	if err := r.pool.QueryRow(ctx, agentDeliveredSQL, agentID, dayStart, dayEnd).Scan(&delivered, &collected); err != nil {
		return 0, 0, 0, errors.Wrap(err, "query delivered totals")
	}

	var failed int
	if err := r.pool.QueryRow(ctx, agentFailedSQL, agentID, dayStart, dayEnd).Scan(&failed); err != nil {
		return 0, 0, 0, errors.Wrap(err, "query failed count")
	}

	return delivered, collected, failed, nil
}
