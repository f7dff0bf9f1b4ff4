package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/marketplace-core/internal/domain/payout"
)

var _ payout.Repository = (*PayoutRepository)(nil)

// PayoutRepository implements payout.Repository backed by PostgreSQL.
// Every state transition runs in its own transaction together with the
// commission updates it implies, so bulk runs tolerate partial failure.
type PayoutRepository struct {
	pool *pgxpool.Pool
}

// NewPayoutRepository returns a PayoutRepository using the pool.
func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{pool: pool}
}

const getPayoutSQL = `SELECT id, vendor_id, amount_cents, processing_fee_cents, net_amount_cents,
		status, COALESCE(transaction_id, ''), COALESCE(failure_reason, ''), processed_at, created_at
	FROM payouts WHERE id = $1`

// Get loads a payout by id.
func (r *PayoutRepository) Get(ctx context.Context, id string) (*payout.Payout, error) {
	var p payout.Payout
	err := r.pool.QueryRow(ctx, getPayoutSQL, id).Scan(
		&p.ID, &p.VendorID, &p.AmountCents, &p.ProcessingFeeCents, &p.NetAmountCents,
		&p.Status, &p.TransactionID, &p.FailureReason, &p.ProcessedAt, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, payout.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query payout")
	}
	return &p, nil
}

// CreateWithCommissions inserts the payout and attaches the commissions in
// one transaction. The guarded UPDATE only captures commissions that are
// confirmed and unattached; a shortfall means some commission was not
// eligible and the whole creation rolls back.
func (r *PayoutRepository) CreateWithCommissions(ctx context.Context, p *payout.Payout, commissionIDs []string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO payouts (id, vendor_id, amount_cents, processing_fee_cents, net_amount_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.VendorID, p.AmountCents, p.ProcessingFeeCents, p.NetAmountCents, p.Status, p.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert payout")
	}

	ct, err := tx.Exec(ctx, `UPDATE commissions SET payout_id = $1, updated_at = now()
		WHERE id = ANY($2) AND status = 'confirmed' AND payout_id IS NULL`,
		p.ID, commissionIDs,
	)
	if err != nil {
		return errors.Wrap(err, "attach commissions")
	}
	if int(ct.RowsAffected()) != len(commissionIDs) {
		return r.ineligibleCommission(ctx, tx, p.ID, commissionIDs)
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// ineligibleCommission identifies which commission blocked the batch so
// the error names it.
func (r *PayoutRepository) ineligibleCommission(ctx context.Context, tx pgx.Tx, payoutID string, commissionIDs []string) error {
	rows, err := tx.Query(ctx, `SELECT id, status, payout_id FROM commissions WHERE id = ANY($1)`, commissionIDs)
	if err != nil {
		return errors.Wrap(err, "inspect commissions")
	}
	defer rows.Close()

	seen := make(map[string]bool, len(commissionIDs))
	for rows.Next() {
		var id, status string
		var attached *string
		if err := rows.Scan(&id, &status, &attached); err != nil {
			return errors.Wrap(err, "scan commission")
		}
		seen[id] = true
		if attached != nil && *attached != payoutID {
			return &payout.CommissionError{CommissionID: id, Reason: "already attached to a payout"}
		}
		if status != "confirmed" {
			return &payout.CommissionError{CommissionID: id, Reason: "not confirmed (status " + status + ")"}
		}
	}
	for _, id := range commissionIDs {
		if !seen[id] {
			return &payout.CommissionError{CommissionID: id, Reason: "not found"}
		}
	}
	return &payout.CommissionError{CommissionID: "", Reason: "commission set not eligible"}
}

// Complete moves the payout to completed and its commissions to paid.
func (r *PayoutRepository) Complete(ctx context.Context, p *payout.Payout) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	if err := updatePayoutTx(ctx, tx, p); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE commissions SET status = 'paid', updated_at = now()
		WHERE payout_id = $1`, p.ID)
	if err != nil {
		return errors.Wrap(err, "mark commissions paid")
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// CancelAndDetach moves the payout to cancelled and returns its
// commissions to the confirmed, unattached pool.
func (r *PayoutRepository) CancelAndDetach(ctx context.Context, p *payout.Payout) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	if err := updatePayoutTx(ctx, tx, p); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE commissions SET payout_id = NULL, status = 'confirmed', updated_at = now()
		WHERE payout_id = $1`, p.ID)
	if err != nil {
		return errors.Wrap(err, "detach commissions")
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// Update persists payout fields without touching commissions.
func (r *PayoutRepository) Update(ctx context.Context, p *payout.Payout) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	if err := updatePayoutTx(ctx, tx, p); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func updatePayoutTx(ctx context.Context, tx pgx.Tx, p *payout.Payout) error {
	ct, err := tx.Exec(ctx, `UPDATE payouts SET status = $2, transaction_id = NULLIF($3, ''),
			failure_reason = NULLIF($4, ''), processed_at = $5, updated_at = now()
		WHERE id = $1`,
		p.ID, p.Status, p.TransactionID, p.FailureReason, p.ProcessedAt,
	)
	if err != nil {
		return errors.Wrap(err, "update payout")
	}
	if ct.RowsAffected() != 1 {
		return payout.ErrNotFound
	}
	return nil
}

// ConfirmedUnattachedTotal sums the vendor's confirmed, unbatched
// commission amounts.
func (r *PayoutRepository) ConfirmedUnattachedTotal(ctx context.Context, vendorID string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(vendor_amount_cents), 0) FROM commissions
		WHERE vendor_id = $1 AND status = 'confirmed' AND payout_id IS NULL`, vendorID).Scan(&total)
	return total, errors.Wrap(err, "query available balance")
}

// ListPending returns the ids of payouts currently pending.
func (r *PayoutRepository) ListPending(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM payouts WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "query pending payouts")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan payout id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "iterate pending payouts")
}
