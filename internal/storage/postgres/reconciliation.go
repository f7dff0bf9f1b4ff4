package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/marketplace-core/internal/domain/reconciliation"
)

var _ reconciliation.Repository = (*ReconciliationRepository)(nil)

// ReconciliationRepository implements reconciliation.Repository backed by
// PostgreSQL. The (agent_id, reconciliation_date) uniqueness constraint
// keeps each day settled at most once.
type ReconciliationRepository struct {
	pool *pgxpool.Pool
}

// NewReconciliationRepository returns a repository using the pool.
func NewReconciliationRepository(pool *pgxpool.Pool) *ReconciliationRepository {
	return &ReconciliationRepository{pool: pool}
}

const insertReconciliationSQL = `INSERT INTO cod_reconciliations (
		id, agent_id, reconciliation_date, total_deliveries, successful_deliveries,
		failed_deliveries, total_collected_cents, reported_amount_cents,
		has_discrepancy, discrepancy_amount_cents, status, notes, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// Create inserts a reconciliation record, mapping the per-day uniqueness
// conflict to reconciliation.ErrAlreadyExists.
func (r *ReconciliationRepository) Create(ctx context.Context, rec *reconciliation.Reconciliation) error {
	_, err := r.pool.Exec(ctx, insertReconciliationSQL,
		rec.ID, rec.AgentID, rec.Date, rec.TotalDeliveries, rec.SuccessfulDeliveries,
		rec.FailedDeliveries, rec.TotalCollectedCents, rec.ReportedAmountCents,
		rec.HasDiscrepancy, rec.DiscrepancyAmountCents, rec.Status, rec.Notes, rec.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return reconciliation.ErrAlreadyExists
	}
	return errors.Wrap(err, "insert reconciliation")
}

const getReconciliationSQL = `SELECT id, agent_id, reconciliation_date, total_deliveries,
		successful_deliveries, failed_deliveries, total_collected_cents,
		reported_amount_cents, has_discrepancy, discrepancy_amount_cents,
		status, notes, COALESCE(verified_by_id, ''), verified_at, created_at
	FROM cod_reconciliations WHERE id = $1`

// Get loads a reconciliation record by id.
func (r *ReconciliationRepository) Get(ctx context.Context, id string) (*reconciliation.Reconciliation, error) {
	rec, err := scanReconciliation(r.pool.QueryRow(ctx, getReconciliationSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, reconciliation.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query reconciliation")
	}
	return rec, nil
}

// Update persists status, notes, and verification fields.
func (r *ReconciliationRepository) Update(ctx context.Context, rec *reconciliation.Reconciliation) error {
	ct, err := r.pool.Exec(ctx, `UPDATE cod_reconciliations
		SET status = $2, notes = $3, verified_by_id = NULLIF($4, ''), verified_at = $5
		WHERE id = $1`,
		rec.ID, rec.Status, rec.Notes, rec.VerifiedByID, rec.VerifiedAt,
	)
	if err != nil {
		return errors.Wrap(err, "update reconciliation")
	}
	if ct.RowsAffected() != 1 {
		return reconciliation.ErrNotFound
	}
	return nil
}

const listMonthSQL = `SELECT id, agent_id, reconciliation_date, total_deliveries,
		successful_deliveries, failed_deliveries, total_collected_cents,
		reported_amount_cents, has_discrepancy, discrepancy_amount_cents,
		status, notes, COALESCE(verified_by_id, ''), verified_at, created_at
	FROM cod_reconciliations
	WHERE agent_id = $1 AND reconciliation_date >= $2 AND reconciliation_date < $3
	ORDER BY reconciliation_date`

// ListForMonth returns the agent's daily records within the month.
func (r *ReconciliationRepository) ListForMonth(ctx context.Context, agentID string, year int, month time.Month) ([]reconciliation.Reconciliation, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	rows, err := r.pool.Query(ctx, listMonthSQL, agentID, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "query month")
	}
	defer rows.Close()

	var recs []reconciliation.Reconciliation
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan reconciliation")
		}
		recs = append(recs, *rec)
	}
	return recs, errors.Wrap(rows.Err(), "iterate month")
}

func scanReconciliation(row pgx.Row) (*reconciliation.Reconciliation, error) {
	var rec reconciliation.Reconciliation
	err := row.Scan(
		&rec.ID, &rec.AgentID, &rec.Date, &rec.TotalDeliveries,
		&rec.SuccessfulDeliveries, &rec.FailedDeliveries, &rec.TotalCollectedCents,
		&rec.ReportedAmountCents, &rec.HasDiscrepancy, &rec.DiscrepancyAmountCents,
		&rec.Status, &rec.Notes, &rec.VerifiedByID, &rec.VerifiedAt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
