package reconciliation

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service generates daily cash reports and settles them against agent
// declarations.
type Service struct {
	orders  OrderSource
	records Repository
	now     func() time.Time
}

// NewService creates the reconciliation service.
func NewService(orders OrderSource, records Repository) *Service {
	return &Service{orders: orders, records: records, now: time.Now}
}

// GenerateDailyReport computes the agent's cash position for a day from
// delivered and failed orders. It reads only; running it twice with no
// intervening order changes yields identical output.
func (s *Service) GenerateDailyReport(ctx context.Context, agentID string, date time.Time) (*DailyReport, error) {
	delivered, collected, failed, err := s.orders.AgentDailyTotals(ctx, agentID, date)
	if err != nil {
		return nil, errors.Wrap(err, "agent daily totals")
	}

	return &DailyReport{
		AgentID:              agentID,
		Date:                 date,
		TotalDeliveries:      delivered + failed,
		SuccessfulDeliveries: delivered,
		FailedDeliveries:     failed,
		TotalCollectedCents:  collected,
	}, nil
}

// CreateReconciliation records the agent's declared amount against the
// system-computed report. Zero discrepancy auto-verifies; any difference
// leaves the record pending_review for an admin.
func (s *Service) CreateReconciliation(ctx context.Context, agentID string, date time.Time, reportedAmountCents int64) (*Reconciliation, error) {
	report, err := s.GenerateDailyReport(ctx, agentID, date)
	if err != nil {
		return nil, err
	}

	amount, has, status := Discrepancy(report.TotalCollectedCents, reportedAmountCents)

	r := &Reconciliation{
		ID:                     uuid.New().String(),
		AgentID:                agentID,
		Date:                   date,
		TotalDeliveries:        report.TotalDeliveries,
		SuccessfulDeliveries:   report.SuccessfulDeliveries,
		FailedDeliveries:       report.FailedDeliveries,
		TotalCollectedCents:    report.TotalCollectedCents,
		ReportedAmountCents:    reportedAmountCents,
		HasDiscrepancy:         has,
		DiscrepancyAmountCents: amount,
		Status:                 status,
		CreatedAt:              s.now().UTC(),
	}

	if err := s.records.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Verify closes a pending_review record with an admin sign-off. Verifying
// an already-verified record is a no-op.
func (s *Service) Verify(ctx context.Context, reconciliationID, adminID string) (*Reconciliation, error) {
	r, err := s.records.Get(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusVerified {
		return r, nil
	}

	now := s.now().UTC()
	r.Status = StatusVerified
	r.VerifiedByID = adminID
	r.VerifiedAt = &now
	if err := s.records.Update(ctx, r); err != nil {
		return nil, errors.Wrap(err, "update reconciliation")
	}
	return r, nil
}

// AddNotes appends an admin note to a record. A note on a record under
// review closes it like Verify does: an explained discrepancy needs no
// separate sign-off. Notes on an already-verified record only annotate
// and keep the original verifier.
func (s *Service) AddNotes(ctx context.Context, reconciliationID, notes, adminID string) (*Reconciliation, error) {
	r, err := s.records.Get(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}

	if r.Notes != "" {
		r.Notes += "\n"
	}
	r.Notes += notes
	if r.Status == StatusPendingReview {
		now := s.now().UTC()
		r.Status = StatusVerified
		r.VerifiedByID = adminID
		r.VerifiedAt = &now
	}
	if err := s.records.Update(ctx, r); err != nil {
		return nil, errors.Wrap(err, "update reconciliation")
	}
	return r, nil
}

// GenerateMonthlySummary rolls up the month's daily records. Purely
// additive over stored rows.
func (s *Service) GenerateMonthlySummary(ctx context.Context, agentID string, year int, month time.Month) (*MonthlySummary, error) {
	days, err := s.records.ListForMonth(ctx, agentID, year, month)
	if err != nil {
		return nil, errors.Wrap(err, "list month")
	}

	sum := &MonthlySummary{AgentID: agentID, Year: year, Month: month}
	for _, d := range days {
		sum.DaysWorked++
		sum.TotalDeliveries += d.TotalDeliveries
		sum.TotalCollectedCents += d.TotalCollectedCents
		if d.HasDiscrepancy {
			sum.DiscrepancyDays++
		}
	}
	return sum, nil
}
