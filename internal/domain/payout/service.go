package payout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendora/marketplace-core/internal/domain/event"
)

// Config holds the payout tunables.
type Config struct {
	// ProcessingFeePercent is deducted from every payout's gross amount.
	ProcessingFeePercent decimal.Decimal
	// MinFeeCents floors the fee so tiny payouts still cover transfer cost.
	MinFeeCents int64
}

// fee computes the processing fee for a gross amount.
func (c Config) fee(amountCents int64) int64 {
	f := decimal.NewFromInt(amountCents).
		Mul(c.ProcessingFeePercent).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
	if f < c.MinFeeCents {
		f = c.MinFeeCents
	}
	return f
}

// UnattachedCommission is one confirmed commission not yet batched into
// any payout, as listed for payout assembly.
type UnattachedCommission struct {
	ID                string
	OrderItemID       string
	VendorAmountCents int64
	CreatedAt         time.Time
}

// CommissionSource exposes the commission reads the payout service needs:
// amounts for pricing a batch and the vendor's batchable set. Validation
// of status/attachment happens inside the repository transaction; these
// reads are only for summing and listing.
type CommissionSource interface {
	VendorAmounts(ctx context.Context, commissionIDs []string) (map[string]int64, error)
	ListConfirmedUnattached(ctx context.Context, vendorID string) ([]UnattachedCommission, error)
}

// Service batches commissions into payouts and drives their lifecycle.
type Service struct {
	payouts     Repository
	commissions CommissionSource
	events      event.Publisher
	cfg         Config
	now         func() time.Time
}

// NewService creates the payout service.
func NewService(payouts Repository, commissions CommissionSource, events event.Publisher, cfg Config) *Service {
	return &Service{
		payouts:     payouts,
		commissions: commissions,
		events:      events,
		cfg:         cfg,
		now:         time.Now,
	}
}

// AvailableBalance returns the vendor's confirmed, not-yet-batched
// commission total.
func (s *Service) AvailableBalance(ctx context.Context, vendorID string) (int64, error) {
	return s.payouts.ConfirmedUnattachedTotal(ctx, vendorID)
}

// UnattachedCommissions lists the vendor's commissions eligible for the
// next payout batch.
func (s *Service) UnattachedCommissions(ctx context.Context, vendorID string) ([]UnattachedCommission, error) {
	return s.commissions.ListConfirmedUnattached(ctx, vendorID)
}

// Create batches the given confirmed commissions into a pending payout,
// applying the processing fee schedule. Any commission that is not
// confirmed or already attached fails the whole creation.
func (s *Service) Create(ctx context.Context, vendorID string, commissionIDs []string) (*Payout, error) {
	if len(commissionIDs) == 0 {
		return nil, ErrNoCommissions
	}

	amounts, err := s.commissions.VendorAmounts(ctx, commissionIDs)
	if err != nil {
		return nil, errors.Wrap(err, "load commission amounts")
	}

	var gross int64
	for _, id := range commissionIDs {
		amt, ok := amounts[id]
		if !ok {
			return nil, &CommissionError{CommissionID: id, Reason: "not found"}
		}
		gross += amt
	}

	fee := s.cfg.fee(gross)
	p := &Payout{
		ID:                 uuid.New().String(),
		VendorID:           vendorID,
		AmountCents:        gross,
		ProcessingFeeCents: fee,
		NetAmountCents:     gross - fee,
		Status:             StatusPending,
		CreatedAt:          s.now().UTC(),
	}

	if err := s.payouts.CreateWithCommissions(ctx, p, commissionIDs); err != nil {
		return nil, err
	}
	return p, nil
}

// Process completes a pending payout: stamps the transaction details and
// marks the attached commissions paid.
func (s *Service) Process(ctx context.Context, payoutID, transactionID string) (*Payout, error) {
	p, err := s.payouts.Get(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		return nil, &StateError{PayoutID: p.ID, Current: p.Status, Required: StatusPending}
	}

	now := s.now().UTC()
	p.Status = StatusCompleted
	p.TransactionID = transactionID
	p.ProcessedAt = &now
	p.FailureReason = ""

	if err := s.payouts.Complete(ctx, p); err != nil {
		return nil, errors.Wrap(err, "complete payout")
	}

	_ = s.events.Publish(ctx, event.Event{
		Type: event.TypePayoutProcessed,
		Payload: event.PayoutProcessed{
			PayoutID:       p.ID,
			VendorID:       p.VendorID,
			NetAmountCents: p.NetAmountCents,
			TransactionID:  transactionID,
		},
	})
	return p, nil
}

// Cancel aborts a pending payout. Its commissions revert to confirmed and
// the amount re-enters the vendor's available balance.
func (s *Service) Cancel(ctx context.Context, payoutID, reason string) (*Payout, error) {
	p, err := s.payouts.Get(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		return nil, &StateError{PayoutID: p.ID, Current: p.Status, Required: StatusPending}
	}

	p.Status = StatusCancelled
	p.FailureReason = reason
	if err := s.payouts.CancelAndDetach(ctx, p); err != nil {
		return nil, errors.Wrap(err, "cancel payout")
	}
	return p, nil
}

// MarkFailed records a processing failure so the payout becomes
// retryable. Commissions stay attached.
func (s *Service) MarkFailed(ctx context.Context, payoutID, reason string) (*Payout, error) {
	p, err := s.payouts.Get(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		return nil, &StateError{PayoutID: p.ID, Current: p.Status, Required: StatusPending}
	}

	p.Status = StatusFailed
	p.FailureReason = reason
	if err := s.payouts.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "mark payout failed")
	}
	return p, nil
}

// Retry re-attempts a failed payout with fresh transaction details. When
// the attempt does not complete, the payout returns to failed with its
// original reason instead of stranding in pending.
func (s *Service) Retry(ctx context.Context, payoutID, transactionID string) (*Payout, error) {
	p, err := s.payouts.Get(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusFailed {
		return nil, &StateError{PayoutID: p.ID, Current: p.Status, Required: StatusFailed}
	}

	// Re-arm and run the normal completion path. The failure reason is
	// kept until completion clears it.
	prevReason := p.FailureReason
	p.Status = StatusPending
	if err := s.payouts.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "rearm payout")
	}

	done, err := s.Process(ctx, payoutID, transactionID)
	if err != nil {
		p.Status = StatusFailed
		p.FailureReason = prevReason
		if uerr := s.payouts.Update(ctx, p); uerr != nil {
			return nil, errors.Wrap(uerr, "restore failed payout")
		}
		return nil, err
	}
	return done, nil
}

// BatchResult is one payout's outcome from a bulk run.
type BatchResult struct {
	PayoutID string
	Err      error
}

// ProcessBatch processes a set of pending payouts, continuing past
// individual failures. Each payout's transition is its own transaction;
// the per-payout outcome list is the result, never an aggregate abort.
func (s *Service) ProcessBatch(ctx context.Context, payoutIDs []string, transactionIDFor func(payoutID string) string) []BatchResult {
	results := make([]BatchResult, 0, len(payoutIDs))
	for _, id := range payoutIDs {
		_, err := s.Process(ctx, id, transactionIDFor(id))
		results = append(results, BatchResult{PayoutID: id, Err: err})
	}
	return results
}

// ProcessPending runs ProcessBatch over every payout currently pending.
func (s *Service) ProcessPending(ctx context.Context, transactionIDFor func(payoutID string) string) ([]BatchResult, error) {
	ids, err := s.payouts.ListPending(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list pending payouts")
	}
	return s.ProcessBatch(ctx, ids, transactionIDFor), nil
}
